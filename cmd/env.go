package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/comp-benchmark/internal/benchmark"
	"github.com/sells-group/comp-benchmark/internal/config"
	"github.com/sells-group/comp-benchmark/internal/db"
	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/store"
	"github.com/sells-group/comp-benchmark/internal/tables"
)

// buildEnv holds the loaded inputs shared by engine-backed commands.
type buildEnv struct {
	Tables  *model.Tables
	Options benchmark.Options
	Store   store.Store // nil when the result cache is off
}

// initBuildEnv validates the config for mode, loads the source tables and
// opens the result cache when withCache is set and the cache is enabled.
func initBuildEnv(ctx context.Context, mode string, withCache bool) (*buildEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	t, err := loadTables(ctx)
	if err != nil {
		return nil, err
	}

	opts, err := buildOptions(cfg.Build)
	if err != nil {
		return nil, err
	}

	env := &buildEnv{Tables: t, Options: opts}
	if withCache && cfg.Cache.Enabled {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		env.Store = st
	}
	return env, nil
}

// Close releases the result cache, if one was opened.
func (e *buildEnv) Close() {
	if e == nil || e.Store == nil {
		return
	}
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("cache: close failed", zap.Error(err))
	}
}

// Engine builds a lookup engine over the loaded tables.
func (e *buildEnv) Engine() (*benchmark.Engine, error) {
	return benchmark.NewEngine(e.Tables, e.Options)
}

// loadTables reads the input tables from the configured source driver.
func loadTables(ctx context.Context) (*model.Tables, error) {
	switch cfg.Sources.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.Sources.DatabaseURL, cfg.Sources.Pool)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
		return tables.PostgresSource{Pool: pool}.Load(ctx)
	case "file":
		return cfg.Sources.FileSource().Load(ctx)
	default:
		return nil, eris.Errorf("unsupported source driver: %s", cfg.Sources.Driver)
	}
}

// buildOptions maps the build section onto engine options and reads the
// category policy file when one is configured.
func buildOptions(bc config.BuildConfig) (benchmark.Options, error) {
	opts := benchmark.Options{
		ReferenceCurrency:  bc.ReferenceCurrency,
		ExecutiveThreshold: bc.ExecutiveThreshold,
		FinancePrefixes:    bc.FinancePrefixes,
		HighPrefixes:       bc.HighPrefixes,
		PickCacheSize:      bc.PickCacheSize,
	}
	if bc.PolicyFile != "" {
		data, err := os.ReadFile(bc.PolicyFile)
		if err != nil {
			return opts, eris.Wrapf(err, "read policy file %s", bc.PolicyFile)
		}
		opts.PolicyYAML = data
	}
	return opts, nil
}

// initStore opens and migrates the configured result cache.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Cache.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Cache.Path)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Sources.DatabaseURL, cfg.Sources.Pool)
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func cacheTTL() time.Duration {
	return time.Duration(cfg.Cache.TTLHours) * time.Hour
}

// buildResult is a benchmark table and where it came from.
type buildResult struct {
	Rows        []model.BenchmarkRow
	Fingerprint string
	CacheHit    bool
}

// resolveTable returns the benchmark table for t and opts, served from st
// when an unexpired entry exists under the input fingerprint. A nil st always
// rebuilds. Cache failures are logged and never fail the build.
func resolveTable(ctx context.Context, t *model.Tables, opts benchmark.Options, st store.Store, ttl time.Duration) (*buildResult, error) {
	res := &buildResult{Fingerprint: benchmark.Fingerprint(t, opts)}
	log := zap.L().With(zap.String("fingerprint", res.Fingerprint))

	if st != nil {
		cached, err := st.GetCachedBuild(ctx, res.Fingerprint)
		switch {
		case err != nil:
			log.Warn("cache: lookup failed, rebuilding", zap.Error(err))
		case cached != nil:
			res.Rows = cached.Rows
			res.CacheHit = true
		}
	}

	if !res.CacheHit {
		rows, err := benchmark.Build(ctx, t, opts)
		if err != nil {
			return nil, err
		}
		res.Rows = rows
		if st != nil {
			if err := st.SetCachedBuild(ctx, res.Fingerprint, rows, ttl); err != nil {
				log.Warn("cache: store failed", zap.Error(err))
			}
		}
	}

	if st != nil {
		run := model.BuildRun{
			Fingerprint: res.Fingerprint,
			Rows:        len(res.Rows),
			CacheHit:    res.CacheHit,
			Currency:    opts.ReferenceCurrency,
		}
		if _, err := st.RecordRun(ctx, run); err != nil {
			log.Warn("cache: record run failed", zap.Error(err))
		}
	}

	log.Info("build: table resolved",
		zap.Int("rows", len(res.Rows)),
		zap.Bool("cache_hit", res.CacheHit),
	)
	return res, nil
}
