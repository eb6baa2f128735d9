package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/comp-benchmark/internal/benchmark"
	"github.com/sells-group/comp-benchmark/internal/model"
	"github.com/sells-group/comp-benchmark/internal/store"
	"github.com/sells-group/comp-benchmark/internal/tables"
)

// server answers benchmark lookups over HTTP from one set of loaded tables.
type server struct {
	engine *benchmark.Engine
	tables *model.Tables
	opts   benchmark.Options
	store  store.Store
	ttl    time.Duration
}

func newServer(env *buildEnv, eng *benchmark.Engine, ttl time.Duration) *server {
	return &server{
		engine: eng,
		tables: env.Tables,
		opts:   env.Options,
		store:  env.Store,
		ttl:    ttl,
	}
}

// routes builds the router. Only /benchmarks is rate limited since it is the
// one route that may rebuild the whole table.
func (s *server) routes(limiter *rate.Limiter, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Get("/percentile", s.handlePercentile)
	r.With(rateLimit(limiter)).Get("/benchmarks", s.handleBenchmarks)
	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "ok",
		"fingerprint": s.engine.Fingerprint(),
	})
}

// handleBenchmarks serves the full table, optionally narrowed by region and
// family (code or display name). format=csv switches to CSV output.
func (s *server) handleBenchmarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := strings.ToLower(q.Get("format"))
	if format != "" && format != tables.FormatJSON && format != tables.FormatCSV {
		writeError(w, http.StatusBadRequest, "format must be json or csv")
		return
	}

	res, err := resolveTable(r.Context(), s.tables, s.opts, s.store, s.ttl)
	if err != nil {
		zap.L().Error("serve: build failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "build failed")
		return
	}
	rows := filterRows(res.Rows, q.Get("region"), q.Get("family"))

	w.Header().Set("X-Benchmark-Fingerprint", res.Fingerprint)
	if format == tables.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := tables.WriteCSV(w, rows); err != nil {
			zap.L().Warn("serve: write csv", zap.Error(err))
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fingerprint": res.Fingerprint,
		"cache_hit":   res.CacheHit,
		"count":       len(rows),
		"rows":        rows,
	})
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	region, family, level, ok := tripleParams(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"region": region,
		"family": family,
		"level":  level,
		"stats":  s.engine.Stats(region, family, level),
	})
}

// handlePercentile returns the matched vector, or one value when name is
// given. A miss is a normal answer with found=false.
func (s *server) handlePercentile(w http.ResponseWriter, r *http.Request) {
	region, family, level, ok := tripleParams(w, r)
	if !ok {
		return
	}

	resp := map[string]any{"region": region, "family": family, "level": level}
	if name := strings.TrimSpace(r.URL.Query().Get("name")); name != "" {
		v, found := s.engine.Percentile(region, family, level, name)
		resp["name"] = strings.ToUpper(name)
		resp["found"] = found
		if found {
			resp["value"] = v
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	v := s.engine.Pick(region, family, level)
	if v == nil {
		v = model.Vector{}
	}
	resp["found"] = v.HasNumeric()
	resp["percentiles"] = v
	writeJSON(w, http.StatusOK, resp)
}

// tripleParams reads region, family and level, answering 400 when any is
// missing.
func tripleParams(w http.ResponseWriter, r *http.Request) (region, family, level string, ok bool) {
	q := r.URL.Query()
	region = strings.TrimSpace(q.Get("region"))
	family = strings.TrimSpace(q.Get("family"))
	level = strings.TrimSpace(q.Get("level"))
	if region == "" || family == "" || level == "" {
		writeError(w, http.StatusBadRequest, "region, family and level are required")
		return "", "", "", false
	}
	return region, family, level, true
}

func filterRows(rows []model.BenchmarkRow, region, family string) []model.BenchmarkRow {
	if region == "" && family == "" {
		return rows
	}
	regionKey := model.RegionKey(region)
	familyKey := model.FoldKey(family)

	out := make([]model.BenchmarkRow, 0, len(rows))
	for _, row := range rows {
		if region != "" && model.RegionKey(row.Region) != regionKey {
			continue
		}
		if family != "" && model.FoldKey(row.FamilyCode) != familyKey && model.FoldKey(row.FamilyDisplayName) != familyKey {
			continue
		}
		out = append(out, row)
	}
	return out
}

// rateLimit rejects requests with 429 once the limiter's burst is spent.
func rateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("serve: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("serve: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
