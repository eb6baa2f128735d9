package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/comp-benchmark/internal/db"
	"github.com/sells-group/comp-benchmark/internal/tables"
)

// Config holds the full application configuration.
type Config struct {
	Sources SourcesConfig `yaml:"sources" mapstructure:"sources"`
	Build   BuildConfig   `yaml:"build" mapstructure:"build"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// SourcesConfig says where the input tables come from. With driver "file"
// each table is a CSV or XLSX path; with "postgres" they are read from the
// source schema at DatabaseURL.
type SourcesConfig struct {
	Driver        string              `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string              `yaml:"database_url" mapstructure:"database_url"`
	Pool          db.PoolConfig       `yaml:"pool" mapstructure:"pool"`
	Surveys       []tables.SurveyFile `yaml:"surveys" mapstructure:"surveys"`
	Employees     string              `yaml:"employees" mapstructure:"employees"`
	LevelMap      string              `yaml:"level_map" mapstructure:"level_map"`
	FamilyAliases string              `yaml:"family_aliases" mapstructure:"family_aliases"`
	Categories    string              `yaml:"categories" mapstructure:"categories"`
	FxRates       string              `yaml:"fx" mapstructure:"fx"`
}

// FileSource returns the file-backed table source described by the config.
func (s SourcesConfig) FileSource() tables.FileSource {
	return tables.FileSource{
		Surveys:       s.Surveys,
		Employees:     s.Employees,
		LevelMap:      s.LevelMap,
		FamilyAliases: s.FamilyAliases,
		Categories:    s.Categories,
		FxRates:       s.FxRates,
	}
}

// BuildConfig tunes the benchmark engine.
type BuildConfig struct {
	ReferenceCurrency  string   `yaml:"reference_currency" mapstructure:"reference_currency"`
	ExecutiveThreshold int      `yaml:"executive_threshold" mapstructure:"executive_threshold"`
	FinancePrefixes    []string `yaml:"finance_prefixes" mapstructure:"finance_prefixes"`
	HighPrefixes       []string `yaml:"high_prefixes" mapstructure:"high_prefixes"`
	PolicyFile         string   `yaml:"policy_file" mapstructure:"policy_file"`
	PickCacheSize      int      `yaml:"pick_cache_size" mapstructure:"pick_cache_size"`
}

// CacheConfig configures the build result cache. Driver "sqlite" keeps it
// in a local file at Path; "postgres" stores it next to the source tables.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Path     string `yaml:"path" mapstructure:"path"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// ServerConfig configures the HTTP lookup server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	RatePerSec     float64  `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst          int      `yaml:"burst" mapstructure:"burst"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory (optional) and
// COMPBENCH_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("sources.driver", "file")
	v.SetDefault("sources.database_url", "")
	v.SetDefault("sources.employees", "")
	v.SetDefault("sources.level_map", "")
	v.SetDefault("sources.family_aliases", "")
	v.SetDefault("sources.categories", "")
	v.SetDefault("sources.fx", "")
	v.SetDefault("build.reference_currency", "")
	v.SetDefault("build.executive_threshold", 7)
	v.SetDefault("build.finance_prefixes", []string{"FI."})
	v.SetDefault("build.high_prefixes", []string{"EX.", "SA."})
	v.SetDefault("build.policy_file", "")
	v.SetDefault("build.pick_cache_size", 4096)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "compbench.db")
	v.SetDefault("cache.ttl_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_sec", 5.0)
	v.SetDefault("server.burst", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. All problems are
// reported together.
func (c *Config) Validate(mode string) error {
	var errs []string
	req := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	fileSources := func() {
		req(len(c.Sources.Surveys) > 0, "sources.surveys needs at least one region file")
		for i, s := range c.Sources.Surveys {
			req(s.Region != "" && s.Path != "", fmt.Sprintf("sources.surveys[%d] needs region and path", i))
		}
		req(c.Sources.Employees != "", "sources.employees is required")
		req(c.Sources.LevelMap != "", "sources.level_map is required")
	}
	sources := func() {
		switch c.Sources.Driver {
		case "file":
			fileSources()
		case "postgres":
			req(c.Sources.DatabaseURL != "", "sources.database_url is required")
		default:
			errs = append(errs, fmt.Sprintf("sources.driver %q must be file or postgres", c.Sources.Driver))
		}
	}
	engine := func() {
		req(c.Build.ExecutiveThreshold > 0, "build.executive_threshold must be > 0")
		req(c.Build.PickCacheSize >= 0, "build.pick_cache_size must be >= 0")
	}
	cache := func() {
		switch c.Cache.Driver {
		case "sqlite":
			req(c.Cache.Path != "", "cache.path is required")
		case "postgres":
			req(c.Sources.DatabaseURL != "", "cache.driver postgres needs sources.database_url")
		default:
			errs = append(errs, fmt.Sprintf("cache.driver %q must be sqlite or postgres", c.Cache.Driver))
		}
		req(c.Cache.TTLHours > 0, "cache.ttl_hours must be > 0")
	}
	build := func() {
		engine()
		if c.Cache.Enabled {
			cache()
		}
	}

	switch mode {
	case "build":
		sources()
		build()
	case "serve":
		sources()
		build()
		req(c.Server.Port > 0, "server.port must be > 0")
		req(c.Server.RatePerSec > 0, "server.rate_per_sec must be > 0")
		req(c.Server.Burst > 0, "server.burst must be > 0")
	case "lookup":
		sources()
		engine()
	case "cache":
		cache()
	case "import":
		fileSources()
		req(c.Sources.DatabaseURL != "", "sources.database_url is required")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
