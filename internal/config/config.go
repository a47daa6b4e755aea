package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/station-planner/internal/db"
	"github.com/sells-group/station-planner/internal/potential"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Overpass  OverpassConfig  `yaml:"overpass" mapstructure:"overpass"`
	Grid      GridConfig      `yaml:"grid" mapstructure:"grid"`
	Potential PotentialConfig `yaml:"potential" mapstructure:"potential"`
	Planning  PlanningConfig  `yaml:"planning" mapstructure:"planning"`
	Stations  StationsConfig  `yaml:"stations" mapstructure:"stations"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string           `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	Pool        db.ConnectConfig `yaml:"pool" mapstructure:"pool"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
	CacheSize          int      `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLSecs       int      `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	RefreshSecs        int      `yaml:"refresh_secs" mapstructure:"refresh_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// OverpassConfig configures the OSM context client.
type OverpassConfig struct {
	Endpoints           []string `yaml:"endpoints" mapstructure:"endpoints"`
	TimeoutSecs         int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	QueryTimeoutSecs    int      `yaml:"query_timeout_secs" mapstructure:"query_timeout_secs"`
	MaxAttempts         int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	RatePerSecond       float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	Concurrency         int      `yaml:"concurrency" mapstructure:"concurrency"`
	BreakerThreshold    int      `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int      `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// GridConfig configures the coverage hex grid.
type GridConfig struct {
	CellRadiusMeters float64 `yaml:"cell_radius_m" mapstructure:"cell_radius_m"`
	MaxCells         int     `yaml:"max_cells" mapstructure:"max_cells"`
	MinRadiusMeters  float64 `yaml:"min_radius_m" mapstructure:"min_radius_m"`
}

// PotentialConfig configures the heatmap model.
type PotentialConfig struct {
	LayersPath string            `yaml:"layers_path" mapstructure:"layers_path"`
	MaxSamples int               `yaml:"max_samples" mapstructure:"max_samples"`
	Weights    potential.Weights `yaml:"weights" mapstructure:"weights"`
}

// PlanningConfig configures candidate evaluation and grid precompute.
type PlanningConfig struct {
	RadiusMeters         int     `yaml:"radius_m" mapstructure:"radius_m"`
	StepMeters           int     `yaml:"step_m" mapstructure:"step_m"`
	MaxGridPoints        int     `yaml:"max_grid_points" mapstructure:"max_grid_points"`
	CoverageRadiusMeters float64 `yaml:"coverage_radius_m" mapstructure:"coverage_radius_m"`
	OutputDir            string  `yaml:"output_dir" mapstructure:"output_dir"`
}

// StationsConfig selects where the station list comes from.
type StationsConfig struct {
	Source    string `yaml:"source" mapstructure:"source"`
	Path      string `yaml:"path" mapstructure:"path"`
	URL       string `yaml:"url" mapstructure:"url"`
	City      string `yaml:"city" mapstructure:"city"`
	Strict    bool   `yaml:"strict" mapstructure:"strict"`
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLANNER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "station-planner.db")
	v.SetDefault("store.pool.max_conns", 10)
	v.SetDefault("store.pool.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 60)
	v.SetDefault("server.cache_size", 128)
	v.SetDefault("server.cache_ttl_secs", 300)
	v.SetDefault("server.refresh_secs", 0)
	v.SetDefault("overpass.timeout_secs", 45)
	v.SetDefault("overpass.query_timeout_secs", 25)
	v.SetDefault("overpass.max_attempts", 3)
	v.SetDefault("overpass.rate_per_second", 2.0)
	v.SetDefault("overpass.concurrency", 4)
	v.SetDefault("overpass.breaker_threshold", 5)
	v.SetDefault("overpass.breaker_cooldown_secs", 60)
	v.SetDefault("grid.cell_radius_m", 250.0)
	v.SetDefault("grid.max_cells", 50000)
	v.SetDefault("grid.min_radius_m", 25.0)
	v.SetDefault("potential.max_samples", 20000)
	v.SetDefault("potential.weights.population", 1.0)
	v.SetDefault("potential.weights.poi", 0.8)
	v.SetDefault("potential.weights.transit", 0.9)
	v.SetDefault("potential.weights.coverage", 0.75)
	v.SetDefault("planning.radius_m", 500)
	v.SetDefault("planning.step_m", 250)
	v.SetDefault("planning.max_grid_points", 40000)
	v.SetDefault("planning.coverage_radius_m", 500.0)
	v.SetDefault("planning.output_dir", "data/planning")
	v.SetDefault("stations.source", "file")
	v.SetDefault("stations.path", "stations.json")
	v.SetDefault("stations.url", "")
	v.SetDefault("stations.city", "")
	v.SetDefault("stations.strict", false)
	v.SetDefault("stations.user_agent", "station-planner/1.0")
	v.SetDefault("potential.layers_path", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are serve,
// grid, precompute, proposals and evaluate.
func (c *Config) Validate(mode string) error {
	var errs []string
	req := func(ok bool, msg string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Sprintf(msg, args...))
		}
	}

	req(c.Grid.CellRadiusMeters > 0, "grid.cell_radius_m must be positive")
	req(c.Grid.MaxCells >= 0, "grid.max_cells must not be negative")
	if err := c.Potential.Weights.Validate(); err != nil {
		errs = append(errs, err.Error())
	}

	switch mode {
	case "serve":
		req(c.Server.Port > 0 && c.Server.Port < 65536, "server.port must be between 1 and 65535, got %d", c.Server.Port)
		req(c.Server.CacheSize >= 0, "server.cache_size must not be negative")
		req(c.Server.RefreshSecs >= 0, "server.refresh_secs must not be negative")
		errs = append(errs, c.stationErrors()...)
	case "grid":
		errs = append(errs, c.stationErrors()...)
	case "precompute":
		req(c.Planning.StepMeters > 0, "planning.step_m must be positive")
		req(c.Planning.RadiusMeters >= 50 && c.Planning.RadiusMeters <= 5000,
			"planning.radius_m must be between 50 and 5000, got %d", c.Planning.RadiusMeters)
		req(c.Overpass.Concurrency > 0, "overpass.concurrency must be positive")
	case "evaluate":
		req(c.Overpass.Concurrency > 0, "overpass.concurrency must be positive")
	case "proposals":
		errs = append(errs, c.storeErrors()...)
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) storeErrors() []string {
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite driver"}
		}
	default:
		return []string{fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver)}
	}
	return nil
}

func (c *Config) stationErrors() []string {
	switch c.Stations.Source {
	case "file":
		if c.Stations.Path == "" {
			return []string{"stations.path is required for the file source"}
		}
	case "http":
		if c.Stations.URL == "" {
			return []string{"stations.url is required for the http source"}
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres station source"}
		}
	default:
		return []string{fmt.Sprintf("stations.source must be file, http or postgres, got %q", c.Stations.Source)}
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
