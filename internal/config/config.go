// Package config loads application configuration from file and environment
// and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Warehouse  WarehouseConfig  `yaml:"warehouse" mapstructure:"warehouse"`
	Scoring    ScoringConfig    `yaml:"scoring" mapstructure:"scoring"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the results database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	ReadOnly    bool   `yaml:"read_only" mapstructure:"read_only"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// WarehouseConfig configures the parts warehouse connection.
type WarehouseConfig struct {
	DatabaseURL      string  `yaml:"database_url" mapstructure:"database_url"`
	QueriesPerSec    float64 `yaml:"queries_per_sec" mapstructure:"queries_per_sec"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxBackoff  int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
}

// ScoringConfig configures the scoring engine defaults.
type ScoringConfig struct {
	ProfilesPath  string `yaml:"profiles_path" mapstructure:"profiles_path"`
	WeightProfile string `yaml:"weight_profile" mapstructure:"weight_profile"`
	BoostProfile  string `yaml:"boost_profile" mapstructure:"boost_profile"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
}

// MonitoringConfig sets the score health thresholds.
type MonitoringConfig struct {
	MinAvgPriority    float64 `yaml:"min_avg_priority" mapstructure:"min_avg_priority"`
	MaxZeroRate       float64 `yaml:"max_zero_rate" mapstructure:"max_zero_rate"`
	MaxStaleHours     int     `yaml:"max_stale_hours" mapstructure:"max_stale_hours"`
	WebhookURL        string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARTRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "partrank.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("warehouse.queries_per_sec", 5.0)
	v.SetDefault("warehouse.retry_max_attempts", 3)
	v.SetDefault("warehouse.retry_backoff_ms", 500)
	v.SetDefault("warehouse.retry_max_backoff_ms", 30000)
	v.SetDefault("scoring.weight_profile", "default")
	v.SetDefault("scoring.boost_profile", "default")
	v.SetDefault("scoring.workers", 4)
	v.SetDefault("monitoring.min_avg_priority", 30.0)
	v.SetDefault("monitoring.max_zero_rate", 0.5)
	v.SetDefault("monitoring.max_stale_hours", 24)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks that the fields required by the given mode are set.
func (c *Config) Validate(mode string) error {
	var errs []string

	storeErrs := func() {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				errs = append(errs, "store.sqlite_path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
		}
	}

	switch mode {
	case "score":
		storeErrs()
		if c.Scoring.Workers < 1 || c.Scoring.Workers > 64 {
			errs = append(errs, "scoring.workers must be between 1 and 64")
		}
		if c.Warehouse.QueriesPerSec < 0 {
			errs = append(errs, "warehouse.queries_per_sec must be >= 0")
		}
	case "monitor":
		storeErrs()
		if c.Monitoring.MinAvgPriority < 0 || c.Monitoring.MinAvgPriority > 100 {
			errs = append(errs, "monitoring.min_avg_priority must be between 0 and 100")
		}
		if c.Monitoring.MaxZeroRate < 0 || c.Monitoring.MaxZeroRate > 1 {
			errs = append(errs, "monitoring.max_zero_rate must be between 0 and 1")
		}
		if c.Monitoring.CheckIntervalSecs < 1 {
			errs = append(errs, "monitoring.check_interval_secs must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
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
