package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Upstream UpstreamConfig `yaml:"upstream" mapstructure:"upstream"`
	Extract  ExtractConfig  `yaml:"extract" mapstructure:"extract"`
	Tier     TierConfig     `yaml:"tier" mapstructure:"tier"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backends.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// RunsDriver selects where the run journal lives: "postgres" (same
	// database as the market_data schema) or "sqlite" (local file).
	RunsDriver string `yaml:"runs_driver" mapstructure:"runs_driver"`
	RunsPath   string `yaml:"runs_path" mapstructure:"runs_path"`
}

// UpstreamConfig configures the market data API client.
type UpstreamConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig configures incremental extraction passes.
type ExtractConfig struct {
	BatchSize        int     `yaml:"batch_size" mapstructure:"batch_size"`
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	StalenessHours   int     `yaml:"staleness_hours" mapstructure:"staleness_hours"`
	FailureCeiling   int     `yaml:"failure_ceiling" mapstructure:"failure_ceiling"`
	ReportingLagDays int     `yaml:"reporting_lag_days" mapstructure:"reporting_lag_days"`
	CoverageFloor    float64 `yaml:"coverage_floor" mapstructure:"coverage_floor"`
	SchedulesFile    string  `yaml:"schedules_file" mapstructure:"schedules_file"`
}

// TierConfig holds the coverage-score thresholds for tier classification.
type TierConfig struct {
	CoreMin     float64 `yaml:"core_min" mapstructure:"core_min"`
	ExtendedMin float64 `yaml:"extended_min" mapstructure:"extended_min"`
}

// ServerConfig configures the read API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("MARKET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.runs_driver", "postgres")
	v.SetDefault("store.runs_path", "market-cli-runs.db")
	v.SetDefault("upstream.base_url", "https://www.alphavantage.co/query")
	v.SetDefault("upstream.api_key", "")
	v.SetDefault("upstream.requests_per_second", 1.2)
	v.SetDefault("upstream.burst", 2)
	v.SetDefault("upstream.timeout_secs", 30)
	v.SetDefault("upstream.max_retries", 3)
	v.SetDefault("upstream.user_agent", "market-cli/1.0")
	v.SetDefault("extract.batch_size", 50)
	v.SetDefault("extract.workers", 4)
	v.SetDefault("extract.staleness_hours", 24)
	v.SetDefault("extract.failure_ceiling", 3)
	v.SetDefault("extract.reporting_lag_days", 45)
	v.SetDefault("extract.coverage_floor", 0.2)
	v.SetDefault("extract.schedules_file", "")
	v.SetDefault("tier.core_min", 0.75)
	v.SetDefault("tier.extended_min", 0.40)
	v.SetDefault("server.port", 8080)
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
