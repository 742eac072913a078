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
	Provider ProviderConfig `yaml:"provider" mapstructure:"provider"`
	Enrich   EnrichConfig   `yaml:"enrich" mapstructure:"enrich"`
	Dedupe   DedupeConfig   `yaml:"dedupe" mapstructure:"dedupe"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ProviderConfig holds the ownership/profile provider settings.
type ProviderConfig struct {
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	APIKey            string `yaml:"api_key" mapstructure:"api_key"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent         string `yaml:"user_agent" mapstructure:"user_agent"`
}

// EnrichConfig configures pacing and batching of enrichment runs.
type EnrichConfig struct {
	InitialDelayMs         int     `yaml:"initial_delay_ms" mapstructure:"initial_delay_ms"`
	MaxDelayMs             int     `yaml:"max_delay_ms" mapstructure:"max_delay_ms"`
	RelaxFactor            float64 `yaml:"relax_factor" mapstructure:"relax_factor"`
	FailureThreshold       int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	JitterMinMs            int     `yaml:"jitter_min_ms" mapstructure:"jitter_min_ms"`
	JitterMaxMs            int     `yaml:"jitter_max_ms" mapstructure:"jitter_max_ms"`
	ProfileDelayMinMs      int     `yaml:"profile_delay_min_ms" mapstructure:"profile_delay_min_ms"`
	ProfileDelayMaxMs      int     `yaml:"profile_delay_max_ms" mapstructure:"profile_delay_max_ms"`
	BatchSize              int     `yaml:"batch_size" mapstructure:"batch_size"`
	DealerVehicleThreshold int     `yaml:"dealer_vehicle_threshold" mapstructure:"dealer_vehicle_threshold"`
	LockPath               string  `yaml:"lock_path" mapstructure:"lock_path"`
}

// DedupeConfig configures duplicate detection.
type DedupeConfig struct {
	PageSize int `yaml:"page_size" mapstructure:"page_size"`
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
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "leads.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.requests_per_minute", 20)
	v.SetDefault("provider.timeout_secs", 0)
	v.SetDefault("provider.user_agent", "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0")
	v.SetDefault("enrich.initial_delay_ms", 8000)
	v.SetDefault("enrich.max_delay_ms", 120000)
	v.SetDefault("enrich.relax_factor", 0.75)
	v.SetDefault("enrich.failure_threshold", 3)
	v.SetDefault("enrich.jitter_min_ms", 2000)
	v.SetDefault("enrich.jitter_max_ms", 6000)
	v.SetDefault("enrich.profile_delay_min_ms", 1500)
	v.SetDefault("enrich.profile_delay_max_ms", 4000)
	v.SetDefault("enrich.batch_size", 50)
	v.SetDefault("enrich.dealer_vehicle_threshold", 10)
	v.SetDefault("enrich.lock_path", "/tmp/lead-resolver.lock")
	v.SetDefault("dedupe.page_size", 1000)
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

// Validate checks that the settings a command depends on are present and
// within range. mode is one of "enrich", "dedupe" or "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
		errs = append(errs, "store.driver must be postgres or sqlite")
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "store":
	case "enrich":
		if c.Provider.BaseURL == "" {
			errs = append(errs, "provider.base_url is required")
		}
		if c.Provider.RequestsPerMinute <= 0 {
			errs = append(errs, "provider.requests_per_minute must be > 0")
		}
		if c.Enrich.RelaxFactor <= 0 || c.Enrich.RelaxFactor >= 1 {
			errs = append(errs, "enrich.relax_factor must be between 0 and 1")
		}
		if c.Enrich.MaxDelayMs < c.Enrich.InitialDelayMs {
			errs = append(errs, "enrich.max_delay_ms must be >= enrich.initial_delay_ms")
		}
		if c.Enrich.JitterMaxMs < c.Enrich.JitterMinMs {
			errs = append(errs, "enrich.jitter_max_ms must be >= enrich.jitter_min_ms")
		}
		if c.Enrich.ProfileDelayMaxMs < c.Enrich.ProfileDelayMinMs {
			errs = append(errs, "enrich.profile_delay_max_ms must be >= enrich.profile_delay_min_ms")
		}
		if c.Enrich.FailureThreshold < 1 {
			errs = append(errs, "enrich.failure_threshold must be >= 1")
		}
		if c.Enrich.BatchSize < 1 {
			errs = append(errs, "enrich.batch_size must be >= 1")
		}
	case "dedupe":
		if c.Dedupe.PageSize < 1 {
			errs = append(errs, "dedupe.page_size must be >= 1")
		}
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
