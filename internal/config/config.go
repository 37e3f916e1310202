package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/price-research/internal/model"
	"github.com/sells-group/price-research/internal/pricing"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Advisory  AdvisoryConfig  `yaml:"advisory" mapstructure:"advisory"`
	Sweep     SweepConfig     `yaml:"sweep" mapstructure:"sweep"`
	Catalog   CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the API server.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// PricingConfig holds the outlier and compliance policy.
type PricingConfig struct {
	LowThreshold     float64 `yaml:"low_threshold" mapstructure:"low_threshold"`
	HighThreshold    float64 `yaml:"high_threshold" mapstructure:"high_threshold"`
	StalenessMonths  int     `yaml:"staleness_months" mapstructure:"staleness_months"`
	DiversityMinimum int     `yaml:"diversity_minimum" mapstructure:"diversity_minimum"`
	MinValidPrices   int     `yaml:"min_valid_prices" mapstructure:"min_valid_prices"`
	DefaultMethod    string  `yaml:"default_method" mapstructure:"default_method"`
}

// Thresholds converts the policy to its decimal form.
func (p PricingConfig) Thresholds() model.Thresholds {
	return model.Thresholds{
		LowThreshold:     decimal.NewFromFloat(p.LowThreshold),
		HighThreshold:    decimal.NewFromFloat(p.HighThreshold),
		StalenessMonths:  p.StalenessMonths,
		DiversityMinimum: p.DiversityMinimum,
		MinValidPrices:   p.MinValidPrices,
	}
}

// Method returns the configured default estimation method.
func (p PricingConfig) Method() model.EstimationMethod {
	return model.EstimationMethod(p.DefaultMethod)
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key               string `yaml:"key" mapstructure:"key"`
	BaseURL           string `yaml:"base_url" mapstructure:"base_url"`
	Model             string `yaml:"model" mapstructure:"model"`
	MaxTokens         int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSecs       int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxRetries        int    `yaml:"max_retries" mapstructure:"max_retries"`
}

// Timeout returns the advisory call budget.
func (a AnthropicConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSecs) * time.Second
}

// AdvisoryConfig toggles the LLM second opinion.
type AdvisoryConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// SweepConfig configures the scheduled re-evaluation.
type SweepConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Schedule string `yaml:"schedule" mapstructure:"schedule"`
}

// CatalogConfig configures CATMAT imports.
type CatalogConfig struct {
	BatchSize   int    `yaml:"batch_size" mapstructure:"batch_size"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	Sheet       string `yaml:"sheet" mapstructure:"sheet"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRICE_RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "price-research.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("pricing.low_threshold", pricing.DefaultLowThreshold)
	v.SetDefault("pricing.high_threshold", pricing.DefaultHighThreshold)
	v.SetDefault("pricing.staleness_months", pricing.DefaultStalenessMonths)
	v.SetDefault("pricing.diversity_minimum", pricing.DefaultDiversityMinimum)
	v.SetDefault("pricing.min_valid_prices", pricing.DefaultMinValidPrices)
	v.SetDefault("pricing.default_method", string(model.MethodMedian))
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("anthropic.requests_per_minute", 50)
	v.SetDefault("anthropic.max_retries", 3)
	v.SetDefault("advisory.enabled", true)
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "0 3 * * *")
	v.SetDefault("catalog.batch_size", 1000)
	v.SetDefault("catalog.concurrency", 2)
	v.SetDefault("catalog.encoding", "latin1")
	v.SetDefault("catalog.sheet", "")
	v.SetDefault("catalog.user_agent", "price-research/1.0")

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

// Validate checks the settings a command needs. Mode is the command name.
func (c *Config) Validate(mode string) error {
	var errs []string

	needsStore := true
	switch mode {
	case "evaluate":
		needsStore = false
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
	case "advise":
		needsStore = false
		if c.Anthropic.Key == "" {
			errs = append(errs, "anthropic.key is required")
		}
	case "catalog":
		if c.Catalog.BatchSize < 1 {
			errs = append(errs, "catalog.batch_size must be >= 1")
		}
		if c.Catalog.Concurrency < 1 || c.Catalog.Concurrency > 16 {
			errs = append(errs, "catalog.concurrency must be between 1 and 16")
		}
	case "migrate", "sweep", "report":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if needsStore {
		switch c.Store.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			errs = append(errs, "store.database_url is required")
		}
	}

	if err := pricing.ValidateThresholds(pricing.WithDefaults(c.Pricing.Thresholds())); err != nil {
		errs = append(errs, err.Error())
	}
	if m := c.Pricing.Method(); !m.IsValid() {
		errs = append(errs, fmt.Sprintf("pricing.default_method %q must be average, median or lowest", m))
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
