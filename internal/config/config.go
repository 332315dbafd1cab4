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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Ingest     IngestConfig     `yaml:"ingest" mapstructure:"ingest"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Upload     UploadConfig     `yaml:"upload" mapstructure:"upload"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the ingestion API server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	CORSOrigins     []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RatePerSecond   float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst       int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// IngestConfig configures batch sync behavior.
type IngestConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxBatch    int `yaml:"max_batch" mapstructure:"max_batch"`
}

// ResolverConfig configures department mapping resolution.
type ResolverConfig struct {
	EnableRegex bool `yaml:"enable_regex" mapstructure:"enable_regex"`
	EnableFuzzy bool `yaml:"enable_fuzzy" mapstructure:"enable_fuzzy"`
}

// UploadConfig configures batch file uploads.
type UploadConfig struct {
	MaxRows      int    `yaml:"max_rows" mapstructure:"max_rows"`
	MaxBodyMB    int64  `yaml:"max_body_mb" mapstructure:"max_body_mb"`
	CSVCharset   string `yaml:"csv_charset" mapstructure:"csv_charset"`
	CSVDelimiter string `yaml:"csv_delimiter" mapstructure:"csv_delimiter"`
}

// MonitoringConfig configures background health checks and alerting.
type MonitoringConfig struct {
	WebhookURL           string   `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64  `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	UnmappedThreshold    int      `yaml:"unmapped_threshold" mapstructure:"unmapped_threshold"`
	LookbackWindowHours  int      `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	CheckIntervalSecs    int      `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	Tenants              []string `yaml:"tenants" mapstructure:"tenants"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks that the settings a run mode needs are present and sane.
// Modes: "serve" (API server), "sync" (CLI ingestion), "migrate".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateIngest()...)
	case "sync":
		problems = append(problems, c.validateStore()...)
		problems = append(problems, c.validateIngest()...)
	case "migrate":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for driver postgres")
		}
	case "sqlite":
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}
	return problems
}

func (c *Config) validateIngest() []string {
	var problems []string
	if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
		problems = append(problems, "ingest.concurrency must be between 1 and 64")
	}
	if c.Ingest.MaxBatch < 1 {
		problems = append(problems, "ingest.max_batch must be >= 1")
	}
	return problems
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TENDERSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.rate_per_second", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("ingest.concurrency", 1)
	v.SetDefault("ingest.max_batch", 5000)
	v.SetDefault("resolver.enable_regex", false)
	v.SetDefault("resolver.enable_fuzzy", false)
	v.SetDefault("upload.max_rows", 10000)
	v.SetDefault("upload.max_body_mb", 32)
	v.SetDefault("upload.csv_delimiter", ",")
	v.SetDefault("monitoring.failure_rate_threshold", 0.10)
	v.SetDefault("monitoring.unmapped_threshold", 25)
	v.SetDefault("monitoring.lookback_window_hours", 24)
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
