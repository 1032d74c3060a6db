package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/shiftbook/rosterscan/internal/quota"
)

// Config holds the full application configuration.
type Config struct {
	Extractor ExtractorConfig `yaml:"extractor" mapstructure:"extractor"`
	Auth      AuthConfig      `yaml:"auth" mapstructure:"auth"`
	Quota     quota.Config    `yaml:"quota" mapstructure:"quota"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Jobs      JobsConfig      `yaml:"jobs" mapstructure:"jobs"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ExtractorConfig holds remote extraction function settings.
type ExtractorConfig struct {
	FunctionURL     string  `yaml:"function_url" mapstructure:"function_url"`
	AnonKey         string  `yaml:"anon_key" mapstructure:"anon_key"`
	RetryDelayMs    int     `yaml:"retry_delay_ms" mapstructure:"retry_delay_ms"`
	MaxAuthRetries  int     `yaml:"max_auth_retries" mapstructure:"max_auth_retries"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" mapstructure:"rate_limit_per_sec"`
}

// AuthConfig holds auth provider and token manager settings.
type AuthConfig struct {
	URL                  string `yaml:"url" mapstructure:"url"`
	RefreshToken         string `yaml:"refresh_token" mapstructure:"refresh_token"`
	RefreshThresholdSecs int    `yaml:"refresh_threshold_secs" mapstructure:"refresh_threshold_secs"`
	MutexGraceMs         int    `yaml:"mutex_grace_ms" mapstructure:"mutex_grace_ms"`
}

// StoreConfig configures the profile/alias database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// JobsConfig points at the job configuration file.
type JobsConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PipelineConfig configures controller behavior.
type PipelineConfig struct {
	SuccessDisplayMs int    `yaml:"success_display_ms" mapstructure:"success_display_ms"`
	UserID           string `yaml:"user_id" mapstructure:"user_id"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("RSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("extractor.retry_delay_ms", 500)
	v.SetDefault("extractor.max_auth_retries", 2)
	v.SetDefault("extractor.timeout_secs", 30)
	v.SetDefault("auth.refresh_threshold_secs", 60)
	v.SetDefault("auth.mutex_grace_ms", 100)
	v.SetDefault("quota.default_limit", 5)
	v.SetDefault("quota.unlimited_ceiling", 1000)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "rosterscan.db")
	v.SetDefault("jobs.path", "jobs.yaml")
	v.SetDefault("pipeline.success_display_ms", 1500)
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
