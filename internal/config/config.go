package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	BaseURL        string        `mapstructure:"api_base_url"`
	TimeoutSeconds int64         `mapstructure:"api_timeout_seconds"`
	Timeout        time.Duration `mapstructure:"-"`
	AuthToken      string        `mapstructure:"api_auth_token"`
	UserAgent      string        `mapstructure:"api_user_agent"`

	RetryMaxAttempts       int           `mapstructure:"retry_max_attempts"`
	RetryInitialIntervalMS int64         `mapstructure:"retry_initial_interval_ms"`
	RetryMaxIntervalMS     int64         `mapstructure:"retry_max_interval_ms"`
	RetryInitialInterval   time.Duration `mapstructure:"-"`
	RetryMaxInterval       time.Duration `mapstructure:"-"`
	BatchWorkers           int           `mapstructure:"batch_workers"`

	StorageType            string        `mapstructure:"storage_type"`
	BBoltPath              string        `mapstructure:"bbolt_path"`
	TokenTTLSeconds        int64         `mapstructure:"token_ttl_seconds"`
	StorageCleanupSeconds  int64         `mapstructure:"storage_cleanup_interval_seconds"`
	TokenTTL               time.Duration `mapstructure:"-"`
	StorageCleanupInterval time.Duration `mapstructure:"-"`

	// PublishersFile is optional; telemetry sinks are disabled when empty.
	PublishersFile   string        `mapstructure:"publishers_file"`
	PublishQueueSize int           `mapstructure:"publish_queue_size"`
	PublishTimeoutMS int64         `mapstructure:"publish_timeout_ms"`
	PublishTimeout   time.Duration `mapstructure:"-"`

	MockAddr        string   `mapstructure:"mock_addr"`
	MockAdminTokens []string `mapstructure:"mock_admin_tokens"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "hush-client")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "warn")
	v.SetDefault("api_base_url", "http://localhost:8080")
	v.SetDefault("api_timeout_seconds", 30)
	v.SetDefault("api_auth_token", "")
	v.SetDefault("api_user_agent", "HushClient/1.0.0 (Go)")
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_initial_interval_ms", 1000)
	v.SetDefault("retry_max_interval_ms", 30000)
	v.SetDefault("batch_workers", 3)
	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("bbolt_path", "./data/session.db")
	v.SetDefault("token_ttl_seconds", int64((24*time.Hour)/time.Second))
	v.SetDefault("storage_cleanup_interval_seconds", int64((time.Hour)/time.Second))
	v.SetDefault("publishers_file", "")
	v.SetDefault("publish_queue_size", 256)
	v.SetDefault("publish_timeout_ms", 5000)
	v.SetDefault("mock_addr", ":8080")
	v.SetDefault("mock_admin_tokens", []string{"admin-token-0000"})

	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Finalize validates raw values and derives the duration fields.
// Call it again after overriding fields, e.g. from command-line flags.
func (cfg *Config) Finalize() error {
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api_base_url %q (must be an absolute http(s) url)", cfg.BaseURL)
	}

	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("invalid api_timeout_seconds (must be positive seconds)")
	}
	cfg.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second

	if cfg.RetryMaxAttempts <= 0 {
		return fmt.Errorf("invalid retry_max_attempts (must be at least 1)")
	}
	if cfg.RetryInitialIntervalMS < 0 || cfg.RetryMaxIntervalMS < 0 {
		return fmt.Errorf("invalid retry intervals (must not be negative)")
	}
	if cfg.RetryMaxIntervalMS < cfg.RetryInitialIntervalMS {
		return fmt.Errorf("invalid retry_max_interval_ms (must be >= retry_initial_interval_ms)")
	}
	cfg.RetryInitialInterval = time.Duration(cfg.RetryInitialIntervalMS) * time.Millisecond
	cfg.RetryMaxInterval = time.Duration(cfg.RetryMaxIntervalMS) * time.Millisecond

	if cfg.BatchWorkers <= 0 {
		return fmt.Errorf("invalid batch_workers (must be positive)")
	}

	if cfg.TokenTTLSeconds <= 0 {
		return fmt.Errorf("invalid token_ttl_seconds (must be positive seconds)")
	}
	if cfg.StorageCleanupSeconds <= 0 {
		return fmt.Errorf("invalid storage_cleanup_interval_seconds (must be positive seconds)")
	}
	cfg.TokenTTL = time.Duration(cfg.TokenTTLSeconds) * time.Second
	cfg.StorageCleanupInterval = time.Duration(cfg.StorageCleanupSeconds) * time.Second

	cfg.PublishersFile = strings.TrimSpace(cfg.PublishersFile)
	if cfg.PublishQueueSize <= 0 {
		return fmt.Errorf("invalid publish_queue_size (must be positive)")
	}
	if cfg.PublishTimeoutMS <= 0 {
		return fmt.Errorf("invalid publish_timeout_ms (must be positive milliseconds)")
	}
	cfg.PublishTimeout = time.Duration(cfg.PublishTimeoutMS) * time.Millisecond
	return nil
}
