package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all launcher configuration.
type Config struct {
	Fetch    FetchConfig
	Platform PlatformConfig
	Logging  LogConfig
	Server   ServerConfig
	Trust    TrustConfig
}

// FetchConfig holds artifact download configuration.
type FetchConfig struct {
	CacheDir        string        `envconfig:"FETCH_CACHE_DIR"`
	Timeout         time.Duration `envconfig:"FETCH_TIMEOUT" default:"5m"`
	Retries         int           `envconfig:"FETCH_RETRIES" default:"3"`
	RetryWaitMin    time.Duration `envconfig:"FETCH_RETRY_WAIT_MIN" default:"500ms"`
	RetryWaitMax    time.Duration `envconfig:"FETCH_RETRY_WAIT_MAX" default:"10s"`
	RateLimit       float64       `envconfig:"FETCH_RATE_LIMIT" default:"20"`
	RateBurst       int           `envconfig:"FETCH_RATE_BURST" default:"40"`
	Concurrency     int           `envconfig:"FETCH_CONCURRENCY" default:"4"`
	UserAgent       string        `envconfig:"FETCH_USER_AGENT" default:"partloader/1.0"`
	VerifyContent   bool          `envconfig:"FETCH_VERIFY_CONTENT" default:"true"`
	BreakerFailures uint32        `envconfig:"FETCH_BREAKER_FAILURES" default:"5"`
	BreakerTimeout  time.Duration `envconfig:"FETCH_BREAKER_TIMEOUT" default:"30s"`
}

// PlatformConfig overrides host detection. Empty values are detected.
type PlatformConfig struct {
	OS      string `envconfig:"PLATFORM_OS"`
	Arch    string `envconfig:"PLATFORM_ARCH"`
	Locale  string `envconfig:"PLATFORM_LOCALE"`
	Runtime string `envconfig:"PLATFORM_RUNTIME"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// ServerConfig holds status server configuration.
type ServerConfig struct {
	Addr              string `envconfig:"STATUS_ADDR" default:"127.0.0.1:8090"`
	Enabled           bool   `envconfig:"STATUS_ENABLED" default:"false"`
	RequestsPerSecond int    `envconfig:"STATUS_RATE_LIMIT" default:"50"`
	Burst             int    `envconfig:"STATUS_RATE_BURST" default:"100"`
}

// TrustConfig decides whether native libraries may be activated.
type TrustConfig struct {
	NativeAllowed bool `envconfig:"TRUST_NATIVE" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Fetch.Concurrency < 1 {
		return fmt.Errorf("invalid config: FETCH_CONCURRENCY must be at least 1, got %d", c.Fetch.Concurrency)
	}
	if c.Fetch.Retries < 0 {
		return fmt.Errorf("invalid config: FETCH_RETRIES must not be negative, got %d", c.Fetch.Retries)
	}
	if c.Fetch.RetryWaitMax < c.Fetch.RetryWaitMin {
		return fmt.Errorf("invalid config: FETCH_RETRY_WAIT_MAX %s is below FETCH_RETRY_WAIT_MIN %s",
			c.Fetch.RetryWaitMax, c.Fetch.RetryWaitMin)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:         5 * time.Minute,
			Retries:         3,
			RetryWaitMin:    500 * time.Millisecond,
			RetryWaitMax:    10 * time.Second,
			RateLimit:       20,
			RateBurst:       40,
			Concurrency:     4,
			UserAgent:       "partloader/1.0",
			VerifyContent:   true,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Server: ServerConfig{
			Addr:              "127.0.0.1:8090",
			Enabled:           false,
			RequestsPerSecond: 50,
			Burst:             100,
		},
	}
}
