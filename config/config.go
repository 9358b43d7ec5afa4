package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

/* Config is a helper package. It could be an external lib */

// Contract variables (WEBHOOK_SECRET, TYPEFORM_API_KEY, ...) are read
// under their exact names. Everything else is read under the FORMGATE_
// prefix, e.g. FORMGATE_PORT, FORMGATE_REDIS_ADDR.
type Config struct {
	Port               string `mapstructure:"PORT"`
	WebhookSecret      string `mapstructure:"WEBHOOK_SECRET"`
	ReplayTTLSeconds   int    `mapstructure:"REPLAY_TTL_SECONDS"`
	RateLimitPerSecond int    `mapstructure:"RATE_LIMIT_PER_SECOND"`
	TypeformAPIKey     string `mapstructure:"TYPEFORM_API_KEY"`
	TypeformBaseURL    string `mapstructure:"TYPEFORM_BASE_URL"`
	ProxyTimeoutMS     int    `mapstructure:"PROXY_TIMEOUT_MS"`
	RedisAddr          string `mapstructure:"REDIS_ADDR"`
	RedisPassword      string `mapstructure:"REDIS_PASSWORD"`
	RedisDB            int    `mapstructure:"REDIS_DB"`
	AllowlistPath      string `mapstructure:"ALLOWLIST_PATH"`
	LogLevel           string `mapstructure:"LOG_LEVEL"`
	LogPayloads        bool   `mapstructure:"LOG_PAYLOADS"`

	// TrustProxyHeaders derives the source key from X-Forwarded-For /
	// X-Real-IP. Enable only behind a proxy that overwrites those headers;
	// otherwise a caller can mint fresh source keys per request.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`
}

func GetConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.SetDefault("PORT", "8080")
	v.SetDefault("REPLAY_TTL_SECONDS", 600)
	v.SetDefault("RATE_LIMIT_PER_SECOND", 2)
	v.SetDefault("TYPEFORM_BASE_URL", "https://api.typeform.com")
	v.SetDefault("PROXY_TIMEOUT_MS", 15000)
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ALLOWLIST_PATH", "allowlist.yaml")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PAYLOADS", false)
	v.SetDefault("TRUST_PROXY_HEADERS", false)

	// Contract variables keep their exact, unprefixed names
	v.BindEnv("WEBHOOK_SECRET", "WEBHOOK_SECRET")
	v.BindEnv("REPLAY_TTL_SECONDS", "REPLAY_TTL_SECONDS")
	v.BindEnv("RATE_LIMIT_PER_SECOND", "RATE_LIMIT_PER_SECOND")
	v.BindEnv("TYPEFORM_API_KEY", "TYPEFORM_API_KEY")
	v.BindEnv("TYPEFORM_BASE_URL", "TYPEFORM_BASE_URL")
	v.BindEnv("PROXY_TIMEOUT_MS", "PROXY_TIMEOUT_MS")

	v.SetEnvPrefix("FORMGATE")
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		// The .env file is optional; env-only deployments are normal
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var config Config
	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config data: %w", err)
	}
	return &config, nil
}

// Validate checks the knobs the server cannot run without
func (c *Config) Validate() error {
	if c.WebhookSecret == "" {
		return fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if c.TypeformAPIKey == "" {
		return fmt.Errorf("TYPEFORM_API_KEY is required")
	}
	if c.ReplayTTLSeconds <= 0 {
		return fmt.Errorf("REPLAY_TTL_SECONDS must be positive, got %d", c.ReplayTTLSeconds)
	}
	if c.RateLimitPerSecond <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_SECOND must be positive, got %d", c.RateLimitPerSecond)
	}
	if c.ProxyTimeoutMS <= 0 {
		return fmt.Errorf("PROXY_TIMEOUT_MS must be positive, got %d", c.ProxyTimeoutMS)
	}
	if c.TypeformBaseURL == "" {
		return fmt.Errorf("TYPEFORM_BASE_URL is required")
	}
	return nil
}

// ReplayTTL returns the replay retention window as a duration
func (c *Config) ReplayTTL() time.Duration {
	return time.Duration(c.ReplayTTLSeconds) * time.Second
}

// ProxyTimeout returns the upstream call timeout as a duration
func (c *Config) ProxyTimeout() time.Duration {
	return time.Duration(c.ProxyTimeoutMS) * time.Millisecond
}
