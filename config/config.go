package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/taalim-io/gatekeeper/core"
)

// Config is the service configuration, loaded from an optional YAML file
// with GATEKEEPER_* environment overrides.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	RedisURL   string `mapstructure:"redis_url"`
	LogLevel   string `mapstructure:"log_level"`

	Tokens struct {
		AccessTTL  string `mapstructure:"access_ttl"`
		RefreshTTL string `mapstructure:"refresh_ttl"`
	} `mapstructure:"tokens"`

	Captcha struct {
		TTL           time.Duration `mapstructure:"ttl"`
		MaxAttempts   int           `mapstructure:"max_attempts"`
		SweepInterval time.Duration `mapstructure:"sweep_interval"`
	} `mapstructure:"captcha"`
}

// Load reads configuration from the given file path ("" for defaults and
// environment only) and validates the token descriptors.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen_addr", ":9000")
	v.SetDefault("redis_url", "redis://localhost:6379/0")
	v.SetDefault("log_level", "info")
	v.SetDefault("tokens.access_ttl", "15m")
	v.SetDefault("tokens.refresh_ttl", "7d")
	v.SetDefault("captcha.ttl", 5*time.Minute)
	v.SetDefault("captcha.max_attempts", 3)
	v.SetDefault("captcha.sweep_interval", time.Hour)

	v.SetEnvPrefix("GATEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if _, err := core.ParseExpiry(cfg.Tokens.AccessTTL); err != nil {
		return nil, fmt.Errorf("tokens.access_ttl: %w", err)
	}
	if _, err := core.ParseExpiry(cfg.Tokens.RefreshTTL); err != nil {
		return nil, fmt.Errorf("tokens.refresh_ttl: %w", err)
	}

	return &cfg, nil
}

// AccessTTL returns the parsed access token lifetime
func (c *Config) AccessTTL() time.Duration {
	d, _ := core.ParseExpiry(c.Tokens.AccessTTL)
	return d
}

// RefreshTTL returns the parsed refresh token lifetime
func (c *Config) RefreshTTL() time.Duration {
	d, _ := core.ParseExpiry(c.Tokens.RefreshTTL)
	return d
}
