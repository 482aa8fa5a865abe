package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the serve-time configuration, read from nestful.yaml with
// NESTFUL_* environment overrides.
type Config struct {
	Listen   string         `mapstructure:"listen"`
	Prefix   string         `mapstructure:"prefix"`
	Log      string         `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	TLS      TLSConfig      `mapstructure:"tls"`
}

// DatabaseConfig selects the demo's backing store.
type DatabaseConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// RedisConfig enables Redis-backed caching and throttling when Addr is
// set; empty means in-process equivalents.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig enables bearer-token authentication when Secret is set;
// empty means anonymous access.
type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

// ThrottleConfig bounds per-caller request rates.
type ThrottleConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// TLSConfig enables HTTPS when both files are set.
type TLSConfig struct {
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// loadConfig loads configuration from the given file, or discovers
// nestful.yaml in the working directory when path is empty. Missing
// files fall back to defaults.
func loadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("listen", ":8080")
	v.SetDefault("prefix", "/api/v1")
	v.SetDefault("log", "dev")
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("jwt.ttl", time.Hour)
	v.SetDefault("throttle.enabled", false)
	v.SetDefault("throttle.limit", 100)
	v.SetDefault("throttle.window", time.Minute)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nestful")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Enable environment variable support: NESTFUL_DATABASE_DRIVER etc.
	v.SetEnvPrefix("nestful")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Database.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be memory, sqlite, or postgres, got: %s", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "memory" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for the %s driver", cfg.Database.Driver)
	}
	if cfg.Prefix != "" && !strings.HasPrefix(cfg.Prefix, "/") {
		return fmt.Errorf("prefix must start with '/', got: %s", cfg.Prefix)
	}
	if (cfg.TLS.CertFile == "") != (cfg.TLS.KeyFile == "") {
		return fmt.Errorf("tls.cert_file and tls.key_file must be set together")
	}
	return nil
}
