// Package config defines the top-level configuration for the vapor
// analyzer and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by VAPOR_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Feed     FeedConfig     `toml:"feed"`
	Scraper  ScraperConfig  `toml:"scraper"`
	Enrich   EnrichConfig   `toml:"enrich"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. The signal bus is
// optional; leave Enabled false to run without it.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
}

// S3Config holds S3-compatible object storage parameters for run exports.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// FeedConfig holds the dexscreener trade feed parameters.
type FeedConfig struct {
	BaseURL     string   `toml:"base_url"`
	Chain       string   `toml:"chain"`
	PairAddress string   `toml:"pair_address"`
	Timeout     duration `toml:"timeout"`
}

// ScraperConfig holds ingestion loop parameters.
type ScraperConfig struct {
	MaxRetries    int      `toml:"max_retries"`
	RetryBackoff  duration `toml:"retry_backoff"`
	WatchInterval duration `toml:"watch_interval"`
}

// EnrichConfig holds on-chain wallet enrichment parameters.
type EnrichConfig struct {
	RPCURL          string `toml:"rpc_url"`
	StorageContract string `toml:"storage_contract"`
	Concurrency     int    `toml:"concurrency"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "vapor",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Channel:    "vapor:trades_ingested",
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "vapor-data",
			ForcePathStyle: true,
		},
		Feed: FeedConfig{
			BaseURL:     "https://io.dexscreener.com",
			Chain:       "avalanche",
			PairAddress: "0x4cd8ab0714eec95c3fbc85b462ba49b59922cc82",
			Timeout:     duration{30 * time.Second},
		},
		Scraper: ScraperConfig{
			MaxRetries:    3,
			RetryBackoff:  duration{time.Second},
			WatchInterval: duration{5 * time.Minute},
		},
		Enrich: EnrichConfig{
			RPCURL:          "https://api.avax.network/ext/bc/C/rpc",
			StorageContract: "0x264Bd75a25D6F8Ba1e08610B65A1c1d20C6e7bcd",
			Concurrency:     4,
		},
		Mode:     "menu",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"scrape": true,
	"watch":  true,
	"enrich": true,
	"menu":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: scrape, watch, enrich, menu)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Database
	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.Channel == "" {
			errs = append(errs, "redis: channel must not be empty when enabled")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	// Feed
	if c.Feed.BaseURL == "" {
		errs = append(errs, "feed: base_url must not be empty")
	}
	if c.Feed.Chain == "" {
		errs = append(errs, "feed: chain must not be empty")
	}
	if c.Feed.PairAddress == "" {
		errs = append(errs, "feed: pair_address must not be empty")
	}
	if c.Feed.Timeout.Duration <= 0 {
		errs = append(errs, "feed: timeout must be positive")
	}

	// Scraper
	if c.Scraper.MaxRetries < 0 {
		errs = append(errs, "scraper: max_retries must be >= 0")
	}
	if c.Scraper.RetryBackoff.Duration <= 0 {
		errs = append(errs, "scraper: retry_backoff must be positive")
	}
	if c.Mode == "watch" && c.Scraper.WatchInterval.Duration <= 0 {
		errs = append(errs, "scraper: watch_interval must be positive for mode watch")
	}

	// Enrich — needed for the modes that touch the chain.
	if c.Mode == "enrich" || c.Mode == "menu" {
		if c.Enrich.RPCURL == "" {
			errs = append(errs, "enrich: rpc_url must not be empty for mode "+c.Mode)
		}
		if c.Enrich.StorageContract == "" {
			errs = append(errs, "enrich: storage_contract must not be empty for mode "+c.Mode)
		}
		if c.Enrich.Concurrency < 1 {
			errs = append(errs, "enrich: concurrency must be >= 1")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
