package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VAPOR_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VAPOR_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "VAPOR_DATABASE_DSN")
	setStr(&cfg.Database.Host, "VAPOR_DATABASE_HOST")
	setInt(&cfg.Database.Port, "VAPOR_DATABASE_PORT")
	setStr(&cfg.Database.Database, "VAPOR_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "VAPOR_DATABASE_USER")
	setStr(&cfg.Database.Password, "VAPOR_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "VAPOR_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "VAPOR_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "VAPOR_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "VAPOR_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "VAPOR_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "VAPOR_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VAPOR_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VAPOR_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VAPOR_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VAPOR_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VAPOR_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Channel, "VAPOR_REDIS_CHANNEL")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VAPOR_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VAPOR_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VAPOR_S3_REGION")
	setStr(&cfg.S3.Bucket, "VAPOR_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VAPOR_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VAPOR_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VAPOR_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VAPOR_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setStr(&cfg.Feed.BaseURL, "VAPOR_FEED_BASE_URL")
	setStr(&cfg.Feed.Chain, "VAPOR_FEED_CHAIN")
	setStr(&cfg.Feed.PairAddress, "VAPOR_FEED_PAIR_ADDRESS")
	setDuration(&cfg.Feed.Timeout, "VAPOR_FEED_TIMEOUT")

	// ── Scraper ──
	setInt(&cfg.Scraper.MaxRetries, "VAPOR_SCRAPER_MAX_RETRIES")
	setDuration(&cfg.Scraper.RetryBackoff, "VAPOR_SCRAPER_RETRY_BACKOFF")
	setDuration(&cfg.Scraper.WatchInterval, "VAPOR_SCRAPER_WATCH_INTERVAL")

	// ── Enrich ──
	setStr(&cfg.Enrich.RPCURL, "VAPOR_ENRICH_RPC_URL")
	setStr(&cfg.Enrich.StorageContract, "VAPOR_ENRICH_STORAGE_CONTRACT")
	setInt(&cfg.Enrich.Concurrency, "VAPOR_ENRICH_CONCURRENCY")

	// ── Top-level ──
	setStr(&cfg.Mode, "VAPOR_MODE")
	setStr(&cfg.LogLevel, "VAPOR_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
