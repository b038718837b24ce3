package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies AUCTIOND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known AUCTIOND_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "AUCTIOND_DATABASE_DSN")
	setStr(&cfg.Database.Host, "AUCTIOND_DATABASE_HOST")
	setInt(&cfg.Database.Port, "AUCTIOND_DATABASE_PORT")
	setStr(&cfg.Database.Database, "AUCTIOND_DATABASE_NAME")
	setStr(&cfg.Database.User, "AUCTIOND_DATABASE_USER")
	setStr(&cfg.Database.Password, "AUCTIOND_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "AUCTIOND_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "AUCTIOND_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "AUCTIOND_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "AUCTIOND_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "AUCTIOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "AUCTIOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "AUCTIOND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "AUCTIOND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "AUCTIOND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "AUCTIOND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "AUCTIOND_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "AUCTIOND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "AUCTIOND_S3_REGION")
	setStr(&cfg.S3.Bucket, "AUCTIOND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "AUCTIOND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "AUCTIOND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "AUCTIOND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "AUCTIOND_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "AUCTIOND_S3_RETENTION_DAYS")

	// ── Auction policy ──
	setDuration(&cfg.Auction.CreationLeadTime, "AUCTIOND_AUCTION_CREATION_LEAD_TIME")
	setDuration(&cfg.Auction.ReviewLeadTime, "AUCTIOND_AUCTION_REVIEW_LEAD_TIME")
	setDuration(&cfg.Auction.Duration, "AUCTIOND_AUCTION_DURATION")
	setInt(&cfg.Auction.BidRateLimit, "AUCTIOND_AUCTION_BID_RATE_LIMIT")
	setDuration(&cfg.Auction.BidRateWindow, "AUCTIOND_AUCTION_BID_RATE_WINDOW")

	// ── Sweep ──
	setDuration(&cfg.Sweep.Interval, "AUCTIOND_SWEEP_INTERVAL")
	setDuration(&cfg.Sweep.LockTTL, "AUCTIOND_SWEEP_LOCK_TTL")
	setDuration(&cfg.Sweep.SettleTimeout, "AUCTIOND_SWEEP_SETTLE_TIMEOUT")

	// ── Collaborators ──
	setStr(&cfg.Listing.BaseURL, "AUCTIOND_LISTING_BASE_URL")
	setStr(&cfg.Listing.APIKey, "AUCTIOND_LISTING_API_KEY")
	setDuration(&cfg.Listing.Timeout, "AUCTIOND_LISTING_TIMEOUT")
	setStr(&cfg.Ledger.BaseURL, "AUCTIOND_LEDGER_BASE_URL")
	setStr(&cfg.Ledger.APIKey, "AUCTIOND_LEDGER_API_KEY")
	setDuration(&cfg.Ledger.Timeout, "AUCTIOND_LEDGER_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "AUCTIOND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "AUCTIOND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "AUCTIOND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.AdminAPIKey, "AUCTIOND_SERVER_ADMIN_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "AUCTIOND_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "AUCTIOND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "AUCTIOND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "AUCTIOND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "AUCTIOND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "AUCTIOND_MODE")
	setStr(&cfg.LogLevel, "AUCTIOND_LOG_LEVEL")
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

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
