// Package config defines the top-level configuration for the auction engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIOND_* environment variables.
type Config struct {
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Auction  AuctionConfig  `toml:"auction"`
	Sweep    SweepConfig    `toml:"sweep"`
	Listing  ListingConfig  `toml:"listing"`
	Ledger   LedgerConfig   `toml:"ledger"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// AuctionConfig holds the timing policy for auction creation, review, and
// duration. Keeping policy here (instead of package-level constants) makes it
// swappable per deployment and injectable in tests.
type AuctionConfig struct {
	// CreationLeadTime is the minimum gap between creation and start_time.
	CreationLeadTime duration `toml:"creation_lead_time"`
	// ReviewLeadTime is the minimum gap between approval and start_time.
	ReviewLeadTime duration `toml:"review_lead_time"`
	// Duration is the fixed bidding window; end_time = start_time + Duration.
	Duration duration `toml:"duration"`
	// BidRateLimit bounds bids per bidder within BidRateWindow.
	BidRateLimit  int      `toml:"bid_rate_limit"`
	BidRateWindow duration `toml:"bid_rate_window"`
}

// SweepConfig holds lifecycle scheduler parameters.
type SweepConfig struct {
	Interval      duration `toml:"interval"`
	LockTTL       duration `toml:"lock_ttl"`
	SettleTimeout duration `toml:"settle_timeout"`
}

// ListingConfig holds the listing/catalog service endpoint used by the
// exclusivity guard.
type ListingConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// LedgerConfig holds the transaction-ledger service endpoint used by the
// settlement dispatcher.
type LedgerConfig struct {
	BaseURL string   `toml:"base_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminAPIKey guards the /api/admin routes; empty disables them.
	AdminAPIKey string `toml:"admin_api_key"`
	// RateLimitPerMin bounds requests per client IP; 0 disables.
	RateLimitPerMin int `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "2h", "60s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "8h" or "1m".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the reference policy values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctiond",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctiond-archive",
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Auction: AuctionConfig{
			CreationLeadTime: duration{8 * time.Hour},
			ReviewLeadTime:   duration{1 * time.Hour},
			Duration:         duration{2 * time.Hour},
			BidRateLimit:     10,
			BidRateWindow:    duration{time.Second},
		},
		Sweep: SweepConfig{
			Interval:      duration{time.Minute},
			LockTTL:       duration{50 * time.Second},
			SettleTimeout: duration{10 * time.Second},
		},
		Listing: ListingConfig{
			BaseURL: "http://localhost:5001",
			Timeout: duration{5 * time.Second},
		},
		Ledger: LedgerConfig{
			BaseURL: "http://localhost:5002",
			Timeout: duration{10 * time.Second},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimitPerMin: 300,
		},
		Notify: NotifyConfig{
			Events: []string{"settlement_failed", "sweep_error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"sweep":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, sweep, full)", c.Mode))
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
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	// Auction policy
	if c.Auction.CreationLeadTime.Duration <= 0 {
		errs = append(errs, "auction: creation_lead_time must be > 0")
	}
	if c.Auction.ReviewLeadTime.Duration <= 0 {
		errs = append(errs, "auction: review_lead_time must be > 0")
	}
	if c.Auction.ReviewLeadTime.Duration > c.Auction.CreationLeadTime.Duration {
		errs = append(errs, "auction: review_lead_time must not exceed creation_lead_time")
	}
	if c.Auction.Duration.Duration <= 0 {
		errs = append(errs, "auction: duration must be > 0")
	}
	if c.Auction.BidRateLimit < 1 {
		errs = append(errs, "auction: bid_rate_limit must be >= 1")
	}

	// Sweep
	if c.Sweep.Interval.Duration <= 0 {
		errs = append(errs, "sweep: interval must be > 0")
	}
	if c.Sweep.LockTTL.Duration <= 0 {
		errs = append(errs, "sweep: lock_ttl must be > 0")
	}
	if c.Sweep.SettleTimeout.Duration <= 0 {
		errs = append(errs, "sweep: settle_timeout must be > 0")
	}

	// Collaborators
	if c.Listing.BaseURL == "" {
		errs = append(errs, "listing: base_url must not be empty")
	}
	if c.Ledger.BaseURL == "" {
		errs = append(errs, "ledger: base_url must not be empty")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
