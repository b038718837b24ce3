package config

import (
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/peterldowns/testy/check"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	check.NoError(t, cfg.Validate())

	check.Equal(t, 8*time.Hour, cfg.Auction.CreationLeadTime.Duration)
	check.Equal(t, time.Hour, cfg.Auction.ReviewLeadTime.Duration)
	check.Equal(t, 2*time.Hour, cfg.Auction.Duration.Duration)
	check.Equal(t, time.Minute, cfg.Sweep.Interval.Duration)
	check.Equal(t, "full", cfg.Mode)
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	err := cfg.Validate()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "unknown mode"))
}

func TestValidateRejectsInvertedLeadTimes(t *testing.T) {
	cfg := Defaults()
	cfg.Auction.ReviewLeadTime = duration{10 * time.Hour}
	err := cfg.Validate()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "review_lead_time"))
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.Ledger.BaseURL = ""
	err := cfg.Validate()
	check.Error(t, err)
	check.True(t, strings.Contains(err.Error(), "redis"))
	check.True(t, strings.Contains(err.Error(), "ledger"))
}

func TestDurationTOMLDecoding(t *testing.T) {
	var cfg Config
	_, err := toml.Decode(`
[auction]
creation_lead_time = "8h"
duration = "90m"

[sweep]
interval = "60s"
`, &cfg)
	check.NoError(t, err)
	check.Equal(t, 8*time.Hour, cfg.Auction.CreationLeadTime.Duration)
	check.Equal(t, 90*time.Minute, cfg.Auction.Duration.Duration)
	check.Equal(t, time.Minute, cfg.Sweep.Interval.Duration)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUCTIOND_MODE", "sweep")
	t.Setenv("AUCTIOND_AUCTION_CREATION_LEAD_TIME", "12h")
	t.Setenv("AUCTIOND_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	check.Equal(t, "sweep", cfg.Mode)
	check.Equal(t, 12*time.Hour, cfg.Auction.CreationLeadTime.Duration)
	check.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Database.Password = "hunter2"
	cfg.Server.AdminAPIKey = "topsecret"

	red := RedactedConfig(&cfg)
	check.Equal(t, "***", red.Database.Password)
	check.Equal(t, "***", red.Server.AdminAPIKey)
	// Non-secret fields survive untouched.
	check.Equal(t, cfg.Server.Port, red.Server.Port)
}
