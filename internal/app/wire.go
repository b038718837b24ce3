package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoltmarket/auctiond/internal/blob/s3"
	"github.com/evoltmarket/auctiond/internal/cache/redis"
	"github.com/evoltmarket/auctiond/internal/config"
	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/guard"
	"github.com/evoltmarket/auctiond/internal/notify"
	"github.com/evoltmarket/auctiond/internal/platform/ledger"
	"github.com/evoltmarket/auctiond/internal/platform/listing"
	"github.com/evoltmarket/auctiond/internal/sched"
	"github.com/evoltmarket/auctiond/internal/server/handler"
	"github.com/evoltmarket/auctiond/internal/service"
	"github.com/evoltmarket/auctiond/internal/settle"
	"github.com/evoltmarket/auctiond/internal/store/postgres"
)

// Dependencies holds every wired component of the engine.
type Dependencies struct {
	Postgres *postgres.Client
	Redis    *redis.Client

	Auctions domain.AuctionStore
	Audit    domain.AuditStore
	Locks    domain.LockManager
	Limiter  domain.RateLimiter
	Bus      domain.SignalBus

	AuctionSvc *service.AuctionService
	BidSvc     *service.BidService
	Sweeper    *sched.Sweeper
	Archiver   *s3.Archiver
	Notifier   *notify.Notifier

	Health map[string]handler.Pinger
}

// Wire constructs the dependency graph from configuration. The returned
// cleanup function closes every opened connection in reverse order.
func Wire(ctx context.Context, cfg config.Config, log *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire postgres: %w", err)
	}
	closers = append(closers, pg.Close)

	if cfg.Database.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	rds, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire redis: %w", err)
	}
	closers = append(closers, func() { _ = rds.Close() })

	deps := &Dependencies{
		Postgres: pg,
		Redis:    rds,
		Auctions: postgres.NewAuctionStore(pg.Pool()),
		Audit:    postgres.NewAuditStore(pg.Pool()),
		Locks:    redis.NewLockManager(rds),
		Limiter:  redis.NewRateLimiter(rds),
		Bus:      redis.NewSignalBus(rds),
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, log)

	ledgerClient := ledger.NewClient(cfg.Ledger.BaseURL, cfg.Ledger.APIKey, cfg.Ledger.Timeout.Duration)
	settler := settle.NewDispatcher(ledgerClient, cfg.Sweep.SettleTimeout.Duration, log)

	listingClient := listing.NewClient(cfg.Listing.BaseURL, cfg.Listing.APIKey, cfg.Listing.Timeout.Duration)
	exclusivity := guard.NewExclusivity(deps.Auctions, listingClient, log)

	deps.AuctionSvc = service.NewAuctionService(
		deps.Auctions, deps.Audit, exclusivity, settler, deps.Bus,
		service.AuctionConfig{
			CreationLeadTime: cfg.Auction.CreationLeadTime.Duration,
			ReviewLeadTime:   cfg.Auction.ReviewLeadTime.Duration,
			Duration:         cfg.Auction.Duration.Duration,
		},
		log, nil,
	)
	deps.BidSvc = service.NewBidService(
		deps.Auctions, deps.Audit, deps.Limiter, deps.Bus,
		service.BidConfig{
			RateLimit:  cfg.Auction.BidRateLimit,
			RateWindow: cfg.Auction.BidRateWindow.Duration,
		},
		log, nil,
	)
	deps.Sweeper = sched.NewSweeper(
		deps.Auctions, deps.Audit, deps.Locks, settler, deps.Bus, deps.Notifier,
		sched.Config{
			Interval: cfg.Sweep.Interval.Duration,
			LockTTL:  cfg.Sweep.LockTTL.Duration,
		},
		log, nil,
	)

	if cfg.S3.Enabled {
		blob, err := s3.New(ctx, s3.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire s3: %w", err)
		}
		retention := time.Duration(cfg.S3.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3.NewArchiver(deps.Auctions, deps.Audit, blob, retention, log, nil)
	}

	deps.Health = map[string]handler.Pinger{
		"postgres": pg,
		"redis":    rds,
	}

	return deps, cleanup, nil
}
