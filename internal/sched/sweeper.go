// Package sched runs the periodic lifecycle sweep that starts and finalizes
// auctions when their scheduled times arrive.
package sched

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// sweepLockKey guards the sweep across processes so two instances never
// double-process the same auctions.
const sweepLockKey = "auction_sweep"

// Settler records a finished auction's outcome on the external ledger.
type Settler interface {
	Settle(ctx context.Context, a domain.Auction) error
}

// Notifier pushes operator alerts for sweep problems.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string)
}

// Config controls sweep cadence and locking.
type Config struct {
	Interval time.Duration
	LockTTL  time.Duration
}

// Sweeper moves auctions through their scheduled transitions once per tick.
type Sweeper struct {
	store    domain.AuctionStore
	audit    domain.AuditStore
	locks    domain.LockManager
	settler  Settler
	bus      domain.SignalBus
	notifier Notifier
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// NewSweeper wires a Sweeper. locks, audit, bus and notifier may be nil; now
// defaults to time.Now when nil.
func NewSweeper(
	store domain.AuctionStore,
	audit domain.AuditStore,
	locks domain.LockManager,
	settler Settler,
	bus domain.SignalBus,
	notifier Notifier,
	cfg Config,
	log *slog.Logger,
	now func() time.Time,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.Interval - 10*time.Second
		if cfg.LockTTL <= 0 {
			cfg.LockTTL = cfg.Interval
		}
	}
	if now == nil {
		now = time.Now
	}
	return &Sweeper{
		store:    store,
		audit:    audit,
		locks:    locks,
		settler:  settler,
		bus:      bus,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		now:      now,
	}
}

// Run sweeps immediately and then on every tick until the context is
// cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info("sweeper started", "interval", s.cfg.Interval)

	if err := s.Sweep(ctx); err != nil {
		s.log.Error("sweep failed", "error", err)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Sweep(ctx); err != nil {
				s.log.Error("sweep failed", "error", err)
				s.notify(ctx, "sweep_error", "Sweep failed", err.Error())
			}
		}
	}
}

// Sweep performs one pass: start every prepared auction whose window has
// opened, then finalize every running auction whose window has closed. The
// pass is idempotent; re-running it over the same records is a no-op because
// every transition is conditional on the prior status.
func (s *Sweeper) Sweep(ctx context.Context) error {
	if s.locks != nil {
		unlock, err := s.locks.Acquire(ctx, sweepLockKey, s.cfg.LockTTL)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				s.log.Debug("sweep skipped, lock held elsewhere")
				return nil
			}
			return fmt.Errorf("acquire sweep lock: %w", err)
		}
		defer unlock()
	}

	now := s.now()
	if err := s.startDue(ctx, now); err != nil {
		return err
	}
	return s.finalizeDue(ctx, now)
}

// startDue moves prepared auctions into the running state once their start
// time has passed. A failure on one auction is logged and does not block the
// rest.
func (s *Sweeper) startDue(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDueToStart(ctx, now)
	if err != nil {
		return fmt.Errorf("list auctions due to start: %w", err)
	}

	for _, a := range due {
		updated, err := s.store.TransitionStatus(ctx, a.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
		if err != nil {
			if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
				// Another sweep or an admin got there first.
				continue
			}
			s.log.Error("auto-start failed", "auction_id", a.ID, "error", err)
			continue
		}

		s.auditLog(ctx, "auction_auto_started", map[string]any{
			"auction_id": a.ID,
			"start_time": a.StartTime,
		})
		s.publish(ctx, domain.Event{
			Type:      domain.EventAuctionStarted,
			AuctionID: a.ID,
			Status:    domain.AuctionStatusStarted,
			Price:     updated.CurrentPrice.String(),
			At:        now,
		})
		s.log.Info("auction started", "auction_id", a.ID)
	}
	return nil
}

// finalizeDue ends running auctions whose end time has passed. Auctions with
// a winning bid are settled against the ledger first; if settlement fails the
// auction stays running and is retried on the next pass.
func (s *Sweeper) finalizeDue(ctx context.Context, now time.Time) error {
	due, err := s.store.ListDueToEnd(ctx, now)
	if err != nil {
		return fmt.Errorf("list auctions due to end: %w", err)
	}

	for _, a := range due {
		if a.HasWinner() {
			if err := s.settler.Settle(ctx, a); err != nil {
				s.log.Error("settlement failed, auction left running for retry",
					"auction_id", a.ID, "winner", a.Winner(), "error", err)
				s.notify(ctx, domain.EventSettlementFailed, "Settlement failed",
					fmt.Sprintf("auction %s winner %s price %s: %v",
						a.ID, a.Winner(), a.CurrentPrice.String(), err))
				s.publish(ctx, domain.Event{
					Type:      domain.EventSettlementFailed,
					AuctionID: a.ID,
					Status:    a.Status,
					Price:     a.CurrentPrice.String(),
					BidderID:  a.Winner(),
					At:        now,
				})
				continue
			}
		}

		updated, err := s.store.TransitionStatus(ctx, a.ID, domain.AuctionStatusStarted, domain.AuctionStatusEnded)
		if err != nil {
			if errors.Is(err, domain.ErrStatusConflict) || errors.Is(err, domain.ErrNotFound) {
				continue
			}
			s.log.Error("auto-finalize failed", "auction_id", a.ID, "error", err)
			continue
		}

		s.auditLog(ctx, "auction_auto_ended", map[string]any{
			"auction_id": a.ID,
			"winner":     updated.Winner(),
			"price":      updated.CurrentPrice.String(),
		})
		s.publish(ctx, domain.Event{
			Type:      domain.EventAuctionEnded,
			AuctionID: a.ID,
			Status:    domain.AuctionStatusEnded,
			Price:     updated.CurrentPrice.String(),
			BidderID:  updated.Winner(),
			At:        now,
		})
		s.log.Info("auction ended", "auction_id", a.ID, "winner", updated.Winner())
	}
	return nil
}

func (s *Sweeper) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.log.Warn("audit log write failed", "event", event, "error", err)
	}
}

func (s *Sweeper) publish(ctx context.Context, ev domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.EventChannel(ev.AuctionID), payload); err != nil {
		s.log.Warn("event publish failed", "type", ev.Type, "auction_id", ev.AuctionID, "error", err)
	}
}

func (s *Sweeper) notify(ctx context.Context, event, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event, title, message)
}
