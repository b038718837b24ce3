package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// bidApplyRetries bounds how many times a bid is re-attempted when a
// concurrent bid lands between our read and the conditional update.
const bidApplyRetries = 3

// BidConfig carries the per-bidder rate limit for bid submission.
type BidConfig struct {
	RateLimit  int
	RateWindow time.Duration
}

// BidService validates and applies bids on running auctions.
type BidService struct {
	store   domain.AuctionStore
	audit   domain.AuditStore
	limiter domain.RateLimiter
	bus     domain.SignalBus
	cfg     BidConfig
	log     *slog.Logger
	now     func() time.Time
}

// NewBidService wires a BidService. limiter, audit and bus may be nil; now
// defaults to time.Now when nil.
func NewBidService(
	store domain.AuctionStore,
	audit domain.AuditStore,
	limiter domain.RateLimiter,
	bus domain.SignalBus,
	cfg BidConfig,
	log *slog.Logger,
	now func() time.Time,
) *BidService {
	if now == nil {
		now = time.Now
	}
	return &BidService{
		store:   store,
		audit:   audit,
		limiter: limiter,
		bus:     bus,
		cfg:     cfg,
		log:     log,
		now:     now,
	}
}

// Place applies a bid to an auction. The bid must land on a running auction
// inside its time window, exceed the current price, and come from neither the
// creator nor the current highest bidder. The price update and bidder swap
// are atomic; a losing race against a concurrent bid is retried as long as
// the bid still exceeds the fresh price.
func (s *BidService) Place(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (domain.Auction, error) {
	if bidderID == "" {
		return domain.Auction{}, fmt.Errorf("bidder id is required: %w", domain.ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return domain.Auction{}, fmt.Errorf("bid amount must be positive: %w", domain.ErrInvalidInput)
	}

	if s.limiter != nil && s.cfg.RateLimit > 0 {
		allowed, err := s.limiter.Allow(ctx, "bid:"+bidderID, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			// Fail open: a broken limiter should not halt bidding.
			s.log.Warn("bid rate limiter unavailable", "bidder_id", bidderID, "error", err)
		} else if !allowed {
			return domain.Auction{}, fmt.Errorf("bidder %s exceeded bid rate: %w", bidderID, domain.ErrRateLimited)
		}
	}

	var lastErr error
	for attempt := 0; attempt < bidApplyRetries; attempt++ {
		a, err := s.store.GetByID(ctx, auctionID)
		if err != nil {
			return domain.Auction{}, err
		}
		if err := s.checkBid(ctx, a, bidderID, amount); err != nil {
			return domain.Auction{}, err
		}

		updated, err := s.store.ApplyBid(ctx, auctionID, bidderID, amount)
		if err == nil {
			s.auditLog(ctx, "bid_placed", map[string]any{
				"auction_id": auctionID,
				"bidder_id":  bidderID,
				"amount":     amount.String(),
			})
			s.publish(ctx, domain.Event{
				Type:      domain.EventBidPlaced,
				AuctionID: auctionID,
				Status:    updated.Status,
				Price:     updated.CurrentPrice.String(),
				BidderID:  bidderID,
				At:        s.now(),
			})
			s.log.Info("bid placed",
				"auction_id", auctionID, "bidder_id", bidderID, "amount", amount.String())
			return updated, nil
		}
		if !errors.Is(err, domain.ErrStatusConflict) {
			return domain.Auction{}, err
		}
		// A concurrent bid changed the row between read and update. Loop to
		// re-read and either reject with a precise error or try again.
		lastErr = err
	}
	return domain.Auction{}, fmt.Errorf("bid on auction %s lost %d races: %w",
		auctionID, bidApplyRetries, lastErr)
}

// checkBid verifies every bid precondition against a fresh snapshot and
// returns the specific rejection error. An auction found past its end time
// with no bids yet is closed out on the spot so late bidders see a terminal
// state instead of a stale running one; with a winner recorded the sweep
// owns the close because settlement must happen first.
func (s *BidService) checkBid(ctx context.Context, a domain.Auction, bidderID string, amount decimal.Decimal) error {
	if a.Status != domain.AuctionStatusStarted {
		return fmt.Errorf("auction %s is %s, not accepting bids: %w", a.ID, a.Status, domain.ErrAuctionClosed)
	}

	now := s.now()
	if !a.InBidWindow(now) {
		if !now.Before(a.EndTime) && !a.HasWinner() {
			if _, err := s.store.TransitionStatus(ctx, a.ID, domain.AuctionStatusStarted, domain.AuctionStatusEnded); err == nil {
				s.publish(ctx, domain.Event{
					Type:      domain.EventAuctionEnded,
					AuctionID: a.ID,
					Status:    domain.AuctionStatusEnded,
					At:        now,
				})
			}
		}
		return fmt.Errorf("auction %s is outside its bidding window: %w", a.ID, domain.ErrAuctionClosed)
	}

	if amount.LessThanOrEqual(a.CurrentPrice) {
		return fmt.Errorf("bid %s does not exceed current price %s: %w",
			amount, a.CurrentPrice, domain.ErrBidTooLow)
	}
	if a.CreatorID == bidderID {
		return fmt.Errorf("creator cannot bid on own auction %s: %w", a.ID, domain.ErrSelfBid)
	}
	if a.HasWinner() && a.Winner() == bidderID {
		return fmt.Errorf("bidder %s is already leading auction %s: %w", bidderID, a.ID, domain.ErrAlreadyLeading)
	}
	return nil
}

func (s *BidService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.log.Warn("audit log write failed", "event", event, "error", err)
	}
}

func (s *BidService) publish(ctx context.Context, ev domain.Event) {
	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("event marshal failed", "type", ev.Type, "error", err)
		return
	}
	if err := s.bus.Publish(ctx, domain.EventChannel(ev.AuctionID), payload); err != nil &&
		!errors.Is(err, context.Canceled) {
		s.log.Warn("event publish failed", "type", ev.Type, "auction_id", ev.AuctionID, "error", err)
	}
}
