// Package service holds the auction lifecycle and bidding business logic.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// Guard validates that an asset is free before an auction is created for it.
type Guard interface {
	Check(ctx context.Context, kind domain.AssetKind, assetID string) error
}

// Settler records a finished auction's outcome on the external ledger.
type Settler interface {
	Settle(ctx context.Context, a domain.Auction) error
}

// AuctionConfig carries the lifecycle timing policy.
type AuctionConfig struct {
	CreationLeadTime time.Duration
	ReviewLeadTime   time.Duration
	Duration         time.Duration
}

// AuctionService implements auction creation, review, editing, deletion and
// queries on top of an AuctionStore.
type AuctionService struct {
	store   domain.AuctionStore
	audit   domain.AuditStore
	guard   Guard
	settler Settler
	bus     domain.SignalBus
	cfg     AuctionConfig
	log     *slog.Logger
	now     func() time.Time
}

// NewAuctionService wires an AuctionService. bus and audit may be nil; guard
// must not be. now defaults to time.Now when nil.
func NewAuctionService(
	store domain.AuctionStore,
	audit domain.AuditStore,
	guard Guard,
	settler Settler,
	bus domain.SignalBus,
	cfg AuctionConfig,
	log *slog.Logger,
	now func() time.Time,
) *AuctionService {
	if now == nil {
		now = time.Now
	}
	return &AuctionService{
		store:   store,
		audit:   audit,
		guard:   guard,
		settler: settler,
		bus:     bus,
		cfg:     cfg,
		log:     log,
		now:     now,
	}
}

// CreateInput is the request to open a new auction.
type CreateInput struct {
	AssetKind     domain.AssetKind
	AssetID       string
	CreatorID     string
	StartingPrice decimal.Decimal
	StartTime     time.Time
}

// Create validates a new auction request, enforces the asset exclusivity
// rule and the creation lead time, and persists the auction in the pending
// state awaiting review.
func (s *AuctionService) Create(ctx context.Context, in CreateInput) (domain.Auction, error) {
	if !in.AssetKind.Valid() {
		return domain.Auction{}, fmt.Errorf("asset kind %q: %w", in.AssetKind, domain.ErrInvalidInput)
	}
	if in.AssetID == "" {
		return domain.Auction{}, fmt.Errorf("asset id is required: %w", domain.ErrInvalidInput)
	}
	if in.CreatorID == "" {
		return domain.Auction{}, fmt.Errorf("creator id is required: %w", domain.ErrInvalidInput)
	}
	if !in.StartingPrice.IsPositive() {
		return domain.Auction{}, fmt.Errorf("starting price must be positive: %w", domain.ErrInvalidInput)
	}

	now := s.now()
	earliest := now.Add(s.cfg.CreationLeadTime)
	if in.StartTime.Before(earliest) {
		return domain.Auction{}, fmt.Errorf(
			"start time must be at least %s from now (earliest %s): %w",
			s.cfg.CreationLeadTime, earliest.Format(time.RFC3339), domain.ErrInvalidInput)
	}

	if err := s.guard.Check(ctx, in.AssetKind, in.AssetID); err != nil {
		return domain.Auction{}, err
	}

	a := domain.Auction{
		ID:           uuid.New().String(),
		AssetKind:    in.AssetKind,
		AssetID:      in.AssetID,
		Status:       domain.AuctionStatusPending,
		StartTime:    in.StartTime.UTC(),
		EndTime:      in.StartTime.Add(s.cfg.Duration).UTC(),
		CurrentPrice: in.StartingPrice,
		CreatorID:    in.CreatorID,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return domain.Auction{}, err
	}

	s.auditLog(ctx, "auction_created", map[string]any{
		"auction_id": a.ID,
		"asset_kind": string(a.AssetKind),
		"asset_id":   a.AssetID,
		"creator_id": a.CreatorID,
		"start_time": a.StartTime,
	})
	s.publish(ctx, domain.Event{
		Type:      domain.EventAuctionCreated,
		AuctionID: a.ID,
		Status:    a.Status,
		Price:     a.CurrentPrice.String(),
		At:        now,
	})
	s.log.Info("auction created",
		"auction_id", a.ID, "asset_kind", a.AssetKind, "asset_id", a.AssetID,
		"creator_id", a.CreatorID, "start_time", a.StartTime)
	return a, nil
}

// Review resolves a pending auction. Approval requires the start time to
// still be at least the review lead time away and moves the auction to
// prepare; otherwise, or on explicit rejection, the auction is rejected.
func (s *AuctionService) Review(ctx context.Context, id string, approve bool, reviewerID string) (domain.Auction, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if a.Status != domain.AuctionStatusPending {
		return domain.Auction{}, fmt.Errorf("auction %s is %s, only pending auctions can be reviewed: %w",
			id, a.Status, domain.ErrStatusConflict)
	}

	now := s.now()
	target := domain.AuctionStatusRejected
	if approve {
		if a.StartTime.Before(now.Add(s.cfg.ReviewLeadTime)) {
			return domain.Auction{}, fmt.Errorf(
				"auction %s starts too soon to approve, needs %s of lead time: %w",
				id, s.cfg.ReviewLeadTime, domain.ErrStatusConflict)
		}
		target = domain.AuctionStatusPrepare
	}

	updated, err := s.store.TransitionStatus(ctx, id, domain.AuctionStatusPending, target)
	if err != nil {
		return domain.Auction{}, err
	}

	s.auditLog(ctx, "auction_reviewed", map[string]any{
		"auction_id":  id,
		"approved":    approve,
		"status":      string(target),
		"reviewer_id": reviewerID,
	})
	s.publish(ctx, domain.Event{
		Type:      domain.EventAuctionReviewed,
		AuctionID: id,
		Status:    target,
		At:        now,
	})
	s.log.Info("auction reviewed", "auction_id", id, "approved", approve, "reviewer_id", reviewerID)
	return updated, nil
}

// UpdateInput carries an edit to a not-yet-started auction's schedule or
// starting price.
type UpdateInput struct {
	StartTime     time.Time
	StartingPrice decimal.Decimal
}

// Update edits an auction's start time and starting price. Only the creator
// may edit, only strictly before the current start time, and the new start
// time must satisfy the creation lead time again. An approved auction is
// sent back to pending for re-review.
func (s *AuctionService) Update(ctx context.Context, id, actorID string, in UpdateInput) (domain.Auction, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if a.CreatorID != actorID {
		return domain.Auction{}, fmt.Errorf("only the creator may edit auction %s: %w", id, domain.ErrForbidden)
	}
	if a.Status != domain.AuctionStatusPending && a.Status != domain.AuctionStatusPrepare {
		return domain.Auction{}, fmt.Errorf("auction %s is %s and can no longer be edited: %w",
			id, a.Status, domain.ErrStatusConflict)
	}

	now := s.now()
	if !now.Before(a.StartTime) {
		return domain.Auction{}, fmt.Errorf("auction %s start time has passed and it can no longer be edited: %w",
			id, domain.ErrStatusConflict)
	}
	if !in.StartingPrice.IsPositive() {
		return domain.Auction{}, fmt.Errorf("starting price must be positive: %w", domain.ErrInvalidInput)
	}
	if in.StartTime.Before(now.Add(s.cfg.CreationLeadTime)) {
		return domain.Auction{}, fmt.Errorf(
			"new start time must be at least %s from now: %w",
			s.cfg.CreationLeadTime, domain.ErrInvalidInput)
	}

	// An approved auction loses its approval on edit and goes back through
	// review.
	if a.Status == domain.AuctionStatusPrepare {
		if _, err := s.store.TransitionStatus(ctx, id, domain.AuctionStatusPrepare, domain.AuctionStatusPending); err != nil {
			return domain.Auction{}, err
		}
	}

	end := in.StartTime.Add(s.cfg.Duration)
	updated, err := s.store.UpdateSchedule(ctx, id, in.StartTime.UTC(), end.UTC(), in.StartingPrice)
	if err != nil {
		return domain.Auction{}, err
	}

	s.auditLog(ctx, "auction_updated", map[string]any{
		"auction_id": id,
		"start_time": updated.StartTime,
		"price":      updated.CurrentPrice.String(),
	})
	s.publish(ctx, domain.Event{
		Type:      domain.EventAuctionUpdated,
		AuctionID: id,
		Status:    updated.Status,
		Price:     updated.CurrentPrice.String(),
		At:        now,
	})
	return updated, nil
}

// Delete removes an auction. The creator may delete before the auction
// starts, or after it ended without a winning bid. Admins may delete any
// auction that is not currently running.
func (s *AuctionService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Admins may force-delete in any state. Creators only before the auction
	// starts, or after it ends without a winning bid.
	if !isAdmin {
		if a.CreatorID != actorID {
			return fmt.Errorf("only the creator may delete auction %s: %w", id, domain.ErrForbidden)
		}
		if a.Status == domain.AuctionStatusStarted {
			return fmt.Errorf("auction %s is running and cannot be deleted: %w", id, domain.ErrStatusConflict)
		}
		now := s.now()
		if a.HasWinner() {
			return fmt.Errorf("auction %s has a winning bid and cannot be deleted: %w",
				id, domain.ErrStatusConflict)
		}
		if !now.Before(a.StartTime) && now.Before(a.EndTime) {
			return fmt.Errorf("auction %s is in its bidding window and cannot be deleted: %w",
				id, domain.ErrStatusConflict)
		}
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.auditLog(ctx, "auction_deleted", map[string]any{
		"auction_id": id,
		"actor_id":   actorID,
		"admin":      isAdmin,
		"status":     string(a.Status),
	})
	s.publish(ctx, domain.Event{
		Type:      domain.EventAuctionDeleted,
		AuctionID: id,
		At:        s.now(),
	})
	s.log.Info("auction deleted", "auction_id", id, "actor_id", actorID, "admin", isAdmin)
	return nil
}

// ForceFinalize ends a running auction immediately. When the auction has a
// winning bid, the settlement is dispatched first; the auction only becomes
// ended after the ledger acknowledges it.
func (s *AuctionService) ForceFinalize(ctx context.Context, id, actorID string) (domain.Auction, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return domain.Auction{}, err
	}
	if a.Status != domain.AuctionStatusStarted {
		return domain.Auction{}, fmt.Errorf("auction %s is %s, only running auctions can be finalized: %w",
			id, a.Status, domain.ErrStatusConflict)
	}

	if a.HasWinner() {
		if err := s.settler.Settle(ctx, a); err != nil {
			return domain.Auction{}, err
		}
	}

	updated, err := s.store.TransitionStatus(ctx, id, domain.AuctionStatusStarted, domain.AuctionStatusEnded)
	if err != nil {
		return domain.Auction{}, err
	}

	s.auditLog(ctx, "auction_force_finalized", map[string]any{
		"auction_id": id,
		"actor_id":   actorID,
		"winner":     updated.Winner(),
		"price":      updated.CurrentPrice.String(),
	})
	s.publish(ctx, domain.Event{
		Type:      domain.EventAuctionEnded,
		AuctionID: id,
		Status:    domain.AuctionStatusEnded,
		Price:     updated.CurrentPrice.String(),
		BidderID:  updated.Winner(),
		At:        s.now(),
	})
	s.log.Info("auction force finalized", "auction_id", id, "actor_id", actorID)
	return updated, nil
}

// Get returns a single auction by id.
func (s *AuctionService) Get(ctx context.Context, id string) (domain.Auction, error) {
	return s.store.GetByID(ctx, id)
}

// GetActiveByAsset returns the active auction for an asset, if any.
func (s *AuctionService) GetActiveByAsset(ctx context.Context, kind domain.AssetKind, assetID string) (domain.Auction, error) {
	if !kind.Valid() {
		return domain.Auction{}, fmt.Errorf("asset kind %q: %w", kind, domain.ErrInvalidInput)
	}
	return s.store.GetActiveByAsset(ctx, kind, assetID)
}

// List returns auctions matching the filter, newest first.
func (s *AuctionService) List(ctx context.Context, filter domain.AuctionFilter, opts domain.ListOpts) ([]domain.Auction, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", filter.Status, domain.ErrInvalidInput)
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, fmt.Errorf("asset kind %q: %w", filter.Kind, domain.ErrInvalidInput)
	}
	return s.store.List(ctx, filter, opts)
}

func (s *AuctionService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Log(ctx, event, detail); err != nil {
		s.log.Warn("audit log write failed", "event", event, "error", err)
	}
}

func (s *AuctionService) publish(ctx context.Context, ev domain.Event) {
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
