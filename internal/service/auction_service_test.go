package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/store/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// clock is a mutable test clock.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *clock { return &clock{now: at} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type okGuard struct{}

func (okGuard) Check(ctx context.Context, kind domain.AssetKind, assetID string) error { return nil }

type busyGuard struct{}

func (busyGuard) Check(ctx context.Context, kind domain.AssetKind, assetID string) error {
	return domain.ErrAssetBusy
}

type stubSettler struct {
	mu    sync.Mutex
	fail  bool
	calls int
}

func (s *stubSettler) Settle(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return domain.ErrDownstream
	}
	return nil
}

func (s *stubSettler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func policy() AuctionConfig {
	return AuctionConfig{
		CreationLeadTime: 8 * time.Hour,
		ReviewLeadTime:   time.Hour,
		Duration:         2 * time.Hour,
	}
}

func newService(clk *clock, g Guard, settler Settler) (*AuctionService, *memory.AuctionStore) {
	store := memory.NewAuctionStore()
	if g == nil {
		g = okGuard{}
	}
	if settler == nil {
		settler = &stubSettler{}
	}
	svc := NewAuctionService(store, memory.NewAuditStore(), g, settler, nil,
		policy(), testLogger(), clk.Now)
	return svc, store
}

func validCreate() CreateInput {
	return CreateInput{
		AssetKind:     domain.AssetKindVehicle,
		AssetID:       "veh-1",
		CreatorID:     "seller-1",
		StartingPrice: decimal.NewFromInt(1000),
		StartTime:     t0.Add(9 * time.Hour),
	}
}

func TestCreate(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)

	a, err := svc.Create(context.Background(), validCreate())
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusPending, a.Status)
	check.Equal(t, t0.Add(9*time.Hour), a.StartTime)
	check.Equal(t, t0.Add(11*time.Hour), a.EndTime)
	check.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(1000)))
	check.False(t, a.HasWinner())
}

func TestCreateRejectsShortLeadTime(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)

	in := validCreate()
	in.StartTime = t0.Add(8*time.Hour - time.Minute)
	_, err := svc.Create(context.Background(), in)
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	// Exactly at the boundary is allowed.
	in.StartTime = t0.Add(8 * time.Hour)
	_, err = svc.Create(context.Background(), in)
	check.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	in := validCreate()
	in.AssetKind = "boat"
	_, err := svc.Create(ctx, in)
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	in = validCreate()
	in.StartingPrice = decimal.Zero
	_, err = svc.Create(ctx, in)
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	in = validCreate()
	in.AssetID = ""
	_, err = svc.Create(ctx, in)
	check.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestCreateBlockedByGuard(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, busyGuard{}, nil)

	_, err := svc.Create(context.Background(), validCreate())
	check.True(t, errors.Is(err, domain.ErrAssetBusy))
}

func TestReviewApprove(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	reviewed, err := svc.Review(ctx, a.ID, true, "mod-1")
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusPrepare, reviewed.Status)

	// A second review hits a non-pending auction.
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.True(t, errors.Is(err, domain.ErrStatusConflict))
}

func TestReviewReject(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	reviewed, err := svc.Review(ctx, a.ID, false, "mod-1")
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusRejected, reviewed.Status)
}

func TestReviewApproveTooLate(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	// Approval attempted 30 minutes before start violates the review lead.
	clk.Advance(8*time.Hour + 30*time.Minute)
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.True(t, errors.Is(err, domain.ErrStatusConflict))

	// Rejection is still possible.
	reviewed, err := svc.Review(ctx, a.ID, false, "mod-1")
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusRejected, reviewed.Status)
}

func TestUpdate(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, "intruder", UpdateInput{
		StartTime:     t0.Add(10 * time.Hour),
		StartingPrice: decimal.NewFromInt(900),
	})
	check.True(t, errors.Is(err, domain.ErrForbidden))

	updated, err := svc.Update(ctx, a.ID, "seller-1", UpdateInput{
		StartTime:     t0.Add(10 * time.Hour),
		StartingPrice: decimal.NewFromInt(900),
	})
	check.NoError(t, err)
	check.Equal(t, t0.Add(10*time.Hour), updated.StartTime)
	check.Equal(t, t0.Add(12*time.Hour), updated.EndTime)
	check.True(t, updated.CurrentPrice.Equal(decimal.NewFromInt(900)))
}

func TestUpdateApprovedGoesBackToReview(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.NoError(t, err)

	updated, err := svc.Update(ctx, a.ID, "seller-1", UpdateInput{
		StartTime:     t0.Add(12 * time.Hour),
		StartingPrice: decimal.NewFromInt(1000),
	})
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusPending, updated.Status)
}

func TestUpdatePastStartTimeRejected(t *testing.T) {
	clk := newClock(t0)
	svc, _ := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	// The auction was never reviewed and its start time slipped by; even a
	// pending record is frozen once the original start time has passed.
	clk.Advance(10 * time.Hour)
	_, err = svc.Update(ctx, a.ID, "seller-1", UpdateInput{
		StartTime:     clk.Now().Add(9 * time.Hour),
		StartingPrice: decimal.NewFromInt(1200),
	})
	check.True(t, errors.Is(err, domain.ErrStatusConflict))

	got, err := svc.Get(ctx, a.ID)
	check.NoError(t, err)
	check.True(t, got.StartTime.Equal(a.StartTime))
}

func TestUpdateStartedRejected(t *testing.T) {
	clk := newClock(t0)
	svc, store := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.NoError(t, err)
	_, err = store.TransitionStatus(ctx, a.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
	check.NoError(t, err)

	_, err = svc.Update(ctx, a.ID, "seller-1", UpdateInput{
		StartTime:     t0.Add(20 * time.Hour),
		StartingPrice: decimal.NewFromInt(1000),
	})
	check.True(t, errors.Is(err, domain.ErrStatusConflict))
}

func TestDeleteRules(t *testing.T) {
	clk := newClock(t0)
	svc, store := newService(clk, nil, nil)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)

	// Pre-start delete by a stranger is forbidden.
	err = svc.Delete(ctx, a.ID, "intruder", false)
	check.True(t, errors.Is(err, domain.ErrForbidden))

	// Pre-start delete by the creator works.
	check.NoError(t, svc.Delete(ctx, a.ID, "seller-1", false))
	_, err = svc.Get(ctx, a.ID)
	check.True(t, errors.Is(err, domain.ErrNotFound))

	// A running auction cannot be deleted by its creator; an admin may force it.
	b, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, b.ID, true, "mod-1")
	check.NoError(t, err)
	_, err = store.TransitionStatus(ctx, b.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
	check.NoError(t, err)
	check.True(t, errors.Is(svc.Delete(ctx, b.ID, "seller-1", false), domain.ErrStatusConflict))

	// Ended with a winner: creator blocked, admin may force.
	_, err = store.ApplyBid(ctx, b.ID, "buyer-1", decimal.NewFromInt(1500))
	check.NoError(t, err)
	_, err = store.TransitionStatus(ctx, b.ID, domain.AuctionStatusStarted, domain.AuctionStatusEnded)
	check.NoError(t, err)
	check.True(t, errors.Is(svc.Delete(ctx, b.ID, "seller-1", false), domain.ErrStatusConflict))
	check.NoError(t, svc.Delete(ctx, b.ID, "admin", true))

	// Admin force-delete works even mid-run.
	c, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, c.ID, true, "mod-1")
	check.NoError(t, err)
	_, err = store.TransitionStatus(ctx, c.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
	check.NoError(t, err)
	check.NoError(t, svc.Delete(ctx, c.ID, "admin", true))
}

func TestForceFinalize(t *testing.T) {
	clk := newClock(t0)
	settler := &stubSettler{}
	svc, store := newService(clk, nil, settler)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.NoError(t, err)

	// Not running yet.
	_, err = svc.ForceFinalize(ctx, a.ID, "admin")
	check.True(t, errors.Is(err, domain.ErrStatusConflict))

	_, err = store.TransitionStatus(ctx, a.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
	check.NoError(t, err)
	_, err = store.ApplyBid(ctx, a.ID, "buyer-1", decimal.NewFromInt(1500))
	check.NoError(t, err)

	done, err := svc.ForceFinalize(ctx, a.ID, "admin")
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusEnded, done.Status)
	check.Equal(t, 1, settler.Calls())
}

func TestForceFinalizeSettlementFailureKeepsRunning(t *testing.T) {
	clk := newClock(t0)
	settler := &stubSettler{fail: true}
	svc, store := newService(clk, nil, settler)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreate())
	check.NoError(t, err)
	_, err = svc.Review(ctx, a.ID, true, "mod-1")
	check.NoError(t, err)
	_, err = store.TransitionStatus(ctx, a.ID, domain.AuctionStatusPrepare, domain.AuctionStatusStarted)
	check.NoError(t, err)
	_, err = store.ApplyBid(ctx, a.ID, "buyer-1", decimal.NewFromInt(1500))
	check.NoError(t, err)

	_, err = svc.ForceFinalize(ctx, a.ID, "admin")
	check.True(t, errors.Is(err, domain.ErrDownstream))

	got, err := svc.Get(ctx, a.ID)
	check.NoError(t, err)
	check.Equal(t, domain.AuctionStatusStarted, got.Status)
}
