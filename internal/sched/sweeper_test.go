package sched

import (
	"context"
	"encoding/json"
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

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingSettler struct {
	mu      sync.Mutex
	failIDs map[string]bool
	settled []string
}

func (s *recordingSettler) Settle(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[a.ID] {
		return domain.ErrDownstream
	}
	s.settled = append(s.settled, a.ID)
	return nil
}

func (s *recordingSettler) Settled() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.settled...)
}

type heldLocks struct{}

func (heldLocks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(ctx context.Context, event, title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

type recordingBus struct {
	mu     sync.Mutex
	events []domain.Event
}

func (b *recordingBus) Publish(ctx context.Context, channel string, payload []byte) error {
	var ev domain.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}

func (b *recordingBus) Types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, len(b.events))
	for i, ev := range b.events {
		types[i] = ev.Type
	}
	return types
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSweeper(store *memory.AuctionStore, settler Settler, locks domain.LockManager, notifier Notifier, now time.Time) *Sweeper {
	return NewSweeper(store, memory.NewAuditStore(), locks, settler, nil, notifier,
		Config{Interval: time.Minute, LockTTL: 50 * time.Second},
		testLogger(), func() time.Time { return now })
}

func seed(t *testing.T, store *memory.AuctionStore, id string, status domain.AuctionStatus, start, end time.Time, winner string) {
	t.Helper()
	a := domain.Auction{
		ID:           id,
		AssetKind:    domain.AssetKindVehicle,
		AssetID:      "asset-" + id,
		Status:       status,
		StartTime:    start,
		EndTime:      end,
		CurrentPrice: decimal.NewFromInt(1000),
		CreatorID:    "seller-1",
		CreatedAt:    start.Add(-9 * time.Hour),
	}
	if winner != "" {
		a.HighestBidderID = &winner
		a.CurrentPrice = decimal.NewFromInt(1500)
	}
	check.NoError(t, store.Create(context.Background(), a))
}

func TestSweepStartsDueAuctions(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "due", domain.AuctionStatusPrepare, t0.Add(-time.Minute), t0.Add(2*time.Hour), "")
	seed(t, store, "early", domain.AuctionStatusPrepare, t0.Add(time.Hour), t0.Add(3*time.Hour), "")
	seed(t, store, "unreviewed", domain.AuctionStatusPending, t0.Add(-time.Minute), t0.Add(2*time.Hour), "")

	sw := newSweeper(store, &recordingSettler{}, nil, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))

	ctx := context.Background()
	a, _ := store.GetByID(ctx, "due")
	check.Equal(t, domain.AuctionStatusStarted, a.Status)
	a, _ = store.GetByID(ctx, "early")
	check.Equal(t, domain.AuctionStatusPrepare, a.Status)
	// Auctions that never passed review are not started.
	a, _ = store.GetByID(ctx, "unreviewed")
	check.Equal(t, domain.AuctionStatusPending, a.Status)
}

func TestSweepFinalizesWithoutWinner(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "done", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "")

	settler := &recordingSettler{}
	sw := newSweeper(store, settler, nil, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))

	a, _ := store.GetByID(context.Background(), "done")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
	check.Equal(t, 0, len(settler.Settled()))
}

func TestSweepSettlesWinnerBeforeEnding(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "won", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "buyer-1")

	settler := &recordingSettler{}
	sw := newSweeper(store, settler, nil, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))

	a, _ := store.GetByID(context.Background(), "won")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
	check.Equal(t, []string{"won"}, settler.Settled())
}

func TestSweepSettlementFailureRetriesNextPass(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "won", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "buyer-1")

	settler := &recordingSettler{failIDs: map[string]bool{"won": true}}
	notifier := &recordingNotifier{}
	bus := &recordingBus{}
	sw := NewSweeper(store, memory.NewAuditStore(), nil, settler, bus, notifier,
		Config{Interval: time.Minute, LockTTL: 50 * time.Second},
		testLogger(), func() time.Time { return t0 })

	check.NoError(t, sw.Sweep(context.Background()))
	a, _ := store.GetByID(context.Background(), "won")
	check.Equal(t, domain.AuctionStatusStarted, a.Status)
	check.Equal(t, []string{domain.EventSettlementFailed}, notifier.Events())
	check.Equal(t, []string{domain.EventSettlementFailed}, bus.Types())

	// The ledger recovers; the next pass settles and ends the auction.
	settler.mu.Lock()
	settler.failIDs = nil
	settler.mu.Unlock()
	check.NoError(t, sw.Sweep(context.Background()))
	a, _ = store.GetByID(context.Background(), "won")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
	check.Equal(t, []string{"won"}, settler.Settled())
}

func TestSweepIsolatesFailures(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "bad", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "buyer-1")
	seed(t, store, "good", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "buyer-2")

	settler := &recordingSettler{failIDs: map[string]bool{"bad": true}}
	sw := newSweeper(store, settler, nil, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))

	ctx := context.Background()
	a, _ := store.GetByID(ctx, "bad")
	check.Equal(t, domain.AuctionStatusStarted, a.Status)
	a, _ = store.GetByID(ctx, "good")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
}

func TestSweepIdempotent(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "due", domain.AuctionStatusPrepare, t0.Add(-time.Minute), t0.Add(2*time.Hour), "")
	seed(t, store, "won", domain.AuctionStatusStarted, t0.Add(-3*time.Hour), t0.Add(-time.Minute), "buyer-1")

	settler := &recordingSettler{}
	sw := newSweeper(store, settler, nil, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))
	check.NoError(t, sw.Sweep(context.Background()))

	ctx := context.Background()
	a, _ := store.GetByID(ctx, "due")
	check.Equal(t, domain.AuctionStatusStarted, a.Status)
	a, _ = store.GetByID(ctx, "won")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
	// Settled exactly once despite the second pass.
	check.Equal(t, []string{"won"}, settler.Settled())
}

func TestSweepSkipsWhenLockHeld(t *testing.T) {
	store := memory.NewAuctionStore()
	seed(t, store, "due", domain.AuctionStatusPrepare, t0.Add(-time.Minute), t0.Add(2*time.Hour), "")

	sw := newSweeper(store, &recordingSettler{}, heldLocks{}, nil, t0)
	check.NoError(t, sw.Sweep(context.Background()))

	a, _ := store.GetByID(context.Background(), "due")
	check.Equal(t, domain.AuctionStatusPrepare, a.Status)
}

// Full lifecycle: create far ahead, approve, start at the scheduled minute,
// take bids, end after the fixed window, settle the winner.
func TestSweepLifecycle(t *testing.T) {
	store := memory.NewAuctionStore()
	ctx := context.Background()
	start := t0.Add(9 * time.Hour)

	seed(t, store, "a-1", domain.AuctionStatusPrepare, start, start.Add(2*time.Hour), "")

	settler := &recordingSettler{}
	now := start.Add(-time.Minute)
	sw := newSweeper(store, settler, nil, nil, now)
	check.NoError(t, sw.Sweep(ctx))
	a, _ := store.GetByID(ctx, "a-1")
	check.Equal(t, domain.AuctionStatusPrepare, a.Status)

	sw = newSweeper(store, settler, nil, nil, start)
	check.NoError(t, sw.Sweep(ctx))
	a, _ = store.GetByID(ctx, "a-1")
	check.Equal(t, domain.AuctionStatusStarted, a.Status)

	_, err := store.ApplyBid(ctx, "a-1", "buyer-1", decimal.NewFromInt(1200))
	check.NoError(t, err)
	_, err = store.ApplyBid(ctx, "a-1", "buyer-2", decimal.NewFromInt(1250))
	check.NoError(t, err)

	sw = newSweeper(store, settler, nil, nil, start.Add(2*time.Hour))
	check.NoError(t, sw.Sweep(ctx))
	a, _ = store.GetByID(ctx, "a-1")
	check.Equal(t, domain.AuctionStatusEnded, a.Status)
	check.Equal(t, "buyer-2", a.Winner())
	check.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(1250)))
	check.Equal(t, []string{"a-1"}, settler.Settled())
}
