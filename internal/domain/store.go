package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// AuctionFilter narrows auction list queries. Zero-value fields are ignored.
type AuctionFilter struct {
	Status    AuctionStatus
	Kind      AssetKind
	CreatorID string
	BidderID  string
	// ActiveOnly selects auctions in a non-terminal status regardless of
	// the Status field.
	ActiveOnly bool
}

// AuctionStore is the single source of truth for auction records.
//
// ApplyBid and TransitionStatus are the two mutation paths that race under
// concurrency; implementations must apply each as a single atomic,
// conditional update so that concurrent bids on one auction serialize and a
// bid racing a finalize sees a clean precondition failure, never a torn
// write. Operations on different auctions must not block each other.
type AuctionStore interface {
	Create(ctx context.Context, a Auction) error
	GetByID(ctx context.Context, id string) (Auction, error)
	// GetActiveByAsset returns the auction referencing the asset that is in
	// a non-terminal status, or ErrNotFound when the asset is free.
	GetActiveByAsset(ctx context.Context, kind AssetKind, assetID string) (Auction, error)
	List(ctx context.Context, filter AuctionFilter, opts ListOpts) ([]Auction, error)

	// UpdateSchedule rewrites start/end times and the asking price of a
	// pre-start auction. The caller is responsible for policy checks.
	UpdateSchedule(ctx context.Context, id string, start, end time.Time, price decimal.Decimal) (Auction, error)

	// TransitionStatus atomically moves the auction from `from` to `to`.
	// It returns ErrStatusConflict when the record is no longer in `from`.
	TransitionStatus(ctx context.Context, id string, from, to AuctionStatus) (Auction, error)

	// ApplyBid atomically sets current_price=amount and
	// highest_bidder_id=bidderID, conditional on status=started,
	// amount > current_price, bidderID != creator and bidderID not already
	// leading. ErrStatusConflict signals that no row matched; the caller
	// re-reads to classify the failure.
	ApplyBid(ctx context.Context, id, bidderID string, amount decimal.Decimal) (Auction, error)

	// ListDueToStart selects prepare auctions with start_time <= now < end_time.
	ListDueToStart(ctx context.Context, now time.Time) ([]Auction, error)
	// ListDueToEnd selects started auctions with end_time <= now.
	ListDueToEnd(ctx context.Context, now time.Time) ([]Auction, error)
	// ListTerminalBefore selects ended/rejected auctions last updated
	// strictly before the cutoff, for archival.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]Auction, error)

	Delete(ctx context.Context, id string) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// LockManager provides distributed, TTL-bounded mutual exclusion. It guards
// the sweep against overlapping runs across processes.
type LockManager interface {
	// Acquire returns an unlock function on success and ErrLockHeld when
	// another party holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter bounds request rates per key.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus is a lightweight publish/subscribe fabric for auction events
// (auction_started, auction_ended, bid_placed).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// BlobWriter stores immutable objects (archive files) under a key.
type BlobWriter interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
}
