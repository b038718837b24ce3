// Package memory implements the domain store interfaces in process memory.
// It backs the test suite and paper deployments; semantics mirror the
// Postgres implementation, including the conditional-update behavior of
// ApplyBid and TransitionStatus.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// record pairs an auction with its own mutex so operations on different
// auctions never block each other.
type record struct {
	mu sync.Mutex
	a  domain.Auction
}

// AuctionStore implements domain.AuctionStore with per-auction locking.
type AuctionStore struct {
	mu   sync.RWMutex
	recs map[string]*record
}

// NewAuctionStore creates an empty in-memory AuctionStore.
func NewAuctionStore() *AuctionStore {
	return &AuctionStore{recs: make(map[string]*record)}
}

func (s *AuctionStore) get(id string) (*record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[id]
	return r, ok
}

func activeStatus(st domain.AuctionStatus) bool {
	return !st.Terminal()
}

// Create inserts a new auction, enforcing the one-active-auction-per-asset
// invariant the way the Postgres partial unique index does.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[a.ID]; ok {
		return domain.ErrStatusConflict
	}
	for _, r := range s.recs {
		r.mu.Lock()
		busy := r.a.AssetKind == a.AssetKind && r.a.AssetID == a.AssetID && activeStatus(r.a.Status)
		r.mu.Unlock()
		if busy {
			return domain.ErrAssetBusy
		}
	}
	a.UpdatedAt = a.CreatedAt
	s.recs[a.ID] = &record{a: a}
	return nil
}

// GetByID retrieves an auction by id.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	r, ok := s.get(id)
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.a, nil
}

// GetActiveByAsset retrieves the non-terminal auction for the given asset.
func (s *AuctionStore) GetActiveByAsset(ctx context.Context, kind domain.AssetKind, assetID string) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.recs {
		r.mu.Lock()
		a := r.a
		r.mu.Unlock()
		if a.AssetKind == kind && a.AssetID == assetID && activeStatus(a.Status) {
			return a, nil
		}
	}
	return domain.Auction{}, domain.ErrNotFound
}

// List returns auctions matching the filter, newest first.
func (s *AuctionStore) List(ctx context.Context, filter domain.AuctionFilter, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	var out []domain.Auction
	for _, r := range s.recs {
		r.mu.Lock()
		a := r.a
		r.mu.Unlock()
		if filter.ActiveOnly && !activeStatus(a.Status) {
			continue
		}
		if !filter.ActiveOnly && filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && a.AssetKind != filter.Kind {
			continue
		}
		if filter.CreatorID != "" && a.CreatorID != filter.CreatorID {
			continue
		}
		if filter.BidderID != "" && a.Winner() != filter.BidderID {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// UpdateSchedule rewrites the start/end times and asking price.
func (s *AuctionStore) UpdateSchedule(ctx context.Context, id string, start, end time.Time, price decimal.Decimal) (domain.Auction, error) {
	r, ok := s.get(id)
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.a.StartTime = start
	r.a.EndTime = end
	r.a.CurrentPrice = price
	r.a.UpdatedAt = time.Now().UTC()
	return r.a, nil
}

// TransitionStatus atomically moves the auction from one status to another.
func (s *AuctionStore) TransitionStatus(ctx context.Context, id string, from, to domain.AuctionStatus) (domain.Auction, error) {
	r, ok := s.get(id)
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.a.Status != from {
		return domain.Auction{}, domain.ErrStatusConflict
	}
	r.a.Status = to
	r.a.UpdatedAt = time.Now().UTC()
	return r.a, nil
}

// ApplyBid applies a single bid under the record lock, re-checking every
// state-dependent precondition, so concurrent bids serialize and the higher
// bid always ends up recorded.
func (s *AuctionStore) ApplyBid(ctx context.Context, id, bidderID string, amount decimal.Decimal) (domain.Auction, error) {
	r, ok := s.get(id)
	if !ok {
		return domain.Auction{}, domain.ErrStatusConflict
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.a.Status != domain.AuctionStatusStarted ||
		amount.LessThanOrEqual(r.a.CurrentPrice) ||
		r.a.CreatorID == bidderID ||
		r.a.Winner() == bidderID {
		return domain.Auction{}, domain.ErrStatusConflict
	}

	r.a.CurrentPrice = amount
	bidder := bidderID
	r.a.HighestBidderID = &bidder
	r.a.UpdatedAt = time.Now().UTC()
	return r.a, nil
}

// ListDueToStart selects prepare auctions whose bidding window has opened.
func (s *AuctionStore) ListDueToStart(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	return s.snapshot(func(a domain.Auction) bool {
		return a.Status == domain.AuctionStatusPrepare &&
			!a.StartTime.After(now) && a.EndTime.After(now)
	}), nil
}

// ListDueToEnd selects started auctions whose bidding window has closed.
func (s *AuctionStore) ListDueToEnd(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	return s.snapshot(func(a domain.Auction) bool {
		return a.Status == domain.AuctionStatusStarted && !a.EndTime.After(now)
	}), nil
}

// ListTerminalBefore selects ended/rejected auctions last touched before the
// cutoff.
func (s *AuctionStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Auction, error) {
	return s.snapshot(func(a domain.Auction) bool {
		return a.Status.Terminal() && a.UpdatedAt.Before(before)
	}), nil
}

// Delete removes an auction record.
func (s *AuctionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.recs, id)
	return nil
}

func (s *AuctionStore) snapshot(match func(domain.Auction) bool) []domain.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Auction
	for _, r := range s.recs {
		r.mu.Lock()
		a := r.a
		r.mu.Unlock()
		if match(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
