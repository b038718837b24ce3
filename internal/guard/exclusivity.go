// Package guard enforces the one-active-auction-per-asset rule before a new
// auction is created. The database holds the authoritative constraint; the
// guard gives callers an early, well-classified rejection and pulls in the
// listing service's view of the asset when one is configured.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// ListingChecker reports whether an external catalog considers the asset to
// already be in an active auction.
type ListingChecker interface {
	InActiveAuction(ctx context.Context, kind domain.AssetKind, assetID string) (bool, error)
}

// Exclusivity checks that an asset is free before an auction is created for
// it. The listing checker is optional.
type Exclusivity struct {
	store   domain.AuctionStore
	listing ListingChecker
	log     *slog.Logger
}

// NewExclusivity creates a guard over the given store. listing may be nil,
// in which case only the local store is consulted.
func NewExclusivity(store domain.AuctionStore, listing ListingChecker, log *slog.Logger) *Exclusivity {
	return &Exclusivity{store: store, listing: listing, log: log}
}

// Check returns nil when the asset has no active auction, domain.ErrAssetBusy
// when it does, and a wrapped downstream error when neither can be
// established. Uncertainty blocks creation rather than allowing a possible
// duplicate.
func (g *Exclusivity) Check(ctx context.Context, kind domain.AssetKind, assetID string) error {
	_, err := g.store.GetActiveByAsset(ctx, kind, assetID)
	switch {
	case err == nil:
		return fmt.Errorf("asset %s/%s already has an active auction: %w",
			kind, assetID, domain.ErrAssetBusy)
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("guard: active-auction lookup for %s/%s: %w", kind, assetID, err)
	}

	if g.listing == nil {
		return nil
	}

	busy, err := g.listing.InActiveAuction(ctx, kind, assetID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("asset %s/%s does not exist: %w", kind, assetID, domain.ErrInvalidInput)
		}
		g.log.Warn("listing check failed, blocking creation",
			"asset_kind", kind, "asset_id", assetID, "error", err)
		return err
	}
	if busy {
		return fmt.Errorf("listing service reports %s/%s in an active auction: %w",
			kind, assetID, domain.ErrAssetBusy)
	}
	return nil
}
