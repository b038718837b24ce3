// Package settle hands finished auctions off to the external transaction
// ledger. An auction with a winner may only move to its terminal state after
// the ledger acknowledges the settlement.
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/platform/ledger"
)

// Ledger records a settlement transaction. Implementations must be idempotent
// on Transaction.AuctionRef.
type Ledger interface {
	CreateTransaction(ctx context.Context, tx ledger.Transaction) error
}

// Dispatcher settles ended auctions against the ledger.
type Dispatcher struct {
	ledger  Ledger
	timeout time.Duration
	log     *slog.Logger
}

// NewDispatcher creates a Dispatcher. A zero timeout falls back to 10 seconds
// per settlement call.
func NewDispatcher(l Ledger, timeout time.Duration, log *slog.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{ledger: l, timeout: timeout, log: log}
}

// Settle records the auction's outcome on the ledger. It must be called with
// an auction that has a winning bid; auctions without bids end without a
// settlement. The error is wrapped from the ledger client and carries
// domain.ErrDownstream on transport or remote failures.
func (d *Dispatcher) Settle(ctx context.Context, a domain.Auction) error {
	if !a.HasWinner() {
		return fmt.Errorf("settle auction %s: no winning bid: %w", a.ID, domain.ErrInvalidInput)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	tx := ledger.Transaction{
		AuctionRef: a.ID,
		SellerID:   a.CreatorID,
		BuyerID:    a.Winner(),
		FinalPrice: a.CurrentPrice,
	}
	if err := d.ledger.CreateTransaction(ctx, tx); err != nil {
		return fmt.Errorf("settle auction %s: %w", a.ID, err)
	}

	d.log.Info("auction settled",
		"auction_id", a.ID,
		"seller_id", a.CreatorID,
		"buyer_id", a.Winner(),
		"final_price", a.CurrentPrice.String())
	return nil
}
