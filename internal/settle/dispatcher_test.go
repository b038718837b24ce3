package settle

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/platform/ledger"
)

type recordingLedger struct {
	txs []ledger.Transaction
	err error
}

func (l *recordingLedger) CreateTransaction(ctx context.Context, tx ledger.Transaction) error {
	if l.err != nil {
		return l.err
	}
	l.txs = append(l.txs, tx)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func wonAuction() domain.Auction {
	winner := "buyer-1"
	return domain.Auction{
		ID:              "a-1",
		CreatorID:       "seller-1",
		CurrentPrice:    decimal.NewFromInt(1500),
		HighestBidderID: &winner,
	}
}

func TestSettle(t *testing.T) {
	led := &recordingLedger{}
	d := NewDispatcher(led, 10*time.Second, testLogger())

	check.NoError(t, d.Settle(context.Background(), wonAuction()))
	check.Equal(t, 1, len(led.txs))
	check.Equal(t, "a-1", led.txs[0].AuctionRef)
	check.Equal(t, "seller-1", led.txs[0].SellerID)
	check.Equal(t, "buyer-1", led.txs[0].BuyerID)
	check.True(t, led.txs[0].FinalPrice.Equal(decimal.NewFromInt(1500)))
}

func TestSettleWithoutWinner(t *testing.T) {
	d := NewDispatcher(&recordingLedger{}, 10*time.Second, testLogger())

	a := wonAuction()
	a.HighestBidderID = nil
	err := d.Settle(context.Background(), a)
	check.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestSettlePropagatesLedgerFailure(t *testing.T) {
	led := &recordingLedger{err: domain.ErrDownstream}
	d := NewDispatcher(led, 10*time.Second, testLogger())

	err := d.Settle(context.Background(), wonAuction())
	check.True(t, errors.Is(err, domain.ErrDownstream))
}
