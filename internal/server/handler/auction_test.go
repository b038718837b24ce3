package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/service"
	"github.com/evoltmarket/auctiond/internal/store/memory"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type okGuard struct{}

func (okGuard) Check(ctx context.Context, kind domain.AssetKind, assetID string) error { return nil }

type noopSettler struct{}

func (noopSettler) Settle(ctx context.Context, a domain.Auction) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) (*Auction, *Bid, *memory.AuctionStore) {
	t.Helper()
	store := memory.NewAuctionStore()
	cfg := service.AuctionConfig{
		CreationLeadTime: 8 * time.Hour,
		ReviewLeadTime:   time.Hour,
		Duration:         2 * time.Hour,
	}
	now := func() time.Time { return t0 }
	auctionSvc := service.NewAuctionService(store, nil, okGuard{}, noopSettler{}, nil, cfg, testLogger(), now)
	bidSvc := service.NewBidService(store, nil, nil, nil, service.BidConfig{}, testLogger(), now)
	return NewAuction(auctionSvc), NewBid(bidSvc), store
}

func createBody() string {
	return `{
		"asset_kind": "vehicle",
		"asset_id": "veh-1",
		"starting_price": "1000",
		"start_time": "2026-03-01T18:00:00Z"
	}`
}

func TestCreateAuctionEndpoint(t *testing.T) {
	auctions, _, _ := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auctions", strings.NewReader(createBody()))
	req.Header.Set("X-User-ID", "seller-1")
	rec := httptest.NewRecorder()
	auctions.Create(rec, req)

	check.Equal(t, http.StatusCreated, rec.Code)

	var a domain.Auction
	check.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	check.Equal(t, domain.AuctionStatusPending, a.Status)
	check.Equal(t, "seller-1", a.CreatorID)
	check.True(t, a.CurrentPrice.Equal(decimal.NewFromInt(1000)))
}

func TestCreateAuctionRequiresIdentity(t *testing.T) {
	auctions, _, _ := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auctions", strings.NewReader(createBody()))
	rec := httptest.NewRecorder()
	auctions.Create(rec, req)

	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAuctionLeadTimeViolation(t *testing.T) {
	auctions, _, _ := newFixture(t)

	body := strings.Replace(createBody(), "18:00:00", "10:00:00", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/auctions", strings.NewReader(body))
	req.Header.Set("X-User-ID", "seller-1")
	rec := httptest.NewRecorder()
	auctions.Create(rec, req)

	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAuctionEndpoint(t *testing.T) {
	auctions, _, store := newFixture(t)
	seedStarted(t, store, "a-1")

	req := httptest.NewRequest(http.MethodGet, "/api/auctions/a-1", nil)
	req.SetPathValue("id", "a-1")
	rec := httptest.NewRecorder()
	auctions.Get(rec, req)
	check.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auctions/ghost", nil)
	req.SetPathValue("id", "ghost")
	rec = httptest.NewRecorder()
	auctions.Get(rec, req)
	check.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAuctionsEndpoint(t *testing.T) {
	auctions, _, store := newFixture(t)
	seedStarted(t, store, "a-1")

	req := httptest.NewRequest(http.MethodGet, "/api/auctions?status=started", nil)
	rec := httptest.NewRecorder()
	auctions.List(rec, req)
	check.Equal(t, http.StatusOK, rec.Code)

	var out struct {
		Auctions []domain.Auction `json:"auctions"`
		Count    int              `json:"count"`
	}
	check.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	check.Equal(t, 1, out.Count)

	// An unknown status is a validation error, not an empty result.
	req = httptest.NewRequest(http.MethodGet, "/api/auctions?status=bogus", nil)
	rec = httptest.NewRecorder()
	auctions.List(rec, req)
	check.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceBidEndpoint(t *testing.T) {
	_, bids, store := newFixture(t)
	seedStarted(t, store, "a-1")

	req := httptest.NewRequest(http.MethodPost, "/api/auctions/a-1/bid",
		strings.NewReader(`{"amount": "1200"}`))
	req.Header.Set("X-User-ID", "buyer-1")
	req.SetPathValue("id", "a-1")
	rec := httptest.NewRecorder()
	bids.Place(rec, req)

	check.Equal(t, http.StatusOK, rec.Code)
	var a domain.Auction
	check.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	check.Equal(t, "buyer-1", a.Winner())

	// A lower bid conflicts.
	req = httptest.NewRequest(http.MethodPost, "/api/auctions/a-1/bid",
		strings.NewReader(`{"amount": "1100"}`))
	req.Header.Set("X-User-ID", "buyer-2")
	req.SetPathValue("id", "a-1")
	rec = httptest.NewRecorder()
	bids.Place(rec, req)
	check.Equal(t, http.StatusConflict, rec.Code)

	// The creator is forbidden.
	req = httptest.NewRequest(http.MethodPost, "/api/auctions/a-1/bid",
		strings.NewReader(`{"amount": "1300"}`))
	req.Header.Set("X-User-ID", "seller-1")
	req.SetPathValue("id", "a-1")
	rec = httptest.NewRecorder()
	bids.Place(rec, req)
	check.Equal(t, http.StatusForbidden, rec.Code)
}

func seedStarted(t *testing.T, store *memory.AuctionStore, id string) {
	t.Helper()
	a := domain.Auction{
		ID:           id,
		AssetKind:    domain.AssetKindVehicle,
		AssetID:      "asset-" + id,
		Status:       domain.AuctionStatusStarted,
		StartTime:    t0.Add(-time.Hour),
		EndTime:      t0.Add(time.Hour),
		CurrentPrice: decimal.NewFromInt(1000),
		CreatorID:    "seller-1",
		CreatedAt:    t0.Add(-9 * time.Hour),
	}
	check.NoError(t, store.Create(context.Background(), a))
}
