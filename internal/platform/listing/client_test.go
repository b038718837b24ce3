package listing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/evoltmarket/auctiond/internal/domain"
)

func TestInActiveAuction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		check.Equal(t, "/internal/assets/vehicle/veh-1/auction-status", r.URL.Path)
		check.Equal(t, "secret", r.Header.Get("X-Internal-Api-Key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"in_active_auction":true,"status":"started"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 5*time.Second)
	busy, err := c.InActiveAuction(context.Background(), domain.AssetKindVehicle, "veh-1")
	check.NoError(t, err)
	check.True(t, busy)
}

func TestInActiveAuctionFree(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"in_active_auction":false}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	busy, err := c.InActiveAuction(context.Background(), domain.AssetKindBattery, "bat-1")
	check.NoError(t, err)
	check.False(t, busy)
}

func TestInActiveAuctionUnknownAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	_, err := c.InActiveAuction(context.Background(), domain.AssetKindVehicle, "ghost")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestInActiveAuctionServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 5*time.Second)
	_, err := c.InActiveAuction(context.Background(), domain.AssetKindVehicle, "veh-1")
	check.True(t, errors.Is(err, domain.ErrDownstream))
}
