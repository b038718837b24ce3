package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/service"
)

// Auction serves the public auction endpoints.
type Auction struct {
	svc *service.AuctionService
}

// NewAuction creates the auction handler.
func NewAuction(svc *service.AuctionService) *Auction {
	return &Auction{svc: svc}
}

type createAuctionRequest struct {
	AssetKind     string          `json:"asset_kind"`
	AssetID       string          `json:"asset_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	StartTime     time.Time       `json:"start_time"`
}

// Create answers POST /api/auctions.
func (h *Auction) Create(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeError(w, fmt.Errorf("missing X-User-ID header: %w", domain.ErrInvalidInput))
		return
	}

	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrInvalidInput))
		return
	}

	a, err := h.svc.Create(r.Context(), service.CreateInput{
		AssetKind:     domain.AssetKind(req.AssetKind),
		AssetID:       req.AssetID,
		CreatorID:     actor,
		StartingPrice: req.StartingPrice,
		StartTime:     req.StartTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// Get answers GET /api/auctions/{id}.
func (h *Auction) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// List answers GET /api/auctions with optional status, kind, creator_id,
// bidder_id and active filters.
func (h *Auction) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.AuctionFilter{
		Status:     domain.AuctionStatus(q.Get("status")),
		Kind:       domain.AssetKind(q.Get("kind")),
		CreatorID:  q.Get("creator_id"),
		BidderID:   q.Get("bidder_id"),
		ActiveOnly: q.Get("active") == "true",
	}

	auctions, err := h.svc.List(r.Context(), filter, parseListOpts(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"auctions": auctions,
		"count":    len(auctions),
	})
}

// GetByAsset answers GET /api/auctions/by-asset?kind=...&asset_id=... with
// the asset's active auction.
func (h *Auction) GetByAsset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, err := h.svc.GetActiveByAsset(r.Context(),
		domain.AssetKind(q.Get("kind")), q.Get("asset_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type updateAuctionRequest struct {
	StartTime     time.Time       `json:"start_time"`
	StartingPrice decimal.Decimal `json:"starting_price"`
}

// Update answers PUT /api/auctions/{id}.
func (h *Auction) Update(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeError(w, fmt.Errorf("missing X-User-ID header: %w", domain.ErrInvalidInput))
		return
	}

	var req updateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrInvalidInput))
		return
	}

	a, err := h.svc.Update(r.Context(), r.PathValue("id"), actor, service.UpdateInput{
		StartTime:     req.StartTime,
		StartingPrice: req.StartingPrice,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete answers DELETE /api/auctions/{id}.
func (h *Auction) Delete(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeError(w, fmt.Errorf("missing X-User-ID header: %w", domain.ErrInvalidInput))
		return
	}

	if err := h.svc.Delete(r.Context(), r.PathValue("id"), actor, false); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
