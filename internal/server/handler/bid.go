package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/service"
)

// Bid serves bid submission.
type Bid struct {
	svc *service.BidService
}

// NewBid creates the bid handler.
func NewBid(svc *service.BidService) *Bid {
	return &Bid{svc: svc}
}

type placeBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Place answers POST /api/auctions/{id}/bid.
func (h *Bid) Place(w http.ResponseWriter, r *http.Request) {
	actor := userID(r)
	if actor == "" {
		writeError(w, fmt.Errorf("missing X-User-ID header: %w", domain.ErrInvalidInput))
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrInvalidInput))
		return
	}

	a, err := h.svc.Place(r.Context(), r.PathValue("id"), actor, req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
