package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/service"
)

// Admin serves the API-key guarded operator endpoints.
type Admin struct {
	svc   *service.AuctionService
	audit domain.AuditStore
}

// NewAdmin creates the admin handler. audit may be nil.
func NewAdmin(svc *service.AuctionService, audit domain.AuditStore) *Admin {
	return &Admin{svc: svc, audit: audit}
}

type reviewRequest struct {
	AuctionID  string `json:"auction_id"`
	Approve    bool   `json:"approve"`
	ReviewerID string `json:"reviewer_id"`
}

// Review answers POST /api/admin/auctions/review.
func (h *Admin) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("invalid request body: %w", domain.ErrInvalidInput))
		return
	}
	if req.AuctionID == "" {
		writeError(w, fmt.Errorf("auction_id is required: %w", domain.ErrInvalidInput))
		return
	}

	a, err := h.svc.Review(r.Context(), req.AuctionID, req.Approve, req.ReviewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListPending answers GET /api/admin/auctions/pending with the review queue.
func (h *Admin) ListPending(w http.ResponseWriter, r *http.Request) {
	auctions, err := h.svc.List(r.Context(),
		domain.AuctionFilter{Status: domain.AuctionStatusPending}, parseListOpts(r))
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

// Finalize answers PUT /api/admin/auctions/{id}/finalize.
func (h *Admin) Finalize(w http.ResponseWriter, r *http.Request) {
	a, err := h.svc.ForceFinalize(r.Context(), r.PathValue("id"), "admin")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Delete answers DELETE /api/admin/auctions/{id}.
func (h *Admin) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id"), "admin", true); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuditLog answers GET /api/admin/audit.
func (h *Admin) AuditLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []domain.AuditEntry{}})
		return
	}
	entries, err := h.audit.List(r.Context(), parseListOpts(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
