// Package listing provides a thin HTTP client for the listing/catalog
// service. The auction engine only consumes one read-only endpoint: the
// active-auction check used by the exclusivity guard.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// Client calls the listing service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a listing Client for the given base URL. A zero timeout
// falls back to 5 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// activeAuctionResponse is the wire shape of the active-auction check.
type activeAuctionResponse struct {
	InActiveAuction bool   `json:"in_active_auction"`
	Status          string `json:"status,omitempty"`
}

// InActiveAuction reports whether the listing service considers the asset to
// already be part of an active auction. Any transport or decode failure is
// wrapped as domain.ErrDownstream so the guard can fail closed.
func (c *Client) InActiveAuction(ctx context.Context, kind domain.AssetKind, assetID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/internal/assets/%s/%s/auction-status",
		c.baseURL, url.PathEscape(string(kind)), url.PathEscape(assetID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("listing: create request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("listing: active-auction check for %s/%s: %w: %v",
			kind, assetID, domain.ErrDownstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, fmt.Errorf("listing: asset %s/%s: %w", kind, assetID, domain.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("listing: active-auction check for %s/%s: %w: status %d: %s",
			kind, assetID, domain.ErrDownstream, resp.StatusCode, string(body))
	}

	var out activeAuctionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("listing: decode active-auction response: %w: %v",
			domain.ErrDownstream, err)
	}
	return out.InActiveAuction, nil
}
