// Package ledger provides an HTTP client for the external transaction-ledger
// service that records settled auction outcomes.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// Transaction is the settlement payload sent to the ledger. AuctionRef makes
// the call idempotent on the receiving side, so at-least-once delivery from
// the sweep is safe.
type Transaction struct {
	AuctionRef string          `json:"auction_ref"`
	SellerID   string          `json:"seller_id"`
	BuyerID    string          `json:"buyer_id"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// Client calls the transaction-ledger service over HTTP.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a ledger Client for the given base URL. A zero timeout
// falls back to 10 seconds.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// CreateTransaction records a settled auction outcome. Transport failures,
// timeouts, and non-2xx responses are wrapped as domain.ErrDownstream; the
// caller retries on the next sweep.
func (c *Client) CreateTransaction(ctx context.Context, tx Transaction) error {
	body, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("ledger: marshal transaction %s: %w", tx.AuctionRef, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/internal/transactions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ledger: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Internal-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ledger: create transaction %s: %w: %v",
			tx.AuctionRef, domain.ErrDownstream, err)
	}
	defer resp.Body.Close()

	// 409 means the ledger already holds this auction_ref; treat the retry
	// as acknowledged.
	if resp.StatusCode == http.StatusConflict {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ledger: create transaction %s: %w: status %d: %s",
			tx.AuctionRef, domain.ErrDownstream, resp.StatusCode, string(respBody))
	}
	return nil
}
