package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// Archiver periodically copies terminal auctions to object storage as JSONL
// so the hot table can be pruned without losing history.
type Archiver struct {
	store     domain.AuctionStore
	audit     domain.AuditStore
	blob      domain.BlobWriter
	retention time.Duration
	log       *slog.Logger
	now       func() time.Time
}

// NewArchiver wires an Archiver. retention is how long a terminal auction
// stays out of the archive; now defaults to time.Now when nil.
func NewArchiver(store domain.AuctionStore, audit domain.AuditStore, blob domain.BlobWriter, retention time.Duration, log *slog.Logger, now func() time.Time) *Archiver {
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		store:     store,
		audit:     audit,
		blob:      blob,
		retention: retention,
		log:       log,
		now:       now,
	}
}

// Run archives once a day until the context is cancelled.
func (a *Archiver) Run(ctx context.Context) error {
	a.log.Info("archiver started", "retention", a.retention)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Archive(ctx); err != nil {
				a.log.Error("archive pass failed", "error", err)
			}
		}
	}
}

// Archive uploads every terminal auction older than the retention window as
// one JSONL object per pass, keyed by month.
func (a *Archiver) Archive(ctx context.Context) error {
	now := a.now()
	cutoff := now.Add(-a.retention)

	auctions, err := a.store.ListTerminalBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list terminal auctions: %w", err)
	}
	if len(auctions) == 0 {
		return nil
	}

	body, err := marshalJSONL(auctions)
	if err != nil {
		return fmt.Errorf("encode archive: %w", err)
	}

	key := fmt.Sprintf("archive/auctions/%s/%s.jsonl",
		now.UTC().Format("2006-01"), now.UTC().Format("20060102T150405Z"))
	if err := a.blob.Put(ctx, key, bytes.NewReader(body), "application/x-ndjson"); err != nil {
		return err
	}

	if a.audit != nil {
		_ = a.audit.Log(ctx, "auctions_archived", map[string]any{
			"key":    key,
			"count":  len(auctions),
			"cutoff": cutoff,
		})
	}
	a.log.Info("auctions archived", "key", key, "count", len(auctions))
	return nil
}

// marshalJSONL renders one JSON object per line.
func marshalJSONL(auctions []domain.Auction) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range auctions {
		if err := enc.Encode(a); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
