package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
	"github.com/evoltmarket/auctiond/internal/store/memory"
)

type memBlob struct {
	keys   []string
	bodies [][]byte
}

func (b *memBlob) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	b.keys = append(b.keys, key)
	b.bodies = append(b.bodies, data)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArchive(t *testing.T) {
	store := memory.NewAuctionStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	old := domain.Auction{
		ID: "old", AssetKind: domain.AssetKindVehicle, AssetID: "v1",
		Status: domain.AuctionStatusEnded, StartTime: now.Add(-200 * 24 * time.Hour),
		EndTime: now.Add(-199 * 24 * time.Hour), CurrentPrice: decimal.NewFromInt(1500),
		CreatorID: "s", CreatedAt: now.Add(-201 * 24 * time.Hour),
	}
	check.NoError(t, store.Create(ctx, old))

	fresh := domain.Auction{
		ID: "fresh", AssetKind: domain.AssetKindVehicle, AssetID: "v2",
		Status: domain.AuctionStatusStarted, StartTime: now.Add(-time.Hour),
		EndTime: now.Add(time.Hour), CurrentPrice: decimal.NewFromInt(1000),
		CreatorID: "s", CreatedAt: now,
	}
	check.NoError(t, store.Create(ctx, fresh))

	blob := &memBlob{}
	arch := NewArchiver(store, memory.NewAuditStore(), blob, 90*24*time.Hour,
		testLogger(), func() time.Time { return now })

	check.NoError(t, arch.Archive(ctx))
	check.Equal(t, 1, len(blob.keys))
	check.True(t, bytes.HasPrefix([]byte(blob.keys[0]), []byte("archive/auctions/2026-03/")))

	// One JSON object per line, only the terminal auction included.
	sc := bufio.NewScanner(bytes.NewReader(blob.bodies[0]))
	var lines int
	for sc.Scan() {
		var a domain.Auction
		check.NoError(t, json.Unmarshal(sc.Bytes(), &a))
		check.Equal(t, "old", a.ID)
		lines++
	}
	check.Equal(t, 1, lines)
}

func TestArchiveNothingDue(t *testing.T) {
	blob := &memBlob{}
	arch := NewArchiver(memory.NewAuctionStore(), nil, blob, 90*24*time.Hour,
		testLogger(), nil)

	check.NoError(t, arch.Archive(context.Background()))
	check.Equal(t, 0, len(blob.keys))
}
