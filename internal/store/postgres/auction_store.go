package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/evoltmarket/auctiond/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
//
// Bid application and status transitions are expressed as conditional
// UPDATE ... RETURNING statements so that concurrent mutations of the same
// row serialize inside the database; the loser of a race sees zero rows
// updated, never a torn write.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

// current_price is selected as text so it round-trips through
// shopspring/decimal without precision loss.
const auctionCols = `id, asset_kind, asset_id, status, start_time, end_time,
	current_price::text, creator_id, highest_bidder_id, created_at, updated_at`

// scanAuction scans a single auction row into a domain.Auction.
func scanAuction(row pgx.Row) (domain.Auction, error) {
	var (
		a      domain.Auction
		kind   string
		status string
		price  string
	)
	err := row.Scan(
		&a.ID, &kind, &a.AssetID, &status, &a.StartTime, &a.EndTime,
		&price, &a.CreatorID, &a.HighestBidderID, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	a.AssetKind = domain.AssetKind(kind)
	a.Status = domain.AuctionStatus(status)
	a.CurrentPrice, err = decimal.NewFromString(price)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("parse current_price %q: %w", price, err)
	}
	return a, nil
}

// isUniqueViolation reports whether err is a unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Create inserts a new auction. A violation of the active-asset unique index
// is reported as domain.ErrAssetBusy.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (
			id, asset_kind, asset_id, status, start_time, end_time,
			current_price, creator_id, highest_bidder_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, NOW())`

	_, err := s.pool.Exec(ctx, query,
		a.ID, string(a.AssetKind), a.AssetID, string(a.Status),
		a.StartTime, a.EndTime, a.CurrentPrice.String(),
		a.CreatorID, a.HighestBidderID, a.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAssetBusy
		}
		return fmt.Errorf("postgres: create auction %s: %w", a.ID, err)
	}
	return nil
}

// GetByID retrieves an auction by its primary key.
func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionCols+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}
	return a, nil
}

// GetActiveByAsset retrieves the non-terminal auction for the given asset.
func (s *AuctionStore) GetActiveByAsset(ctx context.Context, kind domain.AssetKind, assetID string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+auctionCols+` FROM auctions
		 WHERE asset_kind = $1 AND asset_id = $2
		   AND status IN ('pending', 'prepare', 'started')`,
		string(kind), assetID)
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get active auction for %s/%s: %w", kind, assetID, err)
	}
	return a, nil
}

// List returns auctions matching the filter, newest first.
func (s *AuctionStore) List(ctx context.Context, filter domain.AuctionFilter, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionCols + ` FROM auctions WHERE 1=1`
	args := []any{}
	argIdx := 1

	if filter.ActiveOnly {
		query += ` AND status IN ('pending', 'prepare', 'started')`
	} else if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Kind != "" {
		query += fmt.Sprintf(" AND asset_kind = $%d", argIdx)
		args = append(args, string(filter.Kind))
		argIdx++
	}
	if filter.CreatorID != "" {
		query += fmt.Sprintf(" AND creator_id = $%d", argIdx)
		args = append(args, filter.CreatorID)
		argIdx++
	}
	if filter.BidderID != "" {
		query += fmt.Sprintf(" AND highest_bidder_id = $%d", argIdx)
		args = append(args, filter.BidderID)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list auctions: %w", err)
	}
	defer rows.Close()

	return collectAuctions(rows)
}

// UpdateSchedule rewrites the start/end times and asking price of an auction.
func (s *AuctionStore) UpdateSchedule(ctx context.Context, id string, start, end time.Time, price decimal.Decimal) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE auctions
		 SET start_time = $2, end_time = $3, current_price = $4::numeric, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+auctionCols,
		id, start, end, price.String())
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: update schedule %s: %w", id, err)
	}
	return a, nil
}

// TransitionStatus atomically moves an auction from one status to another.
func (s *AuctionStore) TransitionStatus(ctx context.Context, id string, from, to domain.AuctionStatus) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE auctions
		 SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND status = $2
		 RETURNING `+auctionCols,
		id, string(from), string(to))
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the row is gone or it is no longer in `from`.
			if _, getErr := s.GetByID(ctx, id); errors.Is(getErr, domain.ErrNotFound) {
				return domain.Auction{}, domain.ErrNotFound
			}
			return domain.Auction{}, domain.ErrStatusConflict
		}
		return domain.Auction{}, fmt.Errorf("postgres: transition %s %s->%s: %w", id, from, to, err)
	}
	return a, nil
}

// ApplyBid applies a single bid as one conditional update. All bid
// preconditions that depend on row state are re-checked inside the UPDATE so
// concurrent bids serialize on the row lock and the higher bid always wins.
func (s *AuctionStore) ApplyBid(ctx context.Context, id, bidderID string, amount decimal.Decimal) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE auctions
		 SET current_price = $3::numeric, highest_bidder_id = $2, updated_at = NOW()
		 WHERE id = $1
		   AND status = 'started'
		   AND current_price < $3::numeric
		   AND creator_id <> $2
		   AND (highest_bidder_id IS NULL OR highest_bidder_id <> $2)
		 RETURNING `+auctionCols,
		id, bidderID, amount.String())
	a, err := scanAuction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrStatusConflict
		}
		return domain.Auction{}, fmt.Errorf("postgres: apply bid on %s: %w", id, err)
	}
	return a, nil
}

// ListDueToStart selects prepare auctions whose bidding window has opened.
func (s *AuctionStore) ListDueToStart(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionCols+` FROM auctions
		 WHERE status = 'prepare' AND start_time <= $1 AND end_time > $1
		 ORDER BY start_time`,
		now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due to start: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// ListDueToEnd selects started auctions whose bidding window has closed.
func (s *AuctionStore) ListDueToEnd(ctx context.Context, now time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionCols+` FROM auctions
		 WHERE status = 'started' AND end_time <= $1
		 ORDER BY end_time`,
		now)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due to end: %w", err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// ListTerminalBefore selects ended/rejected auctions last touched before the
// cutoff, oldest first.
func (s *AuctionStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Auction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+auctionCols+` FROM auctions
		 WHERE status IN ('ended', 'rejected') AND updated_at < $1
		 ORDER BY updated_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal before %s: %w", before, err)
	}
	defer rows.Close()
	return collectAuctions(rows)
}

// Delete removes an auction record.
func (s *AuctionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// collectAuctions drains rows into a slice.
func collectAuctions(rows pgx.Rows) ([]domain.Auction, error) {
	var auctions []domain.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan auction: %w", err)
		}
		auctions = append(auctions, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: auction rows: %w", err)
	}
	return auctions, nil
}

// Compile-time interface check.
var _ domain.AuctionStore = (*AuctionStore)(nil)
