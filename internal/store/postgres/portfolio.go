package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// InsertSnapshot stores s unless a snapshot already occupies its bucket.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.PortfolioSnapshot) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO portfolio_snapshots (taken_at, bucket, balance, portfolio_value, open_positions)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (bucket) DO NOTHING`,
		snap.TakenAt, snap.Bucket, snap.Balance, snap.PortfolioValue, snap.OpenPositions,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: insert snapshot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SnapshotInBucket reports whether a snapshot exists for bucket.
func (s *Store) SnapshotInBucket(ctx context.Context, bucket time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM portfolio_snapshots WHERE bucket = $1)", bucket,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: check snapshot bucket: %w", err)
	}
	return exists, nil
}

const snapshotCols = "id, taken_at, bucket, balance, portfolio_value, open_positions"

func scanSnapshot(row pgx.Row) (model.PortfolioSnapshot, error) {
	var snap model.PortfolioSnapshot
	err := row.Scan(&snap.ID, &snap.TakenAt, &snap.Bucket, &snap.Balance, &snap.PortfolioValue, &snap.OpenPositions)
	snap.TakenAt = snap.TakenAt.UTC()
	snap.Bucket = snap.Bucket.UTC()
	return snap, err
}

// LatestSnapshot returns the most recent snapshot or store.ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context) (model.PortfolioSnapshot, error) {
	snap, err := scanSnapshot(s.pool.QueryRow(ctx,
		"SELECT "+snapshotCols+" FROM portfolio_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1"))
	if isNoRows(err) {
		return snap, store.ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("postgres: latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots in r, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, r store.Range) ([]model.PortfolioSnapshot, error) {
	var w whereBuilder
	w.rangeOn("taken_at", r)
	q := "SELECT " + snapshotCols + " FROM portfolio_snapshots" + w.String() + " ORDER BY taken_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []model.PortfolioSnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// CreateTransaction validates and stores a deposit or withdrawal.
func (s *Store) CreateTransaction(ctx context.Context, t model.Transaction) (model.Transaction, error) {
	if err := t.Validate(); err != nil {
		return t, err
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	err := s.pool.QueryRow(ctx,
		"INSERT INTO transactions (type, amount, note, created_at) VALUES ($1, $2, $3, $4) RETURNING id",
		string(t.Type), t.Amount, t.Note, t.CreatedAt,
	).Scan(&t.ID)
	if err != nil {
		return t, fmt.Errorf("postgres: create transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns all transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, type, amount, note, created_at FROM transactions ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var (
			t   model.Transaction
			typ string
		)
		if err := rows.Scan(&t.ID, &typ, &t.Amount, &t.Note, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan transaction: %w", err)
		}
		t.Type = model.TransactionType(typ)
		t.CreatedAt = t.CreatedAt.UTC()
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// DeleteTransaction removes a transaction by id.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM transactions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("postgres: delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransactionTotals sums deposits and withdrawals.
func (s *Store) TransactionTotals(ctx context.Context) (store.Totals, error) {
	var t store.Totals
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE type = 'deposit'), 0)::BIGINT,
			COALESCE(SUM(amount) FILTER (WHERE type = 'withdrawal'), 0)::BIGINT
		FROM transactions`).Scan(&t.Deposits, &t.Withdrawals)
	if err != nil {
		return t, fmt.Errorf("postgres: transaction totals: %w", err)
	}
	return t, nil
}
