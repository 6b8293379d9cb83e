package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// InsertSnapshot stores s unless a snapshot already occupies its bucket.
func (s *Store) InsertSnapshot(ctx context.Context, snap model.PortfolioSnapshot) (bool, error) {
	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO portfolio_snapshots (taken_at, bucket, balance, portfolio_value, open_positions)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (bucket) DO NOTHING`,
			toMicros(snap.TakenAt), toMicros(snap.Bucket), snap.Balance, snap.PortfolioValue, snap.OpenPositions,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		inserted = n > 0
		return err
	})
	if err != nil {
		return false, fmt.Errorf("sqlite: insert snapshot: %w", err)
	}
	return inserted, nil
}

// SnapshotInBucket reports whether a snapshot exists for bucket.
func (s *Store) SnapshotInBucket(ctx context.Context, bucket time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM portfolio_snapshots WHERE bucket = ?)",
		toMicros(bucket),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: check snapshot bucket: %w", err)
	}
	return exists, nil
}

const snapshotCols = "id, taken_at, bucket, balance, portfolio_value, open_positions"

func scanSnapshot(row interface{ Scan(...any) error }) (model.PortfolioSnapshot, error) {
	var (
		snap          model.PortfolioSnapshot
		taken, bucket int64
	)
	if err := row.Scan(&snap.ID, &taken, &bucket, &snap.Balance, &snap.PortfolioValue, &snap.OpenPositions); err != nil {
		return snap, err
	}
	snap.TakenAt = fromMicros(taken)
	snap.Bucket = fromMicros(bucket)
	return snap, nil
}

// LatestSnapshot returns the most recent snapshot or store.ErrNotFound.
func (s *Store) LatestSnapshot(ctx context.Context) (model.PortfolioSnapshot, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+snapshotCols+" FROM portfolio_snapshots ORDER BY taken_at DESC, id DESC LIMIT 1")
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, store.ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("sqlite: latest snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns snapshots in r, oldest first.
func (s *Store) ListSnapshots(ctx context.Context, r store.Range) ([]model.PortfolioSnapshot, error) {
	conds, args := rangeClause("taken_at", r, nil, nil)
	q := "SELECT " + snapshotCols + " FROM portfolio_snapshots" + buildWhere(conds) + " ORDER BY taken_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []model.PortfolioSnapshot{}
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan snapshot: %w", err)
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

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			"INSERT INTO transactions (type, amount, note, created_at) VALUES (?, ?, ?, ?)",
			string(t.Type), t.Amount, t.Note, toMicros(t.CreatedAt),
		)
		if err != nil {
			return err
		}
		t.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return t, fmt.Errorf("sqlite: create transaction: %w", err)
	}
	return t, nil
}

// ListTransactions returns all transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, type, amount, note, created_at FROM transactions ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("sqlite: list transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var (
			t       model.Transaction
			typ     string
			created int64
		)
		if err := rows.Scan(&t.ID, &typ, &t.Amount, &t.Note, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan transaction: %w", err)
		}
		t.Type = model.TransactionType(typ)
		t.CreatedAt = fromMicros(created)
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// DeleteTransaction removes a transaction by id.
func (s *Store) DeleteTransaction(ctx context.Context, id int64) error {
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("sqlite: delete transaction: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransactionTotals sums deposits and withdrawals.
func (s *Store) TransactionTotals(ctx context.Context) (store.Totals, error) {
	var t store.Totals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN type = 'deposit' THEN amount END), 0),
			COALESCE(SUM(CASE WHEN type = 'withdrawal' THEN amount END), 0)
		FROM transactions`).Scan(&t.Deposits, &t.Withdrawals)
	if err != nil {
		return t, fmt.Errorf("sqlite: transaction totals: %w", err)
	}
	return t, nil
}
