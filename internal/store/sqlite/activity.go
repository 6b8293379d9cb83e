package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

const insertFill = `
	INSERT INTO fills (
		id, trade_id, order_id, ticker, side, action,
		count, yes_price, no_price, is_taker, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

const insertSettlement = `
	INSERT INTO settlements (
		id, ticker, market_result, yes_count, no_count,
		yes_total_cost, no_total_cost, revenue, fee_cost, settled_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO NOTHING`

const upsertCheckpoint = `
	INSERT INTO sync_checkpoints (stream, cursor, min_ts, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (stream) DO UPDATE SET
		cursor = excluded.cursor,
		min_ts = excluded.min_ts,
		updated_at = excluded.updated_at`

// SaveFillPage inserts a page of fills and advances the fills checkpoint
// in one transaction.
func (s *Store) SaveFillPage(ctx context.Context, fills []model.Fill, cp model.SyncCheckpoint) (int, error) {
	var inserted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertFill)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, f := range fills {
			res, err := stmt.ExecContext(ctx,
				f.ID, f.TradeID, f.OrderID, f.Ticker, string(f.Side), string(f.Action),
				f.Count, f.YesPrice, f.NoPrice, f.IsTaker, toMicros(f.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("insert fill %s: %w", f.ID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return saveCheckpoint(ctx, tx, model.StreamFills, cp)
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: save fill page: %w", err)
	}
	return inserted, nil
}

// SaveSettlementPage inserts a page of settlements and advances the
// settlements checkpoint in one transaction.
func (s *Store) SaveSettlementPage(ctx context.Context, settlements []model.Settlement, cp model.SyncCheckpoint) (int, error) {
	var inserted int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertSettlement)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, st := range settlements {
			res, err := stmt.ExecContext(ctx,
				st.ID, st.Ticker, string(st.MarketResult), st.YesCount, st.NoCount,
				st.YesTotalCost, st.NoTotalCost, st.Revenue, st.FeeCost, toMicros(st.SettledAt),
			)
			if err != nil {
				return fmt.Errorf("insert settlement %s: %w", st.ID, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return saveCheckpoint(ctx, tx, model.StreamSettlements, cp)
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite: save settlement page: %w", err)
	}
	return inserted, nil
}

func saveCheckpoint(ctx context.Context, tx *sql.Tx, stream model.Stream, cp model.SyncCheckpoint) error {
	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	_, err := tx.ExecContext(ctx, upsertCheckpoint,
		string(stream), cp.Cursor, toMicros(cp.MinTS), updated.UnixMicro(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Checkpoint returns the stored checkpoint for stream, or an empty one.
func (s *Store) Checkpoint(ctx context.Context, stream model.Stream) (model.SyncCheckpoint, error) {
	cp := model.SyncCheckpoint{Stream: stream}
	var minTS, updated int64
	err := s.db.QueryRowContext(ctx,
		"SELECT cursor, min_ts, updated_at FROM sync_checkpoints WHERE stream = ?",
		string(stream),
	).Scan(&cp.Cursor, &minTS, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("sqlite: get checkpoint: %w", err)
	}
	cp.MinTS = fromMicros(minTS)
	cp.UpdatedAt = fromMicros(updated)
	return cp, nil
}

// LatestFillTime returns the newest fill timestamp, or zero when empty.
func (s *Store) LatestFillTime(ctx context.Context) (time.Time, error) {
	return s.maxTime(ctx, "SELECT MAX(created_at) FROM fills")
}

// LatestSettlementTime returns the newest settlement timestamp, or zero.
func (s *Store) LatestSettlementTime(ctx context.Context) (time.Time, error) {
	return s.maxTime(ctx, "SELECT MAX(settled_at) FROM settlements")
}

func (s *Store) maxTime(ctx context.Context, query string) (time.Time, error) {
	var us sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query).Scan(&us); err != nil {
		return time.Time{}, fmt.Errorf("sqlite: max time: %w", err)
	}
	if !us.Valid {
		return time.Time{}, nil
	}
	return fromMicros(us.Int64), nil
}

func filterQuery(base, timeCol string, f store.Filter) (string, []any) {
	conds, args := rangeClause(timeCol, f.Range, nil, nil)
	if f.Ticker != "" {
		conds = append(conds, "ticker = ?")
		args = append(args, f.Ticker)
	}
	q := base + buildWhere(conds)
	if f.Newest {
		q += " ORDER BY " + timeCol + " DESC, id DESC"
	} else {
		q += " ORDER BY " + timeCol + " ASC, id ASC"
	}
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}
	return q, args
}

// ListFills returns fills matching f.
func (s *Store) ListFills(ctx context.Context, f store.Filter) ([]model.Fill, error) {
	q, args := filterQuery(`SELECT id, trade_id, order_id, ticker, side, action,
		count, yes_price, no_price, is_taker, created_at FROM fills`, "created_at", f)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list fills: %w", err)
	}
	defer rows.Close()

	fills := []model.Fill{}
	for rows.Next() {
		var (
			fl           model.Fill
			side, action string
			created      int64
		)
		if err := rows.Scan(&fl.ID, &fl.TradeID, &fl.OrderID, &fl.Ticker, &side, &action,
			&fl.Count, &fl.YesPrice, &fl.NoPrice, &fl.IsTaker, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan fill: %w", err)
		}
		fl.Side = model.Side(side)
		fl.Action = model.Action(action)
		fl.CreatedAt = fromMicros(created)
		fills = append(fills, fl)
	}
	return fills, rows.Err()
}

// ListSettlements returns settlements matching f.
func (s *Store) ListSettlements(ctx context.Context, f store.Filter) ([]model.Settlement, error) {
	q, args := filterQuery(`SELECT id, ticker, market_result, yes_count, no_count,
		yes_total_cost, no_total_cost, revenue, fee_cost, settled_at FROM settlements`, "settled_at", f)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list settlements: %w", err)
	}
	defer rows.Close()

	settlements := []model.Settlement{}
	for rows.Next() {
		var (
			st      model.Settlement
			result  string
			settled int64
		)
		if err := rows.Scan(&st.ID, &st.Ticker, &result, &st.YesCount, &st.NoCount,
			&st.YesTotalCost, &st.NoTotalCost, &st.Revenue, &st.FeeCost, &settled); err != nil {
			return nil, fmt.Errorf("sqlite: scan settlement: %w", err)
		}
		st.MarketResult = model.MarketResult(result)
		st.SettledAt = fromMicros(settled)
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}
