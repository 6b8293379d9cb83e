package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

const insertFill = `
	INSERT INTO fills (
		id, trade_id, order_id, ticker, side, action,
		count, yes_price, no_price, is_taker, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO NOTHING`

const insertSettlement = `
	INSERT INTO settlements (
		id, ticker, market_result, yes_count, no_count,
		yes_total_cost, no_total_cost, revenue, fee_cost, settled_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO NOTHING`

const upsertCheckpoint = `
	INSERT INTO sync_checkpoints (stream, cursor, min_ts, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (stream) DO UPDATE SET
		cursor = EXCLUDED.cursor,
		min_ts = EXCLUDED.min_ts,
		updated_at = EXCLUDED.updated_at`

// SaveFillPage batch-inserts a page of fills and advances the fills
// checkpoint in one transaction.
func (s *Store) SaveFillPage(ctx context.Context, fills []model.Fill, cp model.SyncCheckpoint) (int, error) {
	batch := &pgx.Batch{}
	for _, f := range fills {
		batch.Queue(insertFill,
			f.ID, f.TradeID, f.OrderID, f.Ticker, string(f.Side), string(f.Action),
			f.Count, f.YesPrice, f.NoPrice, f.IsTaker, f.CreatedAt,
		)
	}
	queueCheckpoint(batch, model.StreamFills, cp)

	inserted, err := s.sendPage(ctx, batch, len(fills))
	if err != nil {
		return 0, fmt.Errorf("postgres: save fill page: %w", err)
	}
	return inserted, nil
}

// SaveSettlementPage batch-inserts a page of settlements and advances the
// settlements checkpoint in one transaction.
func (s *Store) SaveSettlementPage(ctx context.Context, settlements []model.Settlement, cp model.SyncCheckpoint) (int, error) {
	batch := &pgx.Batch{}
	for _, st := range settlements {
		batch.Queue(insertSettlement,
			st.ID, st.Ticker, string(st.MarketResult), st.YesCount, st.NoCount,
			st.YesTotalCost, st.NoTotalCost, st.Revenue, st.FeeCost, st.SettledAt,
		)
	}
	queueCheckpoint(batch, model.StreamSettlements, cp)

	inserted, err := s.sendPage(ctx, batch, len(settlements))
	if err != nil {
		return 0, fmt.Errorf("postgres: save settlement page: %w", err)
	}
	return inserted, nil
}

func queueCheckpoint(batch *pgx.Batch, stream model.Stream, cp model.SyncCheckpoint) {
	updated := cp.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	var minTS *time.Time
	if !cp.MinTS.IsZero() {
		minTS = &cp.MinTS
	}
	batch.Queue(upsertCheckpoint, string(stream), cp.Cursor, minTS, updated)
}

// sendPage runs batch in a transaction. The first rows statements are
// inserts whose affected counts are summed; conflicts count as zero.
func (s *Store) sendPage(ctx context.Context, batch *pgx.Batch, rows int) (int, error) {
	var inserted int
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < rows; i++ {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return fmt.Errorf("insert row %d: %w", i, err)
			}
			inserted += int(tag.RowsAffected())
		}
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("save checkpoint: %w", err)
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Checkpoint returns the stored checkpoint for stream, or an empty one.
func (s *Store) Checkpoint(ctx context.Context, stream model.Stream) (model.SyncCheckpoint, error) {
	cp := model.SyncCheckpoint{Stream: stream}
	var minTS *time.Time
	err := s.pool.QueryRow(ctx,
		"SELECT cursor, min_ts, updated_at FROM sync_checkpoints WHERE stream = $1",
		string(stream),
	).Scan(&cp.Cursor, &minTS, &cp.UpdatedAt)
	if isNoRows(err) {
		return cp, nil
	}
	if err != nil {
		return cp, fmt.Errorf("postgres: get checkpoint: %w", err)
	}
	if minTS != nil {
		cp.MinTS = minTS.UTC()
	}
	cp.UpdatedAt = cp.UpdatedAt.UTC()
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
	var ts *time.Time
	if err := s.pool.QueryRow(ctx, query).Scan(&ts); err != nil {
		return time.Time{}, fmt.Errorf("postgres: max time: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return ts.UTC(), nil
}

func filterQuery(base, timeCol string, f store.Filter) (string, []any) {
	var w whereBuilder
	w.rangeOn(timeCol, f.Range)
	if f.Ticker != "" {
		w.add("ticker = $%d", f.Ticker)
	}
	q := base + w.String()
	if f.Newest {
		q += " ORDER BY " + timeCol + " DESC, id DESC"
	} else {
		q += " ORDER BY " + timeCol + " ASC, id ASC"
	}
	if f.Limit > 0 {
		q += " LIMIT " + strconv.Itoa(f.Limit)
	}
	return q, w.args
}

// ListFills returns fills matching f.
func (s *Store) ListFills(ctx context.Context, f store.Filter) ([]model.Fill, error) {
	q, args := filterQuery(`SELECT id, trade_id, order_id, ticker, side, action,
		count, yes_price, no_price, is_taker, created_at FROM fills`, "created_at", f)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills: %w", err)
	}
	defer rows.Close()

	fills := []model.Fill{}
	for rows.Next() {
		var (
			fl           model.Fill
			side, action string
		)
		if err := rows.Scan(&fl.ID, &fl.TradeID, &fl.OrderID, &fl.Ticker, &side, &action,
			&fl.Count, &fl.YesPrice, &fl.NoPrice, &fl.IsTaker, &fl.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		fl.Side = model.Side(side)
		fl.Action = model.Action(action)
		fl.CreatedAt = fl.CreatedAt.UTC()
		fills = append(fills, fl)
	}
	return fills, rows.Err()
}

// ListSettlements returns settlements matching f.
func (s *Store) ListSettlements(ctx context.Context, f store.Filter) ([]model.Settlement, error) {
	q, args := filterQuery(`SELECT id, ticker, market_result, yes_count, no_count,
		yes_total_cost, no_total_cost, revenue, fee_cost, settled_at FROM settlements`, "settled_at", f)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settlements: %w", err)
	}
	defer rows.Close()

	settlements := []model.Settlement{}
	for rows.Next() {
		var (
			st     model.Settlement
			result string
		)
		if err := rows.Scan(&st.ID, &st.Ticker, &result, &st.YesCount, &st.NoCount,
			&st.YesTotalCost, &st.NoTotalCost, &st.Revenue, &st.FeeCost, &st.SettledAt); err != nil {
			return nil, fmt.Errorf("postgres: scan settlement: %w", err)
		}
		st.MarketResult = model.MarketResult(result)
		st.SettledAt = st.SettledAt.UTC()
		settlements = append(settlements, st)
	}
	return settlements, rows.Err()
}
