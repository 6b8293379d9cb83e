package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/model"
)

// writeTimeout bounds a snapshot insert once the fetch has succeeded.
const writeTimeout = 10 * time.Second

// PortfolioSource provides the live account state. *api.Client satisfies it.
type PortfolioSource interface {
	GetBalance(ctx context.Context) (*api.BalanceResponse, error)
	GetAllPositions(ctx context.Context) ([]model.Position, error)
}

// SnapshotStore persists snapshots.
type SnapshotStore interface {
	SnapshotInBucket(ctx context.Context, bucket time.Time) (bool, error)
	InsertSnapshot(ctx context.Context, s model.PortfolioSnapshot) (bool, error)
}

// SnapshotTask records one portfolio snapshot per interval bucket.
type SnapshotTask struct {
	source   PortfolioSource
	store    SnapshotStore
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewSnapshotTask creates a SnapshotTask. interval sets the bucket width.
func NewSnapshotTask(source PortfolioSource, st SnapshotStore, interval time.Duration, logger *slog.Logger) *SnapshotTask {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	return &SnapshotTask{
		source:   source,
		store:    st,
		interval: interval,
		logger:   logger,
		now:      time.Now,
	}
}

// Name identifies the task.
func (t *SnapshotTask) Name() string { return "snapshot" }

// Run takes a snapshot and discards it.
func (t *SnapshotTask) Run(ctx context.Context) error {
	_, _, err := t.Take(ctx)
	return err
}

// Take fetches balance and positions and stores a snapshot unless the
// current bucket already has one. It reports whether a row was written.
func (t *SnapshotTask) Take(ctx context.Context) (model.PortfolioSnapshot, bool, error) {
	takenAt := t.now().UTC()
	snap := model.PortfolioSnapshot{
		TakenAt: takenAt,
		Bucket:  takenAt.Truncate(t.interval),
	}

	exists, err := t.store.SnapshotInBucket(ctx, snap.Bucket)
	if err != nil {
		return snap, false, fmt.Errorf("check snapshot bucket: %w", err)
	}
	if exists {
		t.logger.Debug("snapshot bucket already filled", "bucket", snap.Bucket)
		return snap, false, nil
	}

	var (
		balance   *api.BalanceResponse
		positions []model.Position
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balance, err = t.source.GetBalance(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		positions, err = t.source.GetAllPositions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return snap, false, fmt.Errorf("fetch portfolio: %w", err)
	}

	snap.Balance = balance.Balance
	snap.PortfolioValue = PortfolioValue(balance, positions)
	for _, p := range positions {
		if p.Open() {
			snap.OpenPositions++
		}
	}

	// The fetch succeeded; finish the write even if a shutdown has begun.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	inserted, err := t.store.InsertSnapshot(wctx, snap)
	if err != nil {
		return snap, false, fmt.Errorf("insert snapshot: %w", err)
	}

	t.logger.Info("portfolio snapshot",
		"bucket", snap.Bucket,
		"balance", snap.Balance,
		"portfolio_value", snap.PortfolioValue,
		"open_positions", snap.OpenPositions,
		"inserted", inserted,
	)
	return snap, inserted, nil
}

// PortfolioValue is the venue-reported portfolio value when present,
// otherwise the summed absolute market exposure of the positions.
func PortfolioValue(balance *api.BalanceResponse, positions []model.Position) int64 {
	if balance != nil && balance.PortfolioValue != nil {
		return *balance.PortfolioValue
	}
	var total int64
	for _, p := range positions {
		exp := p.MarketExposure
		if exp < 0 {
			exp = -exp
		}
		total += exp
	}
	return total
}
