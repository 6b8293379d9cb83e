package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// Source pages through the venue's activity endpoints. *api.Client
// satisfies it.
type Source interface {
	FillPages(opts api.ListOptions) api.PageFetcher[api.APIFill]
	SettlementPages(opts api.ListOptions) api.PageFetcher[api.APISettlement]
}

// Observer receives the outcome of each stream sweep.
type Observer interface {
	ObserveSync(stream string, inserted int, d time.Duration, err error)
	ObserveIntegrityIssue(kind string)
}

// Result summarizes one stream sweep.
type Result struct {
	Stream   model.Stream
	Pages    int
	Fetched  int
	Inserted int
	Skipped  int // records that could not be converted
	Resumed  bool
	Duration time.Duration
}

// Report is the outcome of a full sync.
type Report struct {
	Fills       Result
	Settlements Result
}

// Syncer runs ingestion sweeps. Only one sweep runs at a time; concurrent
// callers wait their turn.
type Syncer struct {
	source   Source
	store    store.Store
	logger   *slog.Logger
	observer Observer
	pageSize int
	now      func() time.Time

	sem *semaphore.Weighted // one sync at a time
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the sweep observer.
func WithObserver(o Observer) Option {
	return func(s *Syncer) {
		s.observer = o
	}
}

// WithPageSize sets the page size requested from the venue.
func WithPageSize(n int) Option {
	return func(s *Syncer) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewSyncer creates a Syncer.
func NewSyncer(source Source, st store.Store, opts ...Option) *Syncer {
	s := &Syncer{
		source:   source,
		store:    st,
		logger:   slog.Default(),
		pageSize: api.DefaultPageSize,
		now:      time.Now,
		sem:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name identifies the syncer as a scheduled task.
func (s *Syncer) Name() string { return "sync" }

// Run performs a sync and discards the report.
func (s *Syncer) Run(ctx context.Context) error {
	_, err := s.Sync(ctx)
	return err
}

// Sync sweeps fills then settlements. A failure in one stream does not
// prevent the other from running; both errors are returned joined.
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer s.sem.Release(1)

	var report Report
	var fillErr, settleErr error

	report.Fills, fillErr = s.syncStream(ctx, model.StreamFills, s.sweepFills)
	if fillErr != nil {
		fillErr = fmt.Errorf("sync fills: %w", fillErr)
	}
	if ctx.Err() != nil {
		return report, errors.Join(fillErr, ctx.Err())
	}

	report.Settlements, settleErr = s.syncStream(ctx, model.StreamSettlements, s.sweepSettlements)
	if settleErr != nil {
		settleErr = fmt.Errorf("sync settlements: %w", settleErr)
	}

	return report, errors.Join(fillErr, settleErr)
}

type sweepFunc func(ctx context.Context, start string, minTS time.Time, res *Result) error

// syncStream resolves where the sweep starts and runs it. A stored cursor
// the venue rejects is discarded once and the sweep restarts fresh.
func (s *Syncer) syncStream(ctx context.Context, stream model.Stream, sweep sweepFunc) (Result, error) {
	started := s.now()
	res := Result{Stream: stream}

	cp, err := s.store.Checkpoint(ctx, stream)
	if err != nil {
		return res, err
	}

	start, minTS := cp.Cursor, cp.MinTS
	if start != "" {
		res.Resumed = true
		s.logger.Info("resuming sweep", "stream", stream, "min_ts", minTS)
	} else if minTS, err = s.latest(ctx, stream); err != nil {
		return res, err
	}

	err = sweep(ctx, start, minTS, &res)
	if err != nil && res.Resumed && res.Pages == 0 && isRejectedCursor(err) {
		s.logger.Warn("stored cursor rejected, restarting sweep", "stream", stream, "err", err)
		if err := s.clearCursor(ctx, stream); err != nil {
			return res, err
		}
		res.Resumed = false
		err = sweep(ctx, "", minTS, &res)
	}

	res.Duration = s.now().Sub(started)
	if s.observer != nil {
		s.observer.ObserveSync(string(stream), res.Inserted, res.Duration, err)
	}
	if err != nil {
		return res, err
	}

	s.logger.Info("sweep complete",
		"stream", stream,
		"pages", res.Pages,
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
		"duration", res.Duration,
	)
	return res, nil
}

func (s *Syncer) latest(ctx context.Context, stream model.Stream) (time.Time, error) {
	if stream == model.StreamFills {
		return s.store.LatestFillTime(ctx)
	}
	return s.store.LatestSettlementTime(ctx)
}

func (s *Syncer) clearCursor(ctx context.Context, stream model.Stream) error {
	cp := model.SyncCheckpoint{Stream: stream, UpdatedAt: s.now()}
	var err error
	if stream == model.StreamFills {
		_, err = s.store.SaveFillPage(ctx, nil, cp)
	} else {
		_, err = s.store.SaveSettlementPage(ctx, nil, cp)
	}
	return err
}

func (s *Syncer) sweepFills(ctx context.Context, start string, minTS time.Time, res *Result) error {
	fetch := s.source.FillPages(api.ListOptions{Limit: s.pageSize, MinTS: minTS})

	return api.Paginate(ctx, start, fetch, func(page []api.APIFill, next string) error {
		fills := make([]model.Fill, 0, len(page))
		for _, raw := range page {
			f, err := raw.ToModel()
			if err != nil {
				s.reportIntegrity(&store.DataIntegrityError{Kind: "fill", ID: raw.TradeID, Reason: err.Error()})
				res.Skipped++
				continue
			}
			fills = append(fills, f)
		}

		n, err := s.store.SaveFillPage(ctx, fills, s.checkpoint(model.StreamFills, next, minTS))
		if err != nil {
			return err
		}
		res.Pages++
		res.Fetched += len(page)
		res.Inserted += n
		return nil
	})
}

func (s *Syncer) sweepSettlements(ctx context.Context, start string, minTS time.Time, res *Result) error {
	fetch := s.source.SettlementPages(api.ListOptions{Limit: s.pageSize, MinTS: minTS})

	return api.Paginate(ctx, start, fetch, func(page []api.APISettlement, next string) error {
		settlements := make([]model.Settlement, 0, len(page))
		for _, raw := range page {
			st, err := raw.ToModel()
			if err != nil {
				s.reportIntegrity(&store.DataIntegrityError{Kind: "settlement", ID: raw.RecordID(), Reason: err.Error()})
				res.Skipped++
				continue
			}
			if !st.Consistent() {
				// Stored anyway: revenue is the venue's number and P&L uses it.
				s.reportIntegrity(&store.DataIntegrityError{
					Kind:   "settlement",
					ID:     st.ID,
					Reason: fmt.Sprintf("revenue %d inconsistent with result %s (yes=%d no=%d)", st.Revenue, st.MarketResult, st.YesCount, st.NoCount),
				})
			}
			settlements = append(settlements, st)
		}

		n, err := s.store.SaveSettlementPage(ctx, settlements, s.checkpoint(model.StreamSettlements, next, minTS))
		if err != nil {
			return err
		}
		res.Pages++
		res.Fetched += len(page)
		res.Inserted += n
		return nil
	})
}

func (s *Syncer) checkpoint(stream model.Stream, next string, minTS time.Time) model.SyncCheckpoint {
	cp := model.SyncCheckpoint{Stream: stream, Cursor: next, UpdatedAt: s.now()}
	if next != "" {
		cp.MinTS = minTS
	}
	return cp
}

func (s *Syncer) reportIntegrity(e *store.DataIntegrityError) {
	s.logger.Warn("ingested record failed integrity check", "kind", e.Kind, "id", e.ID, "err", e)
	if s.observer != nil {
		s.observer.ObserveIntegrityIssue(e.Kind)
	}
}

// isRejectedCursor reports whether err is the venue refusing a cursor,
// which happens once a stored cursor has expired.
func isRejectedCursor(err error) bool {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusBadRequest
}
