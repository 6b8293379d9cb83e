package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/api"
	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
	"github.com/rickgao/kalshi-tracker/internal/store/sqlite"
)

// fakeSource serves pages[i] for cursor "p<i>" ("" is page 0) and records
// every request.
type fakeSource struct {
	mu          sync.Mutex
	fills       [][]api.APIFill
	settlements [][]api.APISettlement
	fail        map[string]error // cursor -> error, consumed on first use
	requests    []request
}

type request struct {
	stream string
	cursor string
	minTS  time.Time
}

func (f *fakeSource) FillPages(opts api.ListOptions) api.PageFetcher[api.APIFill] {
	return servePages(f, "fills", f.fills, opts)
}

func (f *fakeSource) SettlementPages(opts api.ListOptions) api.PageFetcher[api.APISettlement] {
	return servePages(f, "settlements", f.settlements, opts)
}

func servePages[T any](f *fakeSource, stream string, pages [][]T, opts api.ListOptions) api.PageFetcher[T] {
	return func(ctx context.Context, cursor string) ([]T, string, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.requests = append(f.requests, request{stream: stream, cursor: cursor, minTS: opts.MinTS})

		key := stream + ":" + cursor
		if err, ok := f.fail[key]; ok {
			delete(f.fail, key)
			return nil, "", err
		}

		idx := 0
		if cursor != "" {
			if _, err := fmt.Sscanf(cursor, "p%d", &idx); err != nil || idx >= len(pages) {
				return nil, "", &api.APIError{StatusCode: http.StatusBadRequest, Message: "invalid cursor"}
			}
		}
		if len(pages) == 0 {
			return nil, "", nil
		}
		next := ""
		if idx+1 < len(pages) {
			next = fmt.Sprintf("p%d", idx+1)
		}
		return pages[idx], next, nil
	}
}

func (f *fakeSource) requestsFor(stream string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if r.stream == stream {
			out = append(out, r)
		}
	}
	return out
}

type countingObserver struct {
	mu        sync.Mutex
	syncs     map[string]int
	integrity map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{syncs: map[string]int{}, integrity: map[string]int{}}
}

func (o *countingObserver) ObserveSync(stream string, inserted int, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncs[stream]++
}

func (o *countingObserver) ObserveIntegrityIssue(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.integrity[kind]++
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fill(id string, at time.Time) api.APIFill {
	return api.APIFill{
		FillID:      id,
		TradeID:     "t-" + id,
		OrderID:     "o-" + id,
		Ticker:      "KXBTC-25",
		Side:        "yes",
		Action:      "buy",
		Count:       10,
		YesPrice:    40,
		NoPrice:     60,
		CreatedTime: at.UTC().Format(time.RFC3339),
	}
}

func settlement(ticker, result string, yes, revenue int64, at time.Time) api.APISettlement {
	return api.APISettlement{
		Ticker:       ticker,
		MarketResult: result,
		YesCount:     yes,
		YesTotalCost: yes * 40,
		Revenue:      revenue,
		FeeCost:      "0.10",
		SettledTime:  at.UTC().Format(time.RFC3339),
	}
}

var base = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

func TestSyncFullSweep(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	src := &fakeSource{
		fills: [][]api.APIFill{
			{fill("f1", base), fill("f2", base.Add(time.Minute))},
			{}, // empty page mid-sweep
			{fill("f3", base.Add(2 * time.Minute))},
		},
		settlements: [][]api.APISettlement{
			{settlement("KXA", "yes", 10, 1000, base)},
			{settlement("KXB", "no", 5, 0, base.Add(time.Hour))},
		},
	}

	s := NewSyncer(src, st)
	report, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if report.Fills.Pages != 3 {
		t.Errorf("Fills.Pages = %d, want 3", report.Fills.Pages)
	}
	if report.Fills.Inserted != 3 {
		t.Errorf("Fills.Inserted = %d, want 3", report.Fills.Inserted)
	}
	if report.Settlements.Inserted != 2 {
		t.Errorf("Settlements.Inserted = %d, want 2", report.Settlements.Inserted)
	}

	fills, err := st.ListFills(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("ListFills: %v", err)
	}
	if len(fills) != 3 {
		t.Errorf("stored fills = %d, want 3", len(fills))
	}

	for _, stream := range []model.Stream{model.StreamFills, model.StreamSettlements} {
		cp, err := st.Checkpoint(ctx, stream)
		if err != nil {
			t.Fatalf("Checkpoint(%s): %v", stream, err)
		}
		if cp.Cursor != "" {
			t.Errorf("Checkpoint(%s).Cursor = %q, want empty after complete sweep", stream, cp.Cursor)
		}
	}
}

func TestSyncIncrementalUsesLatestTime(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	src := &fakeSource{
		fills: [][]api.APIFill{{fill("f1", base), fill("f2", base.Add(time.Minute))}},
	}

	s := NewSyncer(src, st)
	if _, err := s.Sync(ctx); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}
	report, err := s.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	if report.Fills.Inserted != 0 {
		t.Errorf("second sweep Inserted = %d, want 0", report.Fills.Inserted)
	}

	reqs := src.requestsFor("fills")
	if len(reqs) != 2 {
		t.Fatalf("fill requests = %d, want 2", len(reqs))
	}
	if !reqs[0].minTS.IsZero() {
		t.Errorf("first sweep min_ts = %v, want zero", reqs[0].minTS)
	}
	if want := base.Add(time.Minute); !reqs[1].minTS.Equal(want) {
		t.Errorf("second sweep min_ts = %v, want %v", reqs[1].minTS, want)
	}
}

func TestSyncResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	src := &fakeSource{
		fills: [][]api.APIFill{
			{fill("f1", base)},
			{fill("f2", base.Add(time.Minute))},
			{fill("f3", base.Add(2 * time.Minute))},
		},
		fail: map[string]error{"fills:p2": &api.TransientNetworkError{Attempts: 5, Err: errors.New("503")}},
	}

	s := NewSyncer(src, st)
	report, err := s.Sync(ctx)
	if err == nil {
		t.Fatal("Sync expected error from failing page, got nil")
	}
	var netErr *api.TransientNetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("Sync error = %v, want TransientNetworkError", err)
	}
	if report.Fills.Inserted != 2 {
		t.Errorf("interrupted sweep Inserted = %d, want 2", report.Fills.Inserted)
	}

	cp, err := st.Checkpoint(ctx, model.StreamFills)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.Cursor != "p2" {
		t.Fatalf("Checkpoint.Cursor = %q, want %q", cp.Cursor, "p2")
	}

	report, err = s.Sync(ctx)
	if err != nil {
		t.Fatalf("resumed Sync failed: %v", err)
	}
	if !report.Fills.Resumed {
		t.Error("Fills.Resumed = false, want true")
	}
	if report.Fills.Inserted != 1 {
		t.Errorf("resumed sweep Inserted = %d, want 1", report.Fills.Inserted)
	}

	reqs := src.requestsFor("fills")
	if last := reqs[len(reqs)-1]; last.cursor != "p2" {
		t.Errorf("resumed request cursor = %q, want %q", last.cursor, "p2")
	}

	fills, err := st.ListFills(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("ListFills: %v", err)
	}
	if len(fills) != 3 {
		t.Errorf("stored fills = %d, want 3", len(fills))
	}
}

func TestSyncRejectedCursorRestarts(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	// A stored fill newer than the interrupted sweep's window, plus a
	// checkpoint pointing at a cursor the source does not know.
	newer, err := fill("f0", base.Add(48*time.Hour)).ToModel()
	if err != nil {
		t.Fatalf("seed fill: %v", err)
	}
	if _, err := st.SaveFillPage(ctx, []model.Fill{newer}, model.SyncCheckpoint{
		Stream: model.StreamFills, Cursor: "p9", MinTS: base, UpdatedAt: base,
	}); err != nil {
		t.Fatalf("seed checkpoint: %v", err)
	}

	src := &fakeSource{fills: [][]api.APIFill{{fill("f1", base)}}}
	report, err := NewSyncer(src, st).Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if report.Fills.Resumed {
		t.Error("Fills.Resumed = true, want false after restart")
	}
	if report.Fills.Inserted != 1 {
		t.Errorf("Fills.Inserted = %d, want 1", report.Fills.Inserted)
	}

	cp, err := st.Checkpoint(ctx, model.StreamFills)
	if err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}
	if cp.Cursor != "" {
		t.Errorf("Checkpoint.Cursor = %q, want empty", cp.Cursor)
	}

	reqs := src.requestsFor("fills")
	if len(reqs) != 2 {
		t.Fatalf("fill requests = %d, want 2 (rejected cursor, restart)", len(reqs))
	}
	restart := reqs[1]
	if restart.cursor != "" {
		t.Errorf("restart cursor = %q, want empty", restart.cursor)
	}
	if !restart.minTS.Equal(base) {
		t.Errorf("restart minTS = %v, want checkpoint MinTS %v", restart.minTS, base)
	}
}

func TestSyncSettlementIntegrityUsesRecordID(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)

	withID := settlement("KXA", "yes", 10, 1000, base)
	withID.SettlementID = "venue-7"
	withID.FeeCost = "ten cents"
	derived := settlement("KXB", "no", 0, 0, base)
	derived.FeeCost = "ten cents"

	src := &fakeSource{settlements: [][]api.APISettlement{{withID, derived}}}
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	report, err := NewSyncer(src, st, WithLogger(logger)).Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if report.Settlements.Skipped != 2 {
		t.Errorf("Settlements.Skipped = %d, want 2", report.Settlements.Skipped)
	}

	out := buf.String()
	for _, want := range []string{`"id":"venue-7"`, `"id":"` + model.SettlementID("KXB", base) + `"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s:\n%s", want, out)
		}
	}
}

func TestSyncIntegrityIssues(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	noID := fill("", base)
	noID.TradeID = ""

	src := &fakeSource{
		fills: [][]api.APIFill{{fill("f1", base), noID}},
		settlements: [][]api.APISettlement{{
			settlement("KXA", "yes", 10, 0, base), // held the winner but no revenue
			settlement("KXB", "no", 10, -400, base),
		}},
	}
	obs := newCountingObserver()

	report, err := NewSyncer(src, st, WithObserver(obs)).Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	if report.Fills.Skipped != 1 {
		t.Errorf("Fills.Skipped = %d, want 1", report.Fills.Skipped)
	}
	if report.Settlements.Inserted != 2 {
		t.Errorf("Settlements.Inserted = %d, want 2 (inconsistent records are kept)", report.Settlements.Inserted)
	}
	if obs.integrity["fill"] != 1 {
		t.Errorf("fill integrity issues = %d, want 1", obs.integrity["fill"])
	}
	if obs.integrity["settlement"] != 1 {
		t.Errorf("settlement integrity issues = %d, want 1", obs.integrity["settlement"])
	}
	if obs.syncs["fills"] != 1 || obs.syncs["settlements"] != 1 {
		t.Errorf("ObserveSync calls = %v, want one per stream", obs.syncs)
	}
}

func TestSyncStreamFailureDoesNotBlockOther(t *testing.T) {
	ctx := context.Background()
	st := newStore(t)
	src := &fakeSource{
		fills:       [][]api.APIFill{{fill("f1", base)}},
		settlements: [][]api.APISettlement{{settlement("KXA", "yes", 10, 600, base)}},
		fail:        map[string]error{"fills:": &api.AuthenticationError{StatusCode: 401, Message: "bad signature"}},
	}

	report, err := NewSyncer(src, st).Sync(ctx)
	var authErr *api.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("Sync error = %v, want AuthenticationError", err)
	}
	if report.Settlements.Inserted != 1 {
		t.Errorf("Settlements.Inserted = %d, want 1", report.Settlements.Inserted)
	}
}

func TestSyncCanceledWhileWaiting(t *testing.T) {
	st := newStore(t)
	s := NewSyncer(&fakeSource{}, st)

	if !s.sem.TryAcquire(1) { // another sweep holds the slot
		t.Fatal("semaphore unexpectedly held")
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := s.Sync(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Sync error = %v, want context.DeadlineExceeded", err)
	}
}
