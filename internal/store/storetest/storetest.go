// Package storetest holds the behavioral suite every store.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// Factory returns a fresh, empty store. It should register cleanup with t.
type Factory func(t *testing.T) store.Store

var base = time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("EmptyStore", func(t *testing.T) { testEmptyStore(t, newStore(t)) })
	t.Run("FillPages", func(t *testing.T) { testFillPages(t, newStore(t)) })
	t.Run("SettlementPages", func(t *testing.T) { testSettlementPages(t, newStore(t)) })
	t.Run("Filters", func(t *testing.T) { testFilters(t, newStore(t)) })
	t.Run("Snapshots", func(t *testing.T) { testSnapshots(t, newStore(t)) })
	t.Run("Transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
}

func testEmptyStore(t *testing.T, s store.Store) {
	ctx := context.Background()

	if _, err := s.LatestSnapshot(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("LatestSnapshot() error = %v, want ErrNotFound", err)
	}
	ts, err := s.LatestFillTime(ctx)
	if err != nil || !ts.IsZero() {
		t.Errorf("LatestFillTime() = %v, %v, want zero, nil", ts, err)
	}
	cp, err := s.Checkpoint(ctx, model.StreamFills)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if cp.Cursor != "" || cp.Stream != model.StreamFills {
		t.Errorf("Checkpoint() = %+v, want empty fills checkpoint", cp)
	}
	fills, err := s.ListFills(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("ListFills failed: %v", err)
	}
	if fills == nil || len(fills) != 0 {
		t.Errorf("ListFills() = %v, want empty non-nil slice", fills)
	}
	totals, err := s.TransactionTotals(ctx)
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if totals != (store.Totals{}) {
		t.Errorf("TransactionTotals() = %+v, want zero", totals)
	}
}

func fill(id string, at time.Time) model.Fill {
	return model.Fill{
		ID: id, TradeID: id, OrderID: "o-" + id, Ticker: "KXTEST", Side: model.SideYes,
		Action: model.ActionBuy, Count: 10, YesPrice: 40, NoPrice: 60, IsTaker: true, CreatedAt: at,
	}
}

func testFillPages(t *testing.T, s store.Store) {
	ctx := context.Background()

	page := []model.Fill{fill("f1", base), fill("f2", base.Add(time.Minute))}
	cp := model.SyncCheckpoint{Stream: model.StreamFills, Cursor: "c1", MinTS: base.Add(-time.Hour)}

	n, err := s.SaveFillPage(ctx, page, cp)
	if err != nil {
		t.Fatalf("SaveFillPage failed: %v", err)
	}
	if n != 2 {
		t.Errorf("inserted = %d, want 2", n)
	}

	// Replaying the page, plus one new fill, only inserts the new fill.
	page = append(page, fill("f3", base.Add(2*time.Minute)))
	n, err = s.SaveFillPage(ctx, page, model.SyncCheckpoint{Stream: model.StreamFills})
	if err != nil {
		t.Fatalf("SaveFillPage failed: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted on replay = %d, want 1", n)
	}

	got, err := s.Checkpoint(ctx, model.StreamFills)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if got.Cursor != "" {
		t.Errorf("Cursor = %q, want cleared", got.Cursor)
	}

	fills, err := s.ListFills(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("ListFills failed: %v", err)
	}
	if len(fills) != 3 {
		t.Fatalf("len(fills) = %d, want 3", len(fills))
	}
	f := fills[0]
	if f.ID != "f1" || f.Side != model.SideYes || f.Action != model.ActionBuy || !f.IsTaker ||
		f.Count != 10 || f.YesPrice != 40 || f.NoPrice != 60 || !f.CreatedAt.Equal(base) {
		t.Errorf("fills[0] = %+v, round trip mismatch", f)
	}

	latest, err := s.LatestFillTime(ctx)
	if err != nil {
		t.Fatalf("LatestFillTime failed: %v", err)
	}
	if !latest.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("LatestFillTime() = %v, want %v", latest, base.Add(2*time.Minute))
	}
}

func testSettlementPages(t *testing.T, s store.Store) {
	ctx := context.Background()

	st := model.Settlement{
		ID: "s1", Ticker: "KXTEST", MarketResult: model.ResultYes, YesCount: 10,
		YesTotalCost: 400, Revenue: 1000, FeeCost: 7, SettledAt: base,
	}
	cp := model.SyncCheckpoint{Stream: model.StreamSettlements, Cursor: "next", MinTS: base.Add(-24 * time.Hour)}
	n, err := s.SaveSettlementPage(ctx, []model.Settlement{st}, cp)
	if err != nil {
		t.Fatalf("SaveSettlementPage failed: %v", err)
	}
	if n != 1 {
		t.Errorf("inserted = %d, want 1", n)
	}

	got, err := s.Checkpoint(ctx, model.StreamSettlements)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if got.Cursor != "next" || !got.MinTS.Equal(cp.MinTS) {
		t.Errorf("Checkpoint() = %+v, want cursor %q min_ts %v", got, "next", cp.MinTS)
	}

	// The fills checkpoint is independent.
	other, err := s.Checkpoint(ctx, model.StreamFills)
	if err != nil {
		t.Fatalf("Checkpoint failed: %v", err)
	}
	if other.Cursor != "" {
		t.Errorf("fills Cursor = %q, want empty", other.Cursor)
	}

	list, err := s.ListSettlements(ctx, store.Filter{})
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("len(settlements) = %d, want 1", len(list))
	}
	got0 := list[0]
	if !got0.SettledAt.Equal(st.SettledAt) {
		t.Errorf("SettledAt = %v, want %v", got0.SettledAt, st.SettledAt)
	}
	got0.SettledAt = st.SettledAt
	if got0 != st {
		t.Errorf("ListSettlements()[0] = %+v, want %+v", got0, st)
	}
}

func testFilters(t *testing.T, s store.Store) {
	ctx := context.Background()

	var page []model.Fill
	for i := 0; i < 5; i++ {
		f := fill(string(rune('a'+i)), base.Add(time.Duration(i)*time.Hour))
		if i%2 == 1 {
			f.Ticker = "KXOTHER"
		}
		page = append(page, f)
	}
	if _, err := s.SaveFillPage(ctx, page, model.SyncCheckpoint{Stream: model.StreamFills}); err != nil {
		t.Fatalf("SaveFillPage failed: %v", err)
	}

	tests := []struct {
		name   string
		filter store.Filter
		want   []string
	}{
		{"all", store.Filter{}, []string{"a", "b", "c", "d", "e"}},
		{"inclusive range", store.Filter{Range: store.Range{Start: base.Add(time.Hour), End: base.Add(3 * time.Hour)}}, []string{"b", "c", "d"}},
		{"open start", store.Filter{Range: store.Range{End: base.Add(time.Hour)}}, []string{"a", "b"}},
		{"ticker", store.Filter{Ticker: "KXOTHER"}, []string{"b", "d"}},
		{"newest with limit", store.Filter{Newest: true, Limit: 2}, []string{"e", "d"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fills, err := s.ListFills(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListFills failed: %v", err)
			}
			var ids []string
			for _, f := range fills {
				ids = append(ids, f.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("ids = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("ids = %v, want %v", ids, tt.want)
					break
				}
			}
		})
	}
}

func testSnapshots(t *testing.T, s store.Store) {
	ctx := context.Background()
	bucket := base.Truncate(time.Minute)

	first := model.PortfolioSnapshot{TakenAt: base, Bucket: bucket, Balance: 10000, PortfolioValue: 2500, OpenPositions: 3}
	ok, err := s.InsertSnapshot(ctx, first)
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if !ok {
		t.Error("first InsertSnapshot = false, want true")
	}

	dup := first
	dup.TakenAt = base.Add(500 * time.Millisecond)
	dup.Balance = 1
	ok, err = s.InsertSnapshot(ctx, dup)
	if err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}
	if ok {
		t.Error("InsertSnapshot in taken bucket = true, want false")
	}

	exists, err := s.SnapshotInBucket(ctx, bucket)
	if err != nil || !exists {
		t.Errorf("SnapshotInBucket() = %v, %v, want true, nil", exists, err)
	}
	exists, err = s.SnapshotInBucket(ctx, bucket.Add(time.Minute))
	if err != nil || exists {
		t.Errorf("SnapshotInBucket(next) = %v, %v, want false, nil", exists, err)
	}

	second := model.PortfolioSnapshot{TakenAt: base.Add(time.Minute), Bucket: bucket.Add(time.Minute), Balance: 9000, PortfolioValue: 4000}
	if _, err := s.InsertSnapshot(ctx, second); err != nil {
		t.Fatalf("InsertSnapshot failed: %v", err)
	}

	latest, err := s.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if latest.Balance != 9000 || latest.TotalValue() != 13000 {
		t.Errorf("LatestSnapshot() = %+v, want second snapshot", latest)
	}

	all, err := s.ListSnapshots(ctx, store.Range{})
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(snapshots) = %d, want 2", len(all))
	}
	if all[0].Balance != 10000 || all[0].OpenPositions != 3 || !all[0].Bucket.Equal(bucket) {
		t.Errorf("snapshots[0] = %+v, want first snapshot unchanged", all[0])
	}

	recent, err := s.ListSnapshots(ctx, store.Range{Start: base.Add(30 * time.Second)})
	if err != nil {
		t.Fatalf("ListSnapshots failed: %v", err)
	}
	if len(recent) != 1 {
		t.Errorf("len(recent) = %d, want 1", len(recent))
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()

	inputs := []model.Transaction{
		{Type: model.TransactionDeposit, Amount: 10000, Note: "initial", CreatedAt: base},
		{Type: model.TransactionDeposit, Amount: 5000, CreatedAt: base.Add(time.Hour)},
		{Type: model.TransactionWithdrawal, Amount: 2000, CreatedAt: base.Add(2 * time.Hour)},
	}
	var created []model.Transaction
	for _, in := range inputs {
		tx, err := s.CreateTransaction(ctx, in)
		if err != nil {
			t.Fatalf("CreateTransaction failed: %v", err)
		}
		if tx.ID == 0 {
			t.Error("CreateTransaction did not assign an id")
		}
		created = append(created, tx)
	}

	if _, err := s.CreateTransaction(ctx, model.Transaction{Type: model.TransactionDeposit, Amount: 0}); err == nil {
		t.Error("expected error for zero amount")
	}

	totals, err := s.TransactionTotals(ctx)
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if totals.Deposits != 15000 || totals.Withdrawals != 2000 || totals.Net() != 13000 {
		t.Errorf("TransactionTotals() = %+v, want 15000/2000/13000", totals)
	}

	list, err := s.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("ListTransactions failed: %v", err)
	}
	if len(list) != 3 || list[0].Type != model.TransactionWithdrawal || list[2].Note != "initial" {
		t.Errorf("ListTransactions() = %+v, want newest first", list)
	}

	if err := s.DeleteTransaction(ctx, created[2].ID); err != nil {
		t.Fatalf("DeleteTransaction failed: %v", err)
	}
	if err := s.DeleteTransaction(ctx, created[2].ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second DeleteTransaction error = %v, want ErrNotFound", err)
	}

	totals, err = s.TransactionTotals(ctx)
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if totals.Net() != 15000 {
		t.Errorf("Net() after delete = %d, want 15000", totals.Net())
	}
}
