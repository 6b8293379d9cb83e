package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// memReader is an in-memory Reader.
type memReader struct {
	fills       []model.Fill
	settlements []model.Settlement
	snapshots   []model.PortfolioSnapshot
	totals      store.Totals
	err         error
}

func (m *memReader) ListFills(ctx context.Context, f store.Filter) ([]model.Fill, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Fill{}
	for _, fl := range m.fills {
		if f.Range.Contains(fl.CreatedAt) {
			out = append(out, fl)
		}
	}
	return out, nil
}

func (m *memReader) ListSettlements(ctx context.Context, f store.Filter) ([]model.Settlement, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Settlement{}
	for _, st := range m.settlements {
		if f.Range.Contains(st.SettledAt) {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memReader) LatestSnapshot(ctx context.Context) (model.PortfolioSnapshot, error) {
	if len(m.snapshots) == 0 {
		return model.PortfolioSnapshot{}, store.ErrNotFound
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *memReader) ListSnapshots(ctx context.Context, r store.Range) ([]model.PortfolioSnapshot, error) {
	out := []model.PortfolioSnapshot{}
	for _, s := range m.snapshots {
		if r.Contains(s.TakenAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memReader) TransactionTotals(ctx context.Context) (store.Totals, error) {
	return m.totals, m.err
}

var (
	newYork = mustLoad("America/New_York")
	now     = time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)
)

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

func newEngine(r Reader) *Engine {
	e := NewEngine(r, newYork)
	e.now = func() time.Time { return now }
	return e
}

func settle(ticker string, revenue int64, at time.Time) model.Settlement {
	return model.Settlement{
		ID:           model.SettlementID(ticker, at),
		Ticker:       ticker,
		MarketResult: model.ResultYes,
		YesCount:     10,
		Revenue:      revenue,
		FeeCost:      5,
		SettledAt:    at,
	}
}

func buy(id, ticker string, count, price int64, at time.Time) model.Fill {
	return model.Fill{
		ID: id, Ticker: ticker, Side: model.SideYes, Action: model.ActionBuy,
		Count: count, YesPrice: price, NoPrice: 100 - price, CreatedAt: at,
	}
}

func TestParsePeriod(t *testing.T) {
	for _, p := range Periods {
		got, err := ParsePeriod(string(p))
		if err != nil || got != p {
			t.Errorf("ParsePeriod(%q) = (%q, %v), want (%q, nil)", p, got, err, p)
		}
	}

	for _, bad := range []string{"", "2d", "ALL", "1w"} {
		if _, err := ParsePeriod(bad); !errors.Is(err, ErrInvalidPeriod) {
			t.Errorf("ParsePeriod(%q) error = %v, want ErrInvalidPeriod", bad, err)
		}
	}
}

func TestPeriodRange(t *testing.T) {
	tests := []struct {
		period    Period
		wantStart time.Time
	}{
		{PeriodHour, now.Add(-time.Hour)},
		{PeriodDay, now.Add(-24 * time.Hour)},
		{PeriodWeek, now.Add(-7 * 24 * time.Hour)},
		{PeriodMonth, now.Add(-30 * 24 * time.Hour)},
		{PeriodAll, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			r := tt.period.Range(now)
			if !r.Start.Equal(tt.wantStart) {
				t.Errorf("Start = %v, want %v", r.Start, tt.wantStart)
			}
			if !r.End.Equal(now) {
				t.Errorf("End = %v, want %v", r.End, now)
			}
		})
	}
}

func TestPercentOf(t *testing.T) {
	tests := []struct {
		num, den int64
		want     string
	}{
		{2, 3, "66.67"},
		{1, 3, "33.33"},
		{2000, 13000, "15.38"},
		{0, 0, "0.00"},
		{5, 0, "0.00"},
		{-1, 8, "-12.50"},
		{1, 200, "0.50"},
		{1, 400, "0.25"},
		{1, 800, "0.13"}, // 0.125 rounds half up
	}
	for _, tt := range tests {
		if got := PercentOf(tt.num, tt.den).String(); got != tt.want {
			t.Errorf("PercentOf(%d, %d) = %s, want %s", tt.num, tt.den, got, tt.want)
		}
	}
}

func TestPercentJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		P Percent `json:"p"`
	}{PercentOf(2, 3)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"p":66.67}` {
		t.Errorf("Marshal = %s, want %s", b, `{"p":66.67}`)
	}
}

func TestDailyPnLScenario(t *testing.T) {
	day := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC) // noon in New York
	r := &memReader{
		settlements: []model.Settlement{
			settle("KXA", 500, day),
			settle("KXB", -200, day.Add(time.Hour)),
			settle("KXC", 100, day.Add(2*time.Hour)),
		},
		fills: []model.Fill{
			buy("f1", "KXA", 10, 40, day.Add(-time.Hour)),
			buy("f2", "KXB", 5, 30, day.Add(-30*time.Minute)),
		},
	}
	e := newEngine(r)
	ctx := context.Background()

	daily, err := e.DailyPnL(ctx, PeriodWeek)
	if err != nil {
		t.Fatalf("DailyPnL: %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("days = %d, want 1", len(daily))
	}
	d := daily[0]
	if d.Date != "2025-03-14" {
		t.Errorf("Date = %q, want %q", d.Date, "2025-03-14")
	}
	if d.RealizedPnL != 400 {
		t.Errorf("RealizedPnL = %d, want 400", d.RealizedPnL)
	}
	if d.Wins != 2 || d.Losses != 1 {
		t.Errorf("Wins/Losses = %d/%d, want 2/1", d.Wins, d.Losses)
	}
	if d.TradeCount != 2 || d.Volume != 550 {
		t.Errorf("TradeCount/Volume = %d/%d, want 2/550", d.TradeCount, d.Volume)
	}

	wr, err := e.WinRate(ctx, PeriodWeek)
	if err != nil {
		t.Fatalf("WinRate: %v", err)
	}
	if wr.WinRate.String() != "66.67" {
		t.Errorf("WinRate = %s, want 66.67", wr.WinRate)
	}
	if wr.NetPnL != 400 {
		t.Errorf("NetPnL = %d, want 400", wr.NetPnL)
	}
	if wr.AvgWin != 300 {
		t.Errorf("AvgWin = %d, want 300", wr.AvgWin)
	}
	if wr.AvgLoss != -200 {
		t.Errorf("AvgLoss = %d, want -200", wr.AvgLoss)
	}
}

func TestDailyPnLGroupsByExchangeDay(t *testing.T) {
	// 03:30 UTC on the 15th is still the 14th in New York.
	lateEvening := time.Date(2025, 3, 15, 3, 30, 0, 0, time.UTC)
	nextMorning := time.Date(2025, 3, 15, 14, 0, 0, 0, time.UTC)
	r := &memReader{
		settlements: []model.Settlement{
			settle("KXA", 100, nextMorning),
			settle("KXB", 50, lateEvening),
		},
	}

	daily, err := newEngine(r).DailyPnL(context.Background(), PeriodAll)
	if err != nil {
		t.Fatalf("DailyPnL: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("days = %d, want 2", len(daily))
	}
	if daily[0].Date != "2025-03-14" || daily[0].RealizedPnL != 50 {
		t.Errorf("day 0 = %+v, want 2025-03-14 with 50", daily[0])
	}
	if daily[1].Date != "2025-03-15" || daily[1].RealizedPnL != 100 {
		t.Errorf("day 1 = %+v, want 2025-03-15 with 100", daily[1])
	}
}

func TestDailyPnLIsSparse(t *testing.T) {
	r := &memReader{
		settlements: []model.Settlement{
			settle("KXA", 100, time.Date(2025, 3, 10, 16, 0, 0, 0, time.UTC)),
			settle("KXB", -40, time.Date(2025, 3, 13, 16, 0, 0, 0, time.UTC)),
		},
		// A fill on a day without settlements does not create a day.
		fills: []model.Fill{buy("f1", "KXC", 1, 50, time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC))},
	}

	daily, err := newEngine(r).DailyPnL(context.Background(), PeriodAll)
	if err != nil {
		t.Fatalf("DailyPnL: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("days = %d, want 2", len(daily))
	}
	if daily[0].Date != "2025-03-10" || daily[1].Date != "2025-03-13" {
		t.Errorf("dates = %s, %s; want 2025-03-10, 2025-03-13", daily[0].Date, daily[1].Date)
	}
}

func TestCumulativeIsPrefixSum(t *testing.T) {
	daily := []DailyPnL{
		{Date: "2025-03-10", RealizedPnL: 100},
		{Date: "2025-03-11", RealizedPnL: -250},
		{Date: "2025-03-13", RealizedPnL: 75},
		{Date: "2025-03-14", RealizedPnL: 0},
	}
	cum := Cumulate(daily)
	if len(cum) != len(daily) {
		t.Fatalf("len = %d, want %d", len(cum), len(daily))
	}

	var sum int64
	for i, d := range daily {
		sum += d.RealizedPnL
		if cum[i].CumulativePnL != sum {
			t.Errorf("cum[%d] = %d, want %d", i, cum[i].CumulativePnL, sum)
		}
		if cum[i].DailyPnL != d.RealizedPnL || cum[i].Date != d.Date {
			t.Errorf("cum[%d] = %+v, want daily %d on %s", i, cum[i], d.RealizedPnL, d.Date)
		}
	}
}

func TestPeriodFiltering(t *testing.T) {
	r := &memReader{
		settlements: []model.Settlement{
			settle("OLD", 1000, now.Add(-40*24*time.Hour)),
			settle("WEEK", 200, now.Add(-3*24*time.Hour)),
			settle("HOUR", 30, now.Add(-10*time.Minute)),
		},
	}
	e := newEngine(r)

	tests := []struct {
		period Period
		want   int64
	}{
		{PeriodHour, 30},
		{PeriodDay, 30},
		{PeriodWeek, 230},
		{PeriodMonth, 230},
		{PeriodAll, 1230},
	}
	for _, tt := range tests {
		t.Run(string(tt.period), func(t *testing.T) {
			wr, err := e.WinRate(context.Background(), tt.period)
			if err != nil {
				t.Fatalf("WinRate: %v", err)
			}
			if wr.NetPnL != tt.want {
				t.Errorf("NetPnL = %d, want %d", wr.NetPnL, tt.want)
			}
		})
	}
}

func TestWinRateEmpty(t *testing.T) {
	w := ComputeWinRate(nil)
	if w.Total != 0 || w.AvgWin != 0 || w.AvgLoss != 0 {
		t.Errorf("ComputeWinRate(nil) = %+v, want zero", w)
	}
	if !w.WinRate.Equal(Percent{}) {
		t.Errorf("WinRate = %s, want 0", w.WinRate)
	}
}

func TestWinRateZeroRevenueIsLoss(t *testing.T) {
	at := now.Add(-time.Hour)
	w := ComputeWinRate([]model.Settlement{settle("A", 0, at), settle("B", 10, at)})
	if w.Wins != 1 || w.Losses != 1 {
		t.Errorf("Wins/Losses = %d/%d, want 1/1", w.Wins, w.Losses)
	}
	if w.WinRate.String() != "50.00" {
		t.Errorf("WinRate = %s, want 50.00", w.WinRate)
	}
}

func TestWinRateAveragesTruncate(t *testing.T) {
	at := now.Add(-time.Hour)
	w := ComputeWinRate([]model.Settlement{
		settle("A", 10, at), settle("B", 11, at), // avg 10.5
		settle("C", -7, at), settle("D", -8, at), // avg -7.5
	})
	if w.AvgWin != 10 {
		t.Errorf("AvgWin = %d, want 10", w.AvgWin)
	}
	if w.AvgLoss != -7 {
		t.Errorf("AvgLoss = %d, want -7", w.AvgLoss)
	}
}

func TestMarketBreakdown(t *testing.T) {
	at := now.Add(-time.Hour)
	r := &memReader{
		settlements: []model.Settlement{
			settle("KXA", 300, at),
			settle("KXA", -100, at.Add(time.Minute)),
			settle("KXB", -500, at),
			settle("KXC", 200, at),
			settle("KXD", -200, at),
		},
		fills: []model.Fill{
			buy("f1", "KXA", 10, 40, at),
			buy("f2", "KXE", 3, 50, at),
		},
	}

	got, err := newEngine(r).MarketBreakdown(context.Background(), PeriodAll)
	if err != nil {
		t.Fatalf("MarketBreakdown: %v", err)
	}

	wantOrder := []string{"KXB", "KXA", "KXC", "KXD", "KXE"}
	if len(got) != len(wantOrder) {
		t.Fatalf("len = %d, want %d", len(got), len(wantOrder))
	}
	for i, ticker := range wantOrder {
		if got[i].Ticker != ticker {
			t.Errorf("got[%d].Ticker = %q, want %q", i, got[i].Ticker, ticker)
		}
	}

	a := got[1]
	if a.PnL != 200 || a.Wins != 1 || a.Losses != 1 || a.Settlements != 2 {
		t.Errorf("KXA = %+v, want pnl 200, 1 win, 1 loss", a)
	}
	if a.WinRate.String() != "50.00" {
		t.Errorf("KXA WinRate = %s, want 50.00", a.WinRate)
	}
	if a.Fills != 1 || a.Volume != 400 {
		t.Errorf("KXA Fills/Volume = %d/%d, want 1/400", a.Fills, a.Volume)
	}
	if e := got[4]; e.Settlements != 0 || e.Fills != 1 || e.WinRate.String() != "0.00" {
		t.Errorf("KXE = %+v, want fills only", e)
	}
}

func TestROIScenario(t *testing.T) {
	r := &memReader{
		totals: store.Totals{Deposits: 15000, Withdrawals: 2000},
		snapshots: []model.PortfolioSnapshot{
			{TakenAt: now.Add(-time.Hour), Balance: 9000, PortfolioValue: 3000},
			{TakenAt: now, Balance: 10000, PortfolioValue: 5000},
		},
	}

	roi, err := newEngine(r).ROI(context.Background())
	if err != nil {
		t.Fatalf("ROI: %v", err)
	}
	if !roi.Defined {
		t.Fatal("Defined = false, want true")
	}
	if roi.NetDeposited != 13000 {
		t.Errorf("NetDeposited = %d, want 13000", roi.NetDeposited)
	}
	if roi.CurrentValue != 15000 {
		t.Errorf("CurrentValue = %d, want 15000", roi.CurrentValue)
	}
	if roi.Percent.String() != "15.38" {
		t.Errorf("Percent = %s, want 15.38", roi.Percent)
	}
}

func TestROIUndefined(t *testing.T) {
	snap := []model.PortfolioSnapshot{{TakenAt: now, Balance: 500}}
	tests := []struct {
		name string
		r    *memReader
	}{
		{"no deposits", &memReader{snapshots: snap}},
		{"withdrawn more than deposited", &memReader{snapshots: snap, totals: store.Totals{Deposits: 100, Withdrawals: 300}}},
		{"no snapshot", &memReader{totals: store.Totals{Deposits: 1000}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			roi, err := newEngine(tt.r).ROI(context.Background())
			if err != nil {
				t.Fatalf("ROI: %v", err)
			}
			if roi.Defined {
				t.Errorf("Defined = true, want false (roi %s)", roi.Percent)
			}
		})
	}
}

func TestSummary(t *testing.T) {
	at := now.Add(-2 * time.Hour)
	r := &memReader{
		snapshots: []model.PortfolioSnapshot{
			{TakenAt: now.Add(-60 * 24 * time.Hour), Balance: 10000, PortfolioValue: 2500, OpenPositions: 3},
		},
		settlements: []model.Settlement{settle("KXA", 700, at), settle("KXB", -300, at)},
		fills: []model.Fill{
			buy("f1", "KXA", 10, 40, at),
			buy("f2", "KXB", 2, 25, now.Add(-10*24*time.Hour)),
		},
	}

	s, err := newEngine(r).Summary(context.Background(), PeriodDay)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if !s.HasSnapshot || s.TotalValue != 12500 || s.OpenPositions != 3 {
		t.Errorf("snapshot fields = %+v, want total 12500 with 3 open", s)
	}
	if s.TradeCount != 1 || s.Volume != 400 {
		t.Errorf("TradeCount/Volume = %d/%d, want 1/400", s.TradeCount, s.Volume)
	}
	if s.RealizedPnL != 400 || s.Fees != 10 || s.Settlements != 2 {
		t.Errorf("RealizedPnL/Fees/Settlements = %d/%d/%d, want 400/10/2", s.RealizedPnL, s.Fees, s.Settlements)
	}
}

func TestEmptyStoreReturnsZeroValues(t *testing.T) {
	e := newEngine(&memReader{})
	ctx := context.Background()

	s, err := e.Summary(ctx, PeriodAll)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.HasSnapshot || s.SnapshotAt != nil || s.TotalValue != 0 {
		t.Errorf("Summary = %+v, want zero snapshot fields", s)
	}

	daily, err := e.DailyPnL(ctx, PeriodAll)
	if err != nil || daily == nil || len(daily) != 0 {
		t.Errorf("DailyPnL = (%v, %v), want empty non-nil", daily, err)
	}
	cum, err := e.CumulativePnL(ctx, PeriodAll)
	if err != nil || cum == nil || len(cum) != 0 {
		t.Errorf("CumulativePnL = (%v, %v), want empty non-nil", cum, err)
	}
	mb, err := e.MarketBreakdown(ctx, PeriodAll)
	if err != nil || mb == nil || len(mb) != 0 {
		t.Errorf("MarketBreakdown = (%v, %v), want empty non-nil", mb, err)
	}
	hist, err := e.PortfolioHistory(ctx, PeriodAll)
	if err != nil || hist == nil || len(hist) != 0 {
		t.Errorf("PortfolioHistory = (%v, %v), want empty non-nil", hist, err)
	}
}

func TestStoreErrorsPropagate(t *testing.T) {
	boom := errors.New("disk gone")
	e := newEngine(&memReader{err: boom})

	if _, err := e.DailyPnL(context.Background(), PeriodAll); !errors.Is(err, boom) {
		t.Errorf("DailyPnL error = %v, want wrapping %v", err, boom)
	}
	if _, err := e.TransactionSummary(context.Background()); !errors.Is(err, boom) {
		t.Errorf("TransactionSummary error = %v, want wrapping %v", err, boom)
	}
}
