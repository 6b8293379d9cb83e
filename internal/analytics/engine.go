package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// DateLayout formats exchange-local calendar days.
const DateLayout = "2006-01-02"

// Reader is the read side of the store the engine depends on.
type Reader interface {
	ListFills(ctx context.Context, f store.Filter) ([]model.Fill, error)
	ListSettlements(ctx context.Context, f store.Filter) ([]model.Settlement, error)
	LatestSnapshot(ctx context.Context) (model.PortfolioSnapshot, error)
	ListSnapshots(ctx context.Context, r store.Range) ([]model.PortfolioSnapshot, error)
	TransactionTotals(ctx context.Context) (store.Totals, error)
}

// Engine computes analytics on demand. It holds no state beyond its
// dependencies and is safe for concurrent use.
type Engine struct {
	store Reader
	loc   *time.Location
	now   func() time.Time
}

// NewEngine creates an Engine that groups days in loc (UTC when nil).
func NewEngine(r Reader, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: r, loc: loc, now: time.Now}
}

// Location is the time zone used for day boundaries.
func (e *Engine) Location() *time.Location { return e.loc }

// Summary is the current account state plus period activity.
type Summary struct {
	Period Period `json:"period"`

	HasSnapshot    bool       `json:"has_snapshot"`
	Balance        int64      `json:"balance"`
	PortfolioValue int64      `json:"portfolio_value"`
	TotalValue     int64      `json:"total_value"`
	OpenPositions  int        `json:"open_positions"`
	SnapshotAt     *time.Time `json:"snapshot_at,omitempty"`

	TradeCount  int   `json:"trade_count"`
	Volume      int64 `json:"volume"`
	RealizedPnL int64 `json:"realized_pnl"`
	Fees        int64 `json:"fees"`
	Settlements int   `json:"settlements"`
}

// Summary reports the latest snapshot, which is not period-filtered, and
// period-filtered trading activity.
func (e *Engine) Summary(ctx context.Context, p Period) (Summary, error) {
	s := Summary{Period: p}

	snap, err := e.store.LatestSnapshot(ctx)
	switch {
	case err == nil:
		s.HasSnapshot = true
		s.Balance = snap.Balance
		s.PortfolioValue = snap.PortfolioValue
		s.TotalValue = snap.TotalValue()
		s.OpenPositions = snap.OpenPositions
		at := snap.TakenAt
		s.SnapshotAt = &at
	case errors.Is(err, store.ErrNotFound):
	default:
		return s, fmt.Errorf("summary: %w", err)
	}

	fills, settlements, err := e.activity(ctx, p)
	if err != nil {
		return s, fmt.Errorf("summary: %w", err)
	}

	s.TradeCount = len(fills)
	for _, f := range fills {
		s.Volume += f.Notional()
	}
	s.Settlements = len(settlements)
	for _, st := range settlements {
		s.RealizedPnL += st.Revenue
		s.Fees += st.FeeCost
	}
	return s, nil
}

// DailyPnL is one exchange-local day with at least one settlement.
type DailyPnL struct {
	Date            string `json:"date"`
	RealizedPnL     int64  `json:"realized_pnl"`
	Wins            int    `json:"wins"`
	Losses          int    `json:"losses"`
	SettlementCount int    `json:"settlement_count"`
	TradeCount      int    `json:"trade_count"`
	Volume          int64  `json:"volume"`
}

// DailyPnL groups the period's settlements by settlement day. Fill counts
// and volume are attached to the same days. Days without settlements are
// omitted. Result is ascending by date and never nil.
func (e *Engine) DailyPnL(ctx context.Context, p Period) ([]DailyPnL, error) {
	fills, settlements, err := e.activity(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("daily pnl: %w", err)
	}

	days := make(map[string]*DailyPnL)
	for _, st := range settlements {
		key := e.day(st.SettledAt)
		d, ok := days[key]
		if !ok {
			d = &DailyPnL{Date: key}
			days[key] = d
		}
		d.RealizedPnL += st.Revenue
		d.SettlementCount++
		if st.Won() {
			d.Wins++
		} else {
			d.Losses++
		}
	}
	for _, f := range fills {
		if d, ok := days[e.day(f.CreatedAt)]; ok {
			d.TradeCount++
			d.Volume += f.Notional()
		}
	}

	out := make([]DailyPnL, 0, len(days))
	for _, d := range days {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

// CumulativePoint is a running total of realized P&L.
type CumulativePoint struct {
	Date          string `json:"date"`
	DailyPnL      int64  `json:"daily_pnl"`
	CumulativePnL int64  `json:"cumulative_pnl"`
	TradeCount    int    `json:"trade_count"`
}

// CumulativePnL is the prefix sum of DailyPnL.
func (e *Engine) CumulativePnL(ctx context.Context, p Period) ([]CumulativePoint, error) {
	daily, err := e.DailyPnL(ctx, p)
	if err != nil {
		return nil, err
	}
	return Cumulate(daily), nil
}

// Cumulate turns a daily series into running totals.
func Cumulate(daily []DailyPnL) []CumulativePoint {
	out := make([]CumulativePoint, 0, len(daily))
	var running int64
	for _, d := range daily {
		running += d.RealizedPnL
		out = append(out, CumulativePoint{
			Date:          d.Date,
			DailyPnL:      d.RealizedPnL,
			CumulativePnL: running,
			TradeCount:    d.TradeCount,
		})
	}
	return out
}

// WinRate summarizes settlement outcomes. A settlement with revenue <= 0
// counts as a loss. AvgLoss is the mean revenue of losses, so it is <= 0.
type WinRate struct {
	Period  Period  `json:"period"`
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Total   int     `json:"total"`
	WinRate Percent `json:"win_rate"`
	NetPnL  int64   `json:"net_pnl"`
	AvgWin  int64   `json:"avg_win"`
	AvgLoss int64   `json:"avg_loss"`
}

// WinRate computes win/loss statistics for the period.
func (e *Engine) WinRate(ctx context.Context, p Period) (WinRate, error) {
	settlements, err := e.store.ListSettlements(ctx, store.Filter{Range: p.Range(e.now())})
	if err != nil {
		return WinRate{Period: p}, fmt.Errorf("win rate: %w", err)
	}
	w := ComputeWinRate(settlements)
	w.Period = p
	return w, nil
}

// ComputeWinRate derives WinRate from settlements. Averages are integer
// cents truncated toward zero.
func ComputeWinRate(settlements []model.Settlement) WinRate {
	var (
		w               WinRate
		winSum, lossSum int64
	)
	for _, st := range settlements {
		w.NetPnL += st.Revenue
		if st.Won() {
			w.Wins++
			winSum += st.Revenue
		} else {
			w.Losses++
			lossSum += st.Revenue
		}
	}
	w.Total = w.Wins + w.Losses
	w.WinRate = PercentOf(int64(w.Wins), int64(w.Total))
	if w.Wins > 0 {
		w.AvgWin = winSum / int64(w.Wins)
	}
	if w.Losses > 0 {
		w.AvgLoss = lossSum / int64(w.Losses)
	}
	return w
}

// MarketStat is one ticker's performance.
type MarketStat struct {
	Ticker      string  `json:"ticker"`
	PnL         int64   `json:"pnl"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Settlements int     `json:"settlements"`
	WinRate     Percent `json:"win_rate"`
	Fills       int     `json:"fills"`
	Volume      int64   `json:"volume"`
}

// MarketBreakdown groups the period's settlements and fills by ticker,
// sorted by absolute P&L descending, ties by ticker. The full set is
// returned; callers truncate.
func (e *Engine) MarketBreakdown(ctx context.Context, p Period) ([]MarketStat, error) {
	fills, settlements, err := e.activity(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("market breakdown: %w", err)
	}
	return ComputeMarketBreakdown(fills, settlements), nil
}

// ComputeMarketBreakdown is MarketBreakdown over in-memory records.
func ComputeMarketBreakdown(fills []model.Fill, settlements []model.Settlement) []MarketStat {
	byTicker := make(map[string]*MarketStat)
	get := func(ticker string) *MarketStat {
		m, ok := byTicker[ticker]
		if !ok {
			m = &MarketStat{Ticker: ticker}
			byTicker[ticker] = m
		}
		return m
	}

	for _, st := range settlements {
		m := get(st.Ticker)
		m.PnL += st.Revenue
		m.Settlements++
		if st.Won() {
			m.Wins++
		} else {
			m.Losses++
		}
	}
	for _, f := range fills {
		m := get(f.Ticker)
		m.Fills++
		m.Volume += f.Notional()
	}

	out := make([]MarketStat, 0, len(byTicker))
	for _, m := range byTicker {
		m.WinRate = PercentOf(int64(m.Wins), int64(m.Settlements))
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := abs(out[i].PnL), abs(out[j].PnL)
		if ai != aj {
			return ai > aj
		}
		return out[i].Ticker < out[j].Ticker
	})
	return out
}

// ROI is the return on net deposited capital. Defined is false when
// nothing has been deposited on net or no snapshot exists; Percent is
// then zero and must not be read as 0%.
type ROI struct {
	Defined      bool    `json:"defined"`
	Percent      Percent `json:"roi"`
	NetDeposited int64   `json:"net_deposited"`
	Deposits     int64   `json:"total_deposits"`
	Withdrawals  int64   `json:"total_withdrawals"`
	CurrentValue int64   `json:"current_value"`
	HasSnapshot  bool    `json:"has_snapshot"`
}

// ROI compares the latest total value against lifetime net deposits.
func (e *Engine) ROI(ctx context.Context) (ROI, error) {
	var r ROI

	totals, err := e.store.TransactionTotals(ctx)
	if err != nil {
		return r, fmt.Errorf("roi: %w", err)
	}
	r.Deposits = totals.Deposits
	r.Withdrawals = totals.Withdrawals
	r.NetDeposited = totals.Net()

	snap, err := e.store.LatestSnapshot(ctx)
	switch {
	case err == nil:
		r.HasSnapshot = true
		r.CurrentValue = snap.TotalValue()
	case errors.Is(err, store.ErrNotFound):
	default:
		return r, fmt.Errorf("roi: %w", err)
	}

	return ComputeROI(r), nil
}

// ComputeROI fills Defined and Percent from the other fields of r.
func ComputeROI(r ROI) ROI {
	r.Defined = r.HasSnapshot && r.NetDeposited > 0
	r.Percent = Percent{}
	if r.Defined {
		r.Percent = PercentOf(r.CurrentValue-r.NetDeposited, r.NetDeposited)
	}
	return r
}

// PortfolioHistory returns the period's snapshots, oldest first.
func (e *Engine) PortfolioHistory(ctx context.Context, p Period) ([]model.PortfolioSnapshot, error) {
	snaps, err := e.store.ListSnapshots(ctx, p.Range(e.now()))
	if err != nil {
		return nil, fmt.Errorf("portfolio history: %w", err)
	}
	return snaps, nil
}

// TransactionSummary is the lifetime capital flow.
type TransactionSummary struct {
	TotalDeposits    int64 `json:"total_deposits"`
	TotalWithdrawals int64 `json:"total_withdrawals"`
	NetDeposited     int64 `json:"net_deposited"`
}

// TransactionSummary totals deposits and withdrawals.
func (e *Engine) TransactionSummary(ctx context.Context) (TransactionSummary, error) {
	t, err := e.store.TransactionTotals(ctx)
	if err != nil {
		return TransactionSummary{}, fmt.Errorf("transaction summary: %w", err)
	}
	return TransactionSummary{
		TotalDeposits:    t.Deposits,
		TotalWithdrawals: t.Withdrawals,
		NetDeposited:     t.Net(),
	}, nil
}

func (e *Engine) activity(ctx context.Context, p Period) ([]model.Fill, []model.Settlement, error) {
	f := store.Filter{Range: p.Range(e.now())}
	fills, err := e.store.ListFills(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	settlements, err := e.store.ListSettlements(ctx, f)
	if err != nil {
		return nil, nil, err
	}
	return fills, settlements, nil
}

func (e *Engine) day(t time.Time) string {
	return t.In(e.loc).Format(DateLayout)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
