package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/analytics"
	"github.com/rickgao/kalshi-tracker/internal/ingest"
	"github.com/rickgao/kalshi-tracker/internal/model"
	"github.com/rickgao/kalshi-tracker/internal/store"
)

// Default periods per endpoint.
const (
	defaultSummaryPeriod = analytics.PeriodAll
	defaultHistoryPeriod = analytics.PeriodWeek
	defaultDailyPeriod   = analytics.PeriodMonth
	defaultTradesPeriod  = analytics.PeriodAll
	defaultStatsPeriod   = analytics.PeriodAll
)

// Limits for list endpoints.
const (
	defaultListLimit   = 100
	maxListLimit       = 1000
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"database":  "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	}
	if err := s.deps.Store.Ping(r.Context()); err != nil {
		s.logger.WarnContext(r.Context(), "health: store ping failed", "err", err)
		resp["status"] = "degraded"
		resp["database"] = "unreachable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- portfolio ---

// GET /api/portfolio/summary?period=all
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultSummaryPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sum, err := s.deps.Engine.Summary(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type snapshotJSON struct {
	TakenAt        time.Time `json:"timestamp"`
	Balance        int64     `json:"balance"`
	PortfolioValue int64     `json:"portfolio_value"`
	TotalValue     int64     `json:"total_value"`
	OpenPositions  int       `json:"open_positions"`
}

// GET /api/portfolio/history?period=7d
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultHistoryPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snaps, err := s.deps.Engine.PortfolioHistory(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	history := make([]snapshotJSON, 0, len(snaps))
	for _, sn := range snaps {
		history = append(history, snapshotJSON{
			TakenAt:        sn.TakenAt,
			Balance:        sn.Balance,
			PortfolioValue: sn.PortfolioValue,
			TotalValue:     sn.TotalValue(),
			OpenPositions:  sn.OpenPositions,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history, "period": p})
}

// GET /api/portfolio/balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	if s.deps.Live == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, codeUnavailable, "live venue access is not configured")
		return
	}
	bal, err := s.deps.Live.GetBalance(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var pv int64
	if bal.PortfolioValue != nil {
		pv = *bal.PortfolioValue
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"balance":         bal.Balance,
		"portfolio_value": pv,
		"total_value":     bal.Balance + pv,
	})
}

type positionJSON struct {
	Ticker         string `json:"ticker"`
	Position       int64  `json:"position"`
	MarketExposure int64  `json:"market_exposure"`
	RealizedPnL    int64  `json:"realized_pnl"`
	FeesPaid       int64  `json:"fees_paid"`
	TotalTraded    int64  `json:"total_traded"`
	RestingOrders  int64  `json:"resting_orders_count"`
}

// GET /api/portfolio/positions
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	if s.deps.Live == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, codeUnavailable, "live venue access is not configured")
		return
	}
	positions, err := s.deps.Live.GetAllPositions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]positionJSON, 0, len(positions))
	for _, p := range positions {
		out = append(out, positionJSON{
			Ticker:         p.Ticker,
			Position:       p.Position,
			MarketExposure: p.MarketExposure,
			RealizedPnL:    p.RealizedPnL,
			FeesPaid:       p.FeesPaid,
			TotalTraded:    p.TotalTraded,
			RestingOrders:  p.RestingOrders,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": out, "count": len(out)})
}

// GET /api/markets/{ticker}
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if s.deps.Live == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, codeUnavailable, "live venue access is not configured")
		return
	}
	m, err := s.deps.Live.GetMarket(r.Context(), strings.ToUpper(r.PathValue("ticker")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market": m})
}

// --- trades ---

type fillJSON struct {
	ID        string    `json:"id"`
	TradeID   string    `json:"trade_id,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Ticker    string    `json:"ticker"`
	Side      string    `json:"side"`
	Action    string    `json:"action"`
	Count     int64     `json:"count"`
	YesPrice  int64     `json:"yes_price"`
	NoPrice   int64     `json:"no_price"`
	Price     int64     `json:"price"`
	CashFlow  int64     `json:"cost"`
	IsTaker   bool      `json:"is_taker"`
	CreatedAt time.Time `json:"created_at"`
}

func toFillJSON(f model.Fill) fillJSON {
	return fillJSON{
		ID:        f.ID,
		TradeID:   f.TradeID,
		OrderID:   f.OrderID,
		Ticker:    f.Ticker,
		Side:      string(f.Side),
		Action:    string(f.Action),
		Count:     f.Count,
		YesPrice:  f.YesPrice,
		NoPrice:   f.NoPrice,
		Price:     f.Price(),
		CashFlow:  f.CashFlow(),
		IsTaker:   f.IsTaker,
		CreatedAt: f.CreatedAt,
	}
}

// GET /api/trades/fills?period=all&limit=100
func (s *Server) handleFills(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultTradesPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := limitParam(r, defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fills, err := s.deps.Store.ListFills(r.Context(), store.Filter{
		Range:  p.Range(s.now()),
		Ticker: r.URL.Query().Get("ticker"),
		Limit:  limit,
		Newest: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]fillJSON, 0, len(fills))
	for _, f := range fills {
		out = append(out, toFillJSON(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"fills": out, "period": p})
}

// GET /api/trades/recent?limit=20
func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultRecentLimit, maxRecentLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fills, err := s.deps.Store.ListFills(r.Context(), store.Filter{Limit: limit, Newest: true})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]fillJSON, 0, len(fills))
	for _, f := range fills {
		out = append(out, toFillJSON(f))
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": out})
}

type settlementJSON struct {
	ID           string    `json:"id"`
	Ticker       string    `json:"ticker"`
	MarketResult string    `json:"market_result"`
	YesCount     int64     `json:"yes_count"`
	NoCount      int64     `json:"no_count"`
	YesTotalCost int64     `json:"yes_total_cost"`
	NoTotalCost  int64     `json:"no_total_cost"`
	Revenue      int64     `json:"revenue"`
	FeeCost      int64     `json:"fee_cost"`
	IsWin        bool      `json:"is_win"`
	SettledAt    time.Time `json:"settled_at"`
}

// GET /api/trades/settlements?period=all&limit=100
func (s *Server) handleSettlements(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultTradesPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := limitParam(r, defaultListLimit, maxListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	settlements, err := s.deps.Store.ListSettlements(r.Context(), store.Filter{
		Range:  p.Range(s.now()),
		Ticker: r.URL.Query().Get("ticker"),
		Limit:  limit,
		Newest: true,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]settlementJSON, 0, len(settlements))
	for _, st := range settlements {
		out = append(out, settlementJSON{
			ID:           st.ID,
			Ticker:       st.Ticker,
			MarketResult: string(st.MarketResult),
			YesCount:     st.YesCount,
			NoCount:      st.NoCount,
			YesTotalCost: st.YesTotalCost,
			NoTotalCost:  st.NoTotalCost,
			Revenue:      st.Revenue,
			FeeCost:      st.FeeCost,
			IsWin:        st.Won(),
			SettledAt:    st.SettledAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"settlements": out, "period": p})
}

// --- analytics ---

// GET /api/analytics/daily-pnl?period=30d
func (s *Server) handleDailyPnL(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultDailyPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	daily, err := s.deps.Engine.DailyPnL(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"daily_pnl": daily, "period": p})
}

// GET /api/analytics/cumulative-pnl?period=30d
func (s *Server) handleCumulativePnL(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultDailyPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	cum, err := s.deps.Engine.CumulativePnL(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cumulative_pnl": cum, "period": p})
}

// GET /api/analytics/win-rate?period=all
func (s *Server) handleWinRate(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultStatsPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	wr, err := s.deps.Engine.WinRate(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wr)
}

// GET /api/analytics/market-breakdown?period=all&limit=
func (s *Server) handleMarketBreakdown(w http.ResponseWriter, r *http.Request) {
	p, err := periodParam(r, defaultStatsPeriod)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	limit, err := limitParam(r, 0, maxListLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	markets, err := s.deps.Engine.MarketBreakdown(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total := len(markets)
	if limit > 0 && len(markets) > limit {
		markets = markets[:limit]
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": markets, "total": total, "period": p})
}

type roiJSON struct {
	ROI          *analytics.Percent `json:"roi"`
	Defined      bool               `json:"defined"`
	NetDeposited int64              `json:"net_deposited"`
	Deposits     int64              `json:"total_deposits"`
	Withdrawals  int64              `json:"total_withdrawals"`
	CurrentValue int64              `json:"current_value"`
	Profit       int64              `json:"profit"`
}

// GET /api/analytics/roi
// An undefined ROI is encoded as "roi": null, never 0.
func (s *Server) handleROI(w http.ResponseWriter, r *http.Request) {
	roi, err := s.deps.Engine.ROI(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := roiJSON{
		Defined:      roi.Defined,
		NetDeposited: roi.NetDeposited,
		Deposits:     roi.Deposits,
		Withdrawals:  roi.Withdrawals,
		CurrentValue: roi.CurrentValue,
	}
	if roi.Defined {
		pct := roi.Percent
		resp.ROI = &pct
		resp.Profit = roi.CurrentValue - roi.NetDeposited
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- transactions ---

type transactionJSON struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Amount    int64     `json:"amount"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

func toTransactionJSON(t model.Transaction) transactionJSON {
	return transactionJSON{
		ID:        t.ID,
		Type:      string(t.Type),
		Amount:    t.Amount,
		Note:      t.Note,
		CreatedAt: t.CreatedAt,
	}
}

// GET /api/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.deps.Store.ListTransactions(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]transactionJSON, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

// GET /api/transactions/summary
func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Engine.TransactionSummary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

type createTransactionRequest struct {
	Type      string `json:"type"`
	Amount    int64  `json:"amount"` // cents
	Note      string `json:"note"`
	CreatedAt string `json:"created_at"` // RFC 3339, defaults to now
}

const maxBodyBytes = 64 << 10

// POST /api/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid JSON body: "+err.Error()))
		return
	}

	typ, err := model.ParseTransactionType(strings.ToLower(strings.TrimSpace(req.Type)))
	if err != nil {
		s.writeError(w, r, badRequest(err.Error()))
		return
	}
	t := model.Transaction{
		Type:      typ,
		Amount:    req.Amount,
		Note:      strings.TrimSpace(req.Note),
		CreatedAt: s.now().UTC(),
	}
	if req.CreatedAt != "" {
		at, err := time.Parse(time.RFC3339, req.CreatedAt)
		if err != nil {
			s.writeError(w, r, badRequest("created_at must be RFC 3339"))
			return
		}
		t.CreatedAt = at.UTC()
	}
	if err := t.Validate(); err != nil {
		s.writeError(w, r, badRequest(err.Error()))
		return
	}

	created, err := s.deps.Store.CreateTransaction(r.Context(), t)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.InfoContext(r.Context(), "transaction recorded",
		"id", created.ID,
		"type", created.Type,
		"amount", created.Amount,
	)
	writeJSON(w, http.StatusCreated, toTransactionJSON(created))
}

// DELETE /api/transactions/{id}
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		s.writeError(w, r, badRequest("id must be a positive integer"))
		return
	}
	if err := s.deps.Store.DeleteTransaction(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "id": id})
}

// --- sync ---

type syncResultJSON struct {
	Pages    int    `json:"pages"`
	Fetched  int    `json:"fetched"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Resumed  bool   `json:"resumed"`
	Duration string `json:"duration"`
}

func toSyncResultJSON(r ingest.Result) syncResultJSON {
	return syncResultJSON{
		Pages:    r.Pages,
		Fetched:  r.Fetched,
		Inserted: r.Inserted,
		Skipped:  r.Skipped,
		Resumed:  r.Resumed,
		Duration: r.Duration.String(),
	}
}

// POST /api/sync
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.deps.Syncer == nil {
		writeErrorCode(w, http.StatusServiceUnavailable, codeUnavailable, "sync is not configured")
		return
	}
	report, err := s.deps.Syncer.Sync(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return // client went away
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fills":       toSyncResultJSON(report.Fills),
		"settlements": toSyncResultJSON(report.Settlements),
	})
}
