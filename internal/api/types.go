package api

import "time"

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// BalanceResponse from GET /portfolio/balance. Values are cents.
type BalanceResponse struct {
	Balance        int64  `json:"balance"`
	PortfolioValue *int64 `json:"portfolio_value,omitempty"`
	UpdatedTS      int64  `json:"updated_ts,omitempty"`
}

// PositionsResponse from GET /portfolio/positions
type PositionsResponse struct {
	MarketPositions []APIPosition `json:"market_positions"`
	Cursor          string        `json:"cursor"`
}

// APIPosition is a market position as returned by the API.
type APIPosition struct {
	Ticker             string `json:"ticker"`
	Position           int64  `json:"position"`
	MarketExposure     int64  `json:"market_exposure"`
	RealizedPnl        int64  `json:"realized_pnl"`
	FeesPaid           int64  `json:"fees_paid"`
	TotalTraded        int64  `json:"total_traded"`
	RestingOrdersCount int64  `json:"resting_orders_count"`
}

// FillsResponse from GET /portfolio/fills
type FillsResponse struct {
	Fills  []APIFill `json:"fills"`
	Cursor string    `json:"cursor"`
}

// APIFill is a fill as returned by the API.
type APIFill struct {
	FillID      string `json:"fill_id"`
	TradeID     string `json:"trade_id"`
	OrderID     string `json:"order_id"`
	Ticker      string `json:"ticker"`
	Side        string `json:"side"`
	Action      string `json:"action"`
	Count       int64  `json:"count"`
	YesPrice    int64  `json:"yes_price"`
	NoPrice     int64  `json:"no_price"`
	IsTaker     bool   `json:"is_taker"`
	CreatedTime string `json:"created_time"`
}

// SettlementsResponse from GET /portfolio/settlements
type SettlementsResponse struct {
	Settlements []APISettlement `json:"settlements"`
	Cursor      string          `json:"cursor"`
}

// APISettlement is a settlement as returned by the API.
type APISettlement struct {
	SettlementID string `json:"settlement_id,omitempty"`
	Ticker       string `json:"ticker"`
	MarketResult string `json:"market_result"`
	YesCount     int64  `json:"yes_count"`
	NoCount      int64  `json:"no_count"`
	YesTotalCost int64  `json:"yes_total_cost"`
	NoTotalCost  int64  `json:"no_total_cost"`
	Revenue      int64  `json:"revenue"`
	FeeCost      string `json:"fee_cost,omitempty"` // dollars, e.g. "0.34"
	SettledTime  string `json:"settled_time"`
}

// APIMarket holds the market fields the tracker displays.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Result      string `json:"result"`
	CloseTime   string `json:"close_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// ListOptions are the filters shared by the portfolio list endpoints.
type ListOptions struct {
	Limit  int
	Cursor string
	Ticker string
	MinTS  time.Time // inclusive lower bound, zero for none
	MaxTS  time.Time // upper bound, zero for none
}
