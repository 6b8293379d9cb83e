package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Side is the contract side of a fill.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Action is the direction of a fill.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// MarketResult is the outcome a market settled to.
type MarketResult string

const (
	ResultYes  MarketResult = "yes"
	ResultNo   MarketResult = "no"
	ResultVoid MarketResult = "void"
)

// Fill is one executed trade against the user's orders.
type Fill struct {
	ID        string // fill_id, falls back to trade_id
	TradeID   string
	OrderID   string
	Ticker    string
	Side      Side
	Action    Action
	Count     int64
	YesPrice  int64 // cents
	NoPrice   int64 // cents
	IsTaker   bool
	CreatedAt time.Time
}

// Price returns the price paid per contract on the fill's side.
func (f Fill) Price() int64 {
	if f.Side == SideNo {
		return f.NoPrice
	}
	return f.YesPrice
}

// Notional returns count * price in cents.
func (f Fill) Notional() int64 {
	return f.Count * f.Price()
}

// CashFlow is the signed cash effect of the fill: negative for buys.
func (f Fill) CashFlow() int64 {
	if f.Action == ActionBuy {
		return -f.Notional()
	}
	return f.Notional()
}

// Settlement is the resolution of a market in which the user held contracts.
type Settlement struct {
	ID           string
	Ticker       string
	MarketResult MarketResult
	YesCount     int64
	NoCount      int64
	YesTotalCost int64 // cents
	NoTotalCost  int64 // cents
	Revenue      int64 // signed cents
	FeeCost      int64 // cents
	SettledAt    time.Time
}

// Won reports whether the settlement produced a profit.
func (s Settlement) Won() bool {
	return s.Revenue > 0
}

// Consistent reports whether the recorded revenue agrees with the market
// result and the side the user held. Void markets are always consistent.
func (s Settlement) Consistent() bool {
	var heldWinner bool
	switch s.MarketResult {
	case ResultYes:
		heldWinner = s.YesCount > 0
	case ResultNo:
		heldWinner = s.NoCount > 0
	default:
		return true
	}
	return s.Won() == heldWinner
}

var settlementNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("kalshi-tracker/settlements"))

// SettlementID derives a stable identifier for settlements the venue
// returns without one, so re-ingesting the same record is a no-op.
func SettlementID(ticker string, settledAt time.Time) string {
	name := strings.ToUpper(ticker) + "|" + settledAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(settlementNamespace, []byte(name)).String()
}

// Position is a live holding in one market.
type Position struct {
	Ticker         string
	Position       int64 // positive = yes contracts, negative = no contracts
	MarketExposure int64 // cents
	RealizedPnL    int64 // cents
	FeesPaid       int64 // cents
	TotalTraded    int64 // cents
	RestingOrders  int64
}

// Open reports whether the position still holds contracts.
func (p Position) Open() bool {
	return p.Position != 0
}
