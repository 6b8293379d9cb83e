package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-tracker/internal/model"
)

// DollarsToCents converts a dollar string to integer cents, rounding half
// away from zero. "0.34" -> 34, "1.005" -> 101. Empty input is 0.
func DollarsToCents(dollars string) (int64, error) {
	dollars = strings.TrimSpace(dollars)
	if dollars == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(dollars)
	if err != nil {
		return 0, fmt.Errorf("parse dollars %q: %w", dollars, err)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

// ParseTimestamp parses an RFC 3339 timestamp to UTC.
func ParseTimestamp(iso string) (time.Time, error) {
	if iso == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, iso)
	if err != nil {
		// Try without timezone
		t, err = time.Parse("2006-01-02T15:04:05", iso)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", iso, err)
		}
	}
	return t.UTC(), nil
}

// ToModel converts an API fill to the model type.
func (f APIFill) ToModel() (model.Fill, error) {
	id := f.FillID
	if id == "" {
		id = f.TradeID
	}
	if id == "" {
		return model.Fill{}, errors.New("fill has neither fill_id nor trade_id")
	}
	created, err := ParseTimestamp(f.CreatedTime)
	if err != nil {
		return model.Fill{}, fmt.Errorf("fill %s: %w", id, err)
	}
	return model.Fill{
		ID:        id,
		TradeID:   f.TradeID,
		OrderID:   f.OrderID,
		Ticker:    f.Ticker,
		Side:      model.Side(strings.ToLower(f.Side)),
		Action:    model.Action(strings.ToLower(f.Action)),
		Count:     f.Count,
		YesPrice:  f.YesPrice,
		NoPrice:   f.NoPrice,
		IsTaker:   f.IsTaker,
		CreatedAt: created,
	}, nil
}

// RecordID identifies the settlement for logs and integrity reports: the venue
// id, else the id derived from ticker and settlement time, else the ticker.
func (s APISettlement) RecordID() string {
	if s.SettlementID != "" {
		return s.SettlementID
	}
	if settled, err := ParseTimestamp(s.SettledTime); err == nil {
		return model.SettlementID(s.Ticker, settled)
	}
	return s.Ticker
}

// ToModel converts an API settlement to the model type. Settlements without
// an id get one derived from ticker and settlement time.
func (s APISettlement) ToModel() (model.Settlement, error) {
	settled, err := ParseTimestamp(s.SettledTime)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("settlement %s: %w", s.Ticker, err)
	}
	fee, err := DollarsToCents(s.FeeCost)
	if err != nil {
		return model.Settlement{}, fmt.Errorf("settlement %s: %w", s.Ticker, err)
	}
	id := s.SettlementID
	if id == "" {
		id = model.SettlementID(s.Ticker, settled)
	}
	return model.Settlement{
		ID:           id,
		Ticker:       s.Ticker,
		MarketResult: model.MarketResult(strings.ToLower(s.MarketResult)),
		YesCount:     s.YesCount,
		NoCount:      s.NoCount,
		YesTotalCost: s.YesTotalCost,
		NoTotalCost:  s.NoTotalCost,
		Revenue:      s.Revenue,
		FeeCost:      fee,
		SettledAt:    settled,
	}, nil
}

// ToModel converts an API position to the model type.
func (p APIPosition) ToModel() model.Position {
	return model.Position{
		Ticker:         p.Ticker,
		Position:       p.Position,
		MarketExposure: p.MarketExposure,
		RealizedPnL:    p.RealizedPnl,
		FeesPaid:       p.FeesPaid,
		TotalTraded:    p.TotalTraded,
		RestingOrders:  p.RestingOrdersCount,
	}
}
