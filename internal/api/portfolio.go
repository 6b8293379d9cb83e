package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rickgao/kalshi-tracker/internal/model"
)

func (o ListOptions) query() url.Values {
	query := url.Values{}
	limit := o.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	query.Set("limit", strconv.Itoa(limit))
	if o.Cursor != "" {
		query.Set("cursor", o.Cursor)
	}
	if o.Ticker != "" {
		query.Set("ticker", o.Ticker)
	}
	if !o.MinTS.IsZero() {
		query.Set("min_ts", strconv.FormatInt(o.MinTS.Unix(), 10))
	}
	if !o.MaxTS.IsZero() {
		query.Set("max_ts", strconv.FormatInt(o.MaxTS.Unix(), 10))
	}
	return query
}

// GetBalance fetches the account's cash balance and portfolio value.
func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	var resp BalanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &resp, nil
}

// GetPositions fetches a page of market positions.
func (c *Client) GetPositions(ctx context.Context, opts ListOptions) (*PositionsResponse, error) {
	var resp PositionsResponse
	if err := c.get(ctx, "/portfolio/positions", opts.query(), &resp); err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}
	return &resp, nil
}

// GetAllPositions fetches every market position.
func (c *Client) GetAllPositions(ctx context.Context) ([]model.Position, error) {
	raw, err := collect(ctx, c.PositionPages(ListOptions{}))
	if err != nil {
		return nil, err
	}
	positions := make([]model.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, p.ToModel())
	}
	return positions, nil
}

// PositionPages returns a fetcher for Paginate over positions.
func (c *Client) PositionPages(opts ListOptions) PageFetcher[APIPosition] {
	return func(ctx context.Context, cursor string) ([]APIPosition, string, error) {
		opts.Cursor = cursor
		resp, err := c.GetPositions(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return resp.MarketPositions, resp.Cursor, nil
	}
}

// GetFills fetches a page of fills.
func (c *Client) GetFills(ctx context.Context, opts ListOptions) (*FillsResponse, error) {
	var resp FillsResponse
	if err := c.get(ctx, "/portfolio/fills", opts.query(), &resp); err != nil {
		return nil, fmt.Errorf("get fills: %w", err)
	}
	return &resp, nil
}

// FillPages returns a fetcher for Paginate over fills matching opts.
func (c *Client) FillPages(opts ListOptions) PageFetcher[APIFill] {
	return func(ctx context.Context, cursor string) ([]APIFill, string, error) {
		opts.Cursor = cursor
		resp, err := c.GetFills(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return resp.Fills, resp.Cursor, nil
	}
}

// GetAllFills fetches every fill matching opts.
func (c *Client) GetAllFills(ctx context.Context, opts ListOptions) ([]APIFill, error) {
	return collect(ctx, c.FillPages(opts))
}

// GetSettlements fetches a page of settlements.
func (c *Client) GetSettlements(ctx context.Context, opts ListOptions) (*SettlementsResponse, error) {
	var resp SettlementsResponse
	if err := c.get(ctx, "/portfolio/settlements", opts.query(), &resp); err != nil {
		return nil, fmt.Errorf("get settlements: %w", err)
	}
	return &resp, nil
}

// SettlementPages returns a fetcher for Paginate over settlements matching opts.
func (c *Client) SettlementPages(opts ListOptions) PageFetcher[APISettlement] {
	return func(ctx context.Context, cursor string) ([]APISettlement, string, error) {
		opts.Cursor = cursor
		resp, err := c.GetSettlements(ctx, opts)
		if err != nil {
			return nil, "", err
		}
		return resp.Settlements, resp.Cursor, nil
	}
}

// GetAllSettlements fetches every settlement matching opts.
func (c *Client) GetAllSettlements(ctx context.Context, opts ListOptions) ([]APISettlement, error) {
	return collect(ctx, c.SettlementPages(opts))
}
