package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/portfolio/balance" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/portfolio/balance")
		}
		w.Write([]byte(`{"balance": 12345, "portfolio_value": 6789}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	bal, err := c.GetBalance(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bal.Balance != 12345 {
		t.Errorf("Balance = %d, want 12345", bal.Balance)
	}
	if bal.PortfolioValue == nil || *bal.PortfolioValue != 6789 {
		t.Errorf("PortfolioValue = %v, want 6789", bal.PortfolioValue)
	}
}

func TestListOptionsQuery(t *testing.T) {
	opts := ListOptions{
		Cursor: "abc",
		Ticker: "KXBTC",
		MinTS:  time.Unix(1700000000, 0),
		MaxTS:  time.Unix(1700086400, 0),
	}
	q := opts.query()

	want := map[string]string{
		"limit":  strconv.Itoa(DefaultPageSize),
		"cursor": "abc",
		"ticker": "KXBTC",
		"min_ts": "1700000000",
		"max_ts": "1700086400",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}

	if q := (ListOptions{}).query(); q.Has("min_ts") || q.Has("cursor") {
		t.Errorf("empty options set filters: %v", q)
	}
}

// pagedFillServer serves pages[i] for cursor "p<i>" ("" is page 0).
func pagedFillServer(t *testing.T, pages [][]APIFill, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		idx := 0
		if c := r.URL.Query().Get("cursor"); c != "" {
			fmt.Sscanf(c, "p%d", &idx)
		}
		resp := FillsResponse{Fills: pages[idx]}
		if idx+1 < len(pages) {
			resp.Cursor = fmt.Sprintf("p%d", idx+1)
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func fills(ids ...string) []APIFill {
	out := make([]APIFill, 0, len(ids))
	for _, id := range ids {
		out = append(out, APIFill{FillID: id, Ticker: "T", Side: "yes", Action: "buy", Count: 1, CreatedTime: "2025-01-01T00:00:00Z"})
	}
	return out
}

func TestGetAllFills(t *testing.T) {
	tests := []struct {
		name         string
		pages        [][]APIFill
		wantIDs      int
		wantRequests int32
	}{
		{"single page", [][]APIFill{fills("a", "b")}, 2, 1},
		{"multiple pages", [][]APIFill{fills("a", "b"), fills("c"), fills("d")}, 4, 3},
		{"empty page mid-stream", [][]APIFill{fills("a"), {}, fills("b", "c")}, 3, 3},
		{"empty result", [][]APIFill{{}}, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			server := pagedFillServer(t, tt.pages, &requests)
			defer server.Close()

			c := NewClient(server.URL, nil)
			got, err := c.GetAllFills(context.Background(), ListOptions{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			seen := map[string]bool{}
			for _, f := range got {
				if seen[f.FillID] {
					t.Errorf("duplicate fill %q", f.FillID)
				}
				seen[f.FillID] = true
			}
			if len(got) != tt.wantIDs {
				t.Errorf("len(fills) = %d, want %d", len(got), tt.wantIDs)
			}
			if requests != tt.wantRequests {
				t.Errorf("requests = %d, want %d", requests, tt.wantRequests)
			}
		})
	}
}

func TestPaginate(t *testing.T) {
	t.Run("resumes from start cursor", func(t *testing.T) {
		var requests int32
		server := pagedFillServer(t, [][]APIFill{fills("a"), fills("b"), fills("c")}, &requests)
		defer server.Close()

		c := NewClient(server.URL, nil)
		var got []string
		var cursors []string
		err := Paginate(context.Background(), "p1", c.FillPages(ListOptions{}), func(items []APIFill, next string) error {
			for _, f := range items {
				got = append(got, f.FillID)
			}
			cursors = append(cursors, next)
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0] != "b" || got[1] != "c" {
			t.Errorf("items = %v, want [b c]", got)
		}
		if len(cursors) != 2 || cursors[0] != "p2" || cursors[1] != "" {
			t.Errorf("cursors = %q, want [p2 \"\"]", cursors)
		}
	})

	t.Run("visitor error stops the sweep", func(t *testing.T) {
		var requests int32
		server := pagedFillServer(t, [][]APIFill{fills("a"), fills("b")}, &requests)
		defer server.Close()

		stop := errors.New("stop")
		c := NewClient(server.URL, nil)
		err := Paginate(context.Background(), "", c.FillPages(ListOptions{}), func([]APIFill, string) error {
			return stop
		})
		if !errors.Is(err, stop) {
			t.Errorf("error = %v, want %v", err, stop)
		}
		if requests != 1 {
			t.Errorf("requests = %d, want 1", requests)
		}
	})

	t.Run("repeated cursor is an error", func(t *testing.T) {
		fetch := func(ctx context.Context, cursor string) ([]int, string, error) {
			return []int{1}, "same", nil
		}
		err := Paginate(context.Background(), "", fetch, func([]int, string) error { return nil })
		if !errors.Is(err, ErrCursorLoop) {
			t.Errorf("error = %v, want ErrCursorLoop", err)
		}
	})

	t.Run("respects existing context deadline", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(100 * time.Millisecond)
			json.NewEncoder(w).Encode(FillsResponse{})
		}))
		defer server.Close()

		c := NewClient(server.URL, nil, WithRetries(0, time.Millisecond))
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		if _, err := c.GetAllFills(ctx, ListOptions{}); err == nil {
			t.Fatal("expected timeout error")
		}
	})
}

func TestGetAllPositions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			json.NewEncoder(w).Encode(PositionsResponse{
				MarketPositions: []APIPosition{{Ticker: "A", Position: 5, MarketExposure: 250}},
				Cursor:          "next",
			})
			return
		}
		json.NewEncoder(w).Encode(PositionsResponse{
			MarketPositions: []APIPosition{{Ticker: "B", Position: -3, MarketExposure: 120}},
		})
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	positions, err := c.GetAllPositions(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("len(positions) = %d, want 2", len(positions))
	}
	if positions[1].Ticker != "B" || positions[1].Position != -3 {
		t.Errorf("positions[1] = %+v", positions[1])
	}
}

func TestGetSettlements(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("min_ts") != "1700000000" {
			t.Errorf("min_ts = %q, want %q", r.URL.Query().Get("min_ts"), "1700000000")
		}
		w.Write([]byte(`{"settlements": [{"ticker": "X", "market_result": "yes", "yes_count": 10,
			"revenue": 1000, "fee_cost": "0.34", "settled_time": "2025-02-01T15:00:00Z"}], "cursor": ""}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, nil)
	resp, err := c.GetSettlements(context.Background(), ListOptions{MinTS: time.Unix(1700000000, 0)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Settlements) != 1 {
		t.Fatalf("len(Settlements) = %d, want 1", len(resp.Settlements))
	}

	s, err := resp.Settlements[0].ToModel()
	if err != nil {
		t.Fatalf("ToModel failed: %v", err)
	}
	if s.FeeCost != 34 {
		t.Errorf("FeeCost = %d, want 34", s.FeeCost)
	}
	if s.ID == "" {
		t.Error("ID should be derived when absent")
	}
	if !s.Won() {
		t.Error("Won() = false, want true")
	}
}
