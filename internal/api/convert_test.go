package api

import (
	"testing"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
)

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0.34", 34, false},
		{"1.005", 101, false},
		{"12", 1200, false},
		{"-0.5", -50, false},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		got, err := DollarsToCents(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("DollarsToCents(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("DollarsToCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAPIFill_ToModel(t *testing.T) {
	t.Run("falls back to trade id", func(t *testing.T) {
		f, err := APIFill{TradeID: "t-1", Side: "NO", Action: "Buy", Count: 2, NoPrice: 40,
			CreatedTime: "2025-01-02T03:04:05.123Z"}.ToModel()
		if err != nil {
			t.Fatalf("ToModel failed: %v", err)
		}
		if f.ID != "t-1" {
			t.Errorf("ID = %q, want %q", f.ID, "t-1")
		}
		if f.Notional() != 80 {
			t.Errorf("Notional() = %d, want 80", f.Notional())
		}
		want := time.Date(2025, 1, 2, 3, 4, 5, 123000000, time.UTC)
		if !f.CreatedAt.Equal(want) {
			t.Errorf("CreatedAt = %v, want %v", f.CreatedAt, want)
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		if _, err := (APIFill{CreatedTime: "2025-01-02T03:04:05Z"}).ToModel(); err == nil {
			t.Error("expected error for fill without id")
		}
	})

	t.Run("bad timestamp", func(t *testing.T) {
		if _, err := (APIFill{FillID: "f", CreatedTime: "yesterday"}).ToModel(); err == nil {
			t.Error("expected error for bad timestamp")
		}
	})
}

func TestAPISettlement_ToModelStableID(t *testing.T) {
	raw := APISettlement{Ticker: "X", MarketResult: "no", NoCount: 1, Revenue: 100, SettledTime: "2025-02-01T15:00:00Z"}
	a, err := raw.ToModel()
	if err != nil {
		t.Fatalf("ToModel failed: %v", err)
	}
	b, _ := raw.ToModel()
	if a.ID != b.ID {
		t.Errorf("derived ids differ: %q != %q", a.ID, b.ID)
	}

	raw.SettlementID = "venue-id"
	c, _ := raw.ToModel()
	if c.ID != "venue-id" {
		t.Errorf("ID = %q, want venue id", c.ID)
	}
}

func TestAPISettlement_RecordID(t *testing.T) {
	settled := "2025-02-01T15:00:00Z"
	at, _ := time.Parse(time.RFC3339, settled)

	tests := []struct {
		name string
		raw  APISettlement
		want string
	}{
		{"venue id", APISettlement{SettlementID: "venue-id", Ticker: "X", SettledTime: settled}, "venue-id"},
		{"derived", APISettlement{Ticker: "X", SettledTime: settled}, model.SettlementID("X", at)},
		{"unparseable time", APISettlement{Ticker: "X", SettledTime: "soon"}, "X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.raw.RecordID(); got != tt.want {
				t.Errorf("RecordID() = %q, want %q", got, tt.want)
			}
		})
	}
}
