package model

import (
	"testing"
	"time"
)

func TestFillNotional(t *testing.T) {
	tests := []struct {
		name         string
		fill         Fill
		wantNotional int64
		wantCashFlow int64
	}{
		{
			name:         "yes buy",
			fill:         Fill{Side: SideYes, Action: ActionBuy, Count: 10, YesPrice: 42, NoPrice: 58},
			wantNotional: 420,
			wantCashFlow: -420,
		},
		{
			name:         "no buy",
			fill:         Fill{Side: SideNo, Action: ActionBuy, Count: 3, YesPrice: 42, NoPrice: 58},
			wantNotional: 174,
			wantCashFlow: -174,
		},
		{
			name:         "yes sell",
			fill:         Fill{Side: SideYes, Action: ActionSell, Count: 5, YesPrice: 90, NoPrice: 10},
			wantNotional: 450,
			wantCashFlow: 450,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.fill.Notional(); got != tt.wantNotional {
				t.Errorf("Notional() = %d, want %d", got, tt.wantNotional)
			}
			if got := tt.fill.CashFlow(); got != tt.wantCashFlow {
				t.Errorf("CashFlow() = %d, want %d", got, tt.wantCashFlow)
			}
		})
	}
}

func TestSettlementConsistent(t *testing.T) {
	tests := []struct {
		name string
		s    Settlement
		want bool
	}{
		{"yes holder wins", Settlement{MarketResult: ResultYes, YesCount: 10, Revenue: 1000}, true},
		{"no holder wins", Settlement{MarketResult: ResultNo, NoCount: 4, Revenue: 400}, true},
		{"yes holder loses", Settlement{MarketResult: ResultNo, YesCount: 10, Revenue: 0}, true},
		{"revenue without winning side", Settlement{MarketResult: ResultNo, YesCount: 10, Revenue: 500}, false},
		{"winning side without revenue", Settlement{MarketResult: ResultYes, YesCount: 2, Revenue: 0}, false},
		{"void is never checked", Settlement{MarketResult: ResultVoid, YesCount: 2, Revenue: 120}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Consistent(); got != tt.want {
				t.Errorf("Consistent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSettlementID(t *testing.T) {
	at := time.Date(2024, 11, 6, 3, 0, 0, 0, time.UTC)

	a := SettlementID("PRES-2024-DEM", at)
	b := SettlementID("pres-2024-dem", at.In(time.FixedZone("EST", -5*3600)))
	if a != b {
		t.Errorf("SettlementID not stable: %q != %q", a, b)
	}

	c := SettlementID("PRES-2024-DEM", at.Add(time.Second))
	if a == c {
		t.Error("SettlementID should differ for different settlement times")
	}
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      Transaction
		wantErr bool
	}{
		{"deposit", Transaction{Type: TransactionDeposit, Amount: 100}, false},
		{"withdrawal", Transaction{Type: TransactionWithdrawal, Amount: 1}, false},
		{"zero amount", Transaction{Type: TransactionDeposit, Amount: 0}, true},
		{"negative amount", Transaction{Type: TransactionDeposit, Amount: -5}, true},
		{"unknown type", Transaction{Type: "transfer", Amount: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransactionSigned(t *testing.T) {
	if got := (Transaction{Type: TransactionWithdrawal, Amount: 2000}).Signed(); got != -2000 {
		t.Errorf("Signed() = %d, want -2000", got)
	}
	if got := (Transaction{Type: TransactionDeposit, Amount: 2000}).Signed(); got != 2000 {
		t.Errorf("Signed() = %d, want 2000", got)
	}
}
