package model

import (
	"errors"
	"fmt"
	"time"
)

// PortfolioSnapshot is a point-in-time valuation of the account.
type PortfolioSnapshot struct {
	ID             int64
	TakenAt        time.Time
	Bucket         time.Time // TakenAt truncated to the snapshot interval
	Balance        int64     // cents
	PortfolioValue int64     // cents
	OpenPositions  int
}

// TotalValue is cash balance plus the value of open positions.
func (s PortfolioSnapshot) TotalValue() int64 {
	return s.Balance + s.PortfolioValue
}

// TransactionType distinguishes capital flows.
type TransactionType string

const (
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// ParseTransactionType validates a transaction type string.
func ParseTransactionType(s string) (TransactionType, error) {
	switch t := TransactionType(s); t {
	case TransactionDeposit, TransactionWithdrawal:
		return t, nil
	default:
		return "", fmt.Errorf("invalid transaction type %q: must be deposit or withdrawal", s)
	}
}

// Transaction is a manually recorded deposit or withdrawal.
type Transaction struct {
	ID        int64
	Type      TransactionType
	Amount    int64 // cents, always positive
	Note      string
	CreatedAt time.Time
}

// Validate checks the fields a caller supplies when creating a transaction.
func (t Transaction) Validate() error {
	if _, err := ParseTransactionType(string(t.Type)); err != nil {
		return err
	}
	if t.Amount <= 0 {
		return errors.New("amount must be positive")
	}
	return nil
}

// Signed returns the amount with withdrawals negated.
func (t Transaction) Signed() int64 {
	if t.Type == TransactionWithdrawal {
		return -t.Amount
	}
	return t.Amount
}

// Stream names an ingested record family.
type Stream string

const (
	StreamFills       Stream = "fills"
	StreamSettlements Stream = "settlements"
)

// SyncCheckpoint records how far a paginated sweep of a stream has progressed.
// An empty Cursor means no sweep is in progress.
type SyncCheckpoint struct {
	Stream    Stream
	Cursor    string
	MinTS     time.Time // lower bound of the sweep in progress
	UpdatedAt time.Time
}
