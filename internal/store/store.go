// Package store defines the durable, transactional local store for ingested
// trading activity, portfolio snapshots and manually tracked capital flows.
//
// Implementations live in the sqlite (embedded, default) and postgres
// subpackages. Both satisfy the same contract, exercised by storetest.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/kalshi-tracker/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DataIntegrityError describes an ingested record that violates an
// invariant. Such records are logged and, where safe, still stored.
type DataIntegrityError struct {
	Kind   string // "fill", "settlement"
	ID     string
	Reason string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %s: %s", e.Kind, e.ID, e.Reason)
}

// Range bounds a time query. Both ends are inclusive; a zero value leaves
// that side unbounded.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the range.
func (r Range) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

// Filter selects fills or settlements.
type Filter struct {
	Range  Range
	Ticker string
	Limit  int  // 0 for no limit
	Newest bool // order newest first instead of oldest first
}

// Totals are the summed capital flows.
type Totals struct {
	Deposits    int64
	Withdrawals int64
}

// Net is deposits minus withdrawals.
func (t Totals) Net() int64 {
	return t.Deposits - t.Withdrawals
}

// Store is the persistence contract.
//
// Page writes commit the rows together with the stream checkpoint, so a
// crash never leaves rows stored without the cursor that produced them
// or the reverse. Inserts ignore rows whose id already exists.
type Store interface {
	SaveFillPage(ctx context.Context, fills []model.Fill, cp model.SyncCheckpoint) (inserted int, err error)
	SaveSettlementPage(ctx context.Context, settlements []model.Settlement, cp model.SyncCheckpoint) (inserted int, err error)
	Checkpoint(ctx context.Context, stream model.Stream) (model.SyncCheckpoint, error)
	LatestFillTime(ctx context.Context) (time.Time, error)
	LatestSettlementTime(ctx context.Context) (time.Time, error)
	ListFills(ctx context.Context, f Filter) ([]model.Fill, error)
	ListSettlements(ctx context.Context, f Filter) ([]model.Settlement, error)

	// InsertSnapshot stores s unless its bucket is already taken, in which
	// case it returns false and leaves the existing row untouched.
	InsertSnapshot(ctx context.Context, s model.PortfolioSnapshot) (inserted bool, err error)
	SnapshotInBucket(ctx context.Context, bucket time.Time) (bool, error)
	LatestSnapshot(ctx context.Context) (model.PortfolioSnapshot, error)
	ListSnapshots(ctx context.Context, r Range) ([]model.PortfolioSnapshot, error)

	CreateTransaction(ctx context.Context, tx model.Transaction) (model.Transaction, error)
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	TransactionTotals(ctx context.Context) (Totals, error)

	Ping(ctx context.Context) error
	Close() error
}
