package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rickgao/kalshi-tracker/internal/store"
	"github.com/rickgao/kalshi-tracker/internal/store/storetest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "tracker.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return openTemp(t) })
}

func TestRunMigrations_Idempotent(t *testing.T) {
	s := openTemp(t)
	if err := s.RunMigrations(context.Background()); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("applied migrations = %d, want 1", n)
	}
}

func TestOpen_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tracker.db")

	s, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions (type, amount, note, created_at) VALUES ('deposit', 100, '', 1)"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.Close()

	s, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	totals, err := s.TransactionTotals(ctx)
	if err != nil {
		t.Fatalf("TransactionTotals failed: %v", err)
	}
	if totals.Deposits != 100 {
		t.Errorf("Deposits = %d, want 100 after reopen", totals.Deposits)
	}
}
