package store

import (
	"os"
	"reflect"
	"testing"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()

	f, err := os.CreateTemp("", "tradesim-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	dbPath := f.Name()
	f.Close()

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		os.Remove(dbPath)
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
		os.Remove(dbPath)
	})
	return s
}

func TestSQLiteRoundTrip(t *testing.T) {
	s := setupSQLiteStore(t)

	want := sampleSnapshot()
	if err := s.Save(want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestSQLiteLoadEmpty(t *testing.T) {
	s := setupSQLiteStore(t)

	snap, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(snap.Accounts) != 0 || len(snap.Positions) != 0 || len(snap.Trades) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestSQLiteSaveReplacesState(t *testing.T) {
	s := setupSQLiteStore(t)

	if err := s.Save(sampleSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(Snapshot{Accounts: []AccountRecord{{ID: "only", Balance: 7}}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(got.Accounts) != 1 || got.Accounts[0].ID != "only" {
		t.Errorf("stale accounts survived: %+v", got.Accounts)
	}
	if len(got.Positions) != 0 || len(got.Trades) != 0 {
		t.Errorf("stale rows survived: %+v", got)
	}
}

func TestSQLiteMigrateIdempotent(t *testing.T) {
	s := setupSQLiteStore(t)

	// NewSQLiteStore already migrated; a second pass is a no-op.
	if err := s.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}

	version, err := s.getCurrentVersion()
	if err != nil {
		t.Fatalf("getCurrentVersion failed: %v", err)
	}
	if want := migrations[len(migrations)-1].Version; version != want {
		t.Errorf("expected schema version %d, got %d", want, version)
	}
}

func TestSQLiteRunMetadata(t *testing.T) {
	s := setupSQLiteStore(t)

	if err := s.BeginRun("run-1"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}
	if err := s.FinishRun("run-1", 12, 5); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	var orders, trades int
	err := s.GetDB().QueryRow(
		"SELECT orders_processed, trades_executed FROM runs WHERE id = ?", "run-1",
	).Scan(&orders, &trades)
	if err != nil {
		t.Fatalf("query run failed: %v", err)
	}
	if orders != 12 || trades != 5 {
		t.Errorf("expected 12/5, got %d/%d", orders, trades)
	}
}
