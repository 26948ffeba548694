package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	db, err := Open(ctx, Config{
		Path: filepath.Join(t.TempDir(), "state.db"),
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNewRunStoreRejectsNilDatabase(t *testing.T) {
	store, err := NewRunStore(context.Background(), nil)
	if err == nil {
		t.Fatal("NewRunStore(nil) = nil error, want an error")
	}
	if store != nil {
		t.Fatalf("NewRunStore(nil) returned a store: %v", store)
	}
}

func TestRunStoreRecordFinishList(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store, err := NewRunStore(ctx, db)
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	started := time.Now().Add(-time.Minute).Truncate(time.Second)
	run := Run{
		ID:        "run-1",
		Address:   "127.0.0.1:4242",
		PID:       1234,
		StartedAt: started,
	}
	if err := store.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != "run-1" || got.Address != "127.0.0.1:4242" || got.PID != 1234 {
		t.Fatalf("unexpected run row: %+v", got)
	}
	if !got.StoppedAt.IsZero() {
		t.Fatalf("expected open run, got stopped_at=%v", got.StoppedAt)
	}
	if got.Outcome != "" {
		t.Fatalf("expected empty outcome, got %q", got.Outcome)
	}

	if err := store.Finish(ctx, "run-1", "stopped"); err != nil {
		t.Fatalf("Finish: %v", err)
	}

	runs, err = store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List after Finish: %v", err)
	}
	got = runs[0]
	if got.Outcome != "stopped" {
		t.Fatalf("expected outcome stopped, got %q", got.Outcome)
	}
	if got.StoppedAt.IsZero() {
		t.Fatalf("expected stopped_at to be set")
	}
}

func TestRunStoreListOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store, err := NewRunStore(ctx, db)
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		run := Run{
			ID:        []string{"run-a", "run-b", "run-c"}[i],
			Address:   "127.0.0.1:0",
			PID:       100 + i,
			StartedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := store.Record(ctx, run); err != nil {
			t.Fatalf("Record %d: %v", i, err)
		}
	}

	runs, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	// Most recent first.
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
}

func TestRunStoreClear(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store, err := NewRunStore(ctx, db)
	if err != nil {
		t.Fatalf("NewRunStore: %v", err)
	}

	for _, id := range []string{"x", "y"} {
		if err := store.Record(ctx, Run{ID: id, Address: "a", PID: 1, StartedAt: time.Now()}); err != nil {
			t.Fatalf("Record %s: %v", id, err)
		}
	}

	n, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows cleared, got %d", n)
	}

	runs, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty store, got %d rows", len(runs))
	}
}

func TestKVStoreUpsertGet(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	store, err := NewKVStore(ctx, db)
	if err != nil {
		t.Fatalf("NewKVStore: %v", err)
	}

	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected no row, got found=%v err=%v", found, err)
	}

	if err := store.Upsert(ctx, "k", "v1"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Upsert(ctx, "k", "v2"); err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}

	entry, found, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found {
		t.Fatalf("expected row for k")
	}
	if entry.Value != "v2" {
		t.Fatalf("expected v2, got %q", entry.Value)
	}
}
