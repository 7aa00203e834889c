package ledger_test

import (
	"context"
	"testing"

	"crabmigrate/internal/ledger"
	"crabmigrate/internal/testsupport"
)

func TestInsertIfAbsentIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.InsertIfAbsent(ctx, 10); err != nil {
			t.Fatalf("InsertIfAbsent failed: %v", err)
		}
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected a single entry, got %d", len(entries))
	}
	if entries[0].Status != ledger.StatusPending {
		t.Fatalf("expected pending status, got %s", entries[0].Status)
	}
	if entries[0].ProcessedAt != nil {
		t.Fatal("pending entry should have no processed_at")
	}
}

func TestMarkCompletedSetsOptimizedID(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	if err := store.InsertIfAbsent(ctx, 10); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, 10, 99); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	entry, err := store.Get(ctx, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.Status != ledger.StatusCompleted || entry.OptimizedID != 99 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.ProcessedAt == nil {
		t.Fatal("expected processed_at to be set")
	}
}

func TestMarkCompletedCreatesMissingRow(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	// Discovery never ran for this attachment.
	if err := store.MarkCompleted(ctx, 42, 77); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	entry, err := store.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil || entry.Status != ledger.StatusCompleted || entry.OptimizedID != 77 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestMarkCompletedOverwritesFailed(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	if err := store.InsertIfAbsent(ctx, 11); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if err := store.MarkFailed(ctx, 11); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, 11, 88); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	entry, err := store.Get(ctx, 11)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != ledger.StatusCompleted || entry.OptimizedID != 88 {
		t.Fatalf("expected retried entry to complete, got %+v", entry)
	}
}

func TestMarkFailedUnknownAttachment(t *testing.T) {
	store := testsupport.MustOpenLedger(t)

	err := store.MarkFailed(context.Background(), 404)
	if err == nil {
		t.Fatal("expected error for unknown attachment")
	}
	if !testsupport.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkFailedNeverRegressesCompleted(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	if err := store.MarkCompleted(ctx, 10, 99); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if err := store.MarkFailed(ctx, 10); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	entry, err := store.Get(ctx, 10)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Status != ledger.StatusCompleted || entry.OptimizedID != 99 {
		t.Fatalf("completed entry regressed: %+v", entry)
	}
}

func TestAggregateCounts(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	summary, err := store.AggregateCounts(ctx)
	if err != nil {
		t.Fatalf("AggregateCounts failed: %v", err)
	}
	if summary.Total() != 0 {
		t.Fatalf("expected all-zero summary, got %+v", summary)
	}

	for id := int64(1); id <= 4; id++ {
		if err := store.InsertIfAbsent(ctx, id); err != nil {
			t.Fatalf("InsertIfAbsent failed: %v", err)
		}
	}
	if err := store.MarkCompleted(ctx, 1, 101); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if err := store.MarkFailed(ctx, 2); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	summary, err = store.AggregateCounts(ctx)
	if err != nil {
		t.Fatalf("AggregateCounts failed: %v", err)
	}
	if summary.Pending != 2 || summary.Completed != 1 || summary.Failed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if summary.Total() != 4 {
		t.Fatalf("expected total 4, got %d", summary.Total())
	}
}

func TestCompletedMapExcludesPendingAndFailed(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	if err := store.InsertIfAbsent(ctx, 1); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if err := store.InsertIfAbsent(ctx, 2); err != nil {
		t.Fatalf("InsertIfAbsent failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, 3, 300); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if err := store.MarkFailed(ctx, 2); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	mapping, err := store.CompletedMap(ctx, []int64{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("CompletedMap failed: %v", err)
	}
	if len(mapping) != 1 || mapping[3] != 300 {
		t.Fatalf("unexpected mapping: %v", mapping)
	}
}

func TestCompletedMapRestrictedToRequestedIDs(t *testing.T) {
	store := testsupport.MustOpenLedger(t)
	ctx := context.Background()

	if err := store.MarkCompleted(ctx, 5, 500); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if err := store.MarkCompleted(ctx, 6, 600); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	mapping, err := store.CompletedMap(ctx, []int64{6})
	if err != nil {
		t.Fatalf("CompletedMap failed: %v", err)
	}
	if len(mapping) != 1 || mapping[6] != 600 {
		t.Fatalf("unexpected mapping: %v", mapping)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := ledger.ParseStatus(" Completed "); !ok || status != ledger.StatusCompleted {
		t.Fatalf("unexpected parse result: %v %v", status, ok)
	}
	if _, ok := ledger.ParseStatus("queued"); ok {
		t.Fatal("unknown status should not parse")
	}
}
