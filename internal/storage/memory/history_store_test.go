package memory

import (
	"context"
	"errors"
	"testing"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

func TestPoolHistoryStore_InsertAndGet(t *testing.T) {
	store := NewPoolHistoryStore()
	ctx := context.Background()

	records := []*domain.PoolStateRecord{
		{RefreshID: "r2", GeneratedAtMs: 2000, State: domain.PoolState{EntityKey: "A", AllocationPoints: 200}},
		{RefreshID: "r1", GeneratedAtMs: 1000, State: domain.PoolState{EntityKey: "A", AllocationPoints: 100}},
		{RefreshID: "r1", GeneratedAtMs: 1000, State: domain.PoolState{EntityKey: "B"}},
	}
	if err := store.InsertBulk(ctx, records); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	history, err := store.GetByEntityKey(ctx, "A", 0, 5000)
	if err != nil {
		t.Fatalf("GetByEntityKey failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(history))
	}
	if history[0].State.AllocationPoints != 100 || history[1].State.AllocationPoints != 200 {
		t.Errorf("Expected chronological order, got %d then %d",
			history[0].State.AllocationPoints, history[1].State.AllocationPoints)
	}

	err = store.InsertBulk(ctx, []*domain.PoolStateRecord{
		{RefreshID: "r1", GeneratedAtMs: 1000, State: domain.PoolState{EntityKey: "A"}},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestHealthHistoryStore_InsertAndGet(t *testing.T) {
	store := NewHealthHistoryStore()
	ctx := context.Background()

	rec := &domain.HealthRecord{
		RefreshID:     "r1",
		GeneratedAtMs: 1000,
		Overall:       domain.HealthWarning,
		IssueCodes:    []string{"VAULT_EMPTY_SUI"},
		PoolCount:     3,
	}
	if err := store.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, rec); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	rec.IssueCodes[0] = "mutated"

	result, err := store.GetByTimeRange(ctx, 0, 1000)
	if err != nil {
		t.Fatalf("GetByTimeRange failed: %v", err)
	}
	if len(result) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(result))
	}
	if result[0].IssueCodes[0] != "VAULT_EMPTY_SUI" {
		t.Errorf("Store kept a shared issue slice: %v", result[0].IssueCodes)
	}
}

func TestIngestCursorStore(t *testing.T) {
	store := NewIngestCursorStore()
	ctx := context.Background()

	if _, err := store.GetCursor(ctx, poolCreatedType); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	c := &storage.IngestCursor{EventType: poolCreatedType, TxDigest: "tx1", EventSeq: "3", UpdatedAtMs: 10}
	if err := store.SetCursor(ctx, c); err != nil {
		t.Fatalf("SetCursor failed: %v", err)
	}
	c.TxDigest = "tx2"
	if err := store.SetCursor(ctx, c); err != nil {
		t.Fatalf("SetCursor overwrite failed: %v", err)
	}

	got, err := store.GetCursor(ctx, poolCreatedType)
	if err != nil {
		t.Fatalf("GetCursor failed: %v", err)
	}
	if got.TxDigest != "tx2" || got.EventSeq != "3" {
		t.Errorf("Unexpected cursor %+v", got)
	}

	if err := store.SetCursor(ctx, &storage.IngestCursor{EventType: poolCreatedType}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
