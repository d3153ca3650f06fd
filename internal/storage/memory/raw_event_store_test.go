package memory

import (
	"context"
	"errors"
	"testing"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

const poolCreatedType = "0x9c1f::farm::PoolCreated"

func rawEvent(tx, seq, ts string) *domain.RawEvent {
	return &domain.RawEvent{
		TypeTag:     poolCreatedType,
		Payload:     map[string]any{"pool_type": "0x2::sui::SUI"},
		TimestampMs: ts,
		TxID:        tx,
		EventSeq:    seq,
	}
}

func TestRawEventStore_InsertAndGet(t *testing.T) {
	store := NewRawEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, rawEvent("tx2", "0", "2000")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, rawEvent("tx1", "0", "1000")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByType(ctx, poolCreatedType)
	if err != nil {
		t.Fatalf("GetByType failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(result))
	}
	if result[0].TxID != "tx1" || result[1].TxID != "tx2" {
		t.Errorf("Expected timestamp order tx1, tx2; got %s, %s", result[0].TxID, result[1].TxID)
	}

	// Mutating a returned event must not change the store.
	result[0].Payload["pool_type"] = "mutated"
	again, _ := store.GetByType(ctx, poolCreatedType)
	if again[0].Payload["pool_type"] != "0x2::sui::SUI" {
		t.Error("Store returned a shared payload map")
	}
}

func TestRawEventStore_DuplicateKey(t *testing.T) {
	store := NewRawEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, rawEvent("tx1", "0", "1000")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.Insert(ctx, rawEvent("tx1", "0", "1000"))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Same tx, different sequence is a different event.
	if err := store.Insert(ctx, rawEvent("tx1", "1", "1000")); err != nil {
		t.Errorf("Insert with new seq failed: %v", err)
	}
}

func TestRawEventStore_InsertBulkAtomic(t *testing.T) {
	store := NewRawEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, rawEvent("tx1", "0", "1000")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.InsertBulk(ctx, []*domain.RawEvent{
		rawEvent("tx2", "0", "2000"),
		rawEvent("tx1", "0", "1000"),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	result, _ := store.GetByType(ctx, poolCreatedType)
	if len(result) != 1 {
		t.Errorf("Expected failed batch to insert nothing, got %d events", len(result))
	}

	err = store.InsertBulk(ctx, []*domain.RawEvent{
		rawEvent("tx3", "0", "3000"),
		rawEvent("tx3", "0", "3000"),
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected intra-batch ErrDuplicateKey, got %v", err)
	}
}

func TestRawEventStore_InvalidInput(t *testing.T) {
	store := NewRawEventStore()
	ctx := context.Background()

	for _, e := range []*domain.RawEvent{
		nil,
		rawEvent("", "0", "1"),
		rawEvent("tx", "0", "yesterday"),
		rawEvent("tx", "0", "-5"),
	} {
		if err := store.Insert(ctx, e); !errors.Is(err, storage.ErrInvalidInput) {
			t.Errorf("Expected ErrInvalidInput for %+v, got %v", e, err)
		}
	}
}

func TestRawEventStore_TimeRangeAndLatest(t *testing.T) {
	store := NewRawEventStore()
	ctx := context.Background()

	if _, err := store.Latest(ctx, poolCreatedType); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on empty store, got %v", err)
	}

	for i, ts := range []string{"1000", "2000", "3000"} {
		if err := store.Insert(ctx, rawEvent("tx"+ts, "0", ts)); err != nil {
			t.Fatalf("Insert %d failed: %v", i, err)
		}
	}

	result, _ := store.GetByTimeRange(ctx, poolCreatedType, 1000, 3000)
	if len(result) != 2 {
		t.Errorf("Expected [1000, 3000) to hold 2 events, got %d", len(result))
	}

	latest, err := store.Latest(ctx, poolCreatedType)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.TimestampMs != "3000" {
		t.Errorf("Expected latest at 3000, got %s", latest.TimestampMs)
	}
}
