package replay

import (
	"context"
	"testing"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage/memory"
)

const (
	createdType = "0x9c1f::farm::PoolCreated"
	configType  = "0x9c1f::farm::PoolConfigUpdated"
)

func TestRunner_ReplaysArchive(t *testing.T) {
	store := memory.NewRawEventStore()
	ctx := context.Background()

	raws := []*domain.RawEvent{
		{
			TypeTag:     configType,
			Payload:     map[string]any{"poolType": map[string]any{"name": "0x2::sui::SUI"}, "allocationPoints": "300"},
			TimestampMs: "2000",
			TxID:        "tx2",
		},
		{
			TypeTag:     createdType,
			Payload:     map[string]any{"pool_type": "0x2::sui::SUI", "allocation_points": "100"},
			TimestampMs: "1000",
			TxID:        "tx1",
		},
		{
			TypeTag:     configType,
			Payload:     map[string]any{"allocation_points": "1"},
			TimestampMs: "3000",
			TxID:        "tx3",
		},
	}
	if err := store.InsertBulk(ctx, raws); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	runner := NewRunner(store, nil)
	result, err := runner.Run(ctx, createdType, configType)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	state, ok := result.Pools["0x2::sui::SUI"]
	if !ok {
		t.Fatal("Expected SUI pool")
	}
	if state.AllocationPoints != 300 || state.Placeholder {
		t.Errorf("Unexpected state %+v", state)
	}
	if len(result.Diagnostics) != 1 || result.Diagnostics[0].TxID != "tx3" {
		t.Errorf("Expected one normalization diagnostic for tx3, got %+v", result.Diagnostics)
	}
	if result.Stats.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", result.Stats.Skipped)
	}
}

func TestRunner_Empty(t *testing.T) {
	runner := NewRunner(memory.NewRawEventStore(), nil)
	result, err := runner.Run(context.Background(), createdType)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Pools) != 0 {
		t.Errorf("Expected no pools, got %d", len(result.Pools))
	}
}
