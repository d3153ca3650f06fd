package postgres

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

const poolConfigType = "0x9c1f::farm::PoolConfigUpdated"

func TestRawEventStore_InsertAndGetByType(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewRawEventStore(pool)

	event := &domain.RawEvent{
		TypeTag: poolConfigType,
		Payload: map[string]any{
			"pool_type":         map[string]any{"name": "0x2::sui::SUI"},
			"allocation_points": "340282366920938463463374607431768211455",
			"active":            true,
		},
		TimestampMs: "1700000000000",
		TxID:        "9mTnJcXQhXqYbTLZjZxXKJ1aJ6hK9c7WQm2v2f6kq3zM",
		EventSeq:    "0",
	}

	err := store.Insert(ctx, event)
	require.NoError(t, err)

	events, err := store.GetByType(ctx, poolConfigType)
	require.NoError(t, err)
	require.Len(t, events, 1)

	got := events[0]
	assert.Equal(t, event.TypeTag, got.TypeTag)
	assert.Equal(t, event.TxID, got.TxID)
	assert.Equal(t, event.EventSeq, got.EventSeq)
	assert.Equal(t, event.TimestampMs, got.TimestampMs)
	assert.Equal(t, "340282366920938463463374607431768211455", got.Payload["allocation_points"])
	assert.Equal(t, true, got.Payload["active"])
	assert.Equal(t, map[string]any{"name": "0x2::sui::SUI"}, got.Payload["pool_type"])
}

func TestRawEventStore_NumbersKeepPrecision(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewRawEventStore(pool)

	err := store.Insert(ctx, &domain.RawEvent{
		TypeTag:     poolConfigType,
		Payload:     map[string]any{"deposit_fee": json.Number("18446744073709551617")},
		TimestampMs: "1",
		TxID:        "tx-number",
	})
	require.NoError(t, err)

	events, err := store.GetByType(ctx, poolConfigType)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, json.Number("18446744073709551617"), events[0].Payload["deposit_fee"])
}

func TestRawEventStore_InsertDuplicate(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewRawEventStore(pool)

	event := &domain.RawEvent{
		TypeTag:     poolConfigType,
		Payload:     map[string]any{},
		TimestampMs: "1000",
		TxID:        "DupTx",
		EventSeq:    "1",
	}

	require.NoError(t, store.Insert(ctx, event))

	err := store.Insert(ctx, event)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestRawEventStore_InsertBulkRollsBack(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewRawEventStore(pool)

	first := &domain.RawEvent{TypeTag: poolConfigType, Payload: map[string]any{}, TimestampMs: "1000", TxID: "BulkTx1"}
	require.NoError(t, store.Insert(ctx, first))

	err := store.InsertBulk(ctx, []*domain.RawEvent{
		{TypeTag: poolConfigType, Payload: map[string]any{}, TimestampMs: "2000", TxID: "BulkTx2"},
		first,
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	events, err := store.GetByType(ctx, poolConfigType)
	require.NoError(t, err)
	assert.Len(t, events, 1, "failed batch must not leave partial rows")
}

func TestRawEventStore_TimeRangeAndLatest(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewRawEventStore(pool)

	_, err := store.Latest(ctx, poolConfigType)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	err = store.InsertBulk(ctx, []*domain.RawEvent{
		{TypeTag: poolConfigType, Payload: map[string]any{}, TimestampMs: "1000", TxID: "RangeTx1"},
		{TypeTag: poolConfigType, Payload: map[string]any{}, TimestampMs: "2000", TxID: "RangeTx2"},
		{TypeTag: poolConfigType, Payload: map[string]any{}, TimestampMs: "3000", TxID: "RangeTx3"},
	})
	require.NoError(t, err)

	events, err := store.GetByTimeRange(ctx, poolConfigType, 1000, 3000)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "RangeTx1", events[0].TxID)
	assert.Equal(t, "RangeTx2", events[1].TxID)

	latest, err := store.Latest(ctx, poolConfigType)
	require.NoError(t, err)
	assert.Equal(t, "RangeTx3", latest.TxID)
}
