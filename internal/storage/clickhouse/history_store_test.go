package clickhouse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

func TestPoolHistoryStore_InsertBulk(t *testing.T) {
	conn := newTestConn(t)

	store := NewPoolHistoryStore(conn)
	ctx := context.Background()

	err := store.InsertBulk(ctx, nil)
	assert.NoError(t, err)

	records := []*domain.PoolStateRecord{
		{
			RefreshID:     "refresh-1",
			GeneratedAtMs: 1000,
			State: domain.PoolState{
				EntityKey:        "0x2::sui::SUI",
				DisplayName:      "SUI",
				Kind:             domain.PoolKindSingle,
				AllocationPoints: 100,
				DepositFeeBp:     25,
				WithdrawalFeeBp:  10,
				Active:           true,
				LastTxID:         "tx1",
				LastTimestampMs:  900,
				UpdateCount:      2,
			},
		},
		{
			RefreshID:     "refresh-2",
			GeneratedAtMs: 2000,
			State: domain.PoolState{
				EntityKey:        "0x2::sui::SUI",
				DisplayName:      "SUI",
				Kind:             domain.PoolKindSingle,
				AllocationPoints: 300,
				Placeholder:      true,
				LastTxID:         "tx2",
				LastTimestampMs:  1900,
			},
		},
	}
	require.NoError(t, store.InsertBulk(ctx, records))

	got, err := store.GetByEntityKey(ctx, "0x2::sui::SUI", 0, 5000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0].State, got[0].State)
	assert.Equal(t, "refresh-1", got[0].RefreshID)
	assert.Equal(t, int64(300), got[1].State.AllocationPoints)
	assert.True(t, got[1].State.Placeholder)

	err = store.InsertBulk(ctx, records[:1])
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestHealthHistoryStore_Insert(t *testing.T) {
	conn := newTestConn(t)

	store := NewHealthHistoryStore(conn)
	ctx := context.Background()

	rec := &domain.HealthRecord{
		RefreshID:     "refresh-1",
		GeneratedAtMs: 1000,
		Overall:       domain.HealthError,
		IssueCodes:    []string{"VAULT_EMPTY_VICTORY", "VAULT_EMPTY_SUI", "EPOCH_UNFINALIZED"},
		PoolCount:     4,
	}
	require.NoError(t, store.Insert(ctx, rec))

	err := store.Insert(ctx, rec)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByTimeRange(ctx, 0, 1000)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.HealthError, got[0].Overall)
	assert.Equal(t, rec.IssueCodes, got[0].IssueCodes)
	assert.Equal(t, 4, got[0].PoolCount)
}
