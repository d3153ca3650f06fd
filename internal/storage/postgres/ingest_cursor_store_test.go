package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"victory-readmodel/internal/storage"
)

func TestIngestCursorStore_Upsert(t *testing.T) {
	pool := newTestPool(t)

	ctx := context.Background()
	store := NewIngestCursorStore(pool)

	_, err := store.GetCursor(ctx, poolConfigType)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.SetCursor(ctx, &storage.IngestCursor{
		EventType: poolConfigType, TxDigest: "tx1", EventSeq: "0", UpdatedAtMs: 100,
	}))
	require.NoError(t, store.SetCursor(ctx, &storage.IngestCursor{
		EventType: poolConfigType, TxDigest: "tx2", EventSeq: "4", UpdatedAtMs: 200,
	}))

	c, err := store.GetCursor(ctx, poolConfigType)
	require.NoError(t, err)
	assert.Equal(t, "tx2", c.TxDigest)
	assert.Equal(t, "4", c.EventSeq)
	assert.Equal(t, int64(200), c.UpdatedAtMs)

	err = store.SetCursor(ctx, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
