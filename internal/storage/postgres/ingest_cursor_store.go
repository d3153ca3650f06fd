package postgres

import (
	"context"
	"fmt"
	"time"

	"victory-readmodel/internal/storage"
)

// IngestCursorStore is a PostgreSQL implementation of storage.IngestCursorStore.
// One row per event type in ingest_cursors.
type IngestCursorStore struct {
	pool *Pool
}

// NewIngestCursorStore creates a new PostgreSQL cursor store.
func NewIngestCursorStore(pool *Pool) *IngestCursorStore {
	return &IngestCursorStore{pool: pool}
}

// Compile-time interface check.
var _ storage.IngestCursorStore = (*IngestCursorStore)(nil)

// GetCursor returns the cursor for an event type.
func (s *IngestCursorStore) GetCursor(ctx context.Context, eventType string) (_ *storage.IngestCursor, err error) {
	if eventType == "" {
		return nil, storage.ErrInvalidInput
	}

	defer func(start time.Time) { s.pool.observe("get_ingest_cursor", start, err) }(time.Now())

	row := s.pool.QueryRow(ctx, `
		SELECT event_type, tx_digest, event_seq, updated_at_ms
		FROM ingest_cursors
		WHERE event_type = $1
	`, eventType)

	var c storage.IngestCursor
	if err := row.Scan(&c.EventType, &c.TxDigest, &c.EventSeq, &c.UpdatedAtMs); err != nil {
		return nil, storageError("get ingest cursor", err)
	}
	return &c, nil
}

// SetCursor saves the cursor for its event type.
// Uses upsert to handle initial insert and subsequent updates.
func (s *IngestCursorStore) SetCursor(ctx context.Context, c *storage.IngestCursor) (err error) {
	if c == nil || c.EventType == "" || c.TxDigest == "" {
		return storage.ErrInvalidInput
	}

	defer func(start time.Time) { s.pool.observe("set_ingest_cursor", start, err) }(time.Now())

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingest_cursors (event_type, tx_digest, event_seq, updated_at_ms)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_type) DO UPDATE
		SET tx_digest = EXCLUDED.tx_digest,
		    event_seq = EXCLUDED.event_seq,
		    updated_at_ms = EXCLUDED.updated_at_ms
	`, c.EventType, c.TxDigest, c.EventSeq, c.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("set ingest cursor: %w", err)
	}
	return nil
}
