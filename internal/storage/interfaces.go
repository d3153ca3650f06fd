package storage

import (
	"context"

	"victory-readmodel/internal/domain"
)

// RawEventStore provides access to the raw ledger event archive.
// Events are identified by (type_tag, tx_digest, event_seq).
type RawEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if the event is already archived.
	Insert(ctx context.Context, e *domain.RawEvent) error

	// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, events []*domain.RawEvent) error

	// GetByType retrieves all events of a type, ordered by (timestamp, tx_digest, event_seq) ASC.
	GetByType(ctx context.Context, typeTag string) ([]*domain.RawEvent, error)

	// GetByTimeRange retrieves events of a type within [start, end) (inclusive start, exclusive end).
	GetByTimeRange(ctx context.Context, typeTag string, start, end int64) ([]*domain.RawEvent, error)

	// Latest returns the newest archived event of a type. Returns ErrNotFound if none exist.
	Latest(ctx context.Context, typeTag string) (*domain.RawEvent, error)
}

// IngestCursor is the last ledger position archived for one event type.
type IngestCursor struct {
	EventType   string
	TxDigest    string
	EventSeq    string
	UpdatedAtMs int64
}

// IngestCursorStore persists backfill progress so that a restart resumes
// paging instead of re-reading history.
type IngestCursorStore interface {
	// GetCursor returns the cursor for an event type.
	// Returns ErrNotFound if no progress has been saved yet.
	GetCursor(ctx context.Context, eventType string) (*IngestCursor, error)

	// SetCursor saves the cursor for its event type, replacing any previous value.
	SetCursor(ctx context.Context, c *IngestCursor) error
}

// PoolHistoryStore provides access to per-refresh pool state history.
type PoolHistoryStore interface {
	// InsertBulk adds the pool states of one refresh.
	// Fails entire batch on duplicate (refresh_id, entity_key).
	InsertBulk(ctx context.Context, records []*domain.PoolStateRecord) error

	// GetByEntityKey retrieves the history of one pool within [start, end], ordered by generated_at ASC.
	GetByEntityKey(ctx context.Context, entityKey string, start, end int64) ([]*domain.PoolStateRecord, error)
}

// HealthHistoryStore provides access to per-refresh health history.
type HealthHistoryStore interface {
	// Insert adds the health of one refresh. Returns ErrDuplicateKey if refresh_id exists.
	Insert(ctx context.Context, r *domain.HealthRecord) error

	// GetByTimeRange retrieves health records within [start, end], ordered by generated_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.HealthRecord, error)
}
