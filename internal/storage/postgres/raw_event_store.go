package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/idhash"
	"victory-readmodel/internal/storage"
)

// RawEventStore implements storage.RawEventStore using PostgreSQL.
type RawEventStore struct {
	pool *Pool
}

// NewRawEventStore creates a new RawEventStore.
func NewRawEventStore(pool *Pool) *RawEventStore {
	return &RawEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RawEventStore = (*RawEventStore)(nil)

const insertRawEventQuery = `
	INSERT INTO raw_events (
		event_id, type_tag, tx_digest, event_seq, timestamp_ms, payload
	) VALUES ($1, $2, $3, $4, $5, $6)
`

// rawEventArgs validates an event and returns its insert arguments.
func rawEventArgs(e *domain.RawEvent) ([]any, error) {
	if err := storage.ValidateRawEvent(e); err != nil {
		return nil, err
	}
	ts, _ := storage.EventTimestamp(e)
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return []any{
		idhash.ComputeEventID(e.TypeTag, e.TxID, e.EventSeq),
		e.TypeTag,
		e.TxID,
		e.EventSeq,
		ts,
		payload,
	}, nil
}

// Insert adds a new event. Returns ErrDuplicateKey if (type_tag, tx_digest, event_seq) exists.
func (s *RawEventStore) Insert(ctx context.Context, e *domain.RawEvent) (err error) {
	defer func(start time.Time) { s.pool.observe("insert_raw_event", start, err) }(time.Now())

	args, err := rawEventArgs(e)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, insertRawEventQuery, args...)
	return storageError("insert raw event", err)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *RawEventStore) InsertBulk(ctx context.Context, events []*domain.RawEvent) (err error) {
	if len(events) == 0 {
		return nil
	}
	defer func(start time.Time) { s.pool.observe("insert_raw_events_bulk", start, err) }(time.Now())

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range events {
		args, err := rawEventArgs(e)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, insertRawEventQuery, args...); err != nil {
			return storageError("insert raw event in bulk", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// GetByType retrieves all events of a type in archive order.
func (s *RawEventStore) GetByType(ctx context.Context, typeTag string) (_ []*domain.RawEvent, err error) {
	defer func(start time.Time) { s.pool.observe("get_raw_events_by_type", start, err) }(time.Now())

	query := `
		SELECT type_tag, tx_digest, event_seq, timestamp_ms, payload
		FROM raw_events
		WHERE type_tag = $1
		ORDER BY timestamp_ms ASC, tx_digest ASC, event_seq ASC
	`

	rows, err := s.pool.Query(ctx, query, typeTag)
	if err != nil {
		return nil, fmt.Errorf("get raw events by type: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// GetByTimeRange retrieves events of a type within [start, end).
func (s *RawEventStore) GetByTimeRange(ctx context.Context, typeTag string, start, end int64) (_ []*domain.RawEvent, err error) {
	defer func(t time.Time) { s.pool.observe("get_raw_events_by_time_range", t, err) }(time.Now())

	query := `
		SELECT type_tag, tx_digest, event_seq, timestamp_ms, payload
		FROM raw_events
		WHERE type_tag = $1 AND timestamp_ms >= $2 AND timestamp_ms < $3
		ORDER BY timestamp_ms ASC, tx_digest ASC, event_seq ASC
	`

	rows, err := s.pool.Query(ctx, query, typeTag, start, end)
	if err != nil {
		return nil, fmt.Errorf("get raw events by time range: %w", err)
	}
	defer rows.Close()

	return scanRawEvents(rows)
}

// Latest returns the newest archived event of a type.
func (s *RawEventStore) Latest(ctx context.Context, typeTag string) (_ *domain.RawEvent, err error) {
	defer func(start time.Time) { s.pool.observe("get_latest_raw_event", start, err) }(time.Now())

	query := `
		SELECT type_tag, tx_digest, event_seq, timestamp_ms, payload
		FROM raw_events
		WHERE type_tag = $1
		ORDER BY timestamp_ms DESC, tx_digest DESC, event_seq DESC
		LIMIT 1
	`

	rows, err := s.pool.Query(ctx, query, typeTag)
	if err != nil {
		return nil, fmt.Errorf("get latest raw event: %w", err)
	}
	defer rows.Close()

	events, err := scanRawEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[0], nil
}

// scanRawEvents scans rows into raw events. Payload numbers decode as
// json.Number so that large integers keep full precision.
func scanRawEvents(rows pgx.Rows) ([]*domain.RawEvent, error) {
	var events []*domain.RawEvent

	for rows.Next() {
		var (
			e       domain.RawEvent
			ts      int64
			payload []byte
		)
		if err := rows.Scan(&e.TypeTag, &e.TxID, &e.EventSeq, &ts, &payload); err != nil {
			return nil, fmt.Errorf("scan raw event row: %w", err)
		}
		e.TimestampMs = strconv.FormatInt(ts, 10)

		dec := json.NewDecoder(bytes.NewReader(payload))
		dec.UseNumber()
		if err := dec.Decode(&e.Payload); err != nil {
			return nil, fmt.Errorf("decode raw event payload: %w", err)
		}

		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate raw event rows: %w", err)
	}

	return events, nil
}
