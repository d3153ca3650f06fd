package memory

import (
	"context"
	"maps"
	"sort"
	"sync"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/idhash"
	"victory-readmodel/internal/storage"
)

// RawEventStore is an in-memory implementation of storage.RawEventStore.
type RawEventStore struct {
	mu   sync.RWMutex
	data map[string]*rawEntry // keyed by event id
}

type rawEntry struct {
	event       domain.RawEvent
	timestampMs int64
}

// NewRawEventStore creates a new in-memory raw event store.
func NewRawEventStore() *RawEventStore {
	return &RawEventStore{
		data: make(map[string]*rawEntry),
	}
}

func rawEventKey(e *domain.RawEvent) string {
	return idhash.ComputeEventID(e.TypeTag, e.TxID, e.EventSeq)
}

func newRawEntry(e *domain.RawEvent) (*rawEntry, error) {
	if err := storage.ValidateRawEvent(e); err != nil {
		return nil, err
	}
	ts, _ := storage.EventTimestamp(e)
	entry := &rawEntry{event: *e, timestampMs: ts}
	entry.event.Payload = maps.Clone(e.Payload)
	return entry, nil
}

func (r *rawEntry) clone() *domain.RawEvent {
	e := r.event
	e.Payload = maps.Clone(r.event.Payload)
	return &e
}

// Insert adds a new event. Returns ErrDuplicateKey if exists.
func (s *RawEventStore) Insert(_ context.Context, e *domain.RawEvent) error {
	entry, err := newRawEntry(e)
	if err != nil {
		return err
	}
	key := rawEventKey(e)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[key] = entry
	return nil
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *RawEventStore) InsertBulk(_ context.Context, events []*domain.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	entries := make(map[string]*rawEntry, len(events))
	keys := make([]string, 0, len(events))
	for _, e := range events {
		entry, err := newRawEntry(e)
		if err != nil {
			return err
		}
		key := rawEventKey(e)
		// Intra-batch duplicate
		if _, exists := entries[key]; exists {
			return storage.ErrDuplicateKey
		}
		entries[key] = entry
		keys = append(keys, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
	}
	for _, key := range keys {
		s.data[key] = entries[key]
	}
	return nil
}

// GetByType retrieves all events of a type, ordered by (timestamp, tx_digest, event_seq) ASC.
func (s *RawEventStore) GetByType(_ context.Context, typeTag string) ([]*domain.RawEvent, error) {
	return s.collect(func(r *rawEntry) bool {
		return r.event.TypeTag == typeTag
	}), nil
}

// GetByTimeRange retrieves events of a type within [start, end).
func (s *RawEventStore) GetByTimeRange(_ context.Context, typeTag string, start, end int64) ([]*domain.RawEvent, error) {
	return s.collect(func(r *rawEntry) bool {
		return r.event.TypeTag == typeTag && r.timestampMs >= start && r.timestampMs < end
	}), nil
}

// Latest returns the newest archived event of a type.
func (s *RawEventStore) Latest(ctx context.Context, typeTag string) (*domain.RawEvent, error) {
	events, _ := s.GetByType(ctx, typeTag)
	if len(events) == 0 {
		return nil, storage.ErrNotFound
	}
	return events[len(events)-1], nil
}

func (s *RawEventStore) collect(match func(*rawEntry) bool) []*domain.RawEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []*rawEntry
	for _, r := range s.data {
		if match(r) {
			entries = append(entries, r)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.timestampMs != b.timestampMs {
			return a.timestampMs < b.timestampMs
		}
		if a.event.TxID != b.event.TxID {
			return a.event.TxID < b.event.TxID
		}
		return a.event.EventSeq < b.event.EventSeq
	})

	result := make([]*domain.RawEvent, len(entries))
	for i, r := range entries {
		result[i] = r.clone()
	}
	return result
}

var _ storage.RawEventStore = (*RawEventStore)(nil)
