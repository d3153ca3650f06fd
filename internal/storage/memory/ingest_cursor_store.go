package memory

import (
	"context"
	"sync"

	"victory-readmodel/internal/storage"
)

// IngestCursorStore is an in-memory implementation of storage.IngestCursorStore.
type IngestCursorStore struct {
	mu      sync.RWMutex
	cursors map[string]storage.IngestCursor
}

// NewIngestCursorStore creates a new in-memory cursor store.
func NewIngestCursorStore() *IngestCursorStore {
	return &IngestCursorStore{
		cursors: make(map[string]storage.IngestCursor),
	}
}

// GetCursor returns the cursor for an event type.
func (s *IngestCursorStore) GetCursor(_ context.Context, eventType string) (*storage.IngestCursor, error) {
	if eventType == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.cursors[eventType]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

// SetCursor saves the cursor for its event type.
func (s *IngestCursorStore) SetCursor(_ context.Context, c *storage.IngestCursor) error {
	if c == nil || c.EventType == "" || c.TxDigest == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cursors[c.EventType] = *c
	return nil
}

var _ storage.IngestCursorStore = (*IngestCursorStore)(nil)
