package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

// PoolHistoryStore is an in-memory implementation of storage.PoolHistoryStore.
type PoolHistoryStore struct {
	mu   sync.RWMutex
	data map[poolHistoryKey]*domain.PoolStateRecord
}

type poolHistoryKey struct {
	refreshID string
	entityKey string
}

// NewPoolHistoryStore creates a new in-memory pool history store.
func NewPoolHistoryStore() *PoolHistoryStore {
	return &PoolHistoryStore{
		data: make(map[poolHistoryKey]*domain.PoolStateRecord),
	}
}

// InsertBulk adds the pool states of one refresh. Fails entire batch on any duplicate.
func (s *PoolHistoryStore) InsertBulk(_ context.Context, records []*domain.PoolStateRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[poolHistoryKey]struct{}, len(records))
	for _, r := range records {
		if r == nil || r.RefreshID == "" || r.State.EntityKey == "" {
			return storage.ErrInvalidInput
		}
		k := poolHistoryKey{r.RefreshID, r.State.EntityKey}
		if _, exists := s.data[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[k]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[k] = struct{}{}
	}

	for _, r := range records {
		copy := *r
		s.data[poolHistoryKey{r.RefreshID, r.State.EntityKey}] = &copy
	}
	return nil
}

// GetByEntityKey retrieves the history of one pool within [start, end].
func (s *PoolHistoryStore) GetByEntityKey(_ context.Context, entityKey string, start, end int64) ([]*domain.PoolStateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PoolStateRecord
	for k, r := range s.data {
		if k.entityKey == entityKey && r.GeneratedAtMs >= start && r.GeneratedAtMs <= end {
			copy := *r
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GeneratedAtMs != result[j].GeneratedAtMs {
			return result[i].GeneratedAtMs < result[j].GeneratedAtMs
		}
		return result[i].RefreshID < result[j].RefreshID
	})
	return result, nil
}

// HealthHistoryStore is an in-memory implementation of storage.HealthHistoryStore.
type HealthHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HealthRecord // keyed by refresh id
}

// NewHealthHistoryStore creates a new in-memory health history store.
func NewHealthHistoryStore() *HealthHistoryStore {
	return &HealthHistoryStore{
		data: make(map[string]*domain.HealthRecord),
	}
}

// Insert adds the health of one refresh. Returns ErrDuplicateKey if exists.
func (s *HealthHistoryStore) Insert(_ context.Context, r *domain.HealthRecord) error {
	if r == nil || r.RefreshID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RefreshID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *r
	copy.IssueCodes = slices.Clone(r.IssueCodes)
	s.data[r.RefreshID] = &copy
	return nil
}

// GetByTimeRange retrieves health records within [start, end].
func (s *HealthHistoryStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.HealthRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HealthRecord
	for _, r := range s.data {
		if r.GeneratedAtMs >= start && r.GeneratedAtMs <= end {
			copy := *r
			copy.IssueCodes = slices.Clone(r.IssueCodes)
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].GeneratedAtMs != result[j].GeneratedAtMs {
			return result[i].GeneratedAtMs < result[j].GeneratedAtMs
		}
		return result[i].RefreshID < result[j].RefreshID
	})
	return result, nil
}

var (
	_ storage.PoolHistoryStore   = (*PoolHistoryStore)(nil)
	_ storage.HealthHistoryStore = (*HealthHistoryStore)(nil)
)
