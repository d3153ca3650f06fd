package clickhouse

import (
	"context"
	"fmt"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

// HealthHistoryStore implements storage.HealthHistoryStore using ClickHouse.
type HealthHistoryStore struct {
	conn *Conn
}

// NewHealthHistoryStore creates a new HealthHistoryStore.
func NewHealthHistoryStore(conn *Conn) *HealthHistoryStore {
	return &HealthHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.HealthHistoryStore = (*HealthHistoryStore)(nil)

// Insert adds the health of one refresh. Returns ErrDuplicateKey if refresh_id exists.
func (s *HealthHistoryStore) Insert(ctx context.Context, r *domain.HealthRecord) error {
	if r == nil || r.RefreshID == "" {
		return storage.ErrInvalidInput
	}

	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM health_history WHERE refresh_id = ?
	`, r.RefreshID).Scan(&count)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if count > 0 {
		return storage.ErrDuplicateKey
	}

	codes := r.IssueCodes
	if codes == nil {
		codes = []string{}
	}

	err = s.conn.Exec(ctx, `
		INSERT INTO health_history (refresh_id, generated_at_ms, overall, issue_codes, pool_count)
		VALUES (?, ?, ?, ?, ?)
	`, r.RefreshID, r.GeneratedAtMs, string(r.Overall), codes, uint32(r.PoolCount))
	if err != nil {
		return fmt.Errorf("insert health record: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves health records within [start, end].
func (s *HealthHistoryStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.HealthRecord, error) {
	query := `
		SELECT refresh_id, generated_at_ms, overall, issue_codes, pool_count
		FROM health_history
		WHERE generated_at_ms >= ? AND generated_at_ms <= ?
		ORDER BY generated_at_ms ASC, refresh_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("query health history: %w", err)
	}
	defer rows.Close()

	var records []*domain.HealthRecord
	for rows.Next() {
		var (
			r         domain.HealthRecord
			overall   string
			poolCount uint32
		)
		if err := rows.Scan(&r.RefreshID, &r.GeneratedAtMs, &overall, &r.IssueCodes, &poolCount); err != nil {
			return nil, fmt.Errorf("scan health history row: %w", err)
		}
		r.Overall = domain.HealthLevel(overall)
		r.PoolCount = int(poolCount)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate health history rows: %w", err)
	}

	return records, nil
}
