package clickhouse

import (
	"context"
	"fmt"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

// PoolHistoryStore implements storage.PoolHistoryStore using ClickHouse.
type PoolHistoryStore struct {
	conn *Conn
}

// NewPoolHistoryStore creates a new PoolHistoryStore.
func NewPoolHistoryStore(conn *Conn) *PoolHistoryStore {
	return &PoolHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PoolHistoryStore = (*PoolHistoryStore)(nil)

// InsertBulk adds the pool states of one refresh. Fails entire batch on duplicate (refresh_id, entity_key).
func (s *PoolHistoryStore) InsertBulk(ctx context.Context, records []*domain.PoolStateRecord) error {
	if len(records) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		refreshID string
		entityKey string
	}
	seen := make(map[key]struct{})
	refreshIDs := make(map[string]struct{})
	for _, r := range records {
		if r == nil || r.RefreshID == "" || r.State.EntityKey == "" {
			return storage.ErrInvalidInput
		}
		k := key{r.RefreshID, r.State.EntityKey}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
		refreshIDs[r.RefreshID] = struct{}{}
	}

	// MergeTree does not enforce uniqueness; a refresh is written once.
	for id := range refreshIDs {
		exists, err := s.refreshExists(ctx, id)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_state_history (
			refresh_id, generated_at_ms, entity_key, display_name, kind,
			allocation_points, deposit_fee_bp, withdrawal_fee_bp,
			active, is_native_pair, is_lp_token, placeholder,
			last_tx_id, last_timestamp_ms, update_count
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		st := r.State
		err = batch.Append(
			r.RefreshID, r.GeneratedAtMs, st.EntityKey, st.DisplayName, string(st.Kind),
			st.AllocationPoints, st.DepositFeeBp, st.WithdrawalFeeBp,
			boolToUInt8(st.Active), boolToUInt8(st.IsNativePair), boolToUInt8(st.IsLPToken), boolToUInt8(st.Placeholder),
			st.LastTxID, st.LastTimestampMs, uint32(st.UpdateCount),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByEntityKey retrieves the history of one pool within [start, end].
func (s *PoolHistoryStore) GetByEntityKey(ctx context.Context, entityKey string, start, end int64) ([]*domain.PoolStateRecord, error) {
	query := `
		SELECT refresh_id, generated_at_ms, entity_key, display_name, kind,
			allocation_points, deposit_fee_bp, withdrawal_fee_bp,
			active, is_native_pair, is_lp_token, placeholder,
			last_tx_id, last_timestamp_ms, update_count
		FROM pool_state_history
		WHERE entity_key = ? AND generated_at_ms >= ? AND generated_at_ms <= ?
		ORDER BY generated_at_ms ASC, refresh_id ASC
	`

	rows, err := s.conn.Query(ctx, query, entityKey, start, end)
	if err != nil {
		return nil, fmt.Errorf("query pool history: %w", err)
	}
	defer rows.Close()

	return scanPoolHistory(rows)
}

func (s *PoolHistoryStore) refreshExists(ctx context.Context, refreshID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM pool_state_history WHERE refresh_id = ?
	`, refreshID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPoolHistory(rows chRows) ([]*domain.PoolStateRecord, error) {
	var records []*domain.PoolStateRecord

	for rows.Next() {
		var (
			r                                             domain.PoolStateRecord
			kind                                          string
			active, nativePair, lpToken, placeholderState uint8
			updateCount                                   uint32
		)
		err := rows.Scan(
			&r.RefreshID, &r.GeneratedAtMs, &r.State.EntityKey, &r.State.DisplayName, &kind,
			&r.State.AllocationPoints, &r.State.DepositFeeBp, &r.State.WithdrawalFeeBp,
			&active, &nativePair, &lpToken, &placeholderState,
			&r.State.LastTxID, &r.State.LastTimestampMs, &updateCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pool history row: %w", err)
		}

		r.State.Kind = domain.PoolKind(kind)
		r.State.Active = active == 1
		r.State.IsNativePair = nativePair == 1
		r.State.IsLPToken = lpToken == 1
		r.State.Placeholder = placeholderState == 1
		r.State.UpdateCount = int(updateCount)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pool history rows: %w", err)
	}

	return records, nil
}
