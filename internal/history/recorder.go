// Package history persists every dashboard refresh for later analysis.
package history

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"victory-readmodel/internal/dashboard"
	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/storage"
)

// Recorder writes pool states and health of each snapshot under a fresh
// refresh id. It implements dashboard.Sink.
type Recorder struct {
	pools  storage.PoolHistoryStore
	health storage.HealthHistoryStore
	logger *zap.Logger
	newID  func() string
}

// NewRecorder creates a Recorder over the given stores.
func NewRecorder(pools storage.PoolHistoryStore, health storage.HealthHistoryStore, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		pools:  pools,
		health: health,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Name implements dashboard.Sink.
func (r *Recorder) Name() string { return "history" }

// Publish implements dashboard.Sink.
func (r *Recorder) Publish(ctx context.Context, snap domain.Snapshot) error {
	refreshID := r.newID()

	records := make([]*domain.PoolStateRecord, 0, len(snap.LPPools)+len(snap.SinglePools))
	for _, pools := range [][]domain.PoolState{snap.LPPools, snap.SinglePools} {
		for _, p := range pools {
			records = append(records, &domain.PoolStateRecord{
				RefreshID:     refreshID,
				GeneratedAtMs: snap.GeneratedAtMs,
				State:         p,
			})
		}
	}

	if len(records) > 0 {
		if err := r.pools.InsertBulk(ctx, records); err != nil {
			return fmt.Errorf("record pool history: %w", err)
		}
	}

	err := r.health.Insert(ctx, &domain.HealthRecord{
		RefreshID:     refreshID,
		GeneratedAtMs: snap.GeneratedAtMs,
		Overall:       snap.Health.Overall,
		IssueCodes:    dashboard.IssueCodes(snap.Health),
		PoolCount:     len(records),
	})
	if err != nil {
		return fmt.Errorf("record health history: %w", err)
	}

	r.logger.Debug("refresh recorded",
		zap.String("refresh_id", refreshID),
		zap.Int("pools", len(records)),
		zap.String("health", string(snap.Health.Overall)))
	return nil
}

// PoolHistory returns the recorded states of one pool within [startMs, endMs].
func (r *Recorder) PoolHistory(ctx context.Context, entityKey string, startMs, endMs int64) ([]*domain.PoolStateRecord, error) {
	return r.pools.GetByEntityKey(ctx, entityKey, startMs, endMs)
}

// HealthHistory returns the recorded health within [startMs, endMs].
func (r *Recorder) HealthHistory(ctx context.Context, startMs, endMs int64) ([]*domain.HealthRecord, error) {
	return r.health.GetByTimeRange(ctx, startMs, endMs)
}
