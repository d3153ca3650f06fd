package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
	"victory-readmodel/internal/storage"
)

// Runner loads archived events and replays them into pool state.
type Runner struct {
	store      storage.RawEventStore
	normalizer *normalization.Normalizer
	reducer    *PoolReducer
}

// NewRunner creates a new replay runner.
func NewRunner(store storage.RawEventStore, logger *zap.Logger) *Runner {
	return &Runner{
		store:      store,
		normalizer: normalization.NewNormalizer(logger),
		reducer:    NewPoolReducer(logger),
	}
}

// Load reads every archived event of the given types.
func (r *Runner) Load(ctx context.Context, typeTags ...string) ([]domain.RawEvent, error) {
	var raws []domain.RawEvent
	for _, tag := range typeTags {
		events, err := r.store.GetByType(ctx, tag)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", tag, err)
		}
		for _, e := range events {
			raws = append(raws, *e)
		}
	}
	return raws, nil
}

// Run loads archived pool events of the given types and reduces them.
// Normalization diagnostics come first in the result.
func (r *Runner) Run(ctx context.Context, typeTags ...string) (PoolReplay, error) {
	raws, err := r.Load(ctx, typeTags...)
	if err != nil {
		return PoolReplay{}, err
	}
	return r.Replay(raws), nil
}

// Replay normalizes and reduces raw pool events.
func (r *Runner) Replay(raws []domain.RawEvent) PoolReplay {
	events, diags := r.normalizer.NormalizeBatch(raws)
	out := r.reducer.Reduce(events)
	out.Stats.Skipped += len(diags)
	out.Diagnostics = append(diags, out.Diagnostics...)
	return out
}
