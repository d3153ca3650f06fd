package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/observability"
)

// InputLoader produces snapshot inputs. *Loader implements it.
type InputLoader interface {
	Load(ctx context.Context, now time.Time) Input
}

// Sink receives every built snapshot, e.g. the API cache, history
// recorder or push channels.
type Sink interface {
	Name() string
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// RefresherOptions configures a Refresher.
type RefresherOptions struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Sinks   []Sink

	// Now defaults to time.Now.
	Now func() time.Time
}

// Refresher runs one load-build-publish cycle at a time.
type Refresher struct {
	loader     InputLoader
	aggregator *Aggregator
	sinks      []Sink
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time

	mu sync.Mutex
}

// NewRefresher creates a Refresher.
func NewRefresher(loader InputLoader, opts RefresherOptions) *Refresher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Refresher{
		loader:     loader,
		aggregator: NewAggregator(Options{Logger: logger, Metrics: opts.Metrics}),
		sinks:      opts.Sinks,
		logger:     logger,
		metrics:    opts.Metrics,
		now:        now,
	}
}

// Refresh builds a new snapshot and hands it to every sink. Sink failures
// are logged and counted; they never discard the snapshot.
func (r *Refresher) Refresh(ctx context.Context) domain.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	now := r.now()
	snap := r.aggregator.BuildSnapshot(r.loader.Load(ctx, now))

	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			r.metrics.RecordBroadcastError(sink.Name())
			r.logger.Warn("snapshot sink failed",
				zap.String("sink", sink.Name()),
				zap.Error(err))
		}
	}

	elapsed := time.Since(start)
	r.metrics.RecordRefresh(string(snap.Health.Overall), len(snap.Health.Issues),
		len(snap.LPPools), len(snap.SinglePools), elapsed.Seconds(), now.Unix())
	r.logger.Info("snapshot refreshed",
		zap.String("health", string(snap.Health.Overall)),
		zap.Int("lp_pools", len(snap.LPPools)),
		zap.Int("single_pools", len(snap.SinglePools)),
		zap.Int("diagnostics", len(snap.Diagnostics)),
		zap.Duration("elapsed", elapsed))
	return snap
}
