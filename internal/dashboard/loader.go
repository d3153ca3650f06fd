package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
	"victory-readmodel/internal/replay"
	"victory-readmodel/internal/storage"
)

// EventSource returns every event of one fully qualified event type.
type EventSource interface {
	QueryEvents(ctx context.Context, eventType string) ([]domain.RawEvent, error)
}

// ObjectReader returns the content fields of a ledger object.
type ObjectReader interface {
	GetObject(ctx context.Context, objectID string) (map[string]any, error)
}

var (
	errNotFetched    = errors.New("not fetched")
	errNotConfigured = errors.New("not configured")
)

// LoaderConfig names the ledger inputs of a snapshot.
type LoaderConfig struct {
	PoolEventTypes       []string
	AllocationEventTypes []string
	RevenueEventTypes    []string

	LockerObjectID string
	VictoryVaultID string
	SUIVaultID     string

	DefaultEpochDurationMs int64

	// Concurrency bounds the number of in-flight fetches. Defaults to 8.
	Concurrency int
}

// Loader fetches every snapshot input concurrently.
type Loader struct {
	events     EventSource
	objects    ObjectReader
	cfg        LoaderConfig
	pool       pond.Pool
	normalizer *normalization.Normalizer
	logger     *zap.Logger
}

// NewLoader creates a Loader. Call Close to release its worker pool.
func NewLoader(events EventSource, objects ObjectReader, cfg LoaderConfig, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	return &Loader{
		events:     events,
		objects:    objects,
		cfg:        cfg,
		pool:       pond.NewPool(cfg.Concurrency),
		normalizer: normalization.NewNormalizer(logger),
		logger:     logger,
	}
}

// Close stops the worker pool after queued fetches finish.
func (l *Loader) Close() {
	l.pool.StopAndWait()
}

type eventSlot struct {
	eventType string
	events    []domain.RawEvent
	err       error
}

type objectSlot struct {
	objectID string
	fields   map[string]any
	err      error
}

// Load issues all fetches at once and waits for every one of them.
// It never fails: each section of the returned Input carries its own error.
func (l *Loader) Load(ctx context.Context, now time.Time) Input {
	start := time.Now()

	poolSlots := newEventSlots(l.cfg.PoolEventTypes)
	allocSlots := newEventSlots(l.cfg.AllocationEventTypes)
	revenueSlots := newEventSlots(l.cfg.RevenueEventTypes)
	locker := newObjectSlot(l.cfg.LockerObjectID)
	victoryVault := newObjectSlot(l.cfg.VictoryVaultID)
	suiVault := newObjectSlot(l.cfg.SUIVaultID)

	// A plain group waits for every task, so slots are only read once all
	// writers are done. Cancellation is observed inside each task.
	group := l.pool.NewGroup()

	for _, slots := range [][]*eventSlot{poolSlots, allocSlots, revenueSlots} {
		for _, slot := range slots {
			group.Submit(func() {
				if err := ctx.Err(); err != nil {
					slot.err = err
					return
				}
				slot.events, slot.err = l.events.QueryEvents(ctx, slot.eventType)
			})
		}
	}
	for _, slot := range []*objectSlot{locker, victoryVault, suiVault} {
		if slot.objectID == "" {
			continue
		}
		group.Submit(func() {
			if err := ctx.Err(); err != nil {
				slot.err = err
				return
			}
			slot.fields, slot.err = l.objects.GetObject(ctx, slot.objectID)
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, pond.ErrGroupStopped) {
		l.logger.Warn("snapshot fetch encountered error", zap.Error(err))
	}

	in := Input{
		PoolEvents:             joinEvents(poolSlots),
		RevenueEvents:          joinEvents(revenueSlots),
		NowMs:                  now.UnixMilli(),
		DefaultEpochDurationMs: l.cfg.DefaultEpochDurationMs,
	}

	allocEvents := joinEvents(allocSlots)
	if allocEvents.OK() {
		events, diags := l.normalizer.NormalizeBatch(allocEvents.Value)
		records, rdiags := replay.ReduceAllocations(events)
		in.Diagnostics = append(in.Diagnostics, diags...)
		in.Diagnostics = append(in.Diagnostics, rdiags...)
		in.AllocationSets = domain.Ok(replay.LatestSets(records))
	} else {
		in.AllocationSets = domain.Failed[map[domain.RewardToken]domain.AllocationSet](allocEvents.Err)
	}

	if locker.err != nil {
		in.Locker = domain.Failed[domain.LockerState](fmt.Errorf("locker %s: %w", locker.objectID, locker.err))
	} else {
		state, diags := normalization.ParseLockerState(locker.fields)
		in.Diagnostics = append(in.Diagnostics, diags...)
		in.Locker = domain.Ok(state)
	}

	in.Vaults = l.vaults(victoryVault, suiVault)

	l.logger.Debug("snapshot inputs loaded",
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("pool_events", in.PoolEvents.OK()),
		zap.Bool("revenue_events", in.RevenueEvents.OK()),
		zap.Bool("allocations", in.AllocationSets.OK()),
		zap.Bool("locker", in.Locker.OK()),
		zap.Bool("vaults", in.Vaults.OK()))
	return in
}

func (l *Loader) vaults(victory, sui *objectSlot) domain.Result[domain.VaultBalances] {
	for _, slot := range []*objectSlot{victory, sui} {
		if slot.err != nil {
			return domain.Failed[domain.VaultBalances](fmt.Errorf("vault %s: %w", slot.objectID, slot.err))
		}
	}
	balances, err := normalization.ParseVaultBalances(victory.fields, sui.fields)
	if err != nil {
		return domain.Failed[domain.VaultBalances](err)
	}
	return domain.Ok(balances)
}

func newEventSlots(types []string) []*eventSlot {
	slots := make([]*eventSlot, len(types))
	for i, t := range types {
		slots[i] = &eventSlot{eventType: t, err: errNotFetched}
	}
	return slots
}

func newObjectSlot(id string) *objectSlot {
	if id == "" {
		return &objectSlot{err: errNotConfigured}
	}
	return &objectSlot{objectID: id, err: errNotFetched}
}

// joinEvents concatenates the slots of one section. The section fails if any
// of its event types failed, so that a partial history is never replayed.
func joinEvents(slots []*eventSlot) domain.Result[[]domain.RawEvent] {
	var out []domain.RawEvent
	for _, slot := range slots {
		if slot.err != nil {
			return domain.Failed[[]domain.RawEvent](fmt.Errorf("query %s: %w", slot.eventType, slot.err))
		}
		out = append(out, slot.events...)
	}
	return domain.Ok(out)
}

// ArchiveSource serves events from the raw-event archive instead of the ledger.
type ArchiveSource struct {
	store storage.RawEventStore
}

// NewArchiveSource creates an ArchiveSource over store.
func NewArchiveSource(store storage.RawEventStore) *ArchiveSource {
	return &ArchiveSource{store: store}
}

// QueryEvents implements EventSource.
func (s *ArchiveSource) QueryEvents(ctx context.Context, eventType string) ([]domain.RawEvent, error) {
	events, err := s.store.GetByType(ctx, eventType)
	if err != nil {
		return nil, err
	}
	out := make([]domain.RawEvent, len(events))
	for i, e := range events {
		out[i] = *e
	}
	return out, nil
}
