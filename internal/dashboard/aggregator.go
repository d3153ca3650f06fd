// Package dashboard composes reducer output, epoch timing, allocation
// validation and vault balances into the snapshot served to the admin console.
package dashboard

import (
	"sort"

	"go.uber.org/zap"

	"victory-readmodel/internal/allocation"
	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/epoch"
	"victory-readmodel/internal/normalization"
	"victory-readmodel/internal/observability"
	"victory-readmodel/internal/replay"
)

// Input is everything a snapshot is built from. Each fetched section carries
// its own error so one failed fetch never hides the others.
type Input struct {
	PoolEvents     domain.Result[[]domain.RawEvent]
	RevenueEvents  domain.Result[[]domain.RawEvent]
	AllocationSets domain.Result[map[domain.RewardToken]domain.AllocationSet]
	Locker         domain.Result[domain.LockerState]
	Vaults         domain.Result[domain.VaultBalances]

	// EpochFlags are chain facts known for specific epochs, merged with the
	// flags carried by the locker object.
	EpochFlags []domain.EpochFlags

	// Diagnostics collected while loading the inputs.
	Diagnostics []domain.Diagnostic

	NowMs                  int64
	DefaultEpochDurationMs int64
}

// Options configures an Aggregator.
type Options struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// Aggregator builds dashboard snapshots. It holds no state between calls.
type Aggregator struct {
	logger     *zap.Logger
	metrics    *observability.Metrics
	normalizer *normalization.Normalizer
	reducer    *replay.PoolReducer
}

// NewAggregator creates an Aggregator.
func NewAggregator(opts Options) *Aggregator {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		logger:     logger,
		metrics:    opts.Metrics,
		normalizer: normalization.NewNormalizer(logger),
		reducer:    replay.NewPoolReducer(logger),
	}
}

// BuildSnapshot composes a snapshot from in. It never fails: fetch errors
// become health issues and malformed records become diagnostics.
func (a *Aggregator) BuildSnapshot(in Input) domain.Snapshot {
	snap := domain.Snapshot{
		GeneratedAtMs: in.NowMs,
		LPPools:       []domain.PoolState{},
		SinglePools:   []domain.PoolState{},
		Allocations:   []domain.AllocationReport{},
		Revenue:       []domain.RevenueRecord{},
		Diagnostics:   append([]domain.Diagnostic{}, in.Diagnostics...),
	}
	var issues []domain.HealthIssue

	// Pools
	if in.PoolEvents.OK() {
		events, diags := a.normalizer.NormalizeBatch(in.PoolEvents.Value)
		snap.Diagnostics = append(snap.Diagnostics, diags...)
		result := a.reducer.Reduce(events)
		snap.Diagnostics = append(snap.Diagnostics, result.Diagnostics...)
		snap.LPPools, snap.SinglePools = splitPools(result.Pools)
		snap.Totals = totals(snap.LPPools, snap.SinglePools)
		a.metrics.RecordReplay("pool", result.Stats.Applied, result.Stats.Duplicates)
	} else {
		issues = append(issues, fetchFailed(sectionPoolEvents, in.PoolEvents.Err))
	}

	// Revenue
	var finalizedByRevenue map[int64]bool
	if in.RevenueEvents.OK() {
		events, diags := a.normalizer.NormalizeBatch(in.RevenueEvents.Value)
		snap.Diagnostics = append(snap.Diagnostics, diags...)
		records, rdiags := replay.ReduceRevenue(events)
		snap.Diagnostics = append(snap.Diagnostics, rdiags...)
		if records != nil {
			snap.Revenue = records
		}
		finalizedByRevenue = replay.FinalizedEpochs(records)
	} else {
		issues = append(issues, fetchFailed(sectionRevenueEvents, in.RevenueEvents.Err))
	}

	// Locker and epochs
	if in.Locker.OK() {
		snap.Locker = in.Locker.Value
	} else {
		issues = append(issues, fetchFailed(sectionLocker, in.Locker.Err))
	}
	durationMs := snap.Locker.EpochDurationMs
	if durationMs <= 0 {
		durationMs = in.DefaultEpochDurationMs
	}
	flags := mergeFlags(in.EpochFlags, snap.Locker, finalizedByRevenue)

	snap.CurrentEpoch = epoch.ComputeCurrentEpoch(in.NowMs, snap.Locker.ProtocolStartMs, durationMs)
	if snap.CurrentEpoch.Initialized() {
		snap.CurrentEpoch = epoch.ApplyFlags(snap.CurrentEpoch, flagsFor(flags, snap.CurrentEpoch.ID))
		lastID := snap.Locker.CurrentEpochID
		if lastID <= 0 {
			lastID = snap.CurrentEpoch.ID - 1
		}
		if lastID >= 1 {
			last := epoch.ComputeEpoch(lastID, in.NowMs, snap.Locker.ProtocolStartMs, durationMs)
			if last.Initialized() {
				last = epoch.ApplyFlags(last, flagsFor(flags, lastID))
				snap.LastEpoch = &last
			}
		}
	} else if in.Locker.OK() {
		issues = append(issues, protocolUninitialized(snap.Locker, durationMs))
	}
	if issue, ok := unfinalizedEpoch(snap.LastEpoch); ok {
		issues = append(issues, issue)
	}

	// Allocations
	for _, token := range domain.RewardTokens {
		report := domain.AllocationReport{Token: token}
		if !in.AllocationSets.OK() {
			snap.Allocations = append(snap.Allocations, report)
			continue
		}
		set, ok := in.AllocationSets.Value[token]
		if !ok {
			snap.Allocations = append(snap.Allocations, report)
			issues = append(issues, allocationsMissing(token))
			continue
		}
		res := allocation.Validate(set)
		report.Available = true
		report.Set = set
		report.Valid = res.Valid
		report.TotalBp = res.TotalBp
		report.Errors = res.Errors
		snap.Allocations = append(snap.Allocations, report)
		if !res.Valid {
			issues = append(issues, allocationsInvalid(token, res))
		}
	}
	if !in.AllocationSets.OK() {
		issues = append(issues, fetchFailed(sectionAllocations, in.AllocationSets.Err))
	}

	// Vaults
	if in.Vaults.OK() {
		snap.Vaults = domain.VaultSection{
			Available: true,
			Victory:   in.Vaults.Value.Victory,
			SUI:       in.Vaults.Value.SUI,
		}
		issues = append(issues, emptyVaults(in.Vaults.Value)...)
	} else {
		issues = append(issues, fetchFailed(sectionVaults, in.Vaults.Err))
	}

	snap.Health = summarize(issues)

	for _, d := range snap.Diagnostics {
		a.metrics.RecordDiagnostic(d.Stage)
	}
	for _, issue := range issues {
		if section, ok := fetchSection(issue.Code); ok {
			a.metrics.RecordFetchFailure(section)
		}
	}
	if len(issues) > 0 {
		a.logger.Info("snapshot built with health issues",
			zap.String("overall", string(snap.Health.Overall)),
			zap.Int("issues", len(issues)),
			zap.Int("diagnostics", len(snap.Diagnostics)))
	}
	return snap
}

// splitPools separates pools by kind, each list ordered by entity key.
func splitPools(pools map[string]domain.PoolState) (lp, single []domain.PoolState) {
	keys := make([]string, 0, len(pools))
	for k := range pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lp = []domain.PoolState{}
	single = []domain.PoolState{}
	for _, k := range keys {
		p := pools[k]
		if p.Kind == domain.PoolKindLP {
			lp = append(lp, p)
		} else {
			single = append(single, p)
		}
	}
	return lp, single
}

func totals(lp, single []domain.PoolState) domain.PoolTotals {
	var t domain.PoolTotals
	count := func(p domain.PoolState) {
		if p.Active {
			t.ActivePools++
		}
		if p.Placeholder {
			t.PlaceholderPools++
		}
	}
	for _, p := range lp {
		t.LPAllocationPoints += p.AllocationPoints
		count(p)
	}
	for _, p := range single {
		t.SingleAllocationPoints += p.AllocationPoints
		count(p)
	}
	return t
}

// mergeFlags collects the flags known per epoch id. Flags are OR-ed: a fact
// reported by any source holds. Supplied flags without an epoch id are kept
// under key 0 and apply to every epoch, see flagsFor.
func mergeFlags(supplied []domain.EpochFlags, locker domain.LockerState, finalized map[int64]bool) map[int64]domain.EpochFlags {
	out := make(map[int64]domain.EpochFlags)
	merge := func(f domain.EpochFlags) {
		cur := out[f.EpochID]
		cur.EpochID = f.EpochID
		cur.AllocationsFinalized = cur.AllocationsFinalized || f.AllocationsFinalized
		cur.IsClaimable = cur.IsClaimable || f.IsClaimable
		out[f.EpochID] = cur
	}
	for _, f := range supplied {
		if f.EpochID < 0 {
			continue
		}
		merge(f)
	}
	if locker.CurrentEpochID > 0 {
		merge(domain.EpochFlags{
			EpochID:              locker.CurrentEpochID,
			AllocationsFinalized: locker.AllocationsFinalized,
			IsClaimable:          locker.IsClaimable,
		})
	}
	for id, ok := range finalized {
		if ok {
			merge(domain.EpochFlags{EpochID: id, AllocationsFinalized: true})
		}
	}
	return out
}

// flagsFor returns the flags recorded for id OR-ed with the unscoped ones.
func flagsFor(flags map[int64]domain.EpochFlags, id int64) domain.EpochFlags {
	f := flags[id]
	unscoped := flags[0]
	f.EpochID = id
	f.AllocationsFinalized = f.AllocationsFinalized || unscoped.AllocationsFinalized
	f.IsClaimable = f.IsClaimable || unscoped.IsClaimable
	return f
}
