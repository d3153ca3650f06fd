package replay

import (
	"fmt"

	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
)

// MaxFeeBp is the largest fee a pool may charge, in basis points.
const MaxFeeBp = 10000

// Stats counts what happened to each event during a replay.
type Stats struct {
	Applied      int `json:"applied"`
	Duplicates   int `json:"duplicates"`
	Skipped      int `json:"skipped"`
	Placeholders int `json:"placeholders"`
}

// PoolReplay is the outcome of reducing pool lifecycle events.
type PoolReplay struct {
	Pools       map[string]domain.PoolState
	Diagnostics []domain.Diagnostic
	Stats       Stats
}

// PoolReducer folds pool lifecycle events into current pool state.
// A reducer holds no state between calls and is safe for concurrent use.
type PoolReducer struct {
	logger *zap.Logger
}

// NewPoolReducer creates a reducer. A nil logger is replaced by a no-op logger.
func NewPoolReducer(logger *zap.Logger) *PoolReducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoolReducer{logger: logger}
}

// ReducePools reduces events without logging.
func ReducePools(events []domain.NormalizedEvent) PoolReplay {
	return NewPoolReducer(nil).Reduce(events)
}

// Reduce replays events in canonical order and returns one state per
// observed entity key. Input order does not affect the result.
//
// Rules:
//   - the first Created event seeds the state with active=true
//   - ConfigUpdated overwrites only the fields it carries
//   - ConfigUpdated without a prior Created seeds a placeholder
//   - repeated deliveries of the same event apply once
//   - invalid events are skipped and reported, never fatal
func (r *PoolReducer) Reduce(events []domain.NormalizedEvent) PoolReplay {
	out := PoolReplay{Pools: make(map[string]domain.PoolState)}
	dd := newDeduper()

	skip := func(ev domain.NormalizedEvent, reason string) {
		out.Stats.Skipped++
		out.Diagnostics = append(out.Diagnostics, reduceDiag(ev, reason))
		r.logger.Debug("skipping pool event",
			zap.String("entity_key", ev.EntityKey),
			zap.String("tx_id", ev.TxID),
			zap.String("reason", reason))
	}

	for _, oe := range normalization.Order(events) {
		ev := oe.Event
		if !ev.Kind.IsPoolKind() {
			skip(ev, fmt.Sprintf("unexpected event kind %s", ev.Kind))
			continue
		}
		if ev.EntityKey == "" {
			skip(ev, "empty entity key")
			continue
		}

		dup, conflict := dd.check(oe)
		if dup {
			out.Stats.Duplicates++
			continue
		}
		if conflict {
			out.Diagnostics = append(out.Diagnostics,
				reduceDiag(ev, "conflicting payloads for the same event; both applied in fingerprint order"))
		}

		state, exists := out.Pools[ev.EntityKey]

		if err := checkPoolFields(ev.Fields); err != nil {
			if !exists {
				// The key was observed, so it must still appear in the output.
				out.Pools[ev.EntityKey] = placeholder(ev)
				out.Stats.Placeholders++
			}
			skip(ev, err.Error())
			continue
		}

		switch ev.Kind {
		case domain.EventCreated:
			if exists && !state.Placeholder {
				skip(ev, "duplicate creation event")
				continue
			}
			out.Pools[ev.EntityKey] = created(ev, state.UpdateCount)
		case domain.EventConfigUpdated:
			if !exists {
				state = placeholder(ev)
				out.Stats.Placeholders++
			}
			if ev.TimestampMs < state.LastTimestampMs {
				skip(ev, fmt.Sprintf("stale update at %d, state is at %d", ev.TimestampMs, state.LastTimestampMs))
				continue
			}
			applyConfig(&state, ev)
			out.Pools[ev.EntityKey] = state
		}
		out.Stats.Applied++
	}

	return out
}

// checkPoolFields validates the numeric fields an event carries.
func checkPoolFields(f domain.Fields) error {
	if v, present, fits := f.Int64(normalization.FieldAllocationPoints); present {
		if !fits {
			return fmt.Errorf("allocation points overflow")
		}
		if v < 0 {
			return fmt.Errorf("negative allocation points %d", v)
		}
	}
	for _, key := range []string{normalization.FieldDepositFee, normalization.FieldWithdrawalFee} {
		v, present, fits := f.Int64(key)
		if !present {
			continue
		}
		if !fits || v < 0 || v > MaxFeeBp {
			d, _ := f.Amount(key)
			return fmt.Errorf("%s out of range: %s", key, d.String())
		}
	}
	return nil
}

// placeholder synthesizes a state for a key whose creation event is missing.
func placeholder(ev domain.NormalizedEvent) domain.PoolState {
	kind := InferPoolKind(ev.EntityKey)
	return domain.PoolState{
		EntityKey:    ev.EntityKey,
		DisplayName:  DisplayName(ev.EntityKey, kind),
		Kind:         kind,
		Active:       true,
		IsLPToken:    kind == domain.PoolKindLP,
		IsNativePair: kind == domain.PoolKindLP && isNativePairKey(ev.EntityKey),
		Placeholder:  true,
	}
}

// created seeds a state from a creation event.
func created(ev domain.NormalizedEvent, priorUpdates int) domain.PoolState {
	kind := InferPoolKind(ev.EntityKey)
	if isLP, ok := ev.Fields.Bool(normalization.FieldIsLPToken); ok {
		kind = domain.PoolKindSingle
		if isLP {
			kind = domain.PoolKindLP
		}
	}
	s := domain.PoolState{
		EntityKey:       ev.EntityKey,
		DisplayName:     DisplayName(ev.EntityKey, kind),
		Kind:            kind,
		Active:          true,
		IsLPToken:       kind == domain.PoolKindLP,
		IsNativePair:    kind == domain.PoolKindLP && isNativePairKey(ev.EntityKey),
		CreatedTxID:     ev.TxID,
		CreatedAtMs:     ev.TimestampMs,
		LastTxID:        ev.TxID,
		LastTimestampMs: ev.TimestampMs,
		UpdateCount:     priorUpdates,
	}
	if v, ok := ev.Fields.Bool(normalization.FieldIsNativePair); ok {
		s.IsNativePair = v
	}
	s.AllocationPoints, _, _ = ev.Fields.Int64(normalization.FieldAllocationPoints)
	s.DepositFeeBp, _, _ = ev.Fields.Int64(normalization.FieldDepositFee)
	s.WithdrawalFeeBp, _, _ = ev.Fields.Int64(normalization.FieldWithdrawalFee)
	return s
}

// applyConfig overwrites only the fields carried by a config update.
func applyConfig(s *domain.PoolState, ev domain.NormalizedEvent) {
	if v, ok, _ := ev.Fields.Int64(normalization.FieldAllocationPoints); ok {
		s.AllocationPoints = v
	}
	if v, ok, _ := ev.Fields.Int64(normalization.FieldDepositFee); ok {
		s.DepositFeeBp = v
	}
	if v, ok, _ := ev.Fields.Int64(normalization.FieldWithdrawalFee); ok {
		s.WithdrawalFeeBp = v
	}
	if v, ok := ev.Fields.Bool(normalization.FieldActive); ok {
		s.Active = v
	}
	s.LastTxID = ev.TxID
	s.LastTimestampMs = ev.TimestampMs
	s.UpdateCount++
}
