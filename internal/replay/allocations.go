package replay

import (
	"fmt"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
)

// ReduceAllocations returns the latest allocation set per reward token.
// Sets are not validated here; an invalid set is kept so that callers can
// report it.
func ReduceAllocations(events []domain.NormalizedEvent) (map[domain.RewardToken]domain.AllocationRecord, []domain.Diagnostic) {
	out := make(map[domain.RewardToken]domain.AllocationRecord)
	var diags []domain.Diagnostic
	dd := newDeduper()

	for _, oe := range normalization.Order(events) {
		ev := oe.Event
		if ev.Kind != domain.EventAllocationsUpdated {
			diags = append(diags, reduceDiag(ev, fmt.Sprintf("unexpected event kind %s", ev.Kind)))
			continue
		}
		if dup, _ := dd.check(oe); dup {
			continue
		}

		set, err := allocationSet(ev.Fields)
		if err != nil {
			diags = append(diags, reduceDiag(ev, err.Error()))
			continue
		}
		token := domain.RewardToken(ev.EntityKey)
		out[token] = domain.AllocationRecord{
			Token:       token,
			Set:         set,
			TxID:        ev.TxID,
			TimestampMs: ev.TimestampMs,
		}
	}
	return out, diags
}

// LatestSets drops record metadata.
func LatestSets(records map[domain.RewardToken]domain.AllocationRecord) map[domain.RewardToken]domain.AllocationSet {
	out := make(map[domain.RewardToken]domain.AllocationSet, len(records))
	for token, rec := range records {
		out[token] = rec.Set
	}
	return out
}

func allocationSet(f domain.Fields) (domain.AllocationSet, error) {
	var set domain.AllocationSet
	targets := []struct {
		key string
		dst *int64
	}{
		{normalization.FieldWeek, &set.Week},
		{normalization.FieldThreeMonth, &set.ThreeMonth},
		{normalization.FieldYear, &set.Year},
		{normalization.FieldThreeYear, &set.ThreeYear},
	}
	for _, t := range targets {
		v, present, fits := f.Int64(t.key)
		if !present {
			return set, fmt.Errorf("missing %s allocation", t.key)
		}
		if !fits {
			return set, fmt.Errorf("%s allocation overflows", t.key)
		}
		*t.dst = v
	}
	return set, nil
}
