package replay

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
)

// ReduceRevenue sums revenue per epoch over distinct events, ordered by epoch id.
func ReduceRevenue(events []domain.NormalizedEvent) ([]domain.RevenueRecord, []domain.Diagnostic) {
	byEpoch := make(map[int64]*domain.RevenueRecord)
	var diags []domain.Diagnostic
	dd := newDeduper()

	for _, oe := range normalization.Order(events) {
		ev := oe.Event
		if ev.Kind != domain.EventRevenueAdded {
			diags = append(diags, reduceDiag(ev, fmt.Sprintf("unexpected event kind %s", ev.Kind)))
			continue
		}
		if dup, _ := dd.check(oe); dup {
			continue
		}

		id, present, fits := ev.Fields.Int64(normalization.FieldEpochID)
		if !present || !fits || id < 0 {
			diags = append(diags, reduceDiag(ev, "invalid epoch id"))
			continue
		}
		amount, ok := ev.Fields.Amount(normalization.FieldAmount)
		if !ok {
			diags = append(diags, reduceDiag(ev, "missing revenue amount"))
			continue
		}
		if amount.Sign() < 0 {
			diags = append(diags, reduceDiag(ev, fmt.Sprintf("negative revenue amount %s", amount.String())))
			continue
		}

		rec, ok := byEpoch[id]
		if !ok {
			rec = &domain.RevenueRecord{EpochID: id, Amount: decimal.Zero}
			byEpoch[id] = rec
		}
		rec.Amount = rec.Amount.Add(amount)
		rec.EventCount++
		rec.LastTxID = ev.TxID
		rec.TimestampMs = ev.TimestampMs
	}

	out := make([]domain.RevenueRecord, 0, len(byEpoch))
	for _, rec := range byEpoch {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EpochID < out[j].EpochID })
	return out, diags
}

// FinalizedEpochs returns the epoch ids that have revenue recorded.
func FinalizedEpochs(records []domain.RevenueRecord) map[int64]bool {
	out := make(map[int64]bool, len(records))
	for _, rec := range records {
		out[rec.EpochID] = true
	}
	return out
}
