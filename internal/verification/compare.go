package verification

import (
	"sort"

	"victory-readmodel/internal/domain"
)

// ComparePoolStates compares two pool maps and returns divergences ordered by
// entity key. A pool present on one side only diverges on field "Present".
func ComparePoolStates(expected, actual map[string]domain.PoolState) []FieldDivergence {
	keys := make(map[string]struct{}, len(expected)+len(actual))
	for k := range expected {
		keys[k] = struct{}{}
	}
	for k := range actual {
		keys[k] = struct{}{}
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var divergences []FieldDivergence
	for _, k := range sorted {
		e, inExpected := expected[k]
		a, inActual := actual[k]
		if inExpected != inActual {
			divergences = append(divergences, FieldDivergence{
				EntityKey: k,
				Field:     "Present",
				Expected:  inExpected,
				Actual:    inActual,
			})
			continue
		}
		divergences = append(divergences, comparePool(k, e, a)...)
	}
	return divergences
}

func comparePool(key string, e, a domain.PoolState) []FieldDivergence {
	var divergences []FieldDivergence
	check := func(field string, expected, actual any) {
		if expected != actual {
			divergences = append(divergences, FieldDivergence{
				EntityKey: key,
				Field:     field,
				Expected:  expected,
				Actual:    actual,
			})
		}
	}

	check("DisplayName", e.DisplayName, a.DisplayName)
	check("Kind", e.Kind, a.Kind)
	check("AllocationPoints", e.AllocationPoints, a.AllocationPoints)
	check("DepositFeeBp", e.DepositFeeBp, a.DepositFeeBp)
	check("WithdrawalFeeBp", e.WithdrawalFeeBp, a.WithdrawalFeeBp)
	check("Active", e.Active, a.Active)
	check("IsNativePair", e.IsNativePair, a.IsNativePair)
	check("IsLPToken", e.IsLPToken, a.IsLPToken)
	check("Placeholder", e.Placeholder, a.Placeholder)
	check("CreatedTxID", e.CreatedTxID, a.CreatedTxID)
	check("CreatedAtMs", e.CreatedAtMs, a.CreatedAtMs)
	check("LastTxID", e.LastTxID, a.LastTxID)
	check("LastTimestampMs", e.LastTimestampMs, a.LastTimestampMs)
	check("UpdateCount", e.UpdateCount, a.UpdateCount)

	return divergences
}
