package normalization

import (
	"sort"
	"strings"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/idhash"
)

// OrderedEvent pairs an event with its content fingerprint.
type OrderedEvent struct {
	Event       domain.NormalizedEvent
	Fingerprint string
}

// Order returns the events in replay order:
// (timestamp ASC, tx_id ASC, event_seq ASC, kind rank ASC, entity_key ASC, fingerprint ASC).
// The input slice is not modified.
func Order(events []domain.NormalizedEvent) []OrderedEvent {
	out := make([]OrderedEvent, len(events))
	for i, ev := range events {
		out[i] = OrderedEvent{Event: ev, Fingerprint: idhash.FieldsFingerprint(ev.Fields)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return compareOrdered(&out[i], &out[j]) < 0
	})
	return out
}

// SortEvents orders events in place using the same rules as Order.
func SortEvents(events []domain.NormalizedEvent) {
	ordered := Order(events)
	for i := range ordered {
		events[i] = ordered[i].Event
	}
}

func compareOrdered(a, b *OrderedEvent) int {
	if c := CompareEvents(&a.Event, &b.Event); c != 0 {
		return c
	}
	return strings.Compare(a.Fingerprint, b.Fingerprint)
}

// CompareEvents returns:
//   - negative if a < b
//   - zero if a == b
//   - positive if a > b
//
// Field content is not compared; use Order for a total order.
func CompareEvents(a, b *domain.NormalizedEvent) int {
	if a.TimestampMs != b.TimestampMs {
		if a.TimestampMs < b.TimestampMs {
			return -1
		}
		return 1
	}
	if a.TxID != b.TxID {
		if a.TxID < b.TxID {
			return -1
		}
		return 1
	}
	if c := compareSeq(a.EventSeq, b.EventSeq); c != 0 {
		return c
	}
	if ao, bo := a.Kind.Order(), b.Kind.Order(); ao != bo {
		if ao < bo {
			return -1
		}
		return 1
	}
	return strings.Compare(a.EntityKey, b.EntityKey)
}

// compareSeq orders event sequence numbers numerically when both are
// decimal digit strings, lexically otherwise.
func compareSeq(a, b string) int {
	if isDigits(a) && isDigits(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
