package replay

import (
	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
)

// eventIdentity is what makes two deliveries the same ledger event.
type eventIdentity struct {
	kind      domain.EventKind
	entityKey string
	txID      string
	eventSeq  string
	timestamp int64
}

type exactIdentity struct {
	eventIdentity
	fingerprint string
}

// deduper drops repeated deliveries of the same event.
type deduper struct {
	exact map[exactIdentity]struct{}
	seen  map[eventIdentity]struct{}
}

func newDeduper() *deduper {
	return &deduper{
		exact: make(map[exactIdentity]struct{}),
		seen:  make(map[eventIdentity]struct{}),
	}
}

// check reports whether the event is an exact duplicate of one already seen,
// and whether it shares an identity with a different payload.
func (d *deduper) check(oe normalization.OrderedEvent) (duplicate, conflict bool) {
	id := eventIdentity{
		kind:      oe.Event.Kind,
		entityKey: oe.Event.EntityKey,
		txID:      oe.Event.TxID,
		eventSeq:  oe.Event.EventSeq,
		timestamp: oe.Event.TimestampMs,
	}
	exact := exactIdentity{eventIdentity: id, fingerprint: oe.Fingerprint}
	if _, ok := d.exact[exact]; ok {
		return true, false
	}
	d.exact[exact] = struct{}{}
	if _, ok := d.seen[id]; ok {
		return false, true
	}
	d.seen[id] = struct{}{}
	return false, false
}

func reduceDiag(ev domain.NormalizedEvent, reason string) domain.Diagnostic {
	return domain.Diagnostic{
		Stage:     domain.StageReduce,
		EventType: ev.EventName,
		TxID:      ev.TxID,
		EntityKey: ev.EntityKey,
		Reason:    reason,
	}
}
