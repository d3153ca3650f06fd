package domain

import (
	"github.com/shopspring/decimal"
)

// RawEvent is a ledger event exactly as delivered by the event fetcher.
// Immutable once produced.
type RawEvent struct {
	TypeTag     string         `json:"type"`         // fully qualified Move event type
	Payload     map[string]any `json:"parsed_json"`  // event body, mixed key casing
	TimestampMs string         `json:"timestamp_ms"` // numeric string, milliseconds
	TxID        string         `json:"tx_digest"`    // transaction digest
	EventSeq    string         `json:"event_seq"`    // index within transaction, may be empty
}

// EventKind classifies a normalized event.
type EventKind string

const (
	EventCreated            EventKind = "Created"
	EventConfigUpdated      EventKind = "ConfigUpdated"
	EventAllocationsUpdated EventKind = "AllocationsUpdated"
	EventRevenueAdded       EventKind = "RevenueAdded"
)

// Order returns the replay rank of the kind when two events share a timestamp
// and transaction. Creation always precedes updates.
func (k EventKind) Order() int {
	switch k {
	case EventCreated:
		return 0
	case EventConfigUpdated:
		return 1
	case EventAllocationsUpdated:
		return 2
	case EventRevenueAdded:
		return 3
	default:
		return 4
	}
}

// IsPoolKind reports whether the kind belongs to the pool lifecycle.
func (k EventKind) IsPoolKind() bool {
	return k == EventCreated || k == EventConfigUpdated
}

// NormalizedEvent is the canonical form of a RawEvent.
type NormalizedEvent struct {
	Kind        EventKind `json:"kind"`
	EventName   string    `json:"event_name"`
	EntityKey   string    `json:"entity_key"`
	Fields      Fields    `json:"fields"`
	TimestampMs int64     `json:"timestamp_ms"`
	TxID        string    `json:"tx_id"`
	EventSeq    string    `json:"event_seq,omitempty"`
}

// Fields holds canonical field names mapped to canonical values.
// Values are restricted to string, bool and decimal.Decimal (integral).
type Fields map[string]any

// String returns a string field.
func (f Fields) String(key string) (string, bool) {
	v, ok := f[key].(string)
	return v, ok
}

// Bool returns a boolean field.
func (f Fields) Bool(key string) (bool, bool) {
	v, ok := f[key].(bool)
	return v, ok
}

// Amount returns an integer field at full precision.
func (f Fields) Amount(key string) (decimal.Decimal, bool) {
	v, ok := f[key].(decimal.Decimal)
	return v, ok
}

// Int64 returns an integer field narrowed to int64.
// The second result is false if the field is absent; the third is false
// if it is present but does not fit.
func (f Fields) Int64(key string) (value int64, present bool, fits bool) {
	d, ok := f.Amount(key)
	if !ok {
		return 0, false, false
	}
	bi := d.BigInt()
	if !bi.IsInt64() {
		return 0, true, false
	}
	return bi.Int64(), true, true
}
