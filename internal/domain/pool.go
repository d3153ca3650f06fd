package domain

// PoolKind distinguishes LP farm pools from single-asset pools.
type PoolKind string

const (
	PoolKindLP     PoolKind = "LP"
	PoolKindSingle PoolKind = "Single"
)

// PoolState is the reconstructed current state of one farm pool.
// Created once per entity key and never deleted; deactivation only flips Active.
type PoolState struct {
	EntityKey        string   `json:"entity_key"`
	DisplayName      string   `json:"display_name"`
	Kind             PoolKind `json:"kind"`
	AllocationPoints int64    `json:"allocation_points"`
	DepositFeeBp     int64    `json:"deposit_fee_bp"`
	WithdrawalFeeBp  int64    `json:"withdrawal_fee_bp"`
	Active           bool     `json:"active"`
	IsNativePair     bool     `json:"is_native_pair"`
	IsLPToken        bool     `json:"is_lp_token"`

	// Placeholder is set when the state was synthesized from an update
	// because the creation event is no longer in the retained history.
	Placeholder bool `json:"placeholder"`

	CreatedTxID     string `json:"created_tx_id,omitempty"`
	CreatedAtMs     int64  `json:"created_at_ms,omitempty"`
	LastTxID        string `json:"last_tx_id"`
	LastTimestampMs int64  `json:"last_timestamp_ms"`
	UpdateCount     int    `json:"update_count"`
}

// PoolStateRecord is a pool state captured by one dashboard refresh.
type PoolStateRecord struct {
	RefreshID     string    `json:"refresh_id"`
	GeneratedAtMs int64     `json:"generated_at_ms"`
	State         PoolState `json:"state"`
}
