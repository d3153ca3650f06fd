package domain

import "github.com/shopspring/decimal"

// HealthLevel is the overall dashboard health.
type HealthLevel string

const (
	HealthHealthy HealthLevel = "healthy"
	HealthWarning HealthLevel = "warning"
	HealthError   HealthLevel = "error"
)

// HealthIssue is a single problem found while building a snapshot.
type HealthIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Health summarizes issues into an overall level.
type Health struct {
	Overall HealthLevel   `json:"overall"`
	Issues  []HealthIssue `json:"issues"`
}

// AllocationReport pairs an allocation set with its validation outcome.
type AllocationReport struct {
	Token     RewardToken   `json:"token"`
	Available bool          `json:"available"`
	Set       AllocationSet `json:"set"`
	Valid     bool          `json:"valid"`
	TotalBp   int64         `json:"total_bp"`
	Errors    []string      `json:"errors,omitempty"`
}

// PoolTotals aggregates allocation points per pool family.
type PoolTotals struct {
	LPAllocationPoints     int64 `json:"lp_allocation_points"`
	SingleAllocationPoints int64 `json:"single_allocation_points"`
	ActivePools            int   `json:"active_pools"`
	PlaceholderPools       int   `json:"placeholder_pools"`
}

// VaultSection reports reward vault balances; Available is false when the
// fetch failed and the balances were defaulted to zero.
type VaultSection struct {
	Available bool            `json:"available"`
	Victory   decimal.Decimal `json:"victory"`
	SUI       decimal.Decimal `json:"sui"`
}

// Snapshot is the read model handed to presentation code. Plain JSON, versionless.
type Snapshot struct {
	GeneratedAtMs int64              `json:"generated_at_ms"`
	LPPools       []PoolState        `json:"lp_pools"`
	SinglePools   []PoolState        `json:"single_pools"`
	Totals        PoolTotals         `json:"totals"`
	Locker        LockerState        `json:"locker"`
	Vaults        VaultSection       `json:"vaults"`
	CurrentEpoch  EpochStatus        `json:"current_epoch"`
	LastEpoch     *EpochStatus       `json:"last_epoch,omitempty"`
	Allocations   []AllocationReport `json:"allocations"`
	Revenue       []RevenueRecord    `json:"revenue"`
	Health        Health             `json:"health"`
	Diagnostics   []Diagnostic       `json:"diagnostics"`
}

// Pool returns the pool with the given key from either list.
func (s *Snapshot) Pool(key string) (PoolState, bool) {
	for _, p := range s.LPPools {
		if p.EntityKey == key {
			return p, true
		}
	}
	for _, p := range s.SinglePools {
		if p.EntityKey == key {
			return p, true
		}
	}
	return PoolState{}, false
}

// HealthRecord is the health of one refresh, kept for history.
type HealthRecord struct {
	RefreshID     string      `json:"refresh_id"`
	GeneratedAtMs int64       `json:"generated_at_ms"`
	Overall       HealthLevel `json:"overall"`
	IssueCodes    []string    `json:"issue_codes"`
	PoolCount     int         `json:"pool_count"`
}
