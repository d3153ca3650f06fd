package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RewardToken identifies one of the two token-locker reward streams.
type RewardToken string

const (
	RewardVictory RewardToken = "VICTORY"
	RewardSUI     RewardToken = "SUI"
)

// RewardTokens lists reward tokens in presentation order.
var RewardTokens = []RewardToken{RewardVictory, RewardSUI}

// LockPeriod is one of the fixed lock-duration buckets.
type LockPeriod int

const (
	LockWeek LockPeriod = iota
	LockThreeMonth
	LockYear
	LockThreeYear
)

// Duration returns the lock length of the bucket.
func (p LockPeriod) Duration() time.Duration {
	const day = 24 * time.Hour
	switch p {
	case LockWeek:
		return 7 * day
	case LockThreeMonth:
		return 90 * day
	case LockYear:
		return 365 * day
	case LockThreeYear:
		return 3 * 365 * day
	default:
		return 0
	}
}

func (p LockPeriod) String() string {
	switch p {
	case LockWeek:
		return "week"
	case LockThreeMonth:
		return "three_month"
	case LockYear:
		return "year"
	case LockThreeYear:
		return "three_year"
	default:
		return "unknown"
	}
}

// AllocationSet splits a reward stream across lock periods, in basis points.
// A valid set sums to exactly 10000; in-progress edits may be invalid.
type AllocationSet struct {
	Week       int64 `json:"week" validate:"min=0,max=10000"`
	ThreeMonth int64 `json:"three_month" validate:"min=0,max=10000"`
	Year       int64 `json:"year" validate:"min=0,max=10000"`
	ThreeYear  int64 `json:"three_year" validate:"min=0,max=10000"`
}

// Get returns the allocation of a single bucket.
func (s AllocationSet) Get(p LockPeriod) int64 {
	switch p {
	case LockWeek:
		return s.Week
	case LockThreeMonth:
		return s.ThreeMonth
	case LockYear:
		return s.Year
	case LockThreeYear:
		return s.ThreeYear
	default:
		return 0
	}
}

// Total sums all buckets.
func (s AllocationSet) Total() int64 {
	return s.Week + s.ThreeMonth + s.Year + s.ThreeYear
}

// AllocationRecord is the latest allocation set observed for a reward token.
type AllocationRecord struct {
	Token       RewardToken   `json:"token"`
	Set         AllocationSet `json:"set"`
	TxID        string        `json:"tx_id"`
	TimestampMs int64         `json:"timestamp_ms"`
}

// RevenueRecord aggregates revenue distributed for one epoch.
type RevenueRecord struct {
	EpochID     int64           `json:"epoch_id"`
	Amount      decimal.Decimal `json:"amount"`
	EventCount  int             `json:"event_count"`
	LastTxID    string          `json:"last_tx_id"`
	TimestampMs int64           `json:"timestamp_ms"`
}

// LockerState is the flat view of the token-locker object read from the ledger.
type LockerState struct {
	Admin                string `json:"admin,omitempty"`
	Paused               bool   `json:"paused"`
	ProtocolStartMs      int64  `json:"protocol_start_ms"`
	EpochDurationMs      int64  `json:"epoch_duration_ms"`
	CurrentEpochID       int64  `json:"current_epoch_id"`
	AllocationsFinalized bool   `json:"allocations_finalized"`
	IsClaimable          bool   `json:"is_claimable"`
}

// VaultBalances holds raw reward-vault balances. Balances are read, not replayed.
type VaultBalances struct {
	Victory decimal.Decimal `json:"victory"`
	SUI     decimal.Decimal `json:"sui"`
}
