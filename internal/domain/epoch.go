package domain

import "time"

// EpochPhase is the lifecycle status of an epoch.
type EpochPhase string

const (
	// EpochUninitialized is returned instead of a computed epoch when the
	// protocol has no usable start time or epoch length.
	EpochUninitialized EpochPhase = "Uninitialized"
	EpochActive        EpochPhase = "Active"
	EpochFinalized     EpochPhase = "Finalized"
	EpochClaimable     EpochPhase = "Claimable"
)

// EpochStatus is always recomputed from time and chain flags, never stored.
type EpochStatus struct {
	ID              int64      `json:"id"` // 1-indexed, matches epoch-creation events
	WindowStartMs   int64      `json:"window_start_ms"`
	WindowEndMs     int64      `json:"window_end_ms"`
	ProgressPct     float64    `json:"progress_pct"`
	TimeRemainingMs int64      `json:"time_remaining_ms"`
	Status          EpochPhase `json:"status"`
	Elapsed         bool       `json:"elapsed"`
}

// Initialized reports whether the status carries computed timing.
func (s EpochStatus) Initialized() bool {
	return s.Status != EpochUninitialized && s.Status != ""
}

// TimeRemaining returns the time left in the window.
func (s EpochStatus) TimeRemaining() time.Duration {
	return time.Duration(s.TimeRemainingMs) * time.Millisecond
}

// EpochFlags are chain-reported facts about one epoch.
type EpochFlags struct {
	EpochID              int64 `json:"epoch_id"`
	AllocationsFinalized bool  `json:"allocations_finalized"`
	IsClaimable          bool  `json:"is_claimable"`
}
