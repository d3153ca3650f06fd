// Package epoch derives reward epoch timing from wall-clock time.
//
// Epochs are fixed-length windows counted from the protocol start time.
// Ids are 1-indexed so that they match the ids in epoch-creation events.
// Nothing here is stored; every status is recomputed on demand.
package epoch

import (
	"fmt"
	"math"
	"strings"
	"time"

	"victory-readmodel/internal/domain"
)

// uninitialized is returned whenever the timing inputs cannot describe an epoch.
func uninitialized() domain.EpochStatus {
	return domain.EpochStatus{Status: domain.EpochUninitialized}
}

func usable(nowMs, protocolStartMs, epochDurationMs int64) bool {
	return protocolStartMs > 0 && epochDurationMs > 0 && nowMs >= protocolStartMs
}

// ComputeCurrentEpoch returns the epoch containing nowMs.
// Returns an Uninitialized status if the protocol start is unset (<= 0),
// the duration is not positive, or nowMs precedes the start.
func ComputeCurrentEpoch(nowMs, protocolStartMs, epochDurationMs int64) domain.EpochStatus {
	if !usable(nowMs, protocolStartMs, epochDurationMs) {
		return uninitialized()
	}
	idx := (nowMs - protocolStartMs) / epochDurationMs
	return window(idx+1, nowMs, protocolStartMs, epochDurationMs)
}

// ComputeEpoch returns the status of an arbitrary epoch id relative to nowMs.
func ComputeEpoch(id, nowMs, protocolStartMs, epochDurationMs int64) domain.EpochStatus {
	if id < 1 || !usable(nowMs, protocolStartMs, epochDurationMs) {
		return uninitialized()
	}
	// Window end must fit in int64.
	if id > (math.MaxInt64-protocolStartMs)/epochDurationMs {
		return uninitialized()
	}
	return window(id, nowMs, protocolStartMs, epochDurationMs)
}

func window(id, nowMs, startMs, durationMs int64) domain.EpochStatus {
	windowStart := startMs + (id-1)*durationMs
	// Saturate rather than wrap for windows ending past the int64 range.
	windowEnd := int64(math.MaxInt64)
	if windowStart <= math.MaxInt64-durationMs {
		windowEnd = windowStart + durationMs
	}

	progress := float64(nowMs-windowStart) / float64(durationMs) * 100
	progress = math.Max(0, math.Min(100, progress))

	remaining := windowEnd - nowMs
	if remaining < 0 {
		remaining = 0
	}
	if remaining > durationMs {
		remaining = durationMs
	}

	return domain.EpochStatus{
		ID:              id,
		WindowStartMs:   windowStart,
		WindowEndMs:     windowEnd,
		ProgressPct:     progress,
		TimeRemainingMs: remaining,
		Status:          domain.EpochActive,
		Elapsed:         nowMs >= windowEnd,
	}
}

// ApplyFlags folds chain-reported flags into a computed status.
// Flags for a different epoch id are ignored; an EpochID of 0 applies to any epoch.
// Claimable requires finalized allocations and an elapsed window.
func ApplyFlags(status domain.EpochStatus, flags domain.EpochFlags) domain.EpochStatus {
	if !status.Initialized() {
		return status
	}
	if flags.EpochID != 0 && flags.EpochID != status.ID {
		return status
	}
	if flags.AllocationsFinalized {
		status.Status = domain.EpochFinalized
		if flags.IsClaimable && status.Elapsed {
			status.Status = domain.EpochClaimable
		}
	}
	return status
}

// FormatRemaining renders a duration as "6d 23h 59m", dropping leading zero units.
func FormatRemaining(d time.Duration) string {
	if d <= 0 {
		return "0m"
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if days > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	parts = append(parts, fmt.Sprintf("%dm", minutes))
	return strings.Join(parts, " ")
}
