package dashboard

import (
	"fmt"
	"strings"

	"victory-readmodel/internal/allocation"
	"victory-readmodel/internal/domain"
)

// Health issue codes. Codes are stable; messages are for humans.
const (
	CodeVaultEmptyVictory     = "VAULT_EMPTY_VICTORY"
	CodeVaultEmptySUI         = "VAULT_EMPTY_SUI"
	CodeAllocationsInvalidPfx = "ALLOCATIONS_INVALID_"
	CodeEpochUnfinalized      = "EPOCH_UNFINALIZED"
	CodeProtocolUninitialized = "PROTOCOL_UNINITIALIZED"
	CodeFetchFailedPfx        = "FETCH_FAILED_"
)

const (
	warningThreshold = 1
	errorThreshold   = 3
)

// Snapshot sections that are fetched independently.
const (
	sectionPoolEvents    = "pool_events"
	sectionRevenueEvents = "revenue_events"
	sectionAllocations   = "allocations"
	sectionLocker        = "locker"
	sectionVaults        = "vaults"
)

// Level maps an issue count to an overall health level:
// none is healthy, one or two is a warning, three or more is an error.
func Level(issues int) domain.HealthLevel {
	switch {
	case issues >= errorThreshold:
		return domain.HealthError
	case issues >= warningThreshold:
		return domain.HealthWarning
	default:
		return domain.HealthHealthy
	}
}

func summarize(issues []domain.HealthIssue) domain.Health {
	if issues == nil {
		issues = []domain.HealthIssue{}
	}
	return domain.Health{Overall: Level(len(issues)), Issues: issues}
}

// IssueCodes returns the codes of the snapshot's health issues in order.
func IssueCodes(h domain.Health) []string {
	codes := make([]string, len(h.Issues))
	for i, issue := range h.Issues {
		codes[i] = issue.Code
	}
	return codes
}

func fetchFailed(section string, err error) domain.HealthIssue {
	return domain.HealthIssue{
		Code:    CodeFetchFailedPfx + strings.ToUpper(section),
		Message: fmt.Sprintf("failed to fetch %s: %v", strings.ReplaceAll(section, "_", " "), err),
	}
}

func fetchSection(code string) (string, bool) {
	if !strings.HasPrefix(code, CodeFetchFailedPfx) {
		return "", false
	}
	return strings.ToLower(strings.TrimPrefix(code, CodeFetchFailedPfx)), true
}

func emptyVaults(v domain.VaultBalances) []domain.HealthIssue {
	var issues []domain.HealthIssue
	if !v.Victory.IsPositive() {
		issues = append(issues, domain.HealthIssue{
			Code:    CodeVaultEmptyVictory,
			Message: "VICTORY reward vault is empty",
		})
	}
	if !v.SUI.IsPositive() {
		issues = append(issues, domain.HealthIssue{
			Code:    CodeVaultEmptySUI,
			Message: "SUI reward vault is empty",
		})
	}
	return issues
}

func allocationsInvalid(token domain.RewardToken, res allocation.Result) domain.HealthIssue {
	return domain.HealthIssue{
		Code:    CodeAllocationsInvalidPfx + string(token),
		Message: fmt.Sprintf("%s allocations are invalid: %s", token, strings.Join(res.Errors, "; ")),
	}
}

func allocationsMissing(token domain.RewardToken) domain.HealthIssue {
	return domain.HealthIssue{
		Code:    CodeAllocationsInvalidPfx + string(token),
		Message: fmt.Sprintf("%s allocations have never been set", token),
	}
}

func protocolUninitialized(locker domain.LockerState, durationMs int64) domain.HealthIssue {
	return domain.HealthIssue{
		Code: CodeProtocolUninitialized,
		Message: fmt.Sprintf("protocol timing is not initialized (start %d ms, epoch length %d ms)",
			locker.ProtocolStartMs, durationMs),
	}
}

// unfinalizedEpoch flags an epoch whose window has elapsed without its
// allocations being finalized.
func unfinalizedEpoch(last *domain.EpochStatus) (domain.HealthIssue, bool) {
	if last == nil || !last.Elapsed || last.Status != domain.EpochActive {
		return domain.HealthIssue{}, false
	}
	return domain.HealthIssue{
		Code:    CodeEpochUnfinalized,
		Message: fmt.Sprintf("epoch %d has ended but its allocations are not finalized", last.ID),
	}, true
}
