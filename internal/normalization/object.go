package normalization

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"victory-readmodel/internal/domain"
)

var lockerSchema = []fieldRule{
	{canonical: "admin", aliases: []string{"admin", "admin_address"}, kind: kindString},
	{canonical: "paused", aliases: []string{"paused", "is_paused"}, kind: kindBool},
	{canonical: "protocol_start_ms", aliases: []string{"protocol_start_ms", "protocol_start_time", "start_timestamp_ms", "start_time"}, kind: kindInteger},
	{canonical: "epoch_duration_ms", aliases: []string{"epoch_duration_ms", "epoch_duration"}, kind: kindInteger},
	{canonical: "current_epoch_id", aliases: []string{"current_epoch_id", "current_epoch", "current_week"}, kind: kindInteger},
	{canonical: "allocations_finalized", aliases: []string{"allocations_finalized"}, kind: kindBool},
	{canonical: "is_claimable", aliases: []string{"is_claimable", "claimable"}, kind: kindBool},
}

var vaultBalanceRule = fieldRule{
	canonical: "balance",
	aliases:   []string{"balance", "victory_balance", "sui_balance", "amount", "value"},
	kind:      kindInteger,
	required:  true,
}

// ParseLockerState decodes the locker object's content fields. Fields that
// are present but cannot be coerced are left zero and reported.
func ParseLockerState(fields map[string]any) (domain.LockerState, []domain.Diagnostic) {
	var state domain.LockerState
	var diags []domain.Diagnostic
	report := func(key string, err error) {
		diags = append(diags, domain.Diagnostic{
			Stage:     domain.StageFetch,
			EntityKey: "locker",
			Reason:    errors.Wrapf(err, "field %s", key).Error(),
		})
	}

	for _, rule := range lockerSchema {
		v, key, found := lookup(fields, rule)
		if !found {
			continue
		}
		switch rule.kind {
		case kindString:
			s, ok := unwrapTypeName(v)
			if !ok {
				s = toText(v)
			}
			state.Admin = s
		case kindBool:
			b, err := ToBool(v)
			if err != nil {
				report(key, err)
				continue
			}
			switch rule.canonical {
			case "paused":
				state.Paused = b
			case "allocations_finalized":
				state.AllocationsFinalized = b
			case "is_claimable":
				state.IsClaimable = b
			}
		case kindInteger:
			n, err := ToTimestampMs(v)
			if err != nil {
				report(key, err)
				continue
			}
			switch rule.canonical {
			case "protocol_start_ms":
				state.ProtocolStartMs = n
			case "epoch_duration_ms":
				state.EpochDurationMs = n
			case "current_epoch_id":
				state.CurrentEpochID = n
			}
		}
	}
	return state, diags
}

// ParseVaultBalance decodes a vault object's balance.
func ParseVaultBalance(fields map[string]any) (decimal.Decimal, error) {
	v, key, found := lookup(fields, vaultBalanceRule)
	if !found {
		return decimal.Zero, errors.New("vault object has no balance field")
	}
	d, err := ToInteger(v)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "field %s", key)
	}
	if d.Sign() < 0 {
		return decimal.Zero, errors.Errorf("negative vault balance %s", d.String())
	}
	return d, nil
}

// ParseVaultBalances decodes both reward vaults.
func ParseVaultBalances(victoryFields, suiFields map[string]any) (domain.VaultBalances, error) {
	victory, err := ParseVaultBalance(victoryFields)
	if err != nil {
		return domain.VaultBalances{}, errors.Wrap(err, "victory vault")
	}
	sui, err := ParseVaultBalance(suiFields)
	if err != nil {
		return domain.VaultBalances{}, errors.Wrap(err, "sui vault")
	}
	return domain.VaultBalances{Victory: victory, SUI: sui}, nil
}
