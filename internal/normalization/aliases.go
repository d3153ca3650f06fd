package normalization

import (
	"strings"

	"victory-readmodel/internal/domain"
)

// valueKind is the canonical type a field is coerced to.
type valueKind int

const (
	kindTypeName valueKind = iota
	kindInteger
	kindBool
	kindString
)

// fieldRule maps one canonical field to the payload keys that may carry it.
// Aliases are snake_case and listed in priority order. camelCase spellings
// are only consulted when no snake_case alias is present.
type fieldRule struct {
	canonical string
	aliases   []string
	kind      valueKind
	required  bool
}

// Canonical pool field names.
const (
	FieldPoolType         = "pool_type"
	FieldAllocationPoints = "allocation_points"
	FieldDepositFee       = "deposit_fee"
	FieldWithdrawalFee    = "withdrawal_fee"
	FieldActive           = "active"
	FieldIsNativePair     = "is_native_pair"
	FieldIsLPToken        = "is_lp_token"
)

// Canonical locker event field names.
const (
	FieldWeek       = "week"
	FieldThreeMonth = "three_month"
	FieldYear       = "year"
	FieldThreeYear  = "three_year"
	FieldEpochID    = "epoch_id"
	FieldAmount     = "amount"
)

var poolSchema = []fieldRule{
	{canonical: FieldPoolType, aliases: []string{"pool_type", "lp_type", "token_type", "coin_type"}, kind: kindTypeName, required: true},
	{canonical: FieldAllocationPoints, aliases: []string{"allocation_points", "alloc_points"}, kind: kindInteger},
	{canonical: FieldDepositFee, aliases: []string{"deposit_fee", "deposit_fee_bp"}, kind: kindInteger},
	{canonical: FieldWithdrawalFee, aliases: []string{"withdrawal_fee", "withdrawal_fee_bp"}, kind: kindInteger},
	{canonical: FieldActive, aliases: []string{"active", "is_active"}, kind: kindBool},
	{canonical: FieldIsNativePair, aliases: []string{"is_native_pair"}, kind: kindBool},
	{canonical: FieldIsLPToken, aliases: []string{"is_lp_token"}, kind: kindBool},
}

var allocationSchema = []fieldRule{
	{canonical: FieldWeek, aliases: []string{"week_allocation", "week", "one_week"}, kind: kindInteger, required: true},
	{canonical: FieldThreeMonth, aliases: []string{"three_month_allocation", "three_month", "three_months"}, kind: kindInteger, required: true},
	{canonical: FieldYear, aliases: []string{"year_allocation", "year", "one_year"}, kind: kindInteger, required: true},
	{canonical: FieldThreeYear, aliases: []string{"three_year_allocation", "three_year", "three_years"}, kind: kindInteger, required: true},
}

var revenueSchema = []fieldRule{
	{canonical: FieldEpochID, aliases: []string{"epoch_id", "epoch", "week"}, kind: kindInteger, required: true},
	{canonical: FieldAmount, aliases: []string{"amount", "sui_amount", "revenue_amount"}, kind: kindInteger, required: true},
}

// eventRoute tells the normalizer how to treat an event name.
type eventRoute struct {
	kind   domain.EventKind
	token  domain.RewardToken
	schema []fieldRule
}

var eventRoutes = map[string]eventRoute{
	"PoolCreated":               {kind: domain.EventCreated, schema: poolSchema},
	"PoolConfigUpdated":         {kind: domain.EventConfigUpdated, schema: poolSchema},
	"VictoryAllocationsUpdated": {kind: domain.EventAllocationsUpdated, token: domain.RewardVictory, schema: allocationSchema},
	"SUIAllocationsUpdated":     {kind: domain.EventAllocationsUpdated, token: domain.RewardSUI, schema: allocationSchema},
	"SuiAllocationsUpdated":     {kind: domain.EventAllocationsUpdated, token: domain.RewardSUI, schema: allocationSchema},
	"WeeklyRevenueAdded":        {kind: domain.EventRevenueAdded, schema: revenueSchema},
}

// EventName extracts the bare event name from a Move type tag,
// e.g. "0xabc::farm::PoolCreated<0x2::sui::SUI>" -> "PoolCreated".
func EventName(typeTag string) string {
	name := strings.TrimSpace(typeTag)
	if i := strings.IndexByte(name, '<'); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndex(name, "::"); i >= 0 {
		name = name[i+2:]
	}
	return name
}

// lookup finds the payload value for a rule. Every snake_case alias is tried
// in priority order before any camelCase spelling. It returns the key that
// matched.
func lookup(payload map[string]any, rule fieldRule) (any, string, bool) {
	for _, alias := range rule.aliases {
		if v, ok := payload[alias]; ok && v != nil {
			return v, alias, true
		}
	}
	for _, alias := range rule.aliases {
		camel := snakeToCamel(alias)
		if camel == alias {
			continue
		}
		if v, ok := payload[camel]; ok && v != nil {
			return v, camel, true
		}
	}
	return nil, "", false
}

// snakeToCamel converts "is_lp_token" to "isLpToken".
func snakeToCamel(s string) string {
	parts := strings.Split(s, "_")
	if len(parts) == 1 {
		return s
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
