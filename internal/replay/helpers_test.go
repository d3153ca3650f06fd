package replay

import (
	"github.com/shopspring/decimal"

	"victory-readmodel/internal/domain"
	"victory-readmodel/internal/normalization"
)

func num(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func mkCreated(key string, ts int64, tx string, alloc int64) domain.NormalizedEvent {
	return domain.NormalizedEvent{
		Kind:        domain.EventCreated,
		EventName:   "PoolCreated",
		EntityKey:   key,
		TimestampMs: ts,
		TxID:        tx,
		Fields: domain.Fields{
			normalization.FieldPoolType:         key,
			normalization.FieldAllocationPoints: num(alloc),
		},
	}
}

func mkConfig(key string, ts int64, tx string, fields domain.Fields) domain.NormalizedEvent {
	if fields == nil {
		fields = domain.Fields{}
	}
	fields[normalization.FieldPoolType] = key
	return domain.NormalizedEvent{
		Kind:        domain.EventConfigUpdated,
		EventName:   "PoolConfigUpdated",
		EntityKey:   key,
		TimestampMs: ts,
		TxID:        tx,
		Fields:      fields,
	}
}
