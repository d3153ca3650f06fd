package normalization

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"victory-readmodel/internal/domain"
)

// ErrMalformedEvent is returned for events that cannot be normalized.
// Callers should skip the event and record a diagnostic.
var ErrMalformedEvent = errors.New("malformed event")

// Normalizer converts raw ledger events into canonical events.
// It is stateless and safe for concurrent use.
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer creates a normalizer. A nil logger is replaced by a no-op logger.
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// Normalize maps raw field names to canonical names, unwraps type names and
// coerces numeric and boolean encodings. Unknown event names and events
// missing required fields fail with ErrMalformedEvent.
func (n *Normalizer) Normalize(raw domain.RawEvent) (domain.NormalizedEvent, error) {
	name := EventName(raw.TypeTag)
	route, ok := eventRoutes[name]
	if !ok {
		return domain.NormalizedEvent{}, errors.Wrapf(ErrMalformedEvent, "unknown event type %q", raw.TypeTag)
	}
	if strings.TrimSpace(raw.TxID) == "" {
		return domain.NormalizedEvent{}, errors.Wrap(ErrMalformedEvent, "missing transaction id")
	}
	ts, err := ToTimestampMs(raw.TimestampMs)
	if err != nil {
		return domain.NormalizedEvent{}, errors.Wrapf(ErrMalformedEvent, "timestamp: %v", err)
	}
	if raw.Payload == nil {
		return domain.NormalizedEvent{}, errors.Wrap(ErrMalformedEvent, "missing payload")
	}

	fields, err := n.extract(raw, route.schema)
	if err != nil {
		return domain.NormalizedEvent{}, err
	}

	ev := domain.NormalizedEvent{
		Kind:        route.kind,
		EventName:   name,
		Fields:      fields,
		TimestampMs: ts,
		TxID:        raw.TxID,
		EventSeq:    strings.TrimSpace(raw.EventSeq),
	}

	switch route.kind {
	case domain.EventCreated, domain.EventConfigUpdated:
		ev.EntityKey, _ = fields.String(FieldPoolType)
	case domain.EventAllocationsUpdated:
		ev.EntityKey = string(route.token)
	case domain.EventRevenueAdded:
		id, _ := fields.Amount(FieldEpochID)
		if id.Sign() < 0 {
			return domain.NormalizedEvent{}, errors.Wrapf(ErrMalformedEvent, "negative epoch id %s", id.String())
		}
		ev.EntityKey = RevenueEntityKey(id.String())
	}
	if ev.EntityKey == "" {
		return domain.NormalizedEvent{}, errors.Wrap(ErrMalformedEvent, "empty entity key")
	}
	return ev, nil
}

func (n *Normalizer) extract(raw domain.RawEvent, schema []fieldRule) (domain.Fields, error) {
	fields := make(domain.Fields, len(schema))
	for _, rule := range schema {
		v, key, found := lookup(raw.Payload, rule)
		if !found {
			if rule.required {
				return nil, errors.Wrapf(ErrMalformedEvent, "missing field %s", rule.canonical)
			}
			continue
		}
		if key != rule.aliases[0] {
			n.logger.Debug("field resolved through alias",
				zap.String("canonical", rule.canonical),
				zap.String("key", key),
				zap.String("tx_id", raw.TxID))
		}
		switch rule.kind {
		case kindTypeName:
			s, ok := unwrapTypeName(v)
			if !ok {
				s = strings.TrimSpace(toText(v))
				n.logger.Warn("type name fallback to string form",
					zap.String("field", key),
					zap.String("tx_id", raw.TxID),
					zap.String("value", s))
			}
			if s == "" {
				return nil, errors.Wrapf(ErrMalformedEvent, "field %s: empty type name", key)
			}
			fields[rule.canonical] = s
		case kindInteger:
			d, err := ToInteger(v)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedEvent, "field %s: %v", key, err)
			}
			fields[rule.canonical] = d
		case kindBool:
			b, err := ToBool(v)
			if err != nil {
				return nil, errors.Wrapf(ErrMalformedEvent, "field %s: %v", key, err)
			}
			fields[rule.canonical] = b
		case kindString:
			fields[rule.canonical] = toText(v)
		}
	}
	return fields, nil
}

// NormalizeBatch normalizes every event. Malformed events are skipped and
// reported as diagnostics; the batch itself never fails.
func (n *Normalizer) NormalizeBatch(raws []domain.RawEvent) ([]domain.NormalizedEvent, []domain.Diagnostic) {
	out := make([]domain.NormalizedEvent, 0, len(raws))
	var diags []domain.Diagnostic
	for _, raw := range raws {
		ev, err := n.Normalize(raw)
		if err != nil {
			n.logger.Warn("skipping malformed event",
				zap.String("type", raw.TypeTag),
				zap.String("tx_id", raw.TxID),
				zap.Error(err))
			diags = append(diags, domain.Diagnostic{
				Stage:     domain.StageNormalize,
				EventType: raw.TypeTag,
				TxID:      raw.TxID,
				Reason:    err.Error(),
			})
			continue
		}
		out = append(out, ev)
	}
	return out, diags
}

// RevenueEntityKey returns the entity key of a revenue epoch.
func RevenueEntityKey(epochID string) string {
	return "epoch:" + epochID
}

// EpochIDFromKey parses a key built by RevenueEntityKey.
func EpochIDFromKey(key string) (int64, bool) {
	s, ok := strings.CutPrefix(key, "epoch:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
