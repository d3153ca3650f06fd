package normalization

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// maxWrapDepth bounds recursion into wrapper objects.
const maxWrapDepth = 4

// ToInteger coerces a payload value to an arbitrary-precision integer.
// Accepted: decimal or 0x-hex strings, json.Number, Go integers, integral
// floats, little-endian byte arrays, *big.Int, decimal.Decimal and
// {"value": ...} wrappers. The result always has exponent 0.
func ToInteger(v any) (decimal.Decimal, error) {
	return toInteger(v, 0)
}

func toInteger(v any, depth int) (decimal.Decimal, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return integral(t)
	case *big.Int:
		if t == nil {
			return decimal.Zero, errors.New("nil big integer")
		}
		return decimal.NewFromBigInt(t, 0), nil
	case string:
		return parseIntegerString(t)
	case json.Number:
		return parseIntegerString(string(t))
	case float64:
		return fromFloat(t)
	case float32:
		return fromFloat(float64(t))
	case int:
		return decimal.NewFromInt(int64(t)), nil
	case int8:
		return decimal.NewFromInt(int64(t)), nil
	case int16:
		return decimal.NewFromInt(int64(t)), nil
	case int32:
		return decimal.NewFromInt(int64(t)), nil
	case int64:
		return decimal.NewFromInt(t), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(t)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(t)), nil
	case uint16:
		return decimal.NewFromInt(int64(t)), nil
	case uint32:
		return decimal.NewFromInt(int64(t)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(t), 0), nil
	case []byte:
		return fromLittleEndian(t)
	case []any:
		b, err := toBytes(t)
		if err != nil {
			return decimal.Zero, err
		}
		return fromLittleEndian(b)
	case map[string]any:
		if depth >= maxWrapDepth {
			return decimal.Zero, errors.New("integer wrapper nested too deep")
		}
		if inner, ok := t["value"]; ok {
			return toInteger(inner, depth+1)
		}
		if inner, ok := t["fields"]; ok {
			return toInteger(inner, depth+1)
		}
		return decimal.Zero, errors.New("object is not an integer wrapper")
	default:
		return decimal.Zero, errors.Errorf("unsupported integer type %T", v)
	}
}

func parseIntegerString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, errors.New("empty integer string")
	}
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		bi, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			return decimal.Zero, errors.Errorf("invalid hex integer %q", s)
		}
		return decimal.NewFromBigInt(bi, 0), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "invalid integer %q", s)
	}
	return integral(d)
}

func fromFloat(f float64) (decimal.Decimal, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return decimal.Zero, errors.Errorf("non-integral number %v", f)
	}
	return integral(decimal.NewFromFloat(f))
}

func integral(d decimal.Decimal) (decimal.Decimal, error) {
	if !d.IsInteger() {
		return decimal.Zero, errors.Errorf("non-integral number %s", d.String())
	}
	return decimal.NewFromBigInt(d.BigInt(), 0), nil
}

// fromLittleEndian decodes a BCS-style little-endian unsigned integer.
func fromLittleEndian(b []byte) (decimal.Decimal, error) {
	if len(b) == 0 {
		return decimal.Zero, errors.New("empty byte array")
	}
	be := make([]byte, len(b))
	for i := range b {
		be[len(b)-1-i] = b[i]
	}
	return decimal.NewFromBigInt(new(big.Int).SetBytes(be), 0), nil
}

func toBytes(items []any) ([]byte, error) {
	out := make([]byte, len(items))
	for i, item := range items {
		d, err := toInteger(item, maxWrapDepth)
		if err != nil {
			return nil, errors.Wrapf(err, "byte %d", i)
		}
		bi := d.BigInt()
		if bi.Sign() < 0 || bi.Cmp(big.NewInt(255)) > 0 {
			return nil, errors.Errorf("byte %d out of range: %s", i, d.String())
		}
		out[i] = byte(bi.Int64())
	}
	return out, nil
}

// ToBool coerces true/false, 1/0 and single-element byte arrays to a boolean.
func ToBool(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
		return false, errors.Errorf("invalid boolean %q", t)
	case []byte:
		if len(t) != 1 {
			return false, errors.Errorf("boolean byte array must have 1 element, got %d", len(t))
		}
		return bitToBool(int64(t[0]))
	case []any:
		if len(t) != 1 {
			return false, errors.Errorf("boolean byte array must have 1 element, got %d", len(t))
		}
		return ToBool(t[0])
	default:
		d, err := ToInteger(v)
		if err != nil {
			return false, errors.Errorf("unsupported boolean type %T", v)
		}
		if !d.BigInt().IsInt64() {
			return false, errors.Errorf("invalid boolean %s", d.String())
		}
		return bitToBool(d.IntPart())
	}
}

func bitToBool(n int64) (bool, error) {
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, errors.Errorf("invalid boolean %d", n)
	}
}

// ToTimestampMs parses a millisecond timestamp.
func ToTimestampMs(v any) (int64, error) {
	d, err := ToInteger(v)
	if err != nil {
		return 0, err
	}
	bi := d.BigInt()
	if !bi.IsInt64() || bi.Sign() < 0 {
		return 0, errors.Errorf("timestamp out of range: %s", d.String())
	}
	return bi.Int64(), nil
}

// toText renders any payload value as a plain string.
func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
