package normalization

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestToInteger(t *testing.T) {
	big128, _ := new(big.Int).SetString("340282366920938463463374607431768211455", 10)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"decimal string", "42", "42"},
		{"padded string", " 7 ", "7"},
		{"hex string", "0xff", "255"},
		{"json number", json.Number("18446744073709551616"), "18446744073709551616"},
		{"integral float", float64(3), "3"},
		{"exponent string", "1e3", "1000"},
		{"int", 12, "12"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"le bytes", []byte{0x01, 0x02}, "513"},
		{"le any bytes", []any{float64(0x10), float64(0x27), float64(0), float64(0)}, "10000"},
		{"u128 max", big128, "340282366920938463463374607431768211455"},
		{"value wrapper", map[string]any{"value": "99"}, "99"},
		{"decimal", decimal.RequireFromString("5"), "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToInteger(tt.in)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got.String())
			}
			if got.Exponent() != 0 {
				t.Errorf("Expected exponent 0, got %d", got.Exponent())
			}
		})
	}
}

func TestToInteger_Rejects(t *testing.T) {
	inputs := []any{"", "abc", "1.5", float64(1.25), []byte{}, []any{float64(256)}, map[string]any{"x": 1}, struct{}{}}
	for _, in := range inputs {
		if _, err := ToInteger(in); err == nil {
			t.Errorf("Expected error for %#v", in)
		}
	}
}

func TestToBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"FALSE", false},
		{"1", true},
		{"0", false},
		{float64(1), true},
		{json.Number("0"), false},
		{[]any{float64(1)}, true},
		{[]byte{0}, false},
	}
	for _, tt := range tests {
		got, err := ToBool(tt.in)
		if err != nil {
			t.Errorf("ToBool(%#v): unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ToBool(%#v) = %t, want %t", tt.in, got, tt.want)
		}
	}

	for _, in := range []any{"yes", float64(2), []any{float64(1), float64(0)}, nil} {
		if _, err := ToBool(in); err == nil {
			t.Errorf("Expected error for %#v", in)
		}
	}
}

func TestToTimestampMs(t *testing.T) {
	if ts, err := ToTimestampMs("1700000000000"); err != nil || ts != 1700000000000 {
		t.Errorf("Expected 1700000000000, got %d (%v)", ts, err)
	}
	if _, err := ToTimestampMs("-1"); err == nil {
		t.Error("Expected error for negative timestamp")
	}
	if _, err := ToTimestampMs("99999999999999999999"); err == nil {
		t.Error("Expected error for overflowing timestamp")
	}
}
