package idhash

import (
	"testing"

	"github.com/shopspring/decimal"

	"victory-readmodel/internal/domain"
)

func TestComputeEventID(t *testing.T) {
	id1 := ComputeEventID("0xabc::farm::PoolCreated", "DigestA", "0")
	id2 := ComputeEventID("0xabc::farm::PoolCreated", "DigestA", "0")
	id3 := ComputeEventID("0xabc::farm::PoolCreated", "DigestA", "1")

	if len(id1) != 64 {
		t.Errorf("expected 64-char hash, got %d", len(id1))
	}
	if id1 != id2 {
		t.Errorf("same input produced different ids: %s vs %s", id1, id2)
	}
	if id1 == id3 {
		t.Error("different event_seq produced same id")
	}
}

func TestFieldsFingerprint_MapOrderIndependent(t *testing.T) {
	a := domain.Fields{
		"pool_type":         "0x2::sui::SUI",
		"allocation_points": decimal.NewFromInt(100),
		"active":            true,
	}
	b := domain.Fields{
		"active":            true,
		"allocation_points": decimal.NewFromInt(100),
		"pool_type":         "0x2::sui::SUI",
	}

	for i := 0; i < 10; i++ {
		if FieldsFingerprint(a) != FieldsFingerprint(b) {
			t.Fatal("fingerprint depends on map iteration order")
		}
	}
}

func TestFieldsFingerprint_TypeSensitive(t *testing.T) {
	asString := domain.Fields{"active": "true"}
	asBool := domain.Fields{"active": true}

	if FieldsFingerprint(asString) == FieldsFingerprint(asBool) {
		t.Error("string and bool values must not collide")
	}
}

func TestPoolStatesHash(t *testing.T) {
	pools := map[string]domain.PoolState{
		"B": {EntityKey: "B", AllocationPoints: 10},
		"A": {EntityKey: "A", AllocationPoints: 20},
	}
	h1, err := PoolStatesHash(pools)
	if err != nil {
		t.Fatalf("PoolStatesHash: %v", err)
	}

	changed := map[string]domain.PoolState{
		"B": {EntityKey: "B", AllocationPoints: 10},
		"A": {EntityKey: "A", AllocationPoints: 21},
	}
	h2, err := PoolStatesHash(changed)
	if err != nil {
		t.Fatalf("PoolStatesHash: %v", err)
	}

	if h1 == h2 {
		t.Error("different states produced the same hash")
	}

	h3, _ := PoolStatesHash(pools)
	if h1 != h3 {
		t.Error("hash is not stable")
	}
}
