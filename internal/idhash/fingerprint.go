package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"victory-readmodel/internal/domain"
)

// ComputeEventID computes a deterministic identity for a raw ledger event.
// Formula: SHA256(type_tag|tx_digest|event_seq)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(typeTag, txID, eventSeq string) string {
	data := fmt.Sprintf("%s|%s|%s", typeTag, txID, eventSeq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// FieldsFingerprint hashes canonical event fields independent of map order.
// Each entry is encoded as key=<type>:<value>, entries sorted by key.
func FieldsFingerprint(fields domain.Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		switch v := fields[k].(type) {
		case string:
			b.WriteString("s:")
			b.WriteString(v)
		case bool:
			fmt.Fprintf(&b, "b:%t", v)
		case decimal.Decimal:
			b.WriteString("n:")
			b.WriteString(v.String())
		default:
			fmt.Fprintf(&b, "x:%v", v)
		}
		b.WriteByte('|')
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// PoolStatesHash hashes a reconstructed pool map in entity-key order.
// Two replays producing byte-identical states produce the same hash.
func PoolStatesHash(pools map[string]domain.PoolState) (string, error) {
	keys := make([]string, 0, len(pools))
	for k := range pools {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		data, err := json.Marshal(pools[k])
		if err != nil {
			return "", fmt.Errorf("marshal pool state %s: %w", k, err)
		}
		h.Write(data)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
