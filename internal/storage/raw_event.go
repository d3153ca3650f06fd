package storage

import (
	"strconv"
	"strings"

	"victory-readmodel/internal/domain"
)

// EventTimestamp parses the millisecond timestamp of a raw event.
// Archived events must carry a valid, non-negative timestamp.
func EventTimestamp(e *domain.RawEvent) (int64, error) {
	ts, err := strconv.ParseInt(strings.TrimSpace(e.TimestampMs), 10, 64)
	if err != nil || ts < 0 {
		return 0, ErrInvalidInput
	}
	return ts, nil
}

// ValidateRawEvent checks the fields that make up an archived event's identity.
func ValidateRawEvent(e *domain.RawEvent) error {
	if e == nil || e.TypeTag == "" || e.TxID == "" {
		return ErrInvalidInput
	}
	_, err := EventTimestamp(e)
	return err
}
