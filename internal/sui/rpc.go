package sui

import (
	"context"
	"errors"

	"github.com/mr-tron/base58"

	"victory-readmodel/internal/domain"
)

// DigestLength is the decoded length of a transaction digest.
const DigestLength = 32

var (
	// ErrInvalidDigest is returned for cursors whose transaction digest is not
	// a base58 encoded 32-byte value.
	ErrInvalidDigest = errors.New("invalid transaction digest")

	// ErrObjectNotFound is returned when the requested object does not exist
	// or has been deleted.
	ErrObjectNotFound = errors.New("object not found")
)

// EventFetcher returns ledger events of one Move event type.
type EventFetcher interface {
	// QueryEvents returns every event of the type in ascending ledger order.
	QueryEvents(ctx context.Context, eventType string) ([]domain.RawEvent, error)

	// QueryEventsPage returns one page of events strictly after cursor.
	// A nil cursor starts at the oldest retained event.
	QueryEventsPage(ctx context.Context, eventType string, cursor *EventID, limit int) (*EventPage, error)
}

// ObjectReader returns the content fields of a Move object.
type ObjectReader interface {
	GetObject(ctx context.Context, objectID string) (map[string]any, error)
}

// ValidDigest reports whether d is a base58 encoded 32-byte digest.
func ValidDigest(d string) bool {
	if d == "" {
		return false
	}
	raw, err := base58.Decode(d)
	return err == nil && len(raw) == DigestLength
}
