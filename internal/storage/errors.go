package storage

import "errors"

var (
	// ErrNotFound means no archived event, cursor or history row matched.
	ErrNotFound = errors.New("storage: not found")

	// ErrDuplicateKey means the record is already archived. The raw event
	// archive is append-only, so a duplicate delivery is reported rather
	// than overwritten.
	ErrDuplicateKey = errors.New("storage: already archived")

	// ErrInvalidInput means a record lacks its identity fields or carries a
	// value the store cannot hold.
	ErrInvalidInput = errors.New("storage: invalid input")
)
