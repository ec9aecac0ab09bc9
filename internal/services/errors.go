package services

import (
	"database/sql"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a queue entry or media id does not
	// resolve. Not retryable.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation targets an entry in
	// the wrong lifecycle state, such as reordering an already-displayed
	// entry.
	ErrInvalidState = errors.New("invalid state")

	// ErrStoreUnavailable wraps transient store failures. Callers may
	// retry with backoff; the services never retry internally.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// storeErr translates repository errors into the service taxonomy.
func storeErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
