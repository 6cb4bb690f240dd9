// Package repository defines the storage layer and the error types that
// are reused across its implementations. These sentinel values allow
// higher layers such as services and handlers to distinguish between
// different failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the requested ticket, user or event does
// not exist. Handlers translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness rule,
// such as issuing a second ticket for the same identity and event.
// Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicateNumber is returned by ticket inserts when the allocated
// ticket number is already taken. It is never surfaced to callers; the
// registry allocates a fresh number and tries again.
var ErrDuplicateNumber = errors.New("ticket number already allocated")

// ErrSequenceConflict marks a sequence allocation that lost a race inside
// the store (deadlock, lock wait timeout, failed compare-and-swap). The
// registry retries it transparently.
var ErrSequenceConflict = errors.New("sequence allocation conflict")

// ErrStoreUnavailable wraps unexpected storage failures. Nothing has been
// committed when it is returned and the caller may retry the request.
var ErrStoreUnavailable = errors.New("store unavailable")

// unavailable wraps err as ErrStoreUnavailable unless it already carries
// one of the sentinels above.
func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	for _, s := range []error{ErrNotFound, ErrConflict, ErrDuplicateNumber, ErrSequenceConflict, ErrStoreUnavailable} {
		if errors.Is(err, s) {
			return err
		}
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
