package es

import (
	"context"
	"errors"
	"fmt"
)

// Error categories. Callers match them with errors.Is; concrete errors wrap
// exactly one category.
var (
	// ErrDomainViolation marks a business rule breach, e.g. applying an event
	// to an aggregate in a state that does not allow it. Never retried.
	ErrDomainViolation = errors.New("domain violation")
	// ErrConcurrencyConflict is returned when an append's expected revision
	// does not match the stream. The caller has to reload and decide again.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrNotFound marks structurally absent data.
	ErrNotFound = errors.New("not found")
	// ErrTransient marks storage or network unavailability. Callers may retry
	// with backoff, after re-reading the stream if an append was in flight.
	ErrTransient = errors.New("transient store failure")
)

var (
	ErrStreamNotFound      = fmt.Errorf("%w: stream", ErrNotFound)
	ErrEmptyStream         = fmt.Errorf("%w: empty stream", ErrNotFound)
	ErrMissingOpeningEvent = fmt.Errorf("%w: missing opening event", ErrNotFound)

	ErrNoEvents         = errors.New("no events to append")
	ErrUnknownEventType = errors.New("unknown event type")
)

// ConflictError reports a failed optimistic concurrency check together with
// the stream state the store actually observed.
type ConflictError struct {
	Stream   string
	Expected ExpectedRevision
	Actual   ExpectedRevision
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"%s: stream=%s expected=%s actual=%s",
		ErrConcurrencyConflict, e.Stream, e.Expected, e.Actual,
	)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConcurrencyConflict }

// NewConflictError builds the error stores return on a revision mismatch.
func NewConflictError(stream string, expected, actual ExpectedRevision) *ConflictError {
	return &ConflictError{Stream: stream, Expected: expected, Actual: actual}
}

// Transient marks err as a transient store failure. A nil err stays nil and
// errors that already carry a category are returned unchanged, as is
// context.Canceled.
func Transient(err error) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return err
	}
	for _, c := range []error{ErrTransient, ErrConcurrencyConflict, ErrNotFound, ErrDomainViolation} {
		if errors.Is(err, c) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
