package grouping

import (
	"errors"
	"fmt"
)

// ErrUnknownGroupField is wrapped by resolution errors.
var ErrUnknownGroupField = errors.New("unknown group field")

// Kind classifies engine failures.
type Kind int

const (
	// KindInput means the request was incomplete.
	KindInput Kind = iota + 1
	// KindNotFound means the table id is unknown or has no backing storage.
	KindNotFound
	// KindResolution means no strategy could resolve the group-by field.
	KindResolution
	// KindStore wraps a failed store round trip.
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindNotFound:
		return "not_found"
	case KindResolution:
		return "resolution"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is returned by Service.Group for every terminal failure.
type Error struct {
	Kind  Kind
	Field string
	// Misconfigured marks not-found errors caused by the host catalog rather than the caller.
	Misconfigured bool
	Msg           string
	Err           error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg != "" {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of an engine error, or zero for foreign errors.
func KindOf(err error) Kind {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return 0
}

func inputError(msg string) error {
	return &Error{Kind: KindInput, Msg: msg}
}

func notFoundError(msg string, misconfigured bool) error {
	return &Error{Kind: KindNotFound, Msg: msg, Misconfigured: misconfigured}
}

func resolutionError(field string, cause error) error {
	if cause == nil {
		cause = ErrUnknownGroupField
	}
	return &Error{Kind: KindResolution, Field: field, Msg: fmt.Sprintf("cannot group by %q", field), Err: cause}
}

func storeError(stage string, err error) error {
	return &Error{Kind: KindStore, Msg: stage + " query failed", Err: err}
}
