// Package status provides the two-state outcome signal shared by the cache,
// fetch and synchronizer packages.
//
// Every operation reports either Success or Error. Richer diagnostics ride
// behind the Error state as a Kind, so consumers that only care about the
// boolean outcome can call Of and ignore the rest.
package status

import (
	"context"
	"errors"
	"fmt"
)

// Status is the binary outcome of an operation.
type Status int

const (
	// Success indicates the operation completed.
	Success Status = iota
	// Error indicates the operation failed. Use KindOf for the reason.
	Error
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Success:
		return "Success"
	case Error:
		return "Error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Of maps an error to a Status. A nil error is Success.
func Of(err error) Status {
	if err == nil {
		return Success
	}
	return Error
}

// Kind categorizes failures behind the Error status.
type Kind string

const (
	// KindUnknown is reported for errors that carry no Kind.
	KindUnknown Kind = "unknown"

	// KindTransport indicates the request never produced a usable response:
	// connection, DNS or timeout failures and non-2xx HTTP status codes.
	KindTransport Kind = "transport"

	// KindDecode indicates a response body that could not be decoded.
	KindDecode Kind = "decode"

	// KindInvalid indicates a payload that decoded but failed validation.
	KindInvalid Kind = "invalid"

	// KindNotFound indicates a required value is absent (e.g. no ruleset cached).
	KindNotFound Kind = "not_found"

	// KindStorage indicates a cache backend failure.
	KindStorage Kind = "storage"

	// KindCanceled indicates the context was cancelled or timed out.
	KindCanceled Kind = "canceled"
)

// Error is the structured error carried behind Status Error.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Op names the failing operation, e.g. "fetch rules" or "write records".
	Op string

	// Err is the underlying cause (optional).
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an Error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf creates an Error of the given kind with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err. Uses errors.As to handle wrapped errors.
// Context cancellation is reported as KindCanceled even when unwrapped.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
