// Package errors provides the core's unified error taxonomy.
//
// Every component returns a *CoreError classified into one of eight kinds;
// handlers and callers branch on Kind rather than inspecting strings, and the
// HTTP surface maps Kind to a status code in one place.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the eight error classifications the core uses end to end.
type Kind string

const (
	// NotFound: the referenced object/spec/process does not exist.
	NotFound Kind = "not_found"
	// Conflict: the operation collides with the object's current state
	// (e.g. a CAS status update racing another writer, a duplicate key).
	Conflict Kind = "conflict"
	// InvalidInput: the caller-supplied data fails validation.
	InvalidInput Kind = "invalid_input"
	// Precondition: a required precondition isn't met (e.g. namespace
	// missing, image not pulled, dependent resource not ready).
	Precondition Kind = "precondition"
	// Transient: the failure is expected to clear on retry (engine
	// timeout, connection reset, lock contention).
	Transient Kind = "transient"
	// Fatal: the engine or store rejected the operation outright and
	// retrying will not help without operator intervention.
	Fatal Kind = "fatal"
	// Cancelled: the caller's context was cancelled or deadline-exceeded.
	Cancelled Kind = "cancelled"
	// Internal: an invariant was violated; a bug, not a user or
	// environment problem.
	Internal Kind = "internal"
)

var httpStatus = map[Kind]int{
	NotFound:     http.StatusNotFound,
	Conflict:     http.StatusConflict,
	InvalidInput: http.StatusBadRequest,
	Precondition: http.StatusPreconditionFailed,
	Transient:    http.StatusServiceUnavailable,
	Fatal:        http.StatusInternalServerError,
	Cancelled:    499, // nginx convention for client-closed-request
	Internal:     http.StatusInternalServerError,
}

// CoreError is the structured error every C1-C8 component returns.
type CoreError struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Err }

// WithDetails attaches structured context, e.g. the object key or field name.
func (e *CoreError) WithDetails(key string, value interface{}) *CoreError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a CoreError of the given kind.
func New(kind Kind, message string) *CoreError {
	return &CoreError{Kind: kind, Message: message}
}

// Wrap creates a CoreError of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *CoreError {
	return &CoreError{Kind: kind, Message: message, Err: err}
}

// Constructors mirroring spec §7's taxonomy.

func ErrNotFound(resource, key string) *CoreError {
	return New(NotFound, fmt.Sprintf("%s %q not found", resource, key)).
		WithDetails("resource", resource).
		WithDetails("key", key)
}

func ErrConflict(message string) *CoreError {
	return New(Conflict, message)
}

func ErrInvalidInput(field, reason string) *CoreError {
	return New(InvalidInput, "invalid input").
		WithDetails("field", field).
		WithDetails("reason", reason)
}

func ErrPrecondition(message string) *CoreError {
	return New(Precondition, message)
}

func ErrTransient(operation string, err error) *CoreError {
	return Wrap(Transient, fmt.Sprintf("%s: transient failure", operation), err).
		WithDetails("operation", operation)
}

func ErrFatal(operation string, err error) *CoreError {
	return Wrap(Fatal, fmt.Sprintf("%s: fatal failure", operation), err).
		WithDetails("operation", operation)
}

func ErrCancelled(operation string) *CoreError {
	return New(Cancelled, fmt.Sprintf("%s: cancelled", operation)).
		WithDetails("operation", operation)
}

func ErrInternal(message string, err error) *CoreError {
	return Wrap(Internal, message, err)
}

// Is reports whether err is a CoreError of the given kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// As extracts a *CoreError from err's chain, if present.
func As(err error) *CoreError {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// HTTPStatus maps err's Kind to the status code the HTTP surface should send.
// Errors that aren't a *CoreError map to 500, matching the teacher's
// GetHTTPStatus fallback.
func HTTPStatus(err error) int {
	if ce := As(err); ce != nil {
		if status, ok := httpStatus[ce.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// Retryable reports whether spec §7's retry policy applies to err (Transient
// only — exponential backoff, cap 5 attempts/30s total, then escalate).
func Retryable(err error) bool {
	return Is(err, Transient)
}
