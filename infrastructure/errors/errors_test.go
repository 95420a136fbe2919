package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestCoreError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *CoreError
		want string
	}{
		{
			name: "error without underlying error",
			err:  New(NotFound, "test message"),
			want: "not_found: test message",
		},
		{
			name: "error with underlying error",
			err:  Wrap(Internal, "test message", errors.New("underlying")),
			want: "internal: test message: underlying",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCoreError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(Internal, "test", underlying)

	if got := err.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}
}

func TestCoreError_WithDetails(t *testing.T) {
	err := New(InvalidInput, "test")
	err.WithDetails("field", "name").WithDetails("reason", "too short")

	if len(err.Details) != 2 {
		t.Errorf("Details length = %d, want 2", len(err.Details))
	}
	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %v, want name", err.Details["field"])
	}
	if err.Details["reason"] != "too short" {
		t.Errorf("Details[reason] = %v, want too short", err.Details["reason"])
	}
}

func TestErrNotFound(t *testing.T) {
	err := ErrNotFound("cargo", "web")

	if err.Kind != NotFound {
		t.Errorf("Kind = %v, want %v", err.Kind, NotFound)
	}
	if HTTPStatus(err) != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(err), http.StatusNotFound)
	}
	if err.Details["resource"] != "cargo" || err.Details["key"] != "web" {
		t.Errorf("Details = %v", err.Details)
	}
}

func TestErrConflict(t *testing.T) {
	err := ErrConflict("status cas mismatch")

	if err.Kind != Conflict {
		t.Errorf("Kind = %v, want %v", err.Kind, Conflict)
	}
	if HTTPStatus(err) != http.StatusConflict {
		t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(err), http.StatusConflict)
	}
}

func TestErrInvalidInput(t *testing.T) {
	err := ErrInvalidInput("name", "must match [a-z0-9-]+")

	if err.Kind != InvalidInput {
		t.Errorf("Kind = %v, want %v", err.Kind, InvalidInput)
	}
	if HTTPStatus(err) != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(err), http.StatusBadRequest)
	}
	if err.Details["field"] != "name" {
		t.Errorf("Details[field] = %v, want name", err.Details["field"])
	}
}

func TestErrPrecondition(t *testing.T) {
	err := ErrPrecondition("namespace \"prod\" does not exist")

	if err.Kind != Precondition {
		t.Errorf("Kind = %v, want %v", err.Kind, Precondition)
	}
	if HTTPStatus(err) != http.StatusPreconditionFailed {
		t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(err), http.StatusPreconditionFailed)
	}
}

func TestErrTransient(t *testing.T) {
	underlying := errors.New("connection reset")
	err := ErrTransient("engine.start", underlying)

	if err.Kind != Transient {
		t.Errorf("Kind = %v, want %v", err.Kind, Transient)
	}
	if !Retryable(err) {
		t.Errorf("Retryable() = false, want true")
	}
	if err.Details["operation"] != "engine.start" {
		t.Errorf("Details[operation] = %v, want engine.start", err.Details["operation"])
	}
}

func TestErrFatal(t *testing.T) {
	underlying := errors.New("image not found")
	err := ErrFatal("engine.pull", underlying)

	if err.Kind != Fatal {
		t.Errorf("Kind = %v, want %v", err.Kind, Fatal)
	}
	if Retryable(err) {
		t.Errorf("Retryable() = true, want false")
	}
}

func TestErrCancelled(t *testing.T) {
	err := ErrCancelled("store.get")

	if err.Kind != Cancelled {
		t.Errorf("Kind = %v, want %v", err.Kind, Cancelled)
	}
	if HTTPStatus(err) != 499 {
		t.Errorf("HTTPStatus = %d, want 499", HTTPStatus(err))
	}
}

func TestErrInternal(t *testing.T) {
	underlying := errors.New("invariant violated")
	err := ErrInternal("unreachable state machine transition", underlying)

	if err.Kind != Internal {
		t.Errorf("Kind = %v, want %v", err.Kind, Internal)
	}
	if HTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("HTTPStatus = %d, want %d", HTTPStatus(err), http.StatusInternalServerError)
	}
	if err.Err != underlying {
		t.Errorf("Err = %v, want %v", err.Err, underlying)
	}
}

func TestIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"matching kind", ErrNotFound("cargo", "web"), NotFound, true},
		{"mismatching kind", ErrNotFound("cargo", "web"), Conflict, false},
		{"standard error", errors.New("plain"), NotFound, false},
		{"nil error", nil, NotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.kind); got != tt.want {
				t.Errorf("Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAs(t *testing.T) {
	ce := New(Internal, "test")
	standardErr := errors.New("standard error")

	if got := As(ce); got != ce {
		t.Errorf("As(CoreError) = %v, want %v", got, ce)
	}
	if got := As(standardErr); got != nil {
		t.Errorf("As(standard error) = %v, want nil", got)
	}
	if got := As(nil); got != nil {
		t.Errorf("As(nil) = %v, want nil", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"core error", New(Conflict, "test"), http.StatusConflict},
		{"standard error", errors.New("standard error"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}
