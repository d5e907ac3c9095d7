package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/abhisek/learnloop/internal/belief"
	"github.com/abhisek/learnloop/internal/learning"
	"github.com/abhisek/learnloop/internal/observe"
)

// Error is an error with the HTTP status and machine-readable code it maps to.
type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	return fmt.Sprintf("api error (%d)", e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an Error.
func NewError(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

var errInternal = errors.New("internal error")

// classify maps domain errors to their HTTP form. Unknown errors become a
// 500 with a generic message.
func classify(err error) *Error {
	var (
		apiErr     *Error
		validation *learning.ValidationError
		notFound   *learning.NotFoundError
		unknown    *observe.UnknownConceptError
		conflict   *observe.ConcurrentUpdateError
		invariant  *belief.InvariantViolation
	)
	switch {
	case errors.As(err, &apiErr):
		return apiErr
	case errors.As(err, &validation):
		return NewError(http.StatusBadRequest, "invalid_request", err)
	case errors.As(err, &notFound):
		return NewError(http.StatusNotFound, "not_found", err)
	case errors.As(err, &unknown):
		return NewError(http.StatusNotFound, "unknown_concept", err)
	case errors.As(err, &conflict):
		return NewError(http.StatusConflict, "concurrent_update", err)
	case errors.Is(err, belief.ErrDuplicateObservation):
		return NewError(http.StatusConflict, "duplicate_observation", err)
	case errors.As(err, &invariant):
		return NewError(http.StatusInternalServerError, "invariant_violation", errInternal)
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(http.StatusGatewayTimeout, "timeout", err)
	default:
		return NewError(http.StatusInternalServerError, "internal_error", errInternal)
	}
}
