package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies provider failures for retry decisions.
type ErrorKind int

const (
	// KindUnavailable covers network failures and 5xx responses.
	KindUnavailable ErrorKind = iota
	// KindRateLimited is a 429 response.
	KindRateLimited
	// KindInvalidResponse is output that is not valid JSON or does not match the schema.
	KindInvalidResponse
	// KindTruncated is structured output cut off by the token limit.
	KindTruncated
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindRateLimited:
		return "rate limited"
	case KindInvalidResponse:
		return "invalid response"
	case KindTruncated:
		return "truncated"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a classified provider failure.
type Error struct {
	Provider string
	Kind     ErrorKind

	// RetryAfter is the server-requested delay for rate limits, if known.
	RetryAfter time.Duration

	// Content is the offending output for invalid or truncated responses.
	Content json.RawMessage

	Err error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// statusError classifies an HTTP status returned by a provider API.
func statusError(provider string, status int, err error) *Error {
	if status == http.StatusTooManyRequests {
		return &Error{Provider: provider, Kind: KindRateLimited, Err: err}
	}
	return &Error{Provider: provider, Kind: KindUnavailable, Err: err}
}
