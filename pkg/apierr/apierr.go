// Package apierr defines the error taxonomy shared by every component of the
// extraction service (strategies, stores, the resolver, the HTTP API).
// Components never return raw transport or driver errors across their own
// boundary; they wrap them in an *Error with one of the declared Kinds, so
// pkg/httpapi can map a single taxonomy to HTTP status codes regardless of
// which layer produced the failure.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies why an operation failed.
type Kind string

const (
	// NotFound means the referenced id does not exist.
	NotFound Kind = "NotFound"
	// Duplicate means a unique constraint was violated.
	Duplicate Kind = "Duplicate"
	// Validation means the input failed schema or field validation.
	Validation Kind = "Validation"
	// RateLimitExceeded means the dispatcher's rate budget was exhausted.
	RateLimitExceeded Kind = "RateLimitExceeded"
	// Configuration means a factory, constructor, or resolver setup step failed.
	Configuration Kind = "Configuration"
	// APIConnection means the LLM transport could not be reached (network, 5xx, timeout).
	APIConnection Kind = "APIConnection"
	// APIResponse means the LLM responded with a non-retryable error status.
	APIResponse Kind = "APIResponse"
	// ContentParsing means the LLM output could not be parsed or schema-validated.
	ContentParsing Kind = "ContentParsing"
	// Timeout means a deadline was exceeded.
	Timeout Kind = "Timeout"
	// Database means a persistence operation failed for a reason other than NotFound/Duplicate.
	Database Kind = "Database"
)

// httpStatus maps each Kind to its HTTP status code per SPEC_FULL.md §7.
var httpStatus = map[Kind]int{
	NotFound:          http.StatusNotFound,
	Duplicate:         http.StatusConflict,
	Validation:        http.StatusUnprocessableEntity,
	RateLimitExceeded: http.StatusTooManyRequests,
	Configuration:     http.StatusInternalServerError,
	APIConnection:     http.StatusBadGateway,
	APIResponse:       http.StatusBadGateway,
	ContentParsing:    http.StatusUnprocessableEntity,
	Timeout:           http.StatusGatewayTimeout,
	Database:          http.StatusInternalServerError,
}

// Error is the concrete error type carried across every component boundary.
type Error struct {
	Kind       Kind
	Detail     string
	RetryAfter time.Duration // only meaningful for RateLimitExceeded
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an *Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap creates an *Error carrying cause as its underlying error.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: cause}
}

// WithRetryAfter returns a copy of e with RetryAfter set. Intended for
// RateLimitExceeded errors, where the dispatcher must report how long until
// the window rolls over.
func (e *Error) WithRetryAfter(d time.Duration) *Error {
	return &Error{Kind: e.Kind, Detail: e.Detail, RetryAfter: d, Err: e.Err}
}

// HTTPStatus returns the HTTP status code for err's Kind, or 500 if err is
// not an *Error.
func HTTPStatus(err error) int {
	var ae *Error
	if errors.As(err, &ae) {
		if status, ok := httpStatus[ae.Kind]; ok {
			return status
		}
	}
	return http.StatusInternalServerError
}

// KindOf extracts the Kind from err, or "" if err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
