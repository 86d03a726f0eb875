package flowise

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorKind tags the closed taxonomy of failures a flow call can surface.
// Exactly three kinds exist; callers should switch on the kind (or use the
// Is* helpers) rather than match message text.
type ErrorKind string

const (
	// ErrorKindConnection covers network-level failures (DNS, refused
	// connections) and responses that violate the engine contract, such as
	// a success status with an unparsable body.
	ErrorKindConnection ErrorKind = "CONNECTION_ERROR"

	// ErrorKindTimeout covers calls that exceeded the configured timeout.
	ErrorKindTimeout ErrorKind = "TIMEOUT_ERROR"

	// ErrorKindAPI covers error statuses returned by the engine itself.
	ErrorKindAPI ErrorKind = "API_ERROR"
)

// Error is the root error type returned by the client.
type Error struct {
	Kind    ErrorKind
	Message string

	// StatusCode is set for API errors only.
	StatusCode int

	// Details holds the engine's JSON error body when it could be decoded.
	// Nil when the body was absent or not JSON.
	Details map[string]any

	Cause error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Kind == ErrorKindAPI && e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause when available.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind ErrorKind, message string, opts ...func(*Error)) *Error {
	err := &Error{
		Kind:    kind,
		Message: message,
	}
	for _, opt := range opts {
		opt(err)
	}
	return err
}

func withCause(cause error) func(*Error) {
	return func(e *Error) {
		e.Cause = cause
	}
}

func withStatus(status int) func(*Error) {
	return func(e *Error) {
		e.StatusCode = status
	}
}

func withDetails(details map[string]any) func(*Error) {
	return func(e *Error) {
		e.Details = details
	}
}

// newAPIError builds an API-kind error from an HTTP error status and its raw
// body. The body is decoded as JSON on a best-effort basis; a non-JSON body
// simply leaves Details unset.
func newAPIError(status int, body []byte) *Error {
	opts := []func(*Error){withStatus(status)}

	var details map[string]any
	if err := json.Unmarshal(body, &details); err == nil && details != nil {
		opts = append(opts, withDetails(details))
	}

	return newError(
		ErrorKindAPI,
		fmt.Sprintf("flowise engine returned error status %d", status),
		opts...,
	)
}

// IsConnectionError reports whether err is a connection-kind client error.
func IsConnectionError(err error) bool {
	return errorHasKind(err, ErrorKindConnection)
}

// IsTimeoutError reports whether err is a timeout-kind client error.
func IsTimeoutError(err error) bool {
	return errorHasKind(err, ErrorKindTimeout)
}

// IsAPIError reports whether err is an API-kind client error, returning the
// typed error for status and details access.
func IsAPIError(err error) (*Error, bool) {
	var clientErr *Error
	if errors.As(err, &clientErr) && clientErr.Kind == ErrorKindAPI {
		return clientErr, true
	}
	return nil, false
}

func errorHasKind(err error, kind ErrorKind) bool {
	var clientErr *Error
	return errors.As(err, &clientErr) && clientErr.Kind == kind
}
