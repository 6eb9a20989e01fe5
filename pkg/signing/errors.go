package signing

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorClass tags an API failure for the retry engine's decision logic.
type ErrorClass string

const (
	// AuthExpired means the bearer token was rejected; the caller should
	// refresh it and try again.
	AuthExpired ErrorClass = "AUTH_EXPIRED"
	// ClientError is a non-auth 4xx: the request itself is wrong and
	// retrying cannot help.
	ClientError ErrorClass = "CLIENT_ERROR"
	// TransientError covers 5xx responses, connection failures and
	// timeouts; retrying with backoff may succeed.
	TransientError ErrorClass = "TRANSIENT_ERROR"
	// InvalidResponse means the server answered 2xx but the body violated
	// the expected contract (e.g. missing auth URL).
	InvalidResponse ErrorClass = "INVALID_RESPONSE"
)

// APIError is the classified failure returned by every Client operation.
type APIError struct {
	Class      ErrorClass
	Operation  string
	StatusCode int // 0 for transport-level failures
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Operation, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Operation, e.Class, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

func newAPIError(class ErrorClass, op string, status int, err error) *APIError {
	return &APIError{Class: class, Operation: op, StatusCode: status, Err: err}
}

// ClassOf extracts the error class, defaulting to TransientError for
// unclassified failures (connection resets surface as plain transport
// errors).
func ClassOf(err error) ErrorClass {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	return TransientError
}

// IsAuthExpired reports whether err is an unauthorized failure.
func IsAuthExpired(err error) bool {
	return ClassOf(err) == AuthExpired
}

// IsRetryable reports whether the retry engine may attempt err again.
func IsRetryable(err error) bool {
	return ClassOf(err) == TransientError
}
