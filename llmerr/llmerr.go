// Package llmerr defines the error taxonomy shared by every llmkit
// component: provider adapters, the tool-loop agent, the structured-output
// pipeline, and the builder. Errors are a single *Error type discriminated
// by Kind rather than a type hierarchy, following the teacher's
// ProviderError shape (runtime/agent/model/provider_error.go).
package llmerr

import (
	"errors"
	"fmt"
)

// Kind classifies an Error into the taxonomy from spec.md §7.
type Kind string

const (
	// KindAuth indicates missing or invalid credentials (401/403).
	KindAuth Kind = "auth"
	// KindInvalidRequest indicates a 400/404/422, an unusable config, or a
	// schema violation detected at request-build time.
	KindInvalidRequest Kind = "invalid_request"
	// KindRateLimit indicates a 429; RetryAfter may be populated.
	KindRateLimit Kind = "rate_limit"
	// KindProvider indicates a 5xx, "overloaded", or other provider-reported
	// failure.
	KindProvider Kind = "provider"
	// KindTimeout indicates a local deadline was exceeded.
	KindTimeout Kind = "timeout"
	// KindCancelled indicates caller-initiated cancellation.
	KindCancelled Kind = "cancelled"
	// KindResponseFormat indicates malformed JSON, a schema validation
	// failure, or an unexpected stream shape.
	KindResponseFormat Kind = "response_format"
	// KindUnsupportedCapability indicates the builder requested a capability
	// the resolved provider factory does not support.
	KindUnsupportedCapability Kind = "unsupported_capability"
	// KindHTTP indicates a transport-level failure not mapped to a more
	// specific kind (DNS, TLS, connection reset).
	KindHTTP Kind = "http"
	// KindGeneric is the fallback kind for unclassified failures.
	KindGeneric Kind = "generic"
)

// Error is the concrete error type for every llmkit failure. Construct one
// with New or FromHTTPStatus; fields are
// intentionally unexported so call sites classify via Kind() rather than
// matching Go types.
type Error struct {
	kind       Kind
	provider   string
	operation  string
	httpStatus int
	code       string
	message    string
	retryAfter int // seconds; 0 means unknown/not applicable
	cause      error
}

// New constructs an Error. kind is required; provider and operation are
// recommended so callers can attribute the failure.
func New(kind Kind, provider, operation, message string, cause error) *Error {
	if kind == "" {
		panic("llmerr: kind is required")
	}
	return &Error{kind: kind, provider: provider, operation: operation, message: message, cause: cause}
}

// WithHTTPStatus attaches the provider HTTP status code and returns the
// receiver for chaining.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.httpStatus = status
	return e
}

// WithCode attaches a provider-specific error code and returns the receiver
// for chaining.
func (e *Error) WithCode(code string) *Error {
	e.code = code
	return e
}

// WithRetryAfter attaches a retry-after hint in seconds and returns the
// receiver for chaining.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.retryAfter = seconds
	return e
}

// Kind returns the coarse-grained classification.
func (e *Error) Kind() Kind { return e.kind }

// Provider returns the provider id that produced the error, if any.
func (e *Error) Provider() string { return e.provider }

// Operation returns the adapter operation name, if known (for example, "chat_stream").
func (e *Error) Operation() string { return e.operation }

// HTTPStatus returns the provider HTTP status code, or 0 if not applicable.
func (e *Error) HTTPStatus() int { return e.httpStatus }

// Code returns the provider-specific error code, if any.
func (e *Error) Code() string { return e.code }

// RetryAfter returns the provider's retry-after hint in seconds, or 0 if
// unknown. Only meaningful when Kind() == KindRateLimit.
func (e *Error) RetryAfter() int { return e.retryAfter }

// Retryable reports whether retrying the same request without
// modification might succeed.
func (e *Error) Retryable() bool {
	switch e.kind {
	case KindRateLimit, KindProvider, KindHTTP:
		return true
	default:
		return false
	}
}

func (e *Error) Error() string {
	provider := e.provider
	if provider == "" {
		provider = "llmkit"
	}
	op := e.operation
	if op == "" {
		op = "request"
	}
	msg := e.message
	if msg == "" && e.cause != nil {
		msg = e.cause.Error()
	}
	if msg == "" {
		msg = "error"
	}
	if e.httpStatus > 0 {
		return fmt.Sprintf("%s %s %s(%d): %s", provider, e.kind, op, e.httpStatus, msg)
	}
	return fmt.Sprintf("%s %s %s: %s", provider, e.kind, op, msg)
}

// Unwrap exposes the underlying cause so errors.Is/errors.As see through it.
func (e *Error) Unwrap() error { return e.cause }

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// FromHTTPStatus classifies an HTTP status code into an Error per the
// adapter contract in spec.md §6 ("Error mapping: HTTP status -> error kind
// per §7"). retryAfterSeconds is only consulted when status == 429.
func FromHTTPStatus(provider, operation string, status int, message string, retryAfterSeconds int, cause error) *Error {
	var kind Kind
	switch {
	case status == 401 || status == 403:
		kind = KindAuth
	case status == 400 || status == 404 || status == 422:
		kind = KindInvalidRequest
	case status == 429:
		kind = KindRateLimit
	case status >= 500:
		kind = KindProvider
	default:
		kind = KindGeneric
	}
	e := New(kind, provider, operation, message, cause).WithHTTPStatus(status)
	if kind == KindRateLimit && retryAfterSeconds > 0 {
		e = e.WithRetryAfter(retryAfterSeconds)
	}
	return e
}
