// Package clients provides thin HTTP adapters over the four external
// services the orchestrator depends on: the LLM gateway, web search,
// external corporate/people data, and the internal knowledge base.
//
// All calls are JSON over HTTP POST, context-cancelable, and classified
// into typed error kinds so callers can choose a fallback path instead
// of propagating failures.
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a service-client failure.
type ErrorKind string

const (
	KindTimeout         ErrorKind = "timeout"
	KindRateLimited     ErrorKind = "rate_limited"
	KindQuotaExceeded   ErrorKind = "quota_exceeded"
	KindInvalidResponse ErrorKind = "invalid_response"
	KindUpstreamError   ErrorKind = "upstream_error"
)

// ServiceError is the typed failure surfaced by every client operation.
type ServiceError struct {
	Service string
	Kind    ErrorKind
	Status  int // HTTP status, 0 when the transport failed
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (HTTP %d): %v", e.Service, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Retryable reports whether a retry of the same call may succeed.
// Timeouts are retryable because every client operation is a read.
func (e *ServiceError) Retryable() bool {
	return e.Kind == KindTimeout
}

// classifyHTTPStatus maps a non-2xx response to an error kind.
func classifyHTTPStatus(status int) ErrorKind {
	switch status {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusPaymentRequired, http.StatusForbidden:
		return KindQuotaExceeded
	default:
		return KindUpstreamError
	}
}

// classifyTransportErr maps a transport-level failure to an error kind.
func classifyTransportErr(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUpstreamError
}

// KindOf extracts the error kind from err, or KindUpstreamError when
// err is not a *ServiceError.
func KindOf(err error) ErrorKind {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUpstreamError
}
