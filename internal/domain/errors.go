package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest signals caller input rejected before any upstream call.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound signals that the registry returned no record for a lookup.
	ErrNotFound = errors.New("not found")
	// ErrUpstreamUnavailable signals a transport failure reaching the registry.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamRejected signals a non-success status from the registry.
	ErrUpstreamRejected = errors.New("upstream rejected request")
	// ErrUpstreamMalformed signals a success response whose body could not be decoded.
	ErrUpstreamMalformed = errors.New("upstream returned malformed payload")
	// ErrQuotaExceeded signals an exhausted upstream request quota.
	ErrQuotaExceeded = errors.New("upstream quota exceeded")
	// ErrAnswerProviderError signals a failure of the answer provider.
	ErrAnswerProviderError = errors.New("answer provider error")
	// ErrNotImplemented signals a disabled feature.
	ErrNotImplemented = errors.New("not implemented")
)

// UpstreamError carries the registry's own status and body for a rejected request.
// Body is nil when the registry answered with something that is not JSON.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: status %d", ErrUpstreamRejected.Error(), e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamRejected }

// NewUpstreamError builds an UpstreamError, keeping body only when it is valid JSON.
func NewUpstreamError(status int, body []byte) error {
	e := &UpstreamError{StatusCode: status}
	if len(body) > 0 && json.Valid(body) {
		e.Body = json.RawMessage(body)
	}
	return e
}
