package normgate

import "github.com/kailas-cloud/normgate/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidRequest      = domain.ErrInvalidRequest
	ErrNotFound            = domain.ErrNotFound
	ErrUpstreamUnavailable = domain.ErrUpstreamUnavailable
	ErrUpstreamRejected    = domain.ErrUpstreamRejected
	ErrUpstreamMalformed   = domain.ErrUpstreamMalformed
)

// UpstreamError carries the registry status and JSON body of a rejected call.
// Use errors.As() to read it.
type UpstreamError = domain.UpstreamError
