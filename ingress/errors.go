package ingress

import (
	"fmt"
	"net/http"
	"time"
)

/* Kind classifies why the pipeline rejected a delivery
 * Each kind maps to exactly one HTTP status at the hosting layer
 */
type Kind int

const (
	RateLimited Kind = iota + 1
	Unauthenticated
	Replayed
	Internal
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case RateLimited:
		return "rate_limited"
	case Unauthenticated:
		return "unauthenticated"
	case Replayed:
		return "replayed"
	case Internal:
		return "internal"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the response status for the kind
func (k Kind) HTTPStatus() int {
	switch k {
	case RateLimited:
		return http.StatusTooManyRequests
	case Unauthenticated:
		return http.StatusUnauthorized
	case Replayed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the identical delivery.
// A replayed or forged delivery never becomes acceptable by retrying.
func (k Kind) Retryable() bool {
	return k == RateLimited || k == Internal
}

/* Stage identifies how far a delivery got through the pipeline */
type Stage int

const (
	StageValidation Stage = iota + 1
	StageRateLimit
	StageSignature
	StageReplay
	StageAccepted
)

// String returns the string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageValidation:
		return "validation"
	case StageRateLimit:
		return "rate_limit"
	case StageSignature:
		return "signature"
	case StageReplay:
		return "replay"
	case StageAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

/* IngressError is the typed rejection produced by the pipeline
 * The message never contains the secret, the signature, or payload bytes
 */
type IngressError struct {
	Kind          Kind
	Stage         Stage
	CorrelationID string

	// RetryAfter hints when the caller may retry. Set for rate limiting.
	RetryAfter time.Duration

	// Err carries the underlying store failure for Internal rejections.
	Err error
}

// Error returns the rejection as text
func (e *IngressError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("webhook rejected at %s: %s: %v", e.Stage, e.Kind, e.Err)
	}
	return fmt.Sprintf("webhook rejected at %s: %s", e.Stage, e.Kind)
}

// Unwrap returns the underlying cause, if any
func (e *IngressError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for the rejection
func (e *IngressError) HTTPStatus() int {
	return e.Kind.HTTPStatus()
}

// Retryable reports whether retrying the identical delivery can succeed
func (e *IngressError) Retryable() bool {
	return e.Kind.Retryable()
}
