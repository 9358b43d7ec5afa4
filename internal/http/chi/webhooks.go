package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/menu-planning/formgate/ingress"
	"github.com/menu-planning/formgate/metrics"
)

/* HTTP layer DTOs for the webhook receiving endpoint
 * Separate from domain entities to avoid leaking internal structure
 */

// maxWebhookBodyBytes caps inbound delivery bodies before any
// verification work happens
const maxWebhookBodyBytes = 1 << 20

// webhookAccepted represents the API response for an accepted delivery
type webhookAccepted struct {
	CorrelationID string    `json:"correlation_id"`
	ReceivedAt    time.Time `json:"received_at"`
}

// webhookRejected represents the API response for a refused delivery.
// The message is canned per kind; pipeline internals never surface here.
type webhookRejected struct {
	Message       string `json:"message"`
	Kind          string `json:"kind"`
	CorrelationID string `json:"correlation_id"`
}

// postWebhook handles POST /v1/webhooks
func postWebhook(pipeline ingress.Pipeline, recorder *metrics.Recorder, trustProxy bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Read request body under the size cap
		r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		// Extract headers (first value only)
		headers := make(map[string]string)
		for key, values := range r.Header {
			if len(values) > 0 {
				headers[key] = values[0]
			}
		}

		req := ingress.WebhookRequest{
			RawBody:       body,
			Headers:       headers,
			SourceKey:     clientIP(r, trustProxy),
			CorrelationID: r.Header.Get("X-Correlation-Id"),
			ReceivedAt:    time.Now().UTC(),
		}

		event, err := pipeline.Handle(r.Context(), req)
		if err != nil {
			var ierr *ingress.IngressError
			if errors.As(err, &ierr) {
				if recorder != nil {
					recorder.RecordIngress(r.Context(), ierr.Kind.String(), ierr.Stage.String())
				}
				writeRejection(w, ierr)
				return
			}
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if recorder != nil {
			recorder.RecordIngress(r.Context(), "accepted", ingress.StageAccepted.String())
		}

		// Return 202 Accepted with the correlation id
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Correlation-Id", event.CorrelationID)
		w.WriteHeader(http.StatusAccepted)

		response := webhookAccepted{
			CorrelationID: event.CorrelationID,
			ReceivedAt:    event.ReceivedAt,
		}

		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

// writeRejection renders a refused delivery with its canned message
func writeRejection(w http.ResponseWriter, ierr *ingress.IngressError) {
	if ierr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(ierr.RetryAfter)))
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Correlation-Id", ierr.CorrelationID)
	w.WriteHeader(ierr.HTTPStatus())

	json.NewEncoder(w).Encode(webhookRejected{
		Message:       rejectionMessage(ierr.Kind),
		Kind:          ierr.Kind.String(),
		CorrelationID: ierr.CorrelationID,
	})
}

// rejectionMessage maps a rejection kind to its caller-facing text
func rejectionMessage(kind ingress.Kind) string {
	switch kind {
	case ingress.RateLimited:
		return "rate limit exceeded, retry later"
	case ingress.Unauthenticated:
		return "signature verification failed"
	case ingress.Replayed:
		return "duplicate delivery"
	default:
		return "internal error"
	}
}

// retryAfterSeconds rounds the wait up to whole seconds
func retryAfterSeconds(wait time.Duration) int {
	seconds := int(wait / time.Second)
	if wait%time.Second > 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return seconds
}

// clientIP extracts the caller address the source key is derived from.
// Forwarding headers are caller-controlled: honoring them without a
// trusted fronting proxy would let a sender mint a fresh source key per
// request, sidestepping both replay dedup and the per-source rate limit.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			if i := strings.Index(fwd, ","); i >= 0 {
				return strings.TrimSpace(fwd[:i])
			}
			return strings.TrimSpace(fwd)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
