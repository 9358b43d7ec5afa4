package ingress

import (
	"fmt"
	"strings"
	"time"

	"github.com/menu-planning/formgate/ingress/signature"
)

/* WebhookRequest represents one inbound delivery entering the trust pipeline
 * Uses value semantics as it represents data, not behavior; its lifetime is
 * the handling invocation
 */
type WebhookRequest struct {
	RawBody       []byte
	Headers       map[string]string
	SourceKey     string
	CorrelationID string
	ReceivedAt    time.Time
}

// Validate checks the request carries everything the pipeline needs
func (r WebhookRequest) Validate() error {
	if r.SourceKey == "" {
		return fmt.Errorf("source key is required")
	}
	if r.ReceivedAt.IsZero() {
		return fmt.Errorf("received timestamp is required")
	}
	return nil
}

// SignatureHeader returns the presented signature header value, matching
// the header name case-insensitively. Empty when absent.
func (r WebhookRequest) SignatureHeader() string {
	for name, value := range r.Headers {
		if strings.EqualFold(name, signature.Header) {
			return value
		}
	}
	return ""
}

/* WebhookEvent is the validated, deduplicated result handed to the business
 * collaborator. Created only after all three ingress checks pass.
 */
type WebhookEvent struct {
	Payload       []byte
	SourceKey     string
	CorrelationID string
	ReceivedAt    time.Time
}
