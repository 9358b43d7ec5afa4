package egress

import (
	"fmt"
	"net/url"
)

/* ProxyRequest represents one outbound call the business collaborator
 * wants forwarded to the provider. Uses value semantics as it represents
 * data, not behavior; its lifetime is the forwarding invocation
 */
type ProxyRequest struct {
	Method        string
	Path          string
	Query         url.Values
	Headers       map[string]string
	Body          []byte
	CorrelationID string
}

// Validate checks the request carries everything the gateway needs
func (r ProxyRequest) Validate() error {
	if r.Method == "" {
		return fmt.Errorf("method is required")
	}
	if r.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

/* ProxyResponse is what callers always receive, success or failure:
 * a status code, filtered headers, and an opaque body
 */
type ProxyResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}
