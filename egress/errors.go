package egress

import (
	"encoding/json"
	"fmt"
	"net/http"
)

/* Category classifies why the gateway refused or failed a forward
 * Each category maps to exactly one HTTP status in the failure shape
 */
type Category int

const (
	CategoryValidation Category = iota + 1
	CategoryNotAllowed
	CategoryRequestTooLarge
	CategoryResponseTooLarge
	CategoryConfig
	CategoryTimeout
	CategoryUpstream
)

// String returns the string representation of the category
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryNotAllowed:
		return "not_allowed"
	case CategoryRequestTooLarge:
		return "request_too_large"
	case CategoryResponseTooLarge:
		return "response_too_large"
	case CategoryConfig:
		return "config"
	case CategoryTimeout:
		return "timeout"
	case CategoryUpstream:
		return "upstream"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the failure-shape status for the category
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotAllowed:
		return http.StatusForbidden
	case CategoryRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case CategoryConfig:
		return http.StatusInternalServerError
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// Retryable reports whether the caller may retry with backoff
func (c Category) Retryable() bool {
	return c == CategoryTimeout || c == CategoryUpstream
}

/* ProxyError is the normalized egress failure
 * Its rendered body carries category, correlation id, and a high-level
 * message; never the credential, never upstream internals
 */
type ProxyError struct {
	Category      Category
	CorrelationID string
	Message       string
	Err           error
}

// Error returns the failure as text
func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proxy %s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("proxy %s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any
func (e *ProxyError) Unwrap() error {
	return e.Err
}

// StatusCode returns the failure-shape status
func (e *ProxyError) StatusCode() int {
	return e.Category.HTTPStatus()
}

// Retryable reports whether the caller may retry with backoff
func (e *ProxyError) Retryable() bool {
	return e.Category.Retryable()
}

// errorBody is the JSON failure body callers receive
type errorBody struct {
	Message  string `json:"message"`
	Category string `json:"category"`
	Error    string `json:"error"`
}

// Response renders the failure as a well-formed ProxyResponse so callers
// never need to special-case "no response".
func (e *ProxyError) Response() ProxyResponse {
	status := e.StatusCode()

	body, err := json.Marshal(errorBody{
		Message:  e.Message,
		Category: e.Category.String(),
		Error:    http.StatusText(status),
	})
	if err != nil {
		body = []byte(`{"message":"proxy error","category":"` + e.Category.String() + `","error":"` + http.StatusText(status) + `"}`)
	}

	return ProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}
