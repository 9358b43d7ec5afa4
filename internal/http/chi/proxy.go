package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/menu-planning/formgate/egress"
	"github.com/menu-planning/formgate/metrics"
)

// allowRuleResponse represents an allowlist rule in the API
type allowRuleResponse struct {
	Method  string `json:"method"`
	Pattern string `json:"pattern"`
}

// forwardProvider handles /v1/provider/* by delegating to the egress gateway.
// The gateway owns every policy decision; this adapter only translates
// between HTTP and the gateway's request shape.
func forwardProvider(forwarder egress.Forwarder, recorder *metrics.Recorder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamPath := "/" + chi.URLParam(r, "*")

		// Read one byte past the gateway cap so oversize is detected there
		body, err := io.ReadAll(io.LimitReader(r.Body, egress.DefaultMaxRequestBytes+1))
		if err != nil {
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

		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		req := egress.ProxyRequest{
			Method:        r.Method,
			Path:          upstreamPath,
			Query:         r.URL.Query(),
			Headers:       headers,
			Body:          body,
			CorrelationID: correlationID,
		}

		started := time.Now()
		resp, err := forwarder.Forward(r.Context(), req)

		category := "ok"
		if err != nil {
			var perr *egress.ProxyError
			if errors.As(err, &perr) {
				category = perr.Category.String()
			} else {
				perr = &egress.ProxyError{
					Category:      egress.CategoryUpstream,
					CorrelationID: correlationID,
					Message:       "proxy failure",
				}
				category = perr.Category.String()
				resp = perr.Response()
			}
		}

		if recorder != nil {
			recorder.RecordEgress(r.Context(), category, r.Method, resp.StatusCode, time.Since(started))
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}
		w.Header().Set("X-Correlation-Id", correlationID)
		w.WriteHeader(resp.StatusCode)
		w.Write(resp.Body)
	})
}

// getAllowlist handles GET /v1/allowlist
func getAllowlist(policy *egress.Policy) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rules := policy.Rules()

		responses := make([]allowRuleResponse, 0, len(rules))
		for _, rule := range rules {
			responses = append(responses, allowRuleResponse{
				Method:  rule.Method,
				Pattern: rule.Pattern,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(responses); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}
