package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/menu-planning/formgate/egress"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardProvider(t *testing.T) {
	t.Run("success - translates the HTTP request for the gateway", func(t *testing.T) {
		forwarder := &stubForwarder{
			resp: egress.ProxyResponse{
				StatusCode: http.StatusOK,
				Headers:    map[string]string{"Content-Type": "application/json"},
				Body:       []byte(`{"id":"abc123"}`),
			},
		}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodGet, "/v1/provider/forms/abc123?page_size=5", nil)
		req.Header.Set("Accept", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, `{"id":"abc123"}`, w.Body.String())
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		assert.Equal(t, http.MethodGet, forwarder.lastReq.Method)
		assert.Equal(t, "/forms/abc123", forwarder.lastReq.Path)
		assert.Equal(t, "5", forwarder.lastReq.Query.Get("page_size"))
		assert.Equal(t, "application/json", forwarder.lastReq.Headers["Accept"])
	})

	t.Run("success - forwards the request body", func(t *testing.T) {
		forwarder := &stubForwarder{resp: egress.ProxyResponse{StatusCode: http.StatusOK}}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodPut, "/v1/provider/forms/abc123/webhooks/tag", strings.NewReader(`{"enabled":true}`))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, []byte(`{"enabled":true}`), forwarder.lastReq.Body)
	})

	t.Run("success - generates a correlation id when the caller sends none", func(t *testing.T) {
		forwarder := &stubForwarder{resp: egress.ProxyResponse{StatusCode: http.StatusOK}}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodGet, "/v1/provider/forms/abc123", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.NotEmpty(t, w.Header().Get("X-Correlation-Id"))
		assert.Equal(t, w.Header().Get("X-Correlation-Id"), forwarder.lastReq.CorrelationID)
	})

	t.Run("success - preserves the caller's correlation id", func(t *testing.T) {
		forwarder := &stubForwarder{resp: egress.ProxyResponse{StatusCode: http.StatusOK}}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodGet, "/v1/provider/forms/abc123", nil)
		req.Header.Set("X-Correlation-Id", "corr-77")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, "corr-77", w.Header().Get("X-Correlation-Id"))
		assert.Equal(t, "corr-77", forwarder.lastReq.CorrelationID)
	})

	t.Run("error - gateway refusal is written as its failure shape", func(t *testing.T) {
		forwarder := &stubForwarder{
			err: &egress.ProxyError{
				Category: egress.CategoryNotAllowed,
				Message:  "DELETE /forms/abc123 is not allowlisted",
			},
		}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodDelete, "/v1/provider/forms/abc123", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "not_allowed", body["category"])
		assert.Equal(t, "Forbidden", body["error"])
	})

	t.Run("success - upstream error statuses pass through untouched", func(t *testing.T) {
		forwarder := &stubForwarder{
			resp: egress.ProxyResponse{
				StatusCode: http.StatusNotFound,
				Body:       []byte(`{"code":"FORM_NOT_FOUND"}`),
			},
		}
		h := testRouter(t, &stubPipeline{}, forwarder)

		req := httptest.NewRequest(http.MethodGet, "/v1/provider/forms/gone99", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, `{"code":"FORM_NOT_FOUND"}`, w.Body.String())
	})
}

func TestGetAllowlist(t *testing.T) {
	h := testRouter(t, &stubPipeline{}, &stubForwarder{})

	req := httptest.NewRequest(http.MethodGet, "/v1/allowlist", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var rules []allowRuleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rules))
	require.Len(t, rules, 1)
	assert.Equal(t, "GET", rules[0].Method)
	assert.Equal(t, "/forms/[A-Za-z0-9]+", rules[0].Pattern)
}
