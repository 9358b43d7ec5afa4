package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/menu-planning/formgate/egress"
	"github.com/menu-planning/formgate/ingress"
	"github.com/menu-planning/formgate/metrics"
)

// Handlers sets up the trust boundary API routes. trustProxyHeaders must
// only be set when a fronting proxy overwrites the forwarding headers.
func Handlers(ctx context.Context, pipeline ingress.Pipeline, forwarder egress.Forwarder, policy *egress.Policy, recorder *metrics.Recorder, trustProxyHeaders bool) *chi.Mux {
	logger := httplog.NewLogger("formgate", httplog.Options{
		JSON: true,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Prometheus metrics
	if recorder != nil {
		r.Method(http.MethodGet, "/metrics", recorder.ServeHTTP())
	}

	// Trust boundary API routes
	r.Route("/v1", func(r chi.Router) {
		// Receive provider deliveries
		r.Post("/webhooks", postWebhook(pipeline, recorder, trustProxyHeaders).ServeHTTP)

		// List the egress allowlist
		r.Get("/allowlist", getAllowlist(policy).ServeHTTP)

		// Forward calls to the provider API
		r.Handle("/provider/*", forwardProvider(forwarder, recorder))
	})

	return r
}
