package egress

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

/* Gateway is the only path to the provider API. It enforces the
 * allowlist, injects the credential, bounds both body sizes, and bounds
 * the upstream call with a cancellable timeout. It never retries;
 * retry policy belongs to the caller.
 */

const (
	// DefaultMaxRequestBytes caps outbound request bodies (128 KB)
	DefaultMaxRequestBytes = 128 * 1024

	// DefaultMaxResponseBytes caps upstream response bodies (1 MB)
	DefaultMaxResponseBytes = 1 * 1024 * 1024

	// DefaultTimeout bounds the upstream round trip
	DefaultTimeout = 15 * time.Second
)

// forwardedRequestHeaders is the only set of caller headers that reaches
// upstream. Authorization is never in it; the gateway owns that header.
var forwardedRequestHeaders = map[string]bool{
	"Content-Type":      true,
	"Accept":            true,
	"User-Agent":        true,
	"If-None-Match":     true,
	"If-Modified-Since": true,
}

// forwardedResponseHeaders is the only set of upstream headers passed
// back to the caller, plus any X-RateLimit-* header.
var forwardedResponseHeaders = map[string]bool{
	"Content-Type": true,
	"Etag":         true,
	"Retry-After":  true,
}

// rateLimitHeaderPrefix matches the provider's quota headers in
// canonical form.
const rateLimitHeaderPrefix = "X-Ratelimit-"

// Forwarder defines the egress operation exposed to the business collaborator
type Forwarder interface {
	Forward(ctx context.Context, req ProxyRequest) (ProxyResponse, error)
}

type Gateway struct {
	baseURL *url.URL
	apiKey  string
	policy  *Policy
	client  *http.Client
	logger  *slog.Logger

	maxRequestBytes  int64
	maxResponseBytes int64
	timeout          time.Duration
}

// NewGateway creates the provider gateway with dependency injection.
// A missing credential does not refuse construction; each Forward then
// fails with the config category until one is provided.
func NewGateway(baseURL, apiKey string, policy *Policy, logger *slog.Logger) (*Gateway, error) {
	if policy == nil {
		return nil, fmt.Errorf("allowlist policy is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute: %s", baseURL)
	}

	return &Gateway{
		baseURL:          parsed,
		apiKey:           apiKey,
		policy:           policy,
		client:           &http.Client{},
		logger:           logger,
		maxRequestBytes:  DefaultMaxRequestBytes,
		maxResponseBytes: DefaultMaxResponseBytes,
		timeout:          DefaultTimeout,
	}, nil
}

// WithTimeout overrides the upstream call timeout
func (g *Gateway) WithTimeout(timeout time.Duration) *Gateway {
	if timeout > 0 {
		g.timeout = timeout
	}
	return g
}

// WithSizeLimits overrides the request and response body caps
func (g *Gateway) WithSizeLimits(maxRequest, maxResponse int64) *Gateway {
	if maxRequest > 0 {
		g.maxRequestBytes = maxRequest
	}
	if maxResponse > 0 {
		g.maxResponseBytes = maxResponse
	}
	return g
}

// WithHTTPClient overrides the HTTP client. For tests.
func (g *Gateway) WithHTTPClient(client *http.Client) *Gateway {
	if client != nil {
		g.client = client
	}
	return g
}

// Forward sends one request upstream and returns the shaped response.
// On failure the returned error is always a *ProxyError whose Response()
// renders the well-formed failure shape.
func (g *Gateway) Forward(ctx context.Context, req ProxyRequest) (ProxyResponse, error) {
	if err := req.Validate(); err != nil {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryValidation,
			CorrelationID: req.CorrelationID,
			Message:       err.Error(),
		})
	}

	if g.apiKey == "" {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryConfig,
			CorrelationID: req.CorrelationID,
			Message:       "provider credential is not configured",
		})
	}

	if !g.policy.Allows(req.Method, req.Path) {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryNotAllowed,
			CorrelationID: req.CorrelationID,
			Message:       fmt.Sprintf("%s %s is not allowlisted", req.Method, req.Path),
		})
	}

	// Checked before any network I/O: an oversized request never
	// contacts upstream.
	if int64(len(req.Body)) > g.maxRequestBytes {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryRequestTooLarge,
			CorrelationID: req.CorrelationID,
			Message:       fmt.Sprintf("request body exceeds %d bytes", g.maxRequestBytes),
		})
	}

	target := g.targetURL(req)

	var bodyReader io.Reader
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, strings.ToUpper(req.Method), target, bodyReader)
	if err != nil {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryValidation,
			CorrelationID: req.CorrelationID,
			Message:       "building upstream request",
			Err:           err,
		})
	}

	for name, value := range req.Headers {
		if forwardedRequestHeaders[http.CanonicalHeaderKey(name)] {
			httpReq.Header.Set(name, value)
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	started := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return g.fail(ctx, req, &ProxyError{
				Category:      CategoryTimeout,
				CorrelationID: req.CorrelationID,
				Message:       fmt.Sprintf("upstream call exceeded %s", g.timeout),
				Err:           context.DeadlineExceeded,
			})
		}
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryUpstream,
			CorrelationID: req.CorrelationID,
			Message:       "upstream call failed",
			Err:           err,
		})
	}
	defer resp.Body.Close()

	// Fail fast on a declared oversize before reading the body.
	if resp.ContentLength > g.maxResponseBytes {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryResponseTooLarge,
			CorrelationID: req.CorrelationID,
			Message:       fmt.Sprintf("upstream response declares %d bytes, limit is %d", resp.ContentLength, g.maxResponseBytes),
		})
	}

	// Re-check against the bytes actually read; a chunked or misreporting
	// upstream cannot bypass the cap by omitting Content-Length.
	body, err := io.ReadAll(io.LimitReader(resp.Body, g.maxResponseBytes+1))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return g.fail(ctx, req, &ProxyError{
				Category:      CategoryTimeout,
				CorrelationID: req.CorrelationID,
				Message:       fmt.Sprintf("upstream call exceeded %s", g.timeout),
				Err:           context.DeadlineExceeded,
			})
		}
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryUpstream,
			CorrelationID: req.CorrelationID,
			Message:       "reading upstream response",
			Err:           err,
		})
	}
	if int64(len(body)) > g.maxResponseBytes {
		return g.fail(ctx, req, &ProxyError{
			Category:      CategoryResponseTooLarge,
			CorrelationID: req.CorrelationID,
			Message:       fmt.Sprintf("upstream response exceeds %d bytes", g.maxResponseBytes),
		})
	}

	out := ProxyResponse{
		StatusCode: resp.StatusCode,
		Headers:    shapeResponseHeaders(resp.Header),
		Body:       body,
	}

	g.logger.LogAttrs(ctx, slog.LevelInfo, "proxy forwarded",
		slog.String("correlation_id", req.CorrelationID),
		slog.String("method", strings.ToUpper(req.Method)),
		slog.String("path", req.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(started)),
	)

	return out, nil
}

// targetURL joins the base URL with the request path and query
func (g *Gateway) targetURL(req ProxyRequest) string {
	target := *g.baseURL
	target.Path = strings.TrimSuffix(g.baseURL.Path, "/") + req.Path
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}
	return target.String()
}

// fail logs the terminal failure and returns it alongside its rendered
// response shape. The entry carries category and correlation id; never
// the credential or body bytes.
func (g *Gateway) fail(ctx context.Context, req ProxyRequest, perr *ProxyError) (ProxyResponse, error) {
	g.logger.LogAttrs(ctx, slog.LevelWarn, "proxy rejected",
		slog.String("correlation_id", req.CorrelationID),
		slog.String("method", strings.ToUpper(req.Method)),
		slog.String("path", req.Path),
		slog.String("category", perr.Category.String()),
		slog.Int("status", perr.StatusCode()),
	)

	return perr.Response(), perr
}

// shapeResponseHeaders filters upstream headers down to the allowlist
func shapeResponseHeaders(upstream http.Header) map[string]string {
	headers := make(map[string]string)
	for name, values := range upstream {
		if len(values) == 0 {
			continue
		}
		canonical := http.CanonicalHeaderKey(name)
		if forwardedResponseHeaders[canonical] || strings.HasPrefix(canonical, rateLimitHeaderPrefix) {
			headers[canonical] = values[0]
		}
	}
	return headers
}
