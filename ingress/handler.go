package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/menu-planning/formgate/ingress/payload"
	"github.com/menu-planning/formgate/ingress/ratelimit"
	"github.com/menu-planning/formgate/ingress/replay"
	"github.com/menu-planning/formgate/ingress/signature"
)

/* Handler orchestrates the trust pipeline: rate limiting, then signature
 * verification, then replay detection. Order matters: rate limiting runs
 * first and shields the rest from volumetric abuse, signature verification
 * rejects forged payloads before they consume replay-store capacity, and
 * replay detection runs last so only authenticated digests are recorded.
 */

// Pipeline defines the ingress operation exposed to the hosting layer
type Pipeline interface {
	Handle(ctx context.Context, req WebhookRequest) (WebhookEvent, error)
}

type Handler struct {
	secret    signature.Secret
	limiter   ratelimit.Limiter
	replays   replay.Store
	replayTTL time.Duration
	logger    *slog.Logger

	// logPayloads enables the redacted payload log path. Off by default;
	// even when on, only envelope identifiers are logged, at debug level.
	logPayloads bool

	now func() time.Time
}

// NewHandler creates the ingress pipeline with dependency injection
func NewHandler(secret signature.Secret, limiter ratelimit.Limiter, replays replay.Store, replayTTL time.Duration, logger *slog.Logger) *Handler {
	return &Handler{
		secret:    secret,
		limiter:   limiter,
		replays:   replays,
		replayTTL: replayTTL,
		logger:    logger,
		now:       time.Now,
	}
}

// WithPayloadLogging enables the opt-in redacted payload log path
func (h *Handler) WithPayloadLogging(enabled bool) *Handler {
	h.logPayloads = enabled
	return h
}

// WithClock overrides the time source. For tests.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	if now != nil {
		h.now = now
	}
	return h
}

// Handle runs one delivery through the pipeline and returns either the
// validated event or a typed rejection. Exactly one structured log entry
// is emitted per terminal state.
func (h *Handler) Handle(ctx context.Context, req WebhookRequest) (WebhookEvent, error) {
	corrID := req.CorrelationID
	if corrID == "" {
		corrID = uuid.New().String()
	}
	now := h.now()

	// A request the hosting layer failed to populate is a wiring defect,
	// not a caller failure; it still leaves as a typed rejection.
	if err := req.Validate(); err != nil {
		return h.failClosed(ctx, req, corrID, StageValidation, fmt.Errorf("validating request: %w", err))
	}

	decision, err := h.limiter.Allow(ctx, req.SourceKey, now)
	if err != nil {
		return h.failClosed(ctx, req, corrID, StageRateLimit, fmt.Errorf("checking rate limit: %w", err))
	}
	if !decision.Allowed {
		return h.reject(ctx, req, &IngressError{
			Kind:          RateLimited,
			Stage:         StageRateLimit,
			CorrelationID: corrID,
			RetryAfter:    decision.RetryAfter,
		})
	}

	if !signature.Verify(h.secret, req.RawBody, req.SignatureHeader()) {
		return h.reject(ctx, req, &IngressError{
			Kind:          Unauthenticated,
			Stage:         StageSignature,
			CorrelationID: corrID,
		})
	}

	digest := signature.DigestHex(h.secret, req.RawBody)
	fresh, err := h.replays.CheckAndRecord(ctx, digest, req.SourceKey, now, h.replayTTL)
	if err != nil {
		return h.failClosed(ctx, req, corrID, StageReplay, fmt.Errorf("recording replay digest: %w", err))
	}
	if !fresh {
		return h.reject(ctx, req, &IngressError{
			Kind:          Replayed,
			Stage:         StageReplay,
			CorrelationID: corrID,
		})
	}

	event := WebhookEvent{
		Payload:       req.RawBody,
		SourceKey:     req.SourceKey,
		CorrelationID: corrID,
		ReceivedAt:    req.ReceivedAt,
	}

	h.logger.LogAttrs(ctx, slog.LevelInfo, "webhook accepted",
		slog.String("correlation_id", corrID),
		slog.String("source_key", req.SourceKey),
		slog.String("stage", StageAccepted.String()),
		slog.String("outcome", "accepted"),
	)
	h.logPayload(ctx, corrID, req.RawBody)

	return event, nil
}

// reject logs the terminal rejection and returns it. The entry carries
// the correlation id, stage, and outcome; never the signature or body.
func (h *Handler) reject(ctx context.Context, req WebhookRequest, ierr *IngressError) (WebhookEvent, error) {
	attrs := []slog.Attr{
		slog.String("correlation_id", ierr.CorrelationID),
		slog.String("source_key", req.SourceKey),
		slog.String("stage", ierr.Stage.String()),
		slog.String("outcome", ierr.Kind.String()),
	}
	if ierr.RetryAfter > 0 {
		attrs = append(attrs, slog.Duration("retry_after", ierr.RetryAfter))
	}
	h.logger.LogAttrs(ctx, slog.LevelWarn, "webhook rejected", attrs...)

	return WebhookEvent{}, ierr
}

// failClosed converts a store failure into an internal rejection. A broken
// dedup or counter store must never admit a delivery.
func (h *Handler) failClosed(ctx context.Context, req WebhookRequest, corrID string, stage Stage, err error) (WebhookEvent, error) {
	h.logger.LogAttrs(ctx, slog.LevelError, "ingress check failed",
		slog.String("correlation_id", corrID),
		slog.String("source_key", req.SourceKey),
		slog.String("stage", stage.String()),
		slog.String("outcome", Internal.String()),
		slog.String("error", err.Error()),
	)

	return WebhookEvent{}, &IngressError{
		Kind:          Internal,
		Stage:         stage,
		CorrelationID: corrID,
		Err:           err,
	}
}

// logPayload emits the opt-in redacted payload entry. Best effort: an
// envelope that fails to parse is reported without its contents.
func (h *Handler) logPayload(ctx context.Context, corrID string, body []byte) {
	if !h.logPayloads {
		return
	}

	envelope, err := payload.Parse(body)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelDebug, "payload envelope not parseable",
			slog.String("correlation_id", corrID),
		)
		return
	}

	attrs := []slog.Attr{slog.String("correlation_id", corrID)}
	for k, v := range envelope.Redacted() {
		attrs = append(attrs, slog.String(k, v))
	}
	h.logger.LogAttrs(ctx, slog.LevelDebug, "payload envelope", attrs...)
}
