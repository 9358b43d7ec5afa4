package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	prometheusclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder provides OpenTelemetry metrics export following OTel standards
type Recorder struct {
	meterProvider *sdkmetric.MeterProvider
	registry      *prometheusclient.Registry
	collector     Collector

	// OTel meters and instruments
	meter              metric.Meter
	ingressRequests    metric.Int64Counter
	egressRequests     metric.Int64Counter
	egressDuration     metric.Float64Histogram
	replayBacklogGauge metric.Int64ObservableGauge
	rateWindowsGauge   metric.Int64ObservableGauge
}

// NewRecorder creates a new OpenTelemetry metrics recorder with Prometheus
// format. The collector may be nil when no Redis-backed stores are wired;
// the store gauges are then not registered.
func NewRecorder(collector Collector) (*Recorder, error) {
	// Each Recorder gets its own registry so repeated construction never
	// collides on instrument registration
	registry := prometheusclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	// Create meter provider
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	// Create meter with service info
	meter := meterProvider.Meter(
		"formgate",
		metric.WithInstrumentationVersion("1.0.0"),
	)

	re := &Recorder{
		meterProvider: meterProvider,
		registry:      registry,
		collector:     collector,
		meter:         meter,
	}

	// Register metrics instruments
	if err := re.registerInstruments(); err != nil {
		return nil, fmt.Errorf("registering instruments: %w", err)
	}

	return re, nil
}

// registerInstruments creates and registers all OpenTelemetry metric instruments
func (re *Recorder) registerInstruments() error {
	var err error

	// Ingress decision counter (per outcome and pipeline stage)
	re.ingressRequests, err = re.meter.Int64Counter(
		"formgate.ingress.requests",
		metric.WithDescription("Webhook deliveries by terminal outcome and deciding stage"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating ingress requests counter: %w", err)
	}

	// Egress forward counter (per category and method)
	re.egressRequests, err = re.meter.Int64Counter(
		"formgate.egress.requests",
		metric.WithDescription("Provider forwards by failure category and method"),
		metric.WithUnit("{requests}"),
	)
	if err != nil {
		return fmt.Errorf("creating egress requests counter: %w", err)
	}

	// Egress round-trip duration histogram
	re.egressDuration, err = re.meter.Float64Histogram(
		"formgate.egress.duration",
		metric.WithDescription("Provider forward round-trip duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("creating egress duration histogram: %w", err)
	}

	if re.collector == nil {
		return nil
	}

	// Replay backlog gauge
	re.replayBacklogGauge, err = re.meter.Int64ObservableGauge(
		"formgate.replay.backlog",
		metric.WithDescription("Number of delivery digests currently retained"),
		metric.WithUnit("{records}"),
		metric.WithInt64Callback(re.observeReplayBacklog),
	)
	if err != nil {
		return fmt.Errorf("creating replay backlog gauge: %w", err)
	}

	// Active rate-limit window gauge
	re.rateWindowsGauge, err = re.meter.Int64ObservableGauge(
		"formgate.ratelimit.windows",
		metric.WithDescription("Number of live per-source counting windows"),
		metric.WithUnit("{windows}"),
		metric.WithInt64Callback(re.observeRateWindows),
	)
	if err != nil {
		return fmt.Errorf("creating rate windows gauge: %w", err)
	}

	return nil
}

// observeReplayBacklog is a callback that reports the replay store backlog
func (re *Recorder) observeReplayBacklog(ctx context.Context, observer metric.Int64Observer) error {
	backlog, err := re.collector.GetReplayBacklog(ctx)
	if err != nil {
		return err
	}

	observer.Observe(backlog)
	return nil
}

// observeRateWindows is a callback that reports the live counting windows
func (re *Recorder) observeRateWindows(ctx context.Context, observer metric.Int64Observer) error {
	windows, err := re.collector.GetActiveRateWindows(ctx)
	if err != nil {
		return err
	}

	observer.Observe(windows)
	return nil
}

// RecordIngress counts one terminal webhook decision
func (re *Recorder) RecordIngress(ctx context.Context, outcome, stage string) {
	re.ingressRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request.outcome", outcome),
		attribute.String("request.stage", stage),
	))
}

// RecordEgress counts one provider forward and its round-trip duration
func (re *Recorder) RecordEgress(ctx context.Context, category, method string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("proxy.category", category),
		attribute.String("http.method", method),
		attribute.Int("http.status", status),
	)

	re.egressRequests.Add(ctx, 1, attrs)
	re.egressDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// ServeHTTP serves Prometheus-formatted metrics on the given HTTP handler
func (re *Recorder) ServeHTTP() http.Handler {
	return promhttp.HandlerFor(re.registry, promhttp.HandlerOpts{})
}

// Shutdown gracefully shuts down the meter provider
func (re *Recorder) Shutdown(ctx context.Context) error {
	if re.meterProvider != nil {
		return re.meterProvider.Shutdown(ctx)
	}
	return nil
}
