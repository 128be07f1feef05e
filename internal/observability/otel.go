package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumeboost/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds all custom metrics for Resumeboost
type Metrics struct {
	// Analysis pipeline metrics
	AnalysisDuration metric.Float64Histogram
	AnalysisCount    metric.Int64Counter
	AnalysisErrors   metric.Int64Counter
	AITokenUsage     metric.Int64Histogram

	// Billing metrics
	WebhookEvents metric.Int64Counter

	// Rate limiting metrics
	RateLimitHits metric.Int64Counter
}

// Manager manages OpenTelemetry setup
type Manager struct {
	config         config.ObservabilityConfig
	version        string
	tracerProvider *trace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	metrics        *Metrics
	metricsHandler http.Handler
	shutdownFuncs  []func(context.Context) error
}

// NewManager creates a new observability manager
func NewManager(cfg config.ObservabilityConfig, version string) (*Manager, error) {
	if !cfg.Enabled {
		return &Manager{config: cfg, version: version}, nil
	}

	m := &Manager{
		config:        cfg,
		version:       version,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if err := m.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

// newResource creates the OpenTelemetry resource for the service
func (m *Manager) newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.config.ServiceName),
			semconv.ServiceVersion(m.version),
		),
	)
}

// initTracing sets up OpenTelemetry tracing
func (m *Manager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	if m.config.OTLP.Enabled {
		exporter, err = m.createOTLPExporter()
	} else {
		// No collector configured; spans still propagate context and
		// carry attributes for local middleware.
		exporter = &noOpSpanExporter{}
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := m.newResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.config.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (m *Manager) initMetrics() error {
	res, err := m.newResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	meterProviderOptions := []sdkmetric.Option{
		sdkmetric.WithResource(res),
	}

	if m.config.Prometheus.Enabled {
		reader, handler, err := SetupPrometheusExporter(m.config.Prometheus)
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(reader))
		m.metricsHandler = handler
	} else {
		meterProviderOptions = append(meterProviderOptions, sdkmetric.WithReader(sdkmetric.NewManualReader()))
	}

	mp := sdkmetric.NewMeterProvider(meterProviderOptions...)

	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	return m.initCustomMetrics()
}

// initCustomMetrics creates all custom metrics for Resumeboost
func (m *Manager) initCustomMetrics() error {
	meter := m.meterProvider.Meter(m.config.ServiceName)
	m.metrics = &Metrics{}

	var err error

	m.metrics.AnalysisDuration, err = meter.Float64Histogram(
		"resumeboost_analysis_duration_seconds",
		metric.WithDescription("Time spent running the resume analysis pipeline"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis duration metric: %w", err)
	}

	m.metrics.AnalysisCount, err = meter.Int64Counter(
		"resumeboost_analyses_total",
		metric.WithDescription("Total number of resume analyses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis count metric: %w", err)
	}

	m.metrics.AnalysisErrors, err = meter.Int64Counter(
		"resumeboost_analysis_errors_total",
		metric.WithDescription("Total number of failed resume analyses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis error count metric: %w", err)
	}

	m.metrics.AITokenUsage, err = meter.Int64Histogram(
		"resumeboost_ai_token_usage_total",
		metric.WithDescription("Token usage for AI requests (input, output, total)"),
		metric.WithUnit("tokens"),
	)
	if err != nil {
		return fmt.Errorf("failed to create AI token usage metric: %w", err)
	}

	m.metrics.WebhookEvents, err = meter.Int64Counter(
		"resumeboost_stripe_webhook_events_total",
		metric.WithDescription("Total number of Stripe webhook events received"),
	)
	if err != nil {
		return fmt.Errorf("failed to create webhook event metric: %w", err)
	}

	m.metrics.RateLimitHits, err = meter.Int64Counter(
		"resumeboost_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (m *Manager) GetMetrics() *Metrics {
	if m.metrics == nil {
		return &Metrics{} // Return empty metrics if not initialized
	}
	return m.metrics
}

// MetricsHandler returns the Prometheus scrape handler, or nil when the
// Prometheus exporter is disabled.
func (m *Manager) MetricsHandler() http.Handler {
	return m.metricsHandler
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !m.config.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		m.config.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if !m.config.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// TokenUsage represents token usage information from AI responses
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// RecordAnalysis records pipeline duration, outcome, and token usage for
// one analysis request.
func (m *Metrics) RecordAnalysis(ctx context.Context, start time.Time, err error, usage *TokenUsage) {
	if m.AnalysisDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Bool("success", err == nil),
	}

	m.AnalysisDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
	m.AnalysisCount.Add(ctx, 1, metric.WithAttributes(attrs...))

	if err != nil {
		m.AnalysisErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	if usage != nil && m.AITokenUsage != nil {
		m.recordTokenMetrics(ctx, usage)
	}
}

// recordTokenMetrics records individual token usage metrics
func (m *Metrics) recordTokenMetrics(ctx context.Context, usage *TokenUsage) {
	tokenTypes := []struct {
		tokenType string
		value     int64
	}{
		{"input", usage.InputTokens},
		{"output", usage.OutputTokens},
		{"total", usage.TotalTokens},
	}

	for _, tt := range tokenTypes {
		m.AITokenUsage.Record(ctx, tt.value, metric.WithAttributes(
			attribute.String("token_type", tt.tokenType),
		))
	}
}

// RecordWebhookEvent records one received Stripe webhook event by type.
func (m *Metrics) RecordWebhookEvent(ctx context.Context, eventType string, handled bool) {
	if m.WebhookEvents == nil {
		return
	}
	m.WebhookEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("handled", handled),
	))
}

// RecordRateLimitHit records one rejected request for the given route.
func (m *Metrics) RecordRateLimitHit(ctx context.Context, route string) {
	if m.RateLimitHits == nil {
		return
	}
	m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
	))
}

// No-op exporter for when no collector is configured
type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPExporter creates an OTLP HTTP trace exporter
func (m *Manager) createOTLPExporter() (trace.SpanExporter, error) {
	exporter, err := otlptracehttp.New(context.Background(),
		otlptracehttp.WithEndpointURL(m.config.OTLP.Endpoint),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return exporter, nil
}
