package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"aqpanel/internal/config"
)

const (
	ServiceName = "aqpanel"
	MeterName   = "aqpanel"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string    // "stdout", "none"
	TraceWriter    io.Writer // stdout exporter destination, os.Stdout when nil
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Registry       *prometheus.Registry
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: config.AppVersion,
		Environment:    env,
		TraceExporter:  "none",
	}
}

// OTelConfigFromTelemetry maps the telemetry section of the app config
func OTelConfigFromTelemetry(cfg config.TelemetryConfig) *OTelConfig {
	otelCfg := DefaultOTelConfig()
	if cfg.TraceExporter != "" {
		otelCfg.TraceExporter = cfg.TraceExporter
	}
	if cfg.Environment != "" {
		otelCfg.Environment = cfg.Environment
	}
	return otelCfg
}

// InitializeOTel sets up tracing and metrics for one report run.
// Metrics are always collected into a private Prometheus registry; they
// leave the process only through WriteMetrics.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = GetLogger()
	}

	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	providers := &OTelProviders{
		Logger: logger,
	}

	if err := initializeTracing(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return providers, nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.TraceExporter {
	case "stdout":
		w := cfg.TraceWriter
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(
			stdouttrace.WithWriter(w),
			stdouttrace.WithPrettyPrint(),
		)
		if err != nil {
			return fmt.Errorf("failed to create trace exporter: %w", err)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithSyncer(exporter),
			sdktrace.WithResource(res),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))
		otel.SetTracerProvider(tp)
	case "none", "":
		providers.Tracer = tracenoop.NewTracerProvider().Tracer(MeterName)
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics backed by a Prometheus registry
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	registry := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	providers.Registry = registry
	providers.MeterProvider = mp
	providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

	providers.Logger.DebugContext(ctx, "Metrics initialized",
		slog.String("exporter", "prometheus"))

	return nil
}

// WriteMetrics writes the collected metrics in the Prometheus text format,
// suitable for the node exporter textfile collector.
func (p *OTelProviders) WriteMetrics(path string) error {
	if p.Registry == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, p.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	return nil
}

// PipelineMetrics holds the instruments recorded during a report run
type PipelineMetrics struct {
	StepDuration     metric.Float64Histogram
	StepExecutions   metric.Int64Counter
	FeaturesRemoved  metric.Int64Counter
	FeaturesRetained metric.Int64Gauge
	CellsRepaired    metric.Int64Counter
	VIFIterations    metric.Int64Gauge
}

// CreatePipelineMetrics creates the report run instruments
func CreatePipelineMetrics(meter metric.Meter) (*PipelineMetrics, error) {
	stepDuration, err := meter.Float64Histogram(
		"aqpanel_step_duration",
		metric.WithDescription("Pipeline step duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	stepExecutions, err := meter.Int64Counter(
		"aqpanel_step_executions",
		metric.WithDescription("Pipeline step executions by outcome"),
	)
	if err != nil {
		return nil, err
	}

	featuresRemoved, err := meter.Int64Counter(
		"aqpanel_features_removed",
		metric.WithDescription("Features removed by a reduction phase"),
	)
	if err != nil {
		return nil, err
	}

	featuresRetained, err := meter.Int64Gauge(
		"aqpanel_features_retained",
		metric.WithDescription("Features retained after a reduction phase"),
	)
	if err != nil {
		return nil, err
	}

	cellsRepaired, err := meter.Int64Counter(
		"aqpanel_cells_repaired",
		metric.WithDescription("Cells repaired by the cleaner by repair kind"),
	)
	if err != nil {
		return nil, err
	}

	vifIterations, err := meter.Int64Gauge(
		"aqpanel_vif_iterations",
		metric.WithDescription("Iterations used by the VIF reducer"),
	)
	if err != nil {
		return nil, err
	}

	return &PipelineMetrics{
		StepDuration:     stepDuration,
		StepExecutions:   stepExecutions,
		FeaturesRemoved:  featuresRemoved,
		FeaturesRetained: featuresRetained,
		CellsRepaired:    cellsRepaired,
		VIFIterations:    vifIterations,
	}, nil
}

// RecordStepMetrics records duration and outcome of a pipeline step
func RecordStepMetrics(ctx context.Context, m *PipelineMetrics, stepID string, duration time.Duration, success bool) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("step", stepID),
		attribute.String("status", status),
	)

	m.StepDuration.Record(ctx, duration.Seconds(), attrs)
	m.StepExecutions.Add(ctx, 1, attrs)
}

// RecordReduction records the outcome of a feature reduction phase
func RecordReduction(ctx context.Context, m *PipelineMetrics, phase string, removed, retained int) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("phase", phase))
	m.FeaturesRemoved.Add(ctx, int64(removed), attrs)
	m.FeaturesRetained.Record(ctx, int64(retained), attrs)
}

// RecordRepairs records cleaner repairs of one kind
func RecordRepairs(ctx context.Context, m *PipelineMetrics, kind string, count int) {
	if m == nil || count == 0 {
		return
	}
	m.CellsRepaired.Add(ctx, int64(count), metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordVIFIterations records the iteration count and termination status of the VIF reducer
func RecordVIFIterations(ctx context.Context, m *PipelineMetrics, iterations int, status string) {
	if m == nil {
		return
	}
	m.VIFIterations.Record(ctx, int64(iterations), metric.WithAttributes(attribute.String("status", status)))
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(toAttributes(attributes)...)
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case []string:
			attrs = append(attrs, attribute.StringSlice(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	return attrs
}
