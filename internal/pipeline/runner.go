package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"aqpanel/internal/cleaning"
	"aqpanel/internal/collinearity"
	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/loader"
	"aqpanel/internal/report"
)

// Runner executes steps in order
type Runner struct {
	steps        []Step
	tracer       trace.Tracer
	metrics      *infrastructure.PipelineMetrics
	logger       *slog.Logger
	manifestPath string
	version      string
}

// Option configures a Runner
type Option func(*Runner)

// WithTracer sets the tracer used for run and step spans
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) { r.tracer = tracer }
}

// WithMetrics sets the metric instruments
func WithMetrics(m *infrastructure.PipelineMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = infrastructure.WithComponent(logger, "pipeline") }
}

// WithManifest writes the run manifest to path once the report step has
// run. An empty path disables it.
func WithManifest(path string) Option {
	return func(r *Runner) { r.manifestPath = path }
}

// NewRunner creates a runner over the given steps
func NewRunner(steps []Step, opts ...Option) *Runner {
	r := &Runner{
		steps:   steps,
		tracer:  tracenoop.NewTracerProvider().Tracer(infrastructure.ServiceName),
		logger:  infrastructure.WithComponent(nil, "pipeline"),
		version: config.AppVersion,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewFromConfig wires the standard steps from cfg. providers may be nil,
// in which case spans and metrics are not recorded.
func NewFromConfig(cfg *config.Config, providers *infrastructure.OTelProviders, logger *slog.Logger) (*Runner, error) {
	paths := cfg.Paths()

	reporter, err := report.New(paths, logger)
	if err != nil {
		return nil, err
	}

	opts := []Option{WithLogger(logger), WithManifest(paths.Manifest)}
	var metrics *infrastructure.PipelineMetrics
	if providers != nil {
		metrics, err = infrastructure.CreatePipelineMetrics(providers.Meter)
		if err != nil {
			return nil, fmt.Errorf("failed to create pipeline metrics: %w", err)
		}
		opts = append(opts, WithTracer(providers.Tracer), WithMetrics(metrics))
	}

	a := cfg.Analysis
	steps := []Step{
		NewLoadStep(loader.New(loader.OptionsFromConfig(cfg.Input), logger)),
		NewCleanStep(cleaning.New(cleaning.Options{ZeroAsMissing: a.ZeroAsMissing}, logger), metrics),
		NewPruneStep(collinearity.NewPruner(collinearity.PruneOptions{
			Threshold: a.CorrelationThreshold,
			Absolute:  a.AbsoluteCorrelation,
		}, logger), metrics),
		NewVIFStep(collinearity.NewReducer(collinearity.ReduceOptions{
			Ceiling:       a.VIFCeiling,
			MaxIterations: a.MaxIterations,
		}, logger), metrics, logger),
		NewReportStep(reporter, report.Settings{
			ZeroAsMissing:        a.ZeroAsMissing,
			CorrelationThreshold: a.CorrelationThreshold,
			AbsoluteCorrelation:  a.AbsoluteCorrelation,
			VIFCeiling:           a.VIFCeiling,
			MaxIterations:        a.MaxIterations,
		}),
	}

	return NewRunner(steps, opts...), nil
}

// Run executes every step against source. It stops at the first failing
// step and returns the state reached so far.
func (r *Runner) Run(ctx context.Context, source string) (*State, error) {
	ctx = infrastructure.EnsureRunID(ctx)
	state := NewState(infrastructure.GetRunID(ctx), source)
	for _, step := range r.steps {
		state.Step(step.ID(), step.Name())
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run.id", state.RunID),
			attribute.String("run.source", source),
		),
	)
	defer span.End()

	start := time.Now()
	r.logger.InfoContext(ctx, "Run started",
		slog.String("source", source),
		slog.Int("steps", len(r.steps)))

	var (
		runErr        error
		reportReached bool
	)
	for _, step := range r.steps {
		if step.ID() == StepReport {
			reportReached = true
		}
		if err := r.runStep(ctx, step, state); err != nil {
			runErr = fmt.Errorf("step %s: %w", step.ID(), err)
			break
		}
	}

	if reportReached && r.manifestPath != "" {
		manifest := NewManifest(state, r.version, start, time.Now(), runErr)
		if err := manifest.Save(r.manifestPath); err != nil {
			r.logger.ErrorContext(ctx, "Failed to write manifest", slog.String("error", err.Error()))
			if runErr == nil {
				runErr = apperrors.NewStorageError("failed to write manifest", err)
			}
		}
	}

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		r.logger.ErrorContext(ctx, "Run failed",
			slog.String("error", runErr.Error()),
			slog.String("error_type", string(apperrors.TypeOf(runErr))),
			slog.Duration("duration", time.Since(start)))
		return state, runErr
	}

	span.SetStatus(codes.Ok, "")
	r.logger.InfoContext(ctx, "Run completed",
		slog.Duration("duration", time.Since(start)),
		slog.Int("artifacts", len(state.Artifacts)))
	return state, nil
}

func (r *Runner) runStep(ctx context.Context, step Step, state *State) error {
	ctx, span := r.tracer.Start(ctx, "pipeline.step."+step.ID(),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("step.id", step.ID()),
			attribute.String("step.name", step.Name()),
		),
	)
	defer span.End()

	st := state.Step(step.ID(), step.Name())
	st.Start()
	r.logger.DebugContext(ctx, "Step started", slog.String("step", step.ID()))

	err := step.Execute(ctx, state)
	if err != nil {
		st.Fail(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		st.Complete()
		span.SetStatus(codes.Ok, "")
	}

	infrastructure.RecordStepMetrics(ctx, r.metrics, step.ID(), st.Elapsed(), err == nil)
	r.logger.InfoContext(ctx, "Step finished",
		slog.String("step", step.ID()),
		slog.String("status", string(st.Status)),
		slog.Duration("duration", st.Elapsed()))
	return err
}
