package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aqpanel/internal/cleaning"
	"aqpanel/internal/collinearity"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/loader"
	"aqpanel/internal/report"
)

// LoadStep reads the input table
type LoadStep struct {
	loader *loader.Loader
}

// NewLoadStep creates the load step
func NewLoadStep(l *loader.Loader) *LoadStep {
	return &LoadStep{loader: l}
}

func (s *LoadStep) ID() string   { return StepLoad }
func (s *LoadStep) Name() string { return "Load input" }

// Execute implements Step
func (s *LoadStep) Execute(ctx context.Context, state *State) error {
	table, err := s.loader.Load(ctx, state.Source)
	if err != nil {
		return err
	}
	state.Raw = table

	st := state.Step(s.ID(), s.Name())
	st.SetMetadata("rows", table.Len())
	st.SetMetadata("features", len(table.Features))
	return nil
}

// CleanStep repairs and standardizes the predictors
type CleanStep struct {
	cleaner *cleaning.Cleaner
	metrics *infrastructure.PipelineMetrics
}

// NewCleanStep creates the clean step
func NewCleanStep(c *cleaning.Cleaner, metrics *infrastructure.PipelineMetrics) *CleanStep {
	return &CleanStep{cleaner: c, metrics: metrics}
}

func (s *CleanStep) ID() string   { return StepClean }
func (s *CleanStep) Name() string { return "Clean and normalize" }

// Execute implements Step
func (s *CleanStep) Execute(ctx context.Context, state *State) error {
	if state.Raw == nil {
		return apperrors.NewValidationError("clean step requires a loaded table")
	}

	res, err := s.cleaner.Process(ctx, state.Raw)
	if err != nil {
		return err
	}
	state.Cleaning = res

	var zeros, interpolated, meanFilled int
	for _, r := range res.Repairs {
		zeros += r.Zeros
		interpolated += r.Interpolated
		meanFilled += r.MeanFilled
	}
	infrastructure.RecordRepairs(ctx, s.metrics, "zero_sentinel", zeros)
	infrastructure.RecordRepairs(ctx, s.metrics, "interpolated", interpolated)
	infrastructure.RecordRepairs(ctx, s.metrics, "mean_filled", meanFilled)

	st := state.Step(s.ID(), s.Name())
	st.SetMetadata("zeros", zeros)
	st.SetMetadata("interpolated", interpolated)
	st.SetMetadata("mean_filled", meanFilled)
	return nil
}

// PruneStep removes highly correlated features
type PruneStep struct {
	pruner  *collinearity.Pruner
	metrics *infrastructure.PipelineMetrics
}

// NewPruneStep creates the correlation pruning step
func NewPruneStep(p *collinearity.Pruner, metrics *infrastructure.PipelineMetrics) *PruneStep {
	return &PruneStep{pruner: p, metrics: metrics}
}

func (s *PruneStep) ID() string   { return StepPrune }
func (s *PruneStep) Name() string { return "Correlation pruning" }

// Execute implements Step
func (s *PruneStep) Execute(ctx context.Context, state *State) error {
	if state.Cleaning == nil {
		return apperrors.NewValidationError("prune step requires normalized data")
	}

	normalized := state.Cleaning.Normalized
	res, err := s.pruner.Prune(ctx, normalized, normalized.FeatureSet())
	if err != nil {
		return err
	}
	state.Prune = res

	infrastructure.RecordReduction(ctx, s.metrics, StepPrune, len(res.Removed), res.Features.Len())
	infrastructure.AddSpanEvent(ctx, "features.pruned", map[string]interface{}{
		"removed":  len(res.Removed),
		"retained": res.Features.Len(),
	})

	st := state.Step(s.ID(), s.Name())
	st.SetMetadata("removed", len(res.Removed))
	st.SetMetadata("retained", res.Features.Len())
	return nil
}

// VIFStep removes features with excessive variance inflation
type VIFStep struct {
	reducer *collinearity.Reducer
	metrics *infrastructure.PipelineMetrics
	logger  *slog.Logger
}

// NewVIFStep creates the VIF reduction step
func NewVIFStep(r *collinearity.Reducer, metrics *infrastructure.PipelineMetrics, logger *slog.Logger) *VIFStep {
	return &VIFStep{
		reducer: r,
		metrics: metrics,
		logger:  infrastructure.WithComponent(logger, "pipeline"),
	}
}

func (s *VIFStep) ID() string   { return StepVIF }
func (s *VIFStep) Name() string { return "VIF reduction" }

// Execute implements Step. A degraded VIF result is not an error.
func (s *VIFStep) Execute(ctx context.Context, state *State) error {
	if state.Prune == nil {
		return apperrors.NewValidationError("vif step requires a pruned feature set")
	}

	normalized := state.Cleaning.Normalized
	res := s.reducer.Reduce(ctx, normalized, state.Prune.Features)
	state.VIF = res

	final, err := normalized.Select(res.Features.Names())
	if err != nil {
		return fmt.Errorf("failed to build final dataset: %w", err)
	}
	state.Final = final

	infrastructure.RecordReduction(ctx, s.metrics, StepVIF, len(res.Removed), res.Features.Len())
	infrastructure.RecordVIFIterations(ctx, s.metrics, res.Iterations, res.Status.String())
	infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
		"vif.status":     res.Status.String(),
		"vif.iterations": res.Iterations,
	})

	if res.Status.Degraded() {
		attrs := []any{slog.String("status", res.Status.String())}
		if res.Diagnostic != nil {
			attrs = append(attrs, slog.String("diagnostic", res.Diagnostic.Error()))
			infrastructure.RecordError(ctx, res.Diagnostic)
		}
		s.logger.WarnContext(ctx, "VIF reduction did not converge cleanly", attrs...)
	}

	st := state.Step(s.ID(), s.Name())
	st.SetMetadata("status", res.Status.String())
	st.SetMetadata("iterations", res.Iterations)
	st.SetMetadata("removed", len(res.Removed))
	st.SetMetadata("retained", res.Features.Len())
	return nil
}

// ReportStep writes the artifacts
type ReportStep struct {
	reporter *report.Reporter
	settings report.Settings
	now      func() time.Time
}

// NewReportStep creates the report step
func NewReportStep(r *report.Reporter, settings report.Settings) *ReportStep {
	return &ReportStep{reporter: r, settings: settings, now: time.Now}
}

func (s *ReportStep) ID() string   { return StepReport }
func (s *ReportStep) Name() string { return "Write report" }

// Execute implements Step
func (s *ReportStep) Execute(ctx context.Context, state *State) error {
	if state.VIF == nil || state.Final == nil {
		return apperrors.NewValidationError("report step requires VIF results")
	}

	run := &report.Run{
		RunID:       state.RunID,
		GeneratedAt: s.now(),
		Source:      state.Source,
		Settings:    s.settings,
		Raw:         state.Raw,
		Cleaned:     state.Cleaning.Cleaned,
		Normalized:  state.Cleaning.Normalized,
		Final:       state.Final,
		Repairs:     state.Cleaning.Repairs,
		Scaler:      state.Cleaning.Scaler,
		Prune:       state.Prune,
		VIF:         state.VIF,
	}

	artifacts, err := s.reporter.Write(ctx, run)
	state.Artifacts = artifacts
	state.Step(s.ID(), s.Name()).SetMetadata("artifacts", len(artifacts))
	return err
}
