package collinearity

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"gonum.org/v1/gonum/mat"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/panel"
	"aqpanel/internal/stats"
)

// PruneOptions configures the correlation pruner
type PruneOptions struct {
	Threshold float64
	// Absolute compares |r| with the threshold so strong negative
	// correlations also count.
	Absolute bool
}

// Removal records why a feature was pruned
type Removal struct {
	Feature     string
	Partner     string
	Correlation float64
	PValue      float64
}

// PruneResult is the outcome of a pruning pass
type PruneResult struct {
	Features panel.FeatureSet
	Removed  []Removal

	Correlation *panel.LabeledMatrix
	PValues     *panel.LabeledMatrix

	RetainedCorrelation *panel.LabeledMatrix
	RetainedPValues     *panel.LabeledMatrix
}

// Pruner drops features that are highly correlated with an earlier one
type Pruner struct {
	opts   PruneOptions
	logger *slog.Logger
}

// NewPruner creates a pruner. A non-positive threshold falls back to the
// default.
func NewPruner(opts PruneOptions, logger *slog.Logger) *Pruner {
	if opts.Threshold <= 0 {
		opts.Threshold = config.DefaultCorrelationThreshold
	}
	return &Pruner{
		opts:   opts,
		logger: infrastructure.WithComponent(logger, "pruner"),
	}
}

// Prune computes the correlation and p-value matrices over features and
// removes every feature j for which some i < j exceeds the threshold.
func (p *Pruner) Prune(ctx context.Context, t *panel.Table, features panel.FeatureSet) (*PruneResult, error) {
	names := features.Names()

	corr, pvals, err := correlate(t, names)
	if err != nil {
		return nil, err
	}

	var removed []Removal
	for j := 1; j < len(names); j++ {
		best := -1
		for i := 0; i < j; i++ {
			if !p.exceeds(corr.At(i, j)) {
				continue
			}
			if best < 0 || p.magnitude(corr.At(i, j)) > p.magnitude(corr.At(best, j)) {
				best = i
			}
		}
		if best < 0 {
			continue
		}
		removed = append(removed, Removal{
			Feature:     names[j],
			Partner:     names[best],
			Correlation: corr.At(best, j),
			PValue:      pvals.At(best, j),
		})
	}

	drop := make([]string, len(removed))
	for i, r := range removed {
		drop[i] = r.Feature
	}
	retained := features.Without(drop...)

	retainedCorr, err := corr.Sub(retained.Names())
	if err != nil {
		return nil, apperrors.NewNumericError("failed to restrict correlation matrix", err)
	}
	retainedP, err := pvals.Sub(retained.Names())
	if err != nil {
		return nil, apperrors.NewNumericError("failed to restrict p-value matrix", err)
	}

	p.logger.InfoContext(ctx, "Correlation pruning complete",
		slog.Float64("threshold", p.opts.Threshold),
		slog.Bool("absolute", p.opts.Absolute),
		slog.Int("features_in", features.Len()),
		slog.Int("removed", len(removed)),
		slog.Int("retained", retained.Len()))

	return &PruneResult{
		Features:            retained,
		Removed:             removed,
		Correlation:         corr,
		PValues:             pvals,
		RetainedCorrelation: retainedCorr,
		RetainedPValues:     retainedP,
	}, nil
}

func (p *Pruner) exceeds(r float64) bool {
	return p.magnitude(r) > p.opts.Threshold
}

func (p *Pruner) magnitude(r float64) float64 {
	if p.opts.Absolute {
		return math.Abs(r)
	}
	return r
}

func correlate(t *panel.Table, names []string) (*panel.LabeledMatrix, *panel.LabeledMatrix, error) {
	switch len(names) {
	case 0:
		empty, _ := panel.NewLabeledMatrix(nil, nil)
		return empty, empty, nil
	case 1:
		if _, ok := t.Column(names[0]); !ok {
			return nil, nil, apperrors.NewNumericError(fmt.Sprintf("unknown feature %q", names[0]), nil)
		}
		corr, _ := panel.NewLabeledMatrix(names, mat.NewDense(1, 1, []float64{1}))
		pvals, _ := panel.NewLabeledMatrix(names, mat.NewDense(1, 1, []float64{math.NaN()}))
		return corr, pvals, nil
	}

	m, err := t.Matrix(names)
	if err != nil {
		return nil, nil, apperrors.NewNumericError("failed to build feature matrix", err)
	}
	corr, err := stats.Correlation(m, names)
	if err != nil {
		return nil, nil, apperrors.NewNumericError("failed to compute correlation matrix", err)
	}
	pvals, err := stats.CorrelationPValues(corr, t.Len())
	if err != nil {
		return nil, nil, apperrors.NewNumericError("failed to compute p-values", err)
	}
	return corr, pvals, nil
}
