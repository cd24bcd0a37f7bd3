package collinearity

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/panel"
	"aqpanel/internal/stats"
)

// Status describes how VIF reduction ended
type Status int

const (
	// StatusConverged means every retained VIF is within the ceiling.
	StatusConverged Status = iota
	// StatusIterationLimit means the limit was reached with a VIF still
	// above the ceiling; the current set is accepted.
	StatusIterationLimit
	// StatusNumericFailure means a VIF computation failed; the current
	// set is accepted and no final VIFs are available.
	StatusNumericFailure
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusIterationLimit:
		return "iteration_limit"
	case StatusNumericFailure:
		return "numeric_failure"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Degraded reports whether the result needs to be flagged
func (s Status) Degraded() bool {
	return s != StatusConverged
}

// VIFRecord pairs a feature with its variance inflation factor
type VIFRecord struct {
	Feature string
	VIF     float64
}

// VIFResult is the outcome of VIF reduction
type VIFResult struct {
	Status     Status
	Features   panel.FeatureSet
	Removed    []VIFRecord
	Final      []VIFRecord
	Iterations int
	// Diagnostic is set when Status is StatusNumericFailure.
	Diagnostic error
}

// ReduceOptions configures the reducer
type ReduceOptions struct {
	Ceiling       float64
	MaxIterations int
}

// Reducer removes the most collinear feature until all VIFs are within
// the ceiling
type Reducer struct {
	opts   ReduceOptions
	logger *slog.Logger
}

// NewReducer creates a reducer. Non-positive options fall back to the
// defaults and a ceiling below 1 is raised to 1, the smallest possible VIF.
func NewReducer(opts ReduceOptions, logger *slog.Logger) *Reducer {
	switch {
	case opts.Ceiling <= 0:
		opts.Ceiling = config.DefaultVIFCeiling
	case opts.Ceiling < 1:
		opts.Ceiling = 1
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = config.DefaultMaxIterations
	}
	return &Reducer{
		opts:   opts,
		logger: infrastructure.WithComponent(logger, "vif_reducer"),
	}
}

// Reduce runs the elimination loop. It never fails: numerical problems end
// the loop early and are reported through the result's Status and
// Diagnostic.
func (r *Reducer) Reduce(ctx context.Context, t *panel.Table, features panel.FeatureSet) *VIFResult {
	res := &VIFResult{Features: features}
	if features.Len() == 0 {
		res.Status = StatusConverged
		return res
	}

	for res.Iterations < r.opts.MaxIterations {
		vifs, err := computeVIF(t, res.Features)
		res.Iterations++
		if err != nil {
			return r.fail(ctx, res, err)
		}

		worst := maxVIF(vifs)
		if worst < 0 || vifs[worst].VIF <= r.opts.Ceiling {
			res.Status = StatusConverged
			res.Final = vifs
			r.logger.InfoContext(ctx, "VIF reduction converged",
				slog.Int("iterations", res.Iterations),
				slog.Int("removed", len(res.Removed)),
				slog.Int("retained", res.Features.Len()))
			return res
		}

		removed := vifs[worst]
		res.Removed = append(res.Removed, removed)
		res.Features = res.Features.Without(removed.Feature)
		r.logger.DebugContext(ctx, "Removed feature",
			slog.Int("iteration", res.Iterations),
			slog.String("feature", removed.Feature),
			slog.Float64("vif", removed.VIF))
	}

	vifs, err := computeVIF(t, res.Features)
	if err != nil {
		return r.fail(ctx, res, err)
	}
	res.Final = vifs
	worst := maxVIF(vifs)
	if worst < 0 || vifs[worst].VIF <= r.opts.Ceiling {
		// The last permitted removal was enough.
		res.Status = StatusConverged
		return res
	}
	res.Status = StatusIterationLimit
	r.logger.WarnContext(ctx, "VIF reduction hit the iteration limit",
		slog.Int("iterations", res.Iterations),
		slog.Float64("max_vif", vifs[worst].VIF),
		slog.Float64("ceiling", r.opts.Ceiling))
	return res
}

func (r *Reducer) fail(ctx context.Context, res *VIFResult, err error) *VIFResult {
	res.Status = StatusNumericFailure
	res.Final = nil
	res.Diagnostic = apperrors.NewNumericError("VIF computation failed", err).
		WithContext("iteration", res.Iterations).
		WithContext("features", res.Features.Names())
	r.logger.WarnContext(ctx, "VIF reduction stopped on numerical failure",
		slog.Int("iterations", res.Iterations),
		slog.Int("retained", res.Features.Len()),
		slog.String("error", err.Error()))
	return res
}

func computeVIF(t *panel.Table, features panel.FeatureSet) ([]VIFRecord, error) {
	names := features.Names()
	if len(names) == 0 {
		return nil, nil
	}
	m, err := t.Matrix(names)
	if err != nil {
		return nil, err
	}
	values, err := stats.VIF(m)
	if err != nil {
		return nil, err
	}

	out := make([]VIFRecord, len(names))
	for i, name := range names {
		if math.IsNaN(values[i]) {
			return nil, fmt.Errorf("%w: VIF of %q is undefined", stats.ErrNumeric, name)
		}
		out[i] = VIFRecord{Feature: name, VIF: values[i]}
	}
	return out, nil
}

// maxVIF returns the index of the largest VIF, the first one on ties, or
// -1 for an empty slice.
func maxVIF(vifs []VIFRecord) int {
	best := -1
	for i, v := range vifs {
		if best < 0 || v.VIF > vifs[best].VIF {
			best = i
		}
	}
	return best
}
