package cleaning

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/panel"
	"aqpanel/internal/stats"
)

// Options controls the repair rules
type Options struct {
	// ZeroAsMissing treats a literal 0 as a missing-value sentinel.
	ZeroAsMissing bool
}

// Repair is the audit of the fixes applied to one column
type Repair struct {
	Column       string
	Missing      int // missing on load
	Zeros        int
	Interpolated int
	MeanFilled   int
	FillMean     float64 // NaN when no cell needed it
}

// Total returns the number of cells changed in the column
func (r Repair) Total() int {
	return r.Interpolated + r.MeanFilled
}

// Result carries the outputs of Process
type Result struct {
	Cleaned    *panel.Table
	Normalized *panel.Table
	Repairs    []Repair
	Scaler     *Scaler
}

// Cleaner applies the repair and scaling rules
type Cleaner struct {
	opts   Options
	logger *slog.Logger
}

// New creates a cleaner. A nil logger uses the global one.
func New(opts Options, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		opts:   opts,
		logger: infrastructure.WithComponent(logger, "cleaner"),
	}
}

// Process runs Clean followed by Normalize
func (c *Cleaner) Process(ctx context.Context, t *panel.Table) (*Result, error) {
	cleaned, repairs, err := c.Clean(ctx, t)
	if err != nil {
		return nil, err
	}
	normalized, scaler, err := c.Normalize(ctx, cleaned)
	if err != nil {
		return nil, err
	}
	return &Result{
		Cleaned:    cleaned,
		Normalized: normalized,
		Repairs:    repairs,
		Scaler:     scaler,
	}, nil
}

// Clean returns a repaired copy of t in which every predictor is finite
// and strictly positive.
func (c *Cleaner) Clean(ctx context.Context, t *panel.Table) (*panel.Table, []Repair, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	columns := make([]panel.Column, len(t.Features))
	repairs := make([]Repair, len(t.Features))
	for i, col := range t.Features {
		values, repair, err := c.cleanColumn(col)
		if err != nil {
			return nil, nil, err
		}
		columns[i] = panel.Column{Name: col.Name, Values: values}
		repairs[i] = repair

		if repair.Total() > 0 {
			c.logger.DebugContext(ctx, "Column repaired",
				slog.String("column", col.Name),
				slog.Int("zeros", repair.Zeros),
				slog.Int("interpolated", repair.Interpolated),
				slog.Int("mean_filled", repair.MeanFilled))
		}
	}

	cleaned, err := t.WithFeatures(columns)
	if err != nil {
		return nil, nil, apperrors.NewNormalizationError("failed to rebuild table", err)
	}

	c.logger.InfoContext(ctx, "Cleaning complete",
		slog.Int("columns", len(columns)),
		slog.Int("cells_repaired", totalRepaired(repairs)))

	return cleaned, repairs, nil
}

func (c *Cleaner) cleanColumn(col panel.Column) ([]float64, Repair, error) {
	values := make([]float64, len(col.Values))
	copy(values, col.Values)

	repair := Repair{Column: col.Name, FillMean: math.NaN()}
	for i, v := range values {
		switch {
		case math.IsNaN(v):
			repair.Missing++
		case v == 0 && c.opts.ZeroAsMissing:
			repair.Zeros++
			values[i] = math.NaN()
		}
	}

	n, ok := Interpolate(values)
	if !ok {
		return nil, repair, apperrors.NewNormalizationError(
			fmt.Sprintf("column %q has no valid values", col.Name), nil).
			WithContext("column", col.Name)
	}
	repair.Interpolated = n

	var sum float64
	var valid int
	for i, v := range values {
		if v <= 0 {
			values[i] = math.NaN()
			repair.MeanFilled++
			continue
		}
		sum += v
		valid++
	}
	if repair.MeanFilled > 0 {
		if valid == 0 {
			return nil, repair, apperrors.NewNormalizationError(
				fmt.Sprintf("column %q has no positive values to average", col.Name), nil).
				WithContext("column", col.Name)
		}
		mean := sum / float64(valid)
		for i, v := range values {
			if math.IsNaN(v) {
				values[i] = mean
			}
		}
		repair.FillMean = mean
	}

	return values, repair, nil
}

// Normalize returns a copy of t with every predictor rescaled to zero mean
// and unit population standard deviation. Missing values and zero-variance
// columns are normalization failures.
func (c *Cleaner) Normalize(ctx context.Context, t *panel.Table) (*panel.Table, *Scaler, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	scaler, err := FitScaler(t)
	if err != nil {
		return nil, nil, err
	}
	normalized, err := scaler.Transform(t)
	if err != nil {
		return nil, nil, err
	}

	c.logger.InfoContext(ctx, "Normalization complete", slog.Int("columns", len(scaler.Params)))
	return normalized, scaler, nil
}

// Interpolate fills NaN entries of values in place by linear interpolation
// over their positions. Leading and trailing gaps copy the nearest observed
// value. It returns the number of filled entries, and false when there is
// nothing to interpolate from.
func Interpolate(values []float64) (int, bool) {
	prev := -1
	filled := 0
	for i, v := range values {
		if math.IsNaN(v) {
			continue
		}
		switch {
		case prev < 0:
			for j := 0; j < i; j++ {
				values[j] = v
			}
			filled += i
		case i-prev > 1:
			lo, hi := values[prev], v
			span := float64(i - prev)
			for j := prev + 1; j < i; j++ {
				values[j] = lo + (hi-lo)*float64(j-prev)/span
			}
			filled += i - prev - 1
		}
		prev = i
	}
	if prev < 0 {
		return 0, len(values) == 0
	}
	for j := prev + 1; j < len(values); j++ {
		values[j] = values[prev]
		filled++
	}
	return filled, true
}

func totalRepaired(repairs []Repair) int {
	var n int
	for _, r := range repairs {
		n += r.Total()
	}
	return n
}

// Describe summarizes every predictor of t
func Describe(t *panel.Table) map[string]stats.Summary {
	out := make(map[string]stats.Summary, len(t.Features))
	for _, col := range t.Features {
		out[col.Name] = stats.Describe(col.Values)
	}
	return out
}
