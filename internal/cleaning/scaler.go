package cleaning

import (
	"fmt"
	"math"

	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/panel"
	"aqpanel/internal/stats"
)

// varianceTolerance is the relative standard deviation below which a
// column is considered constant.
const varianceTolerance = 1e-12

// ScaleParams holds the fitted location and scale of one column
type ScaleParams struct {
	Column string
	Mean   float64
	Std    float64
}

// Scaler is a z-score transform fitted over full columns
type Scaler struct {
	Params []ScaleParams
	pos    map[string]int
}

// FitScaler fits the mean and population standard deviation of every
// predictor of t.
func FitScaler(t *panel.Table) (*Scaler, error) {
	s := &Scaler{
		Params: make([]ScaleParams, 0, len(t.Features)),
		pos:    make(map[string]int, len(t.Features)),
	}
	for _, col := range t.Features {
		if n := col.MissingCount(); n > 0 {
			return nil, apperrors.NewNormalizationError(
				fmt.Sprintf("column %q has %d missing values", col.Name, n), nil).
				WithContext("column", col.Name)
		}
		mean, std := stats.PopulationMeanStd(col.Values)
		if math.IsNaN(std) || std <= varianceTolerance*math.Max(1, math.Abs(mean)) {
			return nil, apperrors.NewNormalizationError(
				fmt.Sprintf("column %q has zero variance", col.Name), nil).
				WithContext("column", col.Name).
				WithContext("value", mean)
		}
		s.pos[col.Name] = len(s.Params)
		s.Params = append(s.Params, ScaleParams{Column: col.Name, Mean: mean, Std: std})
	}
	return s, nil
}

// Lookup returns the parameters fitted for column
func (s *Scaler) Lookup(column string) (ScaleParams, bool) {
	i, ok := s.pos[column]
	if !ok {
		return ScaleParams{}, false
	}
	return s.Params[i], true
}

// Transform standardizes the predictors of t. Every predictor must have
// been fitted.
func (s *Scaler) Transform(t *panel.Table) (*panel.Table, error) {
	columns := make([]panel.Column, len(t.Features))
	for i, col := range t.Features {
		p, ok := s.Lookup(col.Name)
		if !ok {
			return nil, apperrors.NewNormalizationError(
				fmt.Sprintf("column %q was not fitted", col.Name), nil)
		}
		values := make([]float64, len(col.Values))
		for r, v := range col.Values {
			values[r] = (v - p.Mean) / p.Std
		}
		columns[i] = panel.Column{Name: col.Name, Values: values}
	}

	out, err := t.WithFeatures(columns)
	if err != nil {
		return nil, apperrors.NewNormalizationError("failed to rebuild table", err)
	}
	return out, nil
}

// Inverse maps a standardized value of column back to its original scale
func (s *Scaler) Inverse(column string, z float64) (float64, bool) {
	p, ok := s.Lookup(column)
	if !ok {
		return 0, false
	}
	return z*p.Std + p.Mean, true
}
