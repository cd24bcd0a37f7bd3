package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary is a descriptive summary of one column
type Summary struct {
	Count   int
	Missing int
	Mean    float64
	Std     float64
	Min     float64
	Max     float64
}

// Describe summarizes the non-missing values. Std is the sample standard
// deviation; it is NaN with fewer than two values.
func Describe(values []float64) Summary {
	valid := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}

	s := Summary{Count: len(valid), Missing: len(values) - len(valid)}
	if len(valid) == 0 {
		s.Mean, s.Std, s.Min, s.Max = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}

	s.Min = floats.Min(valid)
	s.Max = floats.Max(valid)
	if len(valid) == 1 {
		s.Mean = valid[0]
		s.Std = math.NaN()
		return s
	}
	s.Mean, s.Std = stat.MeanStdDev(valid, nil)
	return s
}

// PopulationMeanStd returns the mean and the population (ddof = 0)
// standard deviation, the scale used for z-score normalization.
func PopulationMeanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(values, nil)
}
