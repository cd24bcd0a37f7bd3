package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"aqpanel/internal/panel"
)

// Correlation computes the Pearson correlation matrix of the columns of m,
// labeled by names. The result is symmetric with an exact unit diagonal.
func Correlation(m mat.Matrix, names []string) (*panel.LabeledMatrix, error) {
	r, c := m.Dims()
	if c != len(names) {
		return nil, fmt.Errorf("matrix has %d columns, got %d names", c, len(names))
	}
	if r < 2 {
		return nil, fmt.Errorf("correlation needs at least 2 observations, got %d", r)
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}

	sym := mat.NewSymDense(c, nil)
	stat.CorrelationMatrix(sym, m, nil)

	out := mat.NewDense(c, c, nil)
	for i := 0; i < c; i++ {
		out.Set(i, i, 1)
		for j := i + 1; j < c; j++ {
			v := sym.At(i, j)
			if math.IsNaN(v) {
				return nil, fmt.Errorf("correlation of %q and %q is undefined (zero variance)", names[i], names[j])
			}
			// Clamp rounding drift so |r| never exceeds 1.
			v = math.Max(-1, math.Min(1, v))
			out.Set(i, j, v)
			out.Set(j, i, v)
		}
	}

	return panel.NewLabeledMatrix(names, out)
}

// CorrelationPValues returns the two-tailed p-value of the test of zero
// correlation for every pair, given n observations. The test statistic
// t = r·sqrt((n-2)/(1-r²)) follows a Student t distribution with n-2
// degrees of freedom. The diagonal is NaN.
func CorrelationPValues(corr *panel.LabeledMatrix, n int) (*panel.LabeledMatrix, error) {
	size := corr.Size()
	if size == 0 {
		return panel.NewLabeledMatrix(nil, nil)
	}
	if n < 3 {
		return nil, fmt.Errorf("p-values need at least 3 observations, got %d", n)
	}

	df := float64(n - 2)
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}

	out := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		out.Set(i, i, math.NaN())
		for j := i + 1; j < size; j++ {
			p := pairPValue(corr.At(i, j), df, dist)
			out.Set(i, j, p)
			out.Set(j, i, p)
		}
	}

	return panel.NewLabeledMatrix(corr.Labels, out)
}

func pairPValue(r, df float64, dist distuv.StudentsT) float64 {
	if math.Abs(r) >= 1 {
		return 0
	}
	t := r * math.Sqrt(df/(1-r*r))
	p := 2 * dist.Survival(math.Abs(t))
	return math.Min(1, math.Max(0, p))
}

func checkFinite(m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite value at row %d column %d", ErrNumeric, i, j)
			}
		}
	}
	return nil
}
