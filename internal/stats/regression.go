package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrNumeric marks a computation that failed for numerical reasons
var ErrNumeric = errors.New("numerically unstable")

const (
	// rankTolerance is the relative singular value cut-off of the
	// pseudo-inverse solve.
	rankTolerance = 1e-12
	// perfectFitTolerance treats residual sums this small (relative to the
	// total sum of squares) as an exact fit.
	perfectFitTolerance = 1e-12
)

// RSquared returns the coefficient of determination of the OLS regression
// of y on the columns of x plus an intercept. x may be nil for an
// intercept-only model, whose R² is 0. A saturated design (no more
// observations than coefficients) is solved with the minimum-norm
// solution and fits exactly.
func RSquared(y []float64, x mat.Matrix) (float64, error) {
	n := len(y)
	k := 0
	if x != nil {
		var r int
		r, k = x.Dims()
		if r != n {
			return 0, fmt.Errorf("regressors have %d rows, response has %d", r, n)
		}
		if err := checkFinite(x); err != nil {
			return 0, err
		}
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%w: non-finite response at row %d", ErrNumeric, i)
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: no observations", ErrNumeric)
	}
	if floats.Min(y) == floats.Max(y) {
		return 0, fmt.Errorf("%w: regressand is constant", ErrNumeric)
	}
	sst := stat.PopVariance(y, nil) * float64(n)
	if k == 0 {
		return 0, nil
	}

	design := mat.NewDense(n, k+1, nil)
	for i := 0; i < n; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < k; j++ {
			design.Set(i, j+1, x.At(i, j))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return 0, fmt.Errorf("%w: SVD factorization failed", ErrNumeric)
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return 0, fmt.Errorf("%w: design matrix has rank 0", ErrNumeric)
	}

	b := mat.NewDense(n, 1, append([]float64(nil), y...))
	var beta mat.Dense
	svd.SolveTo(&beta, b, rank)

	var fitted mat.Dense
	fitted.Mul(design, &beta)

	residuals := mat.Col(nil, 0, &fitted)
	floats.Sub(residuals, y)
	ssr := floats.Dot(residuals, residuals)
	if math.IsNaN(ssr) || math.IsInf(ssr, 0) {
		return 0, fmt.Errorf("%w: non-finite residuals", ErrNumeric)
	}
	if ssr <= perfectFitTolerance*sst {
		return 1, nil
	}

	return math.Max(0, 1-ssr/sst), nil
}

// VIF returns the variance inflation factor of every column of m:
// 1/(1-R²) of the column regressed on all other columns. An exact linear
// dependency yields +Inf; a single column has VIF 1.
func VIF(m mat.Matrix) ([]float64, error) {
	n, k := m.Dims()
	out := make([]float64, k)
	if k == 0 {
		return out, nil
	}
	if k == 1 {
		out[0] = 1
		return out, nil
	}

	for i := 0; i < k; i++ {
		y := mat.Col(nil, i, m)
		others := mat.NewDense(n, k-1, nil)
		for j, col := 0, 0; j < k; j++ {
			if j == i {
				continue
			}
			for r := 0; r < n; r++ {
				others.Set(r, col, m.At(r, j))
			}
			col++
		}

		r2, err := RSquared(y, others)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
		if r2 >= 1 {
			out[i] = math.Inf(1)
			continue
		}
		out[i] = 1 / (1 - r2)
	}

	return out, nil
}
