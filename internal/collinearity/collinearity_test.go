package collinearity

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/panel"
	"aqpanel/internal/shared/testutil"
)

var (
	base    = []float64{1, 2, 3, 4, 5, 6, 7, 8}
	indep   = []float64{2, -1, 3, 0, -2, 1, 4, -3}
	seriesX = []float64{1, -1, 2, 0, 3, -2, 1, 0}
	seriesY = []float64{0, 2, 1, -1, 1, 3, -2, 2}
	seriesZ = []float64{3, 1, -1, 2, 0, -2, 1, 4}
)

func scale(values []float64, a, b float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = a*v + b
	}
	return out
}

func add(x, y []float64) []float64 {
	out := make([]float64, len(x))
	for i := range x {
		out[i] = x[i] + y[i]
	}
	return out
}

func buildTable(t *testing.T, cols ...panel.Column) *panel.Table {
	t.Helper()
	n := len(cols[0].Values)
	index := make([]panel.Key, n)
	for i := range index {
		index[i] = panel.Key{Entity: fmt.Sprintf("c%d", i%3), Period: 2000 + i}
	}
	tbl, err := panel.NewTable("city", "year", index, cols,
		panel.Column{Name: "aqi", Values: make([]float64, n)})
	require.NoError(t, err)
	return tbl
}

func col(name string, values []float64) panel.Column {
	return panel.Column{Name: name, Values: values}
}

func TestPrune_PerfectlyCollinearTriple(t *testing.T) {
	tbl := buildTable(t,
		col("A", base),
		col("B", scale(base, 1, 0)),
		col("C", scale(base, 1, 0)),
		col("D", indep),
	)

	res, err := NewPruner(PruneOptions{Threshold: 0.95}, nil).
		Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "D"}, res.Features.Names())
	require.Len(t, res.Removed, 2)
	assert.Equal(t, "B", res.Removed[0].Feature)
	assert.Equal(t, "A", res.Removed[0].Partner)
	assert.InDelta(t, 1.0, res.Removed[0].Correlation, 1e-9)
	assert.InDelta(t, 0.0, res.Removed[0].PValue, 1e-9)
	assert.Equal(t, "C", res.Removed[1].Feature)

	assert.Equal(t, 4, res.Correlation.Size())
	assert.Equal(t, 4, res.PValues.Size())
	assert.Equal(t, []string{"A", "D"}, res.RetainedCorrelation.Labels)
	assert.Equal(t, []string{"A", "D"}, res.RetainedPValues.Labels)

	// The reduced pair is well conditioned.
	vif := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: 20}, nil).
		Reduce(context.Background(), tbl, res.Features)
	assert.Equal(t, StatusConverged, vif.Status)
	assert.Empty(t, vif.Removed)
	require.Len(t, vif.Final, 2)
	for _, r := range vif.Final {
		assert.False(t, math.IsInf(r.VIF, 0))
		assert.LessOrEqual(t, r.VIF, 100.0)
	}
}

func TestPrune_CorrelationMatrixIsSymmetric(t *testing.T) {
	tbl := buildTable(t, col("x", seriesX), col("y", seriesY), col("z", seriesZ), col("w", base))

	res, err := NewPruner(PruneOptions{}, nil).Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)

	n := res.Correlation.Size()
	for i := 0; i < n; i++ {
		assert.Equal(t, 1.0, res.Correlation.At(i, i))
		assert.True(t, math.IsNaN(res.PValues.At(i, i)))
		for j := 0; j < n; j++ {
			assert.Equal(t, res.Correlation.At(i, j), res.Correlation.At(j, i))
			if i != j {
				assert.Equal(t, res.PValues.At(i, j), res.PValues.At(j, i))
			}
		}
	}
}

func TestPrune_RecordsMaxPartner(t *testing.T) {
	noisy := add(base, []float64{0.3, -0.2, 0.1, -0.3, 0.2, -0.1, 0.3, -0.2})
	closer := add(base, []float64{0.05, -0.04, 0.03, -0.05, 0.04, -0.03, 0.05, -0.04})
	tbl := buildTable(t, col("A", base), col("B", noisy), col("C", closer))

	res, err := NewPruner(PruneOptions{Threshold: 0.95}, nil).
		Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)

	require.Len(t, res.Removed, 2)
	assert.Equal(t, []string{"A"}, res.Features.Names(), "at least one member of each pair survives")

	c := res.Removed[1]
	require.Equal(t, "C", c.Feature)
	ac, _ := res.Correlation.Get("A", "C")
	bc, _ := res.Correlation.Get("B", "C")
	want := "A"
	if bc > ac {
		want = "B"
	}
	assert.Equal(t, want, c.Partner)
	assert.Equal(t, math.Max(ac, bc), c.Correlation)
	p, _ := res.PValues.Get(want, "C")
	assert.Equal(t, p, c.PValue)
}

func TestPrune_Idempotent(t *testing.T) {
	tbl := buildTable(t,
		col("A", base),
		col("B", scale(base, 2, 1)),
		col("X", seriesX),
		col("Y", seriesY),
		col("XY", add(seriesX, scale(seriesY, 0.01, 0))),
	)
	pruner := NewPruner(PruneOptions{Threshold: 0.95}, nil)

	first, err := pruner.Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)
	require.NotEmpty(t, first.Removed)

	second, err := pruner.Prune(context.Background(), tbl, first.Features)
	require.NoError(t, err)
	assert.Empty(t, second.Removed)
	assert.Equal(t, first.Features.Names(), second.Features.Names())
}

func TestPrune_NegativeCorrelation(t *testing.T) {
	tbl := buildTable(t, col("A", base), col("N", scale(base, -1, 0)), col("D", indep))

	res, err := NewPruner(PruneOptions{Threshold: 0.95}, nil).
		Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)
	assert.Empty(t, res.Removed, "only positive correlations count by default")

	res, err = NewPruner(PruneOptions{Threshold: 0.95, Absolute: true}, nil).
		Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "N", res.Removed[0].Feature)
	assert.InDelta(t, -1.0, res.Removed[0].Correlation, 1e-9)
}

func TestPrune_SmallFeatureSets(t *testing.T) {
	tbl := buildTable(t, col("A", base))
	pruner := NewPruner(PruneOptions{}, nil)

	res, err := pruner.Prune(context.Background(), tbl, tbl.FeatureSet())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, res.Features.Names())
	assert.Equal(t, 1.0, res.Correlation.At(0, 0))

	res, err = pruner.Prune(context.Background(), tbl, panel.NewFeatureSet())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Features.Len())
	assert.Equal(t, 0, res.RetainedCorrelation.Size())
}

func TestPrune_DoesNotMutateInput(t *testing.T) {
	tbl := buildTable(t, col("A", base), col("B", base))
	features := tbl.FeatureSet()

	_, err := NewPruner(PruneOptions{}, nil).Prune(context.Background(), tbl, features)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, features.Names())
}

func TestReduce_RemovesFirstInfiniteVIF(t *testing.T) {
	tbl := buildTable(t,
		col("X1", seriesX),
		col("X2", seriesY),
		col("X3", add(seriesX, seriesY)),
		col("X4", seriesZ),
	)

	res := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: 20}, nil).
		Reduce(context.Background(), tbl, tbl.FeatureSet())

	assert.Equal(t, StatusConverged, res.Status)
	assert.NoError(t, res.Diagnostic)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "X1", res.Removed[0].Feature)
	assert.True(t, math.IsInf(res.Removed[0].VIF, 1))
	assert.Equal(t, []string{"X2", "X3", "X4"}, res.Features.Names())

	require.Len(t, res.Final, 3)
	for _, r := range res.Final {
		assert.LessOrEqual(t, r.VIF, 100.0, r.Feature)
	}
}

func TestReduce_IterationLimit(t *testing.T) {
	tbl := buildTable(t,
		col("P1", seriesX),
		col("P2", scale(seriesX, 2, 0)),
		col("Q1", seriesY),
		col("Q2", scale(seriesY, 3, 1)),
		col("Z", seriesZ),
	)

	t.Run("limit reached", func(t *testing.T) {
		logger, logs := testutil.NewTestLogger(t)
		res := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: 1}, logger).
			Reduce(context.Background(), tbl, tbl.FeatureSet())

		assert.Equal(t, StatusIterationLimit, res.Status)
		assert.True(t, res.Status.Degraded())
		assert.Equal(t, 1, res.Iterations)
		require.Len(t, res.Removed, 1)
		assert.Equal(t, "P1", res.Removed[0].Feature)
		assert.Equal(t, []string{"P2", "Q1", "Q2", "Z"}, res.Features.Names())
		require.Len(t, res.Final, 4, "final VIFs are still reported")

		r := testutil.AssertLogContains(t, logs, slog.LevelWarn, "iteration limit")
		assert.Equal(t, "vif_reducer", r.Attrs["component"])
		assert.EqualValues(t, 1, r.Attrs["iterations"])
	})

	t.Run("last removal suffices", func(t *testing.T) {
		res := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: 2}, nil).
			Reduce(context.Background(), tbl, tbl.FeatureSet())

		assert.Equal(t, StatusConverged, res.Status)
		assert.Equal(t, 2, res.Iterations)
		assert.Equal(t, []string{"P2", "Q2", "Z"}, res.Features.Names())
	})
}

func TestReduce_SaturatedPanel(t *testing.T) {
	// five rows cannot separate five features plus an intercept, so every
	// VIF starts infinite; dropping one leaves a well-conditioned set
	tbl := buildTable(t,
		col("a", []float64{0, -3, 1, 5, -5}),
		col("b", []float64{-4, 3, -4, 0, 4}),
		col("c", []float64{-5, 3, -2, -5, -4}),
		col("d", []float64{1, 1, -4, -2, -4}),
		col("e", []float64{3, 1, -5, 4, -4}),
	)

	res := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: 20}, nil).
		Reduce(context.Background(), tbl, tbl.FeatureSet())

	assert.Equal(t, StatusConverged, res.Status)
	assert.NoError(t, res.Diagnostic)
	assert.Equal(t, 2, res.Iterations)
	require.Len(t, res.Removed, 1)
	assert.Equal(t, "a", res.Removed[0].Feature)
	assert.True(t, math.IsInf(res.Removed[0].VIF, 1))
	assert.Equal(t, []string{"b", "c", "d", "e"}, res.Features.Names())
	require.Len(t, res.Final, 4)
	for _, r := range res.Final {
		assert.LessOrEqual(t, r.VIF, 20.0, r.Feature)
	}
}

func TestReduce_NumericFailure(t *testing.T) {
	tbl := buildTable(t,
		col("a", []float64{1, 2, 4, 3}),
		col("flat", []float64{7, 7, 7, 7}),
		col("c", []float64{0, 5, 1, 2}),
	)

	logger, logs := testutil.NewTestLogger(t)
	res := NewReducer(ReduceOptions{}, logger).Reduce(context.Background(), tbl, tbl.FeatureSet())

	assert.Equal(t, StatusNumericFailure, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.Final)
	assert.Equal(t, []string{"a", "flat", "c"}, res.Features.Names(), "current set is accepted")
	require.Error(t, res.Diagnostic)
	assert.True(t, apperrors.IsType(res.Diagnostic, apperrors.ErrTypeNumeric))
	testutil.AssertLogContains(t, logs, slog.LevelWarn, "numerical failure")
	testutil.AssertNoErrors(t, logs)
}

func TestReduce_Bounds(t *testing.T) {
	cols := []panel.Column{
		col("f0", seriesX),
		col("f1", scale(seriesX, -2, 1)),
		col("f2", seriesY),
		col("f3", add(seriesX, seriesY)),
		col("f4", scale(seriesY, 0.5, 2)),
		col("f5", seriesZ),
	}
	tbl := buildTable(t, cols...)
	start := tbl.FeatureSet()

	for _, limit := range []int{1, 2, 3, 20} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			res := NewReducer(ReduceOptions{Ceiling: 100, MaxIterations: limit}, nil).
				Reduce(context.Background(), tbl, start)

			assert.LessOrEqual(t, res.Iterations, limit)
			assert.LessOrEqual(t, res.Iterations, start.Len())
			assert.Equal(t, start.Len(), res.Features.Len()+len(res.Removed))
			for _, r := range res.Removed {
				assert.False(t, res.Features.Contains(r.Feature))
			}
			if res.Status == StatusConverged {
				for _, r := range res.Final {
					assert.LessOrEqual(t, r.VIF, 100.0)
				}
			}
		})
	}
	assert.Equal(t, 6, start.Len(), "input set is unchanged")
}

func TestReduce_TrivialSets(t *testing.T) {
	tbl := buildTable(t, col("A", base))
	reducer := NewReducer(ReduceOptions{}, nil)

	res := reducer.Reduce(context.Background(), tbl, tbl.FeatureSet())
	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Final, 1)
	assert.Equal(t, 1.0, res.Final[0].VIF)

	res = reducer.Reduce(context.Background(), tbl, panel.NewFeatureSet())
	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, 0, res.Iterations)
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "converged", StatusConverged.String())
	assert.Equal(t, "iteration_limit", StatusIterationLimit.String())
	assert.Equal(t, "numeric_failure", StatusNumericFailure.String())
	assert.False(t, StatusConverged.Degraded())
	assert.True(t, StatusNumericFailure.Degraded())
}
