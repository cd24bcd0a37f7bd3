// Package stats provides the statistical helpers behind the collinearity
// diagnostics: Pearson correlation with two-tailed significance, ordinary
// least squares R², variance inflation factors and descriptive summaries.
//
// Linear algebra and distributions come from gonum. Regressions are solved
// through an SVD pseudo-inverse, so exactly collinear regressors yield
// R² = 1 (infinite VIF) rather than a failed solve; genuine numerical
// failures are reported as errors wrapping ErrNumeric.
package stats
