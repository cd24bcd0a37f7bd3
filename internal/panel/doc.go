// Package panel holds the in-memory panel data model shared by every
// pipeline phase.
//
// A Table is indexed by (entity, period) pairs, carries an ordered set of
// named numeric feature columns and one designated response column. Missing
// values are represented as NaN. Phases never mutate a Table they receive;
// they return a new one.
//
// FeatureSet is the ordered, immutable list of retained feature names that
// is threaded through the correlation pruner and the VIF reducer. It only
// ever shrinks.
//
// LabeledMatrix is a square matrix indexed by feature name on both axes,
// used for correlation coefficients and p-values.
package panel
