// Package collinearity removes redundant predictors in two phases.
//
// The Pruner examines every unordered pair of features once (upper
// triangle of the correlation matrix) and drops, in a single batch, each
// feature that correlates above the threshold with any feature before it.
// The Reducer then removes one feature at a time, always the one with the
// largest variance inflation factor, until every remaining factor is
// within the ceiling or the iteration limit is reached.
//
// Both phases take a feature set and return a new one; neither mutates
// its inputs.
package collinearity
