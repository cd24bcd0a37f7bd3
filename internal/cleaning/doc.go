// Package cleaning repairs and standardizes the predictor columns of a
// panel table.
//
// Clean treats literal zeros as missing, fills gaps by linear
// interpolation over row order (boundary gaps take the nearest observed
// value), and replaces any remaining non-positive value with the mean of
// the valid values in its column. Normalize rescales every predictor to
// zero mean and unit population standard deviation. The response column
// and the (entity, period) index pass through unchanged.
package cleaning
