// Package loader reads panel observations from a spreadsheet workbook or a
// CSV file into a panel.Table.
//
// The first non-blank row is the header. The entity, period and response
// columns are designated by name; every other column is a numeric
// predictor unless excluded. Empty cells and the markers NA, N/A, NaN,
// null and "-" load as missing values. Any malformed input is reported as
// a LOAD error and nothing is returned.
package loader
