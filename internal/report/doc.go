// Package report renders the run's artifacts.
//
// Tabular artifacts go through a Sink: an xlsx workbook per artifact with
// one sheet per table, or one CSV file per table. The narrative is a
// markdown document. Each artifact is written once and independently;
// a failed write leaves previously written artifacts in place.
package report
