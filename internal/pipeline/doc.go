// Package pipeline runs a report end to end: load, clean, prune, vif and
// report, strictly in that order.
//
// Steps exchange values through an explicit State; nothing is shared
// between runs. Load and clean failures stop the run before any output
// exists. VIF numerical failures are absorbed into the VIF result and the
// report is still written. Every step runs inside an OpenTelemetry span
// and its duration and outcome are recorded as metrics. Once the report
// step has run, a JSON manifest describing the run is written to the
// output directory.
package pipeline
