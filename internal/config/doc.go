// Package config provides configuration loading for the collinearity report.
//
// # Configuration Sources
//
// Configuration is resolved in the following order of precedence:
//
//	1. Environment variables (highest priority)
//	2. YAML configuration file (-config flag, aqpanel.yaml or configs/aqpanel.yaml)
//	3. Default values (lowest priority)
//
// # Environment Variables
//
// All environment variables use the AQP_ prefix followed by the section:
//
//	AQP_INPUT_WORKBOOK=data/panel.xlsx
//	AQP_INPUT_SHEET=panel
//	AQP_INPUT_EXCLUDE_COLUMNS=notes,source
//	AQP_ANALYSIS_CORRELATION_THRESHOLD=0.95
//	AQP_ANALYSIS_VIF_CEILING=100
//	AQP_ANALYSIS_MAX_ITERATIONS=20
//	AQP_OUTPUT_DIR=output
//	AQP_OUTPUT_FORMAT=xlsx
//	AQP_LOGGING_LEVEL=info
//	AQP_TELEMETRY_TRACE_EXPORTER=none
//
// # YAML File
//
//	input:
//	  path: data/panel.xlsx
//	  sheet: panel
//	  entity_column: city
//	  period_column: year
//	  response_column: aqi
//	analysis:
//	  correlation_threshold: 0.95
//	  absolute_correlation: false
//	  vif_ceiling: 100
//	  max_iterations: 20
//	output:
//	  dir: output
//	  format: xlsx
//
// Keys missing from the file keep their defaults. The loaded Config is
// validated with go-playground/validator before use.
//
// # Paths
//
// Paths derives every artifact location from the output directory so that
// the reporter, manifest and metrics writer agree on file names.
package config
