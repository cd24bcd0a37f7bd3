package config

// AppVersion is stamped at build time with
// -ldflags "-X aqpanel/internal/config.AppVersion=..."
var AppVersion = "1.2.0"

// Application constants
const (
	// Application Info
	AppName = "AQ Panel Collinearity Report"

	// EnvPrefix namespaces every environment variable, e.g. AQP_INPUT_PATH
	EnvPrefix = "AQP"

	// Analysis defaults
	DefaultCorrelationThreshold = 0.95
	DefaultVIFCeiling           = 100.0
	DefaultMaxIterations        = 20

	// Input defaults
	DefaultEntityColumn   = "city"
	DefaultPeriodColumn   = "year"
	DefaultResponseColumn = "aqi"

	// Output defaults
	DefaultOutputDir    = "output"
	DefaultOutputFormat = FormatXLSX
	DefaultLogFile      = "logs/aqpanel.log"

	FormatXLSX = "xlsx"
	FormatCSV  = "csv"

	// Artifact base names (extension is added by the report sink)
	ArtifactNormalized       = "normalized_data"
	ArtifactCorrelation      = "correlation"
	ArtifactCorrelationAudit = "correlation_audit"
	ArtifactVIFAudit         = "vif_audit"
	ArtifactFinalDataset     = "final_dataset"
	NarrativeFileName        = "report.md"
	ManifestFileName         = "manifest.json"
	MetricsFileName          = "aqpanel.prom"
)
