package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Input     InputConfig     `yaml:"input" envconfig:"INPUT"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Output    OutputConfig    `yaml:"output" envconfig:"OUTPUT"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// InputConfig describes the panel workbook and its designated columns
type InputConfig struct {
	Path           string   `yaml:"path" envconfig:"WORKBOOK" validate:"required"`
	Sheet          string   `yaml:"sheet" envconfig:"SHEET"`
	EntityColumn   string   `yaml:"entity_column" envconfig:"ENTITY_COLUMN" validate:"required"`
	PeriodColumn   string   `yaml:"period_column" envconfig:"PERIOD_COLUMN" validate:"required,nefield=EntityColumn"`
	ResponseColumn string   `yaml:"response_column" envconfig:"RESPONSE_COLUMN" validate:"required,nefield=EntityColumn,nefield=PeriodColumn"`
	ExcludeColumns []string `yaml:"exclude_columns" envconfig:"EXCLUDE_COLUMNS"`
}

// AnalysisConfig holds the cleaning and multicollinearity parameters
type AnalysisConfig struct {
	ZeroAsMissing        bool    `yaml:"zero_as_missing" envconfig:"ZERO_AS_MISSING"`
	CorrelationThreshold float64 `yaml:"correlation_threshold" envconfig:"CORRELATION_THRESHOLD" validate:"gt=0,lte=1"`
	AbsoluteCorrelation  bool    `yaml:"absolute_correlation" envconfig:"ABSOLUTE_CORRELATION"`
	VIFCeiling           float64 `yaml:"vif_ceiling" envconfig:"VIF_CEILING" validate:"gte=1"`
	MaxIterations        int     `yaml:"max_iterations" envconfig:"MAX_ITERATIONS" validate:"gte=1"`
}

// OutputConfig contains report output configuration
type OutputConfig struct {
	Dir    string `yaml:"dir" envconfig:"DIR" validate:"required"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=xlsx csv"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig controls tracing and the metrics textfile
type TelemetryConfig struct {
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricsFile   string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	Environment   string `yaml:"environment" envconfig:"ENVIRONMENT"`
}

// Load builds the configuration from defaults, an optional YAML file and
// AQP_* environment variables, in increasing order of precedence.
// overrides (command-line flags) are applied last, before validation.
// An empty filePath searches the well-known locations.
func Load(filePath string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if filePath == "" {
		filePath = getConfigFilePath()
	}
	if filePath != "" {
		if err := loadFromFile(filePath, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; keys absent from the file
// keep their current value.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints and normalizes case-insensitive values
func (c *Config) Validate() error {
	c.Output.Format = strings.ToLower(c.Output.Format)
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Output = strings.ToLower(c.Logging.Output)

	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	for _, col := range c.Input.ExcludeColumns {
		switch col {
		case c.Input.EntityColumn, c.Input.PeriodColumn, c.Input.ResponseColumn:
			return fmt.Errorf("exclude_columns must not list designated column %q", col)
		}
	}

	return nil
}

// Paths returns the artifact paths for this configuration
func (c *Config) Paths() *Paths {
	return NewPaths(c.Output.Dir, c.Output.Format)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"aqpanel.yaml",
		"configs/aqpanel.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Input: InputConfig{
			EntityColumn:   DefaultEntityColumn,
			PeriodColumn:   DefaultPeriodColumn,
			ResponseColumn: DefaultResponseColumn,
		},
		Analysis: AnalysisConfig{
			ZeroAsMissing:        true,
			CorrelationThreshold: DefaultCorrelationThreshold,
			AbsoluteCorrelation:  false,
			VIFCeiling:           DefaultVIFCeiling,
			MaxIterations:        DefaultMaxIterations,
		},
		Output: OutputConfig{
			Dir:    DefaultOutputDir,
			Format: DefaultOutputFormat,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Telemetry: TelemetryConfig{
			TraceExporter: "none",
			Environment:   "development",
		},
	}
}
