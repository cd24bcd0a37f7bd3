package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains every file path the report run writes to.
// This is the single source of truth for artifact names.
type Paths struct {
	OutputDir string
	Format    string

	Narrative string
	Manifest  string
}

// NewPaths derives the artifact paths below outputDir
func NewPaths(outputDir, format string) *Paths {
	return &Paths{
		OutputDir: outputDir,
		Format:    format,
		Narrative: filepath.Join(outputDir, NarrativeFileName),
		Manifest:  filepath.Join(outputDir, ManifestFileName),
	}
}

// ArtifactBase returns the extension-less path of a tabular artifact.
// The report sink appends ".xlsx" or "_<table>.csv".
func (p *Paths) ArtifactBase(name string) string {
	return filepath.Join(p.OutputDir, name)
}

// MetricsPath resolves the metrics textfile; relative names land in the
// output directory.
func (p *Paths) MetricsPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.OutputDir, name)
}

// EnsureDirectories creates the output directory if it doesn't exist
func (p *Paths) EnsureDirectories() error {
	if err := os.MkdirAll(p.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %v", p.OutputDir, err)
	}

	slog.Default().Debug("Ensured directory exists",
		slog.String("directory", p.OutputDir))

	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
