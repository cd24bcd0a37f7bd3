package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
)

// Artifact describes one written output
type Artifact struct {
	Name   string   `json:"name"`
	Format string   `json:"format"`
	Files  []string `json:"files"`
}

// Reporter writes every artifact of a run
type Reporter struct {
	paths  *config.Paths
	sink   Sink
	logger *slog.Logger
}

// New creates a reporter for the configured output paths
func New(paths *config.Paths, logger *slog.Logger) (*Reporter, error) {
	sink, err := NewSink(paths)
	if err != nil {
		return nil, err
	}
	return NewWithSink(paths, sink, logger), nil
}

// NewWithSink creates a reporter that writes tables through sink
func NewWithSink(paths *config.Paths, sink Sink, logger *slog.Logger) *Reporter {
	return &Reporter{
		paths:  paths,
		sink:   sink,
		logger: infrastructure.WithComponent(logger, "reporter"),
	}
}

// Write renders every artifact. A failed artifact does not stop the
// others; the returned list holds what was written and the error joins
// all failures.
func (r *Reporter) Write(ctx context.Context, run *Run) ([]Artifact, error) {
	if err := r.paths.EnsureDirectories(); err != nil {
		return nil, apperrors.NewStorageError("failed to prepare output directory", err)
	}

	tabular := []struct {
		name   string
		tables func() []Table
	}{
		{config.ArtifactNormalized, func() []Table { return []Table{DataTable(run.Normalized)} }},
		{config.ArtifactCorrelation, func() []Table { return CorrelationTables(run.Prune) }},
		{config.ArtifactCorrelationAudit, func() []Table { return CorrelationAuditTables(run.Prune) }},
		{config.ArtifactVIFAudit, func() []Table { return VIFAuditTables(run.VIF) }},
		{config.ArtifactFinalDataset, func() []Table { return []Table{DataTable(run.Final)} }},
	}

	var (
		artifacts []Artifact
		failures  []error
	)
	for _, a := range tabular {
		files, err := r.sink.Write(a.name, a.tables())
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", a.name, err))
			r.logger.ErrorContext(ctx, "Artifact write failed",
				slog.String("artifact", a.name),
				slog.String("error", err.Error()))
			continue
		}
		artifacts = append(artifacts, Artifact{Name: a.name, Format: r.sink.Format(), Files: files})
		r.logger.InfoContext(ctx, "Artifact written",
			slog.String("artifact", a.name),
			slog.Any("files", files))
	}

	if err := r.WriteNarrative(run); err != nil {
		failures = append(failures, fmt.Errorf("narrative: %w", err))
		r.logger.ErrorContext(ctx, "Narrative write failed", slog.String("error", err.Error()))
	} else {
		artifacts = append(artifacts, Artifact{Name: "narrative", Format: "markdown", Files: []string{r.paths.Narrative}})
	}

	if len(failures) > 0 {
		return artifacts, apperrors.NewStorageError(
			fmt.Sprintf("%d artifact(s) could not be written", len(failures)),
			errors.Join(failures...))
	}
	return artifacts, nil
}

// WriteNarrative renders the markdown report into a buffer and writes it
// to the narrative path in one call.
func (r *Reporter) WriteNarrative(run *Run) error {
	var buf bytes.Buffer
	if err := WriteNarrative(&buf, run); err != nil {
		return err
	}
	return os.WriteFile(r.paths.Narrative, buf.Bytes(), 0644)
}
