package report

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"aqpanel/internal/config"
	"aqpanel/internal/infrastructure"
)

// CSVSink writes one CSV file per table, named <artifact>_<table>.csv
type CSVSink struct {
	paths *config.Paths
	// BOMPrefix adds a UTF-8 BOM so spreadsheet tools detect the encoding.
	BOMPrefix bool
	logger    *slog.Logger
}

// NewCSVSink creates a CSV sink below the output directory
func NewCSVSink(paths *config.Paths) *CSVSink {
	return &CSVSink{
		paths:     paths,
		BOMPrefix: true,
		logger:    infrastructure.WithComponent(nil, "csv_sink"),
	}
}

// Format implements Sink
func (s *CSVSink) Format() string {
	return config.FormatCSV
}

// Write implements Sink
func (s *CSVSink) Write(artifact string, tables []Table) ([]string, error) {
	base := s.paths.ArtifactBase(artifact)
	if err := os.MkdirAll(filepath.Dir(base), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	written := make([]string, 0, len(tables))
	for _, table := range tables {
		path := fmt.Sprintf("%s_%s.csv", base, table.Name)
		if err := s.writeTable(path, table); err != nil {
			return written, fmt.Errorf("table %s: %w", table.Name, err)
		}
		written = append(written, path)
	}
	return written, nil
}

func (s *CSVSink) writeTable(path string, table Table) error {
	s.logger.Debug("Writing CSV file",
		slog.String("file_path", path),
		slog.Int("record_count", len(table.Rows)))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if s.BOMPrefix {
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(table.Header); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, len(table.Header))
	for i, row := range table.Rows {
		record = record[:0]
		for _, cell := range row {
			record = append(record, formatCell(cell))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}
	return file.Close()
}
