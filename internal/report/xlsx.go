package report

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"aqpanel/internal/config"
	"aqpanel/internal/infrastructure"
)

const (
	defaultSheet = "Sheet1"
	columnWidth  = 16
)

// XLSXSink writes one workbook per artifact with a sheet per table
type XLSXSink struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewXLSXSink creates a workbook sink below the output directory
func NewXLSXSink(paths *config.Paths) *XLSXSink {
	return &XLSXSink{
		paths:  paths,
		logger: infrastructure.WithComponent(nil, "xlsx_sink"),
	}
}

// Format implements Sink
func (s *XLSXSink) Format() string {
	return config.FormatXLSX
}

// Write implements Sink
func (s *XLSXSink) Write(artifact string, tables []Table) ([]string, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("artifact %s has no tables", artifact)
	}

	path := s.paths.ArtifactBase(artifact) + ".xlsx"
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, table := range tables {
		if i == 0 {
			err = f.SetSheetName(defaultSheet, table.Name)
		} else {
			_, err = f.NewSheet(table.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", table.Name, err)
		}
		if err := writeSheet(f, table, headerStyle); err != nil {
			return nil, fmt.Errorf("sheet %s: %w", table.Name, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	s.logger.Debug("Workbook written",
		slog.String("file_path", path),
		slog.Int("sheets", len(tables)))
	return []string{path}, nil
}

func writeSheet(f *excelize.File, table Table, headerStyle int) error {
	header := make([]any, len(table.Header))
	for i, h := range table.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(table.Name, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(table.Name, 1, 1, headerStyle); err != nil {
		return err
	}
	if n := len(table.Header); n > 0 {
		last, err := excelize.ColumnNumberToName(n)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(table.Name, "A", last, columnWidth); err != nil {
			return err
		}
	}

	for r, row := range table.Rows {
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = xlsxValue(v)
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(table.Name, cell, &cells); err != nil {
			return err
		}
	}
	return nil
}

// xlsxValue maps values a workbook cannot hold as numbers to text
func xlsxValue(v any) any {
	x, ok := v.(float64)
	if !ok {
		return v
	}
	switch {
	case math.IsNaN(x):
		return nil
	case math.IsInf(x, 0):
		return formatFloat(x)
	}
	return x
}
