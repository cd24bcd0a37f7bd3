package report

import (
	"fmt"
	"math"
	"strconv"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
)

// Table is a named grid with a header row. Cells hold string, int or
// float64 values; NaN renders as an empty cell.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Sink persists the tables of one artifact
type Sink interface {
	// Write stores tables under the artifact name and returns the files
	// it created.
	Write(artifact string, tables []Table) ([]string, error)
	Format() string
}

// NewSink returns the sink for the configured output format
func NewSink(paths *config.Paths) (Sink, error) {
	switch paths.Format {
	case config.FormatXLSX:
		return NewXLSXSink(paths), nil
	case config.FormatCSV:
		return NewCSVSink(paths), nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported output format %q", paths.Format), nil)
	}
}

// formatCell renders a cell for text output
func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
