package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/panel"
)

// Options selects the sheet and designates the key columns
type Options struct {
	Sheet          string
	EntityColumn   string
	PeriodColumn   string
	ResponseColumn string
	Exclude        []string
}

// OptionsFromConfig maps the input section of the configuration
func OptionsFromConfig(cfg config.InputConfig) Options {
	return Options{
		Sheet:          cfg.Sheet,
		EntityColumn:   cfg.EntityColumn,
		PeriodColumn:   cfg.PeriodColumn,
		ResponseColumn: cfg.ResponseColumn,
		Exclude:        append([]string(nil), cfg.ExcludeColumns...),
	}
}

// Loader reads observation tables
type Loader struct {
	opts   Options
	logger *slog.Logger
}

// New creates a loader. A nil logger uses the global one.
func New(opts Options, logger *slog.Logger) *Loader {
	return &Loader{
		opts:   opts,
		logger: infrastructure.WithComponent(logger, "loader"),
	}
}

// Load reads the file at path. The format is chosen by extension:
// .xlsx/.xlsm workbooks or .csv text.
func (l *Loader) Load(ctx context.Context, path string) (*panel.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		rows  [][]string
		sheet string
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".xlsx", ".xlsm":
		rows, sheet, err = l.readWorkbook(path)
	case ".csv":
		rows, err = readCSVFile(path)
	default:
		err = apperrors.NewLoadError(fmt.Sprintf("unsupported input format %q", ext), nil)
	}
	if err != nil {
		return nil, err
	}

	table, err := l.build(rows)
	if err != nil {
		return nil, apperrors.NewLoadError("malformed input", err).
			WithContext("path", path).
			WithContext("sheet", sheet)
	}

	l.logger.InfoContext(ctx, "Input loaded",
		slog.String("path", path),
		slog.String("sheet", sheet),
		slog.Int("rows", table.Len()),
		slog.Int("features", len(table.Features)))

	return table, nil
}

func (l *Loader) readWorkbook(path string) ([][]string, string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, "", apperrors.NewLoadError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, "", apperrors.NewLoadError("workbook has no sheets", nil).WithContext("path", path)
	}

	sheet := l.opts.Sheet
	if sheet == "" {
		sheet = sheets[0]
	} else if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, "", apperrors.NewLoadError(fmt.Sprintf("sheet %q not found", sheet), nil).
			WithContext("path", path).
			WithContext("sheets", sheets)
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, sheet, apperrors.NewLoadError("failed to read sheet", err).WithContext("sheet", sheet)
	}
	return rows, sheet, nil
}

func readCSVFile(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewLoadError("failed to open CSV file", err).WithContext("path", path)
	}
	defer file.Close()

	rows, err := readCSV(file)
	if err != nil {
		return nil, apperrors.NewLoadError("failed to read CSV file", err).WithContext("path", path)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

// build turns raw rows into a table. Blank rows are skipped and short rows
// are padded with empty cells.
func (l *Loader) build(rows [][]string) (*panel.Table, error) {
	rows = dropBlankRows(rows)
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}
	if len(rows) == 1 {
		return nil, fmt.Errorf("sheet has a header but no observations")
	}

	header := make([]string, len(rows[0]))
	position := make(map[string]int, len(header))
	for i, h := range rows[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			return nil, fmt.Errorf("column %d has no header", i+1)
		}
		if _, dup := position[h]; dup {
			return nil, fmt.Errorf("duplicate column %q", h)
		}
		header[i] = h
		position[h] = i
	}

	entityIdx, err := requireColumn(position, "entity", l.opts.EntityColumn)
	if err != nil {
		return nil, err
	}
	periodIdx, err := requireColumn(position, "period", l.opts.PeriodColumn)
	if err != nil {
		return nil, err
	}
	responseIdx, err := requireColumn(position, "response", l.opts.ResponseColumn)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]bool, len(l.opts.Exclude))
	for _, name := range l.opts.Exclude {
		if _, ok := position[name]; !ok {
			l.logger.Warn("Excluded column not present in input", slog.String("column", name))
		}
		excluded[name] = true
	}

	var featureIdx []int
	for i, h := range header {
		if i == entityIdx || i == periodIdx || i == responseIdx || excluded[h] {
			continue
		}
		featureIdx = append(featureIdx, i)
	}
	if len(featureIdx) == 0 {
		return nil, fmt.Errorf("no predictor columns")
	}

	data := rows[1:]
	index := make([]panel.Key, len(data))
	features := make([]panel.Column, len(featureIdx))
	for k, idx := range featureIdx {
		features[k] = panel.Column{Name: header[idx], Values: make([]float64, len(data))}
	}
	response := panel.Column{Name: header[responseIdx], Values: make([]float64, len(data))}

	for r, row := range data {
		line := r + 2
		entity := strings.TrimSpace(cell(row, entityIdx))
		if isMissing(entity) {
			return nil, fmt.Errorf("row %d: missing %s", line, header[entityIdx])
		}
		period, err := parsePeriod(cell(row, periodIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", line, header[periodIdx], err)
		}
		index[r] = panel.Key{Entity: entity, Period: period}

		for k, idx := range featureIdx {
			v, err := parseValue(cell(row, idx))
			if err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", line, header[idx], err)
			}
			features[k].Values[r] = v
		}
		v, err := parseValue(cell(row, responseIdx))
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", line, header[responseIdx], err)
		}
		response.Values[r] = v
	}

	return panel.NewTable(header[entityIdx], header[periodIdx], index, features, response)
}

func requireColumn(position map[string]int, role, name string) (int, error) {
	idx, ok := position[name]
	if !ok {
		return -1, fmt.Errorf("%s column %q not found", role, name)
	}
	return idx, nil
}

func dropBlankRows(rows [][]string) [][]string {
	out := rows[:0:0]
	for _, row := range rows {
		for _, c := range row {
			if strings.TrimSpace(c) != "" {
				out = append(out, row)
				break
			}
		}
	}
	return out
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func isMissing(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "na", "n/a", "nan", "null", "-":
		return true
	}
	return false
}

func parseValue(s string) (float64, error) {
	if isMissing(s) {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("non-numeric value %q", s)
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return v, nil
}

func parsePeriod(s string) (int, error) {
	s = strings.TrimSpace(s)
	if isMissing(s) {
		return 0, fmt.Errorf("missing period")
	}
	if p, err := strconv.Atoi(s); err == nil {
		return p, nil
	}
	// Workbooks may store integral periods as floats.
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("period %q is not an integer", s)
	}
	return int(f), nil
}
