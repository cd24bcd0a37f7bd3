package report

import (
	"aqpanel/internal/collinearity"
	"aqpanel/internal/panel"
)

// Table names shared by the xlsx sheets and the CSV file suffixes.
const (
	TableData                 = "data"
	TableCoefficients         = "coefficients"
	TablePValues              = "p_values"
	TableRemoved              = "removed"
	TableRetainedCoefficients = "retained_coefficients"
	TableRetainedPValues      = "retained_p_values"
	TableRetained             = "retained"
	TableStatus               = "status"
)

// DataTable renders t with its index restored: entity, period, features
// in order, then the response.
func DataTable(t *panel.Table) Table {
	header := make([]string, 0, len(t.Features)+3)
	header = append(header, t.EntityName, t.PeriodName)
	header = append(header, t.FeatureNames()...)
	header = append(header, t.Response.Name)

	rows := make([][]any, t.Len())
	for r, key := range t.Index {
		row := make([]any, 0, len(header))
		row = append(row, key.Entity, key.Period)
		for _, col := range t.Features {
			row = append(row, col.Values[r])
		}
		row = append(row, t.Response.Values[r])
		rows[r] = row
	}
	return Table{Name: TableData, Header: header, Rows: rows}
}

// MatrixTable renders a labeled matrix with the labels as first column
func MatrixTable(name string, m *panel.LabeledMatrix) Table {
	header := append([]string{"feature"}, m.Labels...)
	rows := make([][]any, m.Size())
	for i, values := range m.Rows() {
		row := make([]any, 0, len(values)+1)
		row = append(row, m.Labels[i])
		for _, v := range values {
			row = append(row, v)
		}
		rows[i] = row
	}
	return Table{Name: name, Header: header, Rows: rows}
}

// CorrelationTables renders the full correlation and p-value matrices
func CorrelationTables(res *collinearity.PruneResult) []Table {
	return []Table{
		MatrixTable(TableCoefficients, res.Correlation),
		MatrixTable(TablePValues, res.PValues),
	}
}

// CorrelationAuditTables renders the removed-feature audit and the
// matrices restricted to the retained features.
func CorrelationAuditTables(res *collinearity.PruneResult) []Table {
	removed := Table{
		Name:   TableRemoved,
		Header: []string{"feature", "partner", "correlation", "p_value"},
		Rows:   make([][]any, len(res.Removed)),
	}
	for i, r := range res.Removed {
		removed.Rows[i] = []any{r.Feature, r.Partner, r.Correlation, r.PValue}
	}
	return []Table{
		removed,
		MatrixTable(TableRetainedCoefficients, res.RetainedCorrelation),
		MatrixTable(TableRetainedPValues, res.RetainedPValues),
	}
}

// VIFAuditTables renders the removal log, the final VIFs and a status
// table. On numeric failure the retained table lists the accepted
// features without values.
func VIFAuditTables(res *collinearity.VIFResult) []Table {
	removed := Table{
		Name:   TableRemoved,
		Header: []string{"iteration", "feature", "vif"},
		Rows:   make([][]any, len(res.Removed)),
	}
	for i, r := range res.Removed {
		removed.Rows[i] = []any{i + 1, r.Feature, r.VIF}
	}

	retained := Table{Name: TableRetained, Header: []string{"feature", "vif"}}
	if len(res.Final) > 0 {
		for _, r := range res.Final {
			retained.Rows = append(retained.Rows, []any{r.Feature, r.VIF})
		}
	} else {
		for _, name := range res.Features.Names() {
			retained.Rows = append(retained.Rows, []any{name, nil})
		}
	}

	diagnostic := ""
	if res.Diagnostic != nil {
		diagnostic = res.Diagnostic.Error()
	}
	status := Table{
		Name:   TableStatus,
		Header: []string{"key", "value"},
		Rows: [][]any{
			{"status", res.Status.String()},
			{"iterations", res.Iterations},
			{"removed", len(res.Removed)},
			{"retained", res.Features.Len()},
			{"diagnostic", diagnostic},
		},
	}

	return []Table{removed, retained, status}
}
