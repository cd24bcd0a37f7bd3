package panel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Key identifies one observation
type Key struct {
	Entity string
	Period int
}

// String renders the key as "entity/period"
func (k Key) String() string {
	return fmt.Sprintf("%s/%d", k.Entity, k.Period)
}

// Column is a named numeric column; NaN marks a missing value
type Column struct {
	Name   string
	Values []float64
}

// Clone returns a deep copy of the column
func (c Column) Clone() Column {
	values := make([]float64, len(c.Values))
	copy(values, c.Values)
	return Column{Name: c.Name, Values: values}
}

// MissingCount returns the number of NaN values in the column
func (c Column) MissingCount() int {
	n := 0
	for _, v := range c.Values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Table is the observation table
type Table struct {
	EntityName string
	PeriodName string
	Index      []Key
	Features   []Column
	Response   Column

	positions map[string]int
}

// NewTable validates and assembles a table. Index pairs must be unique and
// every column must have one value per index entry.
func NewTable(entityName, periodName string, index []Key, features []Column, response Column) (*Table, error) {
	seen := make(map[Key]int, len(index))
	for i, k := range index {
		if first, ok := seen[k]; ok {
			return nil, fmt.Errorf("duplicate index %s at rows %d and %d", k, first, i)
		}
		seen[k] = i
	}

	if len(response.Values) != len(index) {
		return nil, fmt.Errorf("response column %q has %d values, want %d", response.Name, len(response.Values), len(index))
	}

	reserved := map[string]bool{entityName: true, periodName: true, response.Name: true}
	positions := make(map[string]int, len(features))
	for i, col := range features {
		if len(col.Values) != len(index) {
			return nil, fmt.Errorf("column %q has %d values, want %d", col.Name, len(col.Values), len(index))
		}
		if reserved[col.Name] {
			return nil, fmt.Errorf("feature column %q clashes with a designated column", col.Name)
		}
		if _, dup := positions[col.Name]; dup {
			return nil, fmt.Errorf("duplicate feature column %q", col.Name)
		}
		positions[col.Name] = i
	}

	return &Table{
		EntityName: entityName,
		PeriodName: periodName,
		Index:      index,
		Features:   features,
		Response:   response,
		positions:  positions,
	}, nil
}

// Len returns the number of observations
func (t *Table) Len() int {
	return len(t.Index)
}

// FeatureNames returns the feature column names in table order
func (t *Table) FeatureNames() []string {
	names := make([]string, len(t.Features))
	for i, col := range t.Features {
		names[i] = col.Name
	}
	return names
}

// FeatureSet returns every feature of the table as a FeatureSet
func (t *Table) FeatureSet() FeatureSet {
	return NewFeatureSet(t.FeatureNames()...)
}

// Column returns the values of the named feature column
func (t *Table) Column(name string) ([]float64, bool) {
	i, ok := t.positions[name]
	if !ok {
		return nil, false
	}
	return t.Features[i].Values, true
}

// Select returns a new table restricted to the named features, in the
// given order. Index and response are copied unchanged.
func (t *Table) Select(names []string) (*Table, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		i, ok := t.positions[name]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		cols = append(cols, t.Features[i].Clone())
	}
	return t.WithFeatures(cols)
}

// WithFeatures returns a new table sharing this table's index and response
// but carrying the given feature columns.
func (t *Table) WithFeatures(features []Column) (*Table, error) {
	index := make([]Key, len(t.Index))
	copy(index, t.Index)
	return NewTable(t.EntityName, t.PeriodName, index, features, t.Response.Clone())
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	cols := make([]Column, len(t.Features))
	for i, col := range t.Features {
		cols[i] = col.Clone()
	}
	clone, _ := t.WithFeatures(cols)
	return clone
}

// Matrix returns the named features as an observations x features matrix
func (t *Table) Matrix(names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no features selected")
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("table has no observations")
	}

	m := mat.NewDense(t.Len(), len(names), nil)
	for j, name := range names {
		values, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
		m.SetCol(j, values)
	}
	return m, nil
}
