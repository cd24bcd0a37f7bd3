package panel

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LabeledMatrix is a square matrix indexed by feature name on both axes
type LabeledMatrix struct {
	Labels []string
	Data   *mat.Dense
	pos    map[string]int
}

// NewLabeledMatrix wraps data with labels. data must be len(labels) square;
// it may be nil when labels is empty.
func NewLabeledMatrix(labels []string, data *mat.Dense) (*LabeledMatrix, error) {
	if len(labels) == 0 {
		return &LabeledMatrix{pos: map[string]int{}}, nil
	}
	if data == nil {
		return nil, fmt.Errorf("nil matrix for %d labels", len(labels))
	}
	r, c := data.Dims()
	if r != len(labels) || c != len(labels) {
		return nil, fmt.Errorf("matrix is %dx%d, want %dx%d", r, c, len(labels), len(labels))
	}

	pos := make(map[string]int, len(labels))
	for i, l := range labels {
		pos[l] = i
	}
	out := make([]string, len(labels))
	copy(out, labels)
	return &LabeledMatrix{Labels: out, Data: data, pos: pos}, nil
}

// Size returns the number of rows (and columns)
func (m *LabeledMatrix) Size() int {
	return len(m.Labels)
}

// At returns the element at position (i, j)
func (m *LabeledMatrix) At(i, j int) float64 {
	return m.Data.At(i, j)
}

// Get returns the element for the (row, col) label pair
func (m *LabeledMatrix) Get(row, col string) (float64, bool) {
	i, ok := m.pos[row]
	if !ok {
		return 0, false
	}
	j, ok := m.pos[col]
	if !ok {
		return 0, false
	}
	return m.Data.At(i, j), true
}

// Sub returns the sub-matrix restricted to the named labels, in that order
func (m *LabeledMatrix) Sub(names []string) (*LabeledMatrix, error) {
	if len(names) == 0 {
		return NewLabeledMatrix(nil, nil)
	}
	idx := make([]int, len(names))
	for k, name := range names {
		i, ok := m.pos[name]
		if !ok {
			return nil, fmt.Errorf("unknown label %q", name)
		}
		idx[k] = i
	}

	data := mat.NewDense(len(names), len(names), nil)
	for a, i := range idx {
		for b, j := range idx {
			data.Set(a, b, m.Data.At(i, j))
		}
	}
	return NewLabeledMatrix(names, data)
}

// Rows returns the matrix as a slice of rows
func (m *LabeledMatrix) Rows() [][]float64 {
	rows := make([][]float64, m.Size())
	for i := range rows {
		rows[i] = mat.Row(nil, i, m.Data)
	}
	return rows
}
