package table

import (
	"fmt"

	"github.com/arloliu/tabula/errs"
	"github.com/arloliu/tabula/format"
)

// RaggedColumn stores a variable-length sequence of values per row, backed
// by a flat column plus row bound offsets.
//
// Invariants: bounds is non-decreasing, bounds[0] == 0 and the last bound
// equals the flat column length. Row i's slice is flat[bounds[i]:bounds[i+1]].
// Empty rows are legal and yield two equal consecutive bounds.
type RaggedColumn struct {
	flat   *Column
	bounds []int
}

// NewRaggedColumn creates a ragged column over the given element dtype.
func NewRaggedColumn(name string, dtype format.DType, opts ...ColumnOption) (*RaggedColumn, error) {
	flat, err := NewColumn(name, dtype, opts...)
	if err != nil {
		return nil, err
	}

	return &RaggedColumn{
		flat:   flat,
		bounds: []int{0},
	}, nil
}

// Name returns the column name.
func (r *RaggedColumn) Name() string { return r.flat.name }

// DType returns the element dtype.
func (r *RaggedColumn) DType() format.DType { return r.flat.dtype }

// Unit returns the declared measurement unit, empty if none.
func (r *RaggedColumn) Unit() string { return r.flat.unit }

// Scale returns the declared scale factor; false if none was declared.
func (r *RaggedColumn) Scale() (float64, bool) { return r.flat.Scale() }

// RowCount returns the number of rows.
func (r *RaggedColumn) RowCount() int {
	return len(r.bounds) - 1
}

// FlatLen returns the length of the flat backing store.
func (r *RaggedColumn) FlatLen() int {
	return r.flat.Len()
}

// AppendRow appends one variable-length row.
//
// All values are validated before any mutation, so a failed append leaves
// the column unchanged. An empty sequence appends a legal empty row.
func (r *RaggedColumn) AppendRow(values []Value) error {
	normalized := make([]Value, len(values))
	widened := make([]bool, len(values))
	for i, v := range values {
		nv, w, err := r.flat.normalize(v)
		if err != nil {
			return err
		}
		normalized[i] = nv
		widened[i] = w
	}

	for i, nv := range normalized {
		if widened[i] {
			r.flat.warnWidened(values[i])
		}
		r.flat.push(nv)
	}
	r.bounds = append(r.bounds, r.flat.Len())

	return nil
}

// GetRow returns a copy of row i's value slice.
//
// Fails with errs.ErrIndexOutOfRange if i >= RowCount.
func (r *RaggedColumn) GetRow(i int) ([]Value, error) {
	if i < 0 || i >= r.RowCount() {
		return nil, fmt.Errorf("ragged column %q: row %d with %d rows: %w",
			r.flat.name, i, r.RowCount(), errs.ErrIndexOutOfRange)
	}

	start, end := r.bounds[i], r.bounds[i+1]
	out := make([]Value, 0, end-start)
	for j := start; j < end; j++ {
		v, err := r.flat.Get(j)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}

	return out, nil
}

// Bounds returns the row bound offsets for serialization.
// The returned slice must not be modified.
func (r *RaggedColumn) Bounds() []int { return r.bounds }

// Flat returns the flat backing column for serialization.
func (r *RaggedColumn) Flat() *Column { return r.flat }

// validate checks the structural invariants on the bounds slice.
// The reader calls this after materialization; violations are corruption.
func (r *RaggedColumn) validate() error {
	if len(r.bounds) == 0 || r.bounds[0] != 0 {
		return fmt.Errorf("ragged column %q: bounds must start at 0: %w", r.flat.name, errs.ErrCorrupted)
	}
	for i := 1; i < len(r.bounds); i++ {
		if r.bounds[i] < r.bounds[i-1] {
			return fmt.Errorf("ragged column %q: bounds decrease at %d: %w", r.flat.name, i, errs.ErrCorrupted)
		}
	}
	if r.bounds[len(r.bounds)-1] != r.flat.Len() {
		return fmt.Errorf("ragged column %q: last bound %d != flat length %d: %w",
			r.flat.name, r.bounds[len(r.bounds)-1], r.flat.Len(), errs.ErrCorrupted)
	}

	return nil
}
