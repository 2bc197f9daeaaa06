package timeseries

import (
	"fmt"
	"math"
	"sort"
)

// Table is a date-indexed, column-labeled numeric table stored as one
// row-major buffer. NaN marks a missing value. The index is always sorted
// ascending without duplicates.
type Table struct {
	index   []Date
	columns []string
	colPos  map[string]int
	data    []float64
}

// New returns a table over index x columns with every cell missing.
func New(index []Date, columns []string) *Table {
	return NewFilled(index, columns, math.NaN())
}

// NewFilled returns a table over index x columns with every cell set to v.
func NewFilled(index []Date, columns []string, v float64) *Table {
	idx := SortDates(append([]Date(nil), index...))
	cols := append([]string(nil), columns...)
	t := &Table{
		index:   idx,
		columns: cols,
		colPos:  make(map[string]int, len(cols)),
		data:    make([]float64, len(idx)*len(cols)),
	}
	for j, c := range cols {
		t.colPos[c] = j
	}
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// FromColumns builds a table from per-column slices aligned with index.
func FromColumns(index []Date, cols map[string][]float64) (*Table, error) {
	names := make([]string, 0, len(cols))
	for name, vals := range cols {
		if len(vals) != len(index) {
			return nil, fmt.Errorf("column %s: length %d, index length %d", name, len(vals), len(index))
		}
		names = append(names, name)
	}
	sort.Strings(names)
	t := New(index, names)
	if len(t.index) != len(index) {
		return nil, fmt.Errorf("index must be unique")
	}
	order := make([]int, len(index))
	for i, d := range index {
		order[i], _ = t.Locate(d)
	}
	for j, name := range names {
		for i, v := range cols[name] {
			t.data[order[i]*len(names)+j] = v
		}
	}
	return t, nil
}

func (t *Table) Len() int          { return len(t.index) }
func (t *Table) Width() int        { return len(t.columns) }
func (t *Table) Empty() bool       { return len(t.index) == 0 || len(t.columns) == 0 }
func (t *Table) Index() []Date     { return append([]Date(nil), t.index...) }
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// DateAt returns the i-th index label.
func (t *Table) DateAt(i int) Date { return t.index[i] }

// At returns the value at row i, column j.
func (t *Table) At(i, j int) float64 { return t.data[i*len(t.columns)+j] }

// SetAt sets the value at row i, column j.
func (t *Table) SetAt(i, j int, v float64) { t.data[i*len(t.columns)+j] = v }

// Locate returns the row position of d.
func (t *Table) Locate(d Date) (int, bool) {
	i := sort.Search(len(t.index), func(i int) bool { return !t.index[i].Before(d) })
	if i < len(t.index) && t.index[i] == d {
		return i, true
	}
	return i, false
}

// ColumnPos returns the position of a column label.
func (t *Table) ColumnPos(col string) (int, bool) {
	j, ok := t.colPos[col]
	return j, ok
}

func (t *Table) HasColumn(col string) bool {
	_, ok := t.colPos[col]
	return ok
}

// Get returns the value at (d, col); ok is false when the label is absent or the cell is missing.
func (t *Table) Get(d Date, col string) (float64, bool) {
	i, ok := t.Locate(d)
	if !ok {
		return math.NaN(), false
	}
	j, ok := t.colPos[col]
	if !ok {
		return math.NaN(), false
	}
	v := t.At(i, j)
	return v, !math.IsNaN(v)
}

// Set writes v at (d, col). It returns an error when either label is absent.
func (t *Table) Set(d Date, col string, v float64) error {
	i, ok := t.Locate(d)
	if !ok {
		return fmt.Errorf("date %s not in index", d)
	}
	j, ok := t.colPos[col]
	if !ok {
		return fmt.Errorf("column %s not found", col)
	}
	t.SetAt(i, j, v)
	return nil
}

// Column returns a copy of a column's values, or nil when absent.
func (t *Table) Column(col string) []float64 {
	j, ok := t.colPos[col]
	if !ok {
		return nil
	}
	out := make([]float64, len(t.index))
	for i := range t.index {
		out[i] = t.At(i, j)
	}
	return out
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []float64 {
	w := len(t.columns)
	return append([]float64(nil), t.data[i*w:(i+1)*w]...)
}

// FirstDate returns the first index label.
func (t *Table) FirstDate() (Date, bool) {
	if len(t.index) == 0 {
		return Date{}, false
	}
	return t.index[0], true
}

// LastDate returns the last index label.
func (t *Table) LastDate() (Date, bool) {
	if len(t.index) == 0 {
		return Date{}, false
	}
	return t.index[len(t.index)-1], true
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	c := New(t.index, t.columns)
	copy(c.data, t.data)
	return c
}

// Select returns the named columns in the given order. Unknown names yield missing columns.
func (t *Table) Select(cols ...string) *Table {
	return t.ReindexColumns(cols)
}

// ReindexColumns conforms the table to cols; new columns are missing.
func (t *Table) ReindexColumns(cols []string) *Table {
	out := New(t.index, cols)
	for jn, c := range out.columns {
		jo, ok := t.colPos[c]
		if !ok {
			continue
		}
		for i := range t.index {
			out.SetAt(i, jn, t.At(i, jo))
		}
	}
	return out
}

// String renders a small debugging view.
func (t *Table) String() string {
	s := fmt.Sprintf("Table[%dx%d] %v\n", len(t.index), len(t.columns), t.columns)
	for i, d := range t.index {
		s += fmt.Sprintf("%s %v\n", d, t.Row(i))
	}
	return s
}
