package timeseries

import (
	"math"
)

// FillPolicy controls how gaps are filled when a table is conformed to a new index.
type FillPolicy int

const (
	// FillNone leaves gaps missing.
	FillNone FillPolicy = iota
	// FillForward carries the last known value forward.
	FillForward
	// FillForwardBackward carries values forward, then fills the leading gap backward.
	FillForwardBackward
	// FillZero sets gaps to 0.
	FillZero
)

func (p FillPolicy) String() string {
	switch p {
	case FillForward:
		return "ffill"
	case FillForwardBackward:
		return "ffill+bfill"
	case FillZero:
		return "zero"
	default:
		return "none"
	}
}

// Reindex conforms the table to index. Values carried by FillForward and
// FillForwardBackward may come from source rows that are not in index,
// so a value observed on a weekend still reaches the following Monday.
func (t *Table) Reindex(index []Date, policy FillPolicy) *Table {
	target := SortDates(append([]Date(nil), index...))
	switch policy {
	case FillForward, FillForwardBackward:
		union := t.reindexExact(unionDates(t.index, target))
		union.fillForward()
		if policy == FillForwardBackward {
			union.fillBackward()
		}
		return union.reindexExact(target)
	case FillZero:
		out := t.reindexExact(target)
		out.fillValue(0)
		return out
	default:
		return t.reindexExact(target)
	}
}

// ResampleDaily expands the table to one row per calendar day between its first and last date.
func (t *Table) ResampleDaily(policy FillPolicy) *Table {
	first, ok := t.FirstDate()
	if !ok {
		return t.Clone()
	}
	last, _ := t.LastDate()
	return t.Reindex(DateRange(first, last), policy)
}

func (t *Table) reindexExact(index []Date) *Table {
	out := New(index, t.columns)
	w := len(t.columns)
	for i, d := range out.index {
		src, ok := t.Locate(d)
		if !ok {
			continue
		}
		copy(out.data[i*w:(i+1)*w], t.data[src*w:(src+1)*w])
	}
	return out
}

// FFill returns a copy with missing values replaced by the last known value of the column.
func (t *Table) FFill() *Table {
	out := t.Clone()
	out.fillForward()
	return out
}

// BFill returns a copy with missing values replaced by the next known value of the column.
func (t *Table) BFill() *Table {
	out := t.Clone()
	out.fillBackward()
	return out
}

// FillNaN returns a copy with every missing value set to v.
func (t *Table) FillNaN(v float64) *Table {
	out := t.Clone()
	out.fillValue(v)
	return out
}

func (t *Table) fillForward() {
	for j := range t.columns {
		last := math.NaN()
		for i := range t.index {
			v := t.At(i, j)
			if math.IsNaN(v) {
				t.SetAt(i, j, last)
				continue
			}
			last = v
		}
	}
}

func (t *Table) fillBackward() {
	for j := range t.columns {
		next := math.NaN()
		for i := len(t.index) - 1; i >= 0; i-- {
			v := t.At(i, j)
			if math.IsNaN(v) {
				t.SetAt(i, j, next)
				continue
			}
			next = v
		}
	}
}

func (t *Table) fillValue(v float64) {
	for i, x := range t.data {
		if math.IsNaN(x) {
			t.data[i] = v
		}
	}
}

// CumSum returns the running sum of each column along time. Missing values count as 0.
func (t *Table) CumSum() *Table {
	out := New(t.index, t.columns)
	for j := range t.columns {
		acc := 0.0
		for i := range t.index {
			if v := t.At(i, j); !math.IsNaN(v) {
				acc += v
			}
			out.SetAt(i, j, acc)
		}
	}
	return out
}

// Add returns t + o aligned on the union of both indexes and columns; missing values count as 0.
func (t *Table) Add(o *Table) *Table {
	return t.combine(o, 0, func(a, b float64) float64 { return a + b })
}

// Sub returns t - o aligned on the union of both indexes and columns; missing values count as 0.
func (t *Table) Sub(o *Table) *Table {
	return t.combine(o, 0, func(a, b float64) float64 { return a - b })
}

// Mul returns the element-wise product on the union alignment. A cell missing on
// either side stays missing.
func (t *Table) Mul(o *Table) *Table {
	return t.combine(o, math.NaN(), func(a, b float64) float64 { return a * b })
}

func (t *Table) combine(o *Table, missing float64, fn func(a, b float64) float64) *Table {
	index := unionDates(t.index, o.index)
	cols := unionColumns(t.columns, o.columns)
	left := t.reindexExact(index).ReindexColumns(cols)
	right := o.reindexExact(index).ReindexColumns(cols)
	out := New(index, cols)
	for k := range out.data {
		a, b := left.data[k], right.data[k]
		if math.IsNaN(a) {
			a = missing
		}
		if math.IsNaN(b) {
			b = missing
		}
		out.data[k] = fn(a, b)
	}
	return out
}

func unionColumns(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, cols := range [][]string{a, b} {
		for _, c := range cols {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}

// PctChange returns x[t]/x[t-periods] - 1 per column. The first periods rows are missing.
func (t *Table) PctChange(periods int) *Table {
	if periods < 1 {
		periods = 1
	}
	out := New(t.index, t.columns)
	for j := range t.columns {
		for i := periods; i < len(t.index); i++ {
			prev, cur := t.At(i-periods, j), t.At(i, j)
			if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
				continue
			}
			out.SetAt(i, j, cur/prev-1)
		}
	}
	return out
}

// Rolling applies fn over a trailing window of each column. Rows before the
// window is full are missing, as are windows holding a missing value.
func (t *Table) Rolling(window int, fn func([]float64) float64) *Table {
	out := New(t.index, t.columns)
	if window < 1 {
		return out
	}
	buf := make([]float64, window)
	for j := range t.columns {
	rows:
		for i := window - 1; i < len(t.index); i++ {
			for k := 0; k < window; k++ {
				v := t.At(i-window+1+k, j)
				if math.IsNaN(v) {
					continue rows
				}
				buf[k] = v
			}
			out.SetAt(i, j, fn(buf))
		}
	}
	return out
}

// Slice returns the rows whose date falls in [from, to]. A zero bound is open.
func (t *Table) Slice(from, to Date) *Table {
	keep := make([]Date, 0, len(t.index))
	for _, d := range t.index {
		if !from.IsZero() && d.Before(from) {
			continue
		}
		if !to.IsZero() && d.After(to) {
			continue
		}
		keep = append(keep, d)
	}
	return t.reindexExact(keep)
}

// Tail returns the last n rows.
func (t *Table) Tail(n int) *Table {
	if n >= len(t.index) {
		return t.Clone()
	}
	if n < 0 {
		n = 0
	}
	return t.reindexExact(t.index[len(t.index)-n:])
}

// DropNaNColumns removes every column holding at least one missing value.
func (t *Table) DropNaNColumns() *Table {
	keep := make([]string, 0, len(t.columns))
	for j, c := range t.columns {
		ok := true
		for i := range t.index {
			if math.IsNaN(t.At(i, j)) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, c)
		}
	}
	return t.ReindexColumns(keep)
}

// DropNaNRows removes every row holding at least one missing value.
func (t *Table) DropNaNRows() *Table {
	keep := make([]Date, 0, len(t.index))
	for i, d := range t.index {
		ok := true
		for j := range t.columns {
			if math.IsNaN(t.At(i, j)) {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, d)
		}
	}
	return t.reindexExact(keep)
}

// Map returns a copy with fn applied to every present value.
func (t *Table) Map(fn func(float64) float64) *Table {
	out := t.Clone()
	for k, v := range out.data {
		if !math.IsNaN(v) {
			out.data[k] = fn(v)
		}
	}
	return out
}
