package timeseries

import "sort"

// Cell is one long-format observation.
type Cell struct {
	Date   Date
	Column string
	Value  float64
}

// Pivot reshapes long-format cells into a table, summing duplicate
// (date, column) pairs. Index and columns come out sorted; combinations
// without any cell are missing.
func Pivot(cells []Cell) *Table {
	dates := make([]Date, 0, len(cells))
	seen := make(map[string]struct{})
	cols := make([]string, 0)
	for _, c := range cells {
		dates = append(dates, c.Date)
		if _, ok := seen[c.Column]; !ok {
			seen[c.Column] = struct{}{}
			cols = append(cols, c.Column)
		}
	}
	sort.Strings(cols)
	t := New(dates, cols)
	for _, c := range cells {
		i, _ := t.Locate(c.Date)
		j := t.colPos[c.Column]
		cur := t.At(i, j)
		if cur != cur { // NaN
			cur = 0
		}
		t.SetAt(i, j, cur+c.Value)
	}
	return t
}
