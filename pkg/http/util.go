package http

import (
	"Pasture/pkg/timeseries"
)

// ResolveWindow fills an open date range. A zero to becomes today and a zero
// from becomes to minus defaultDays. The second result is false when the
// range is inverted.
func ResolveWindow(from, to, today timeseries.Date, defaultDays int) (timeseries.Date, timeseries.Date, bool) {
	if to.IsZero() {
		to = today
	}
	if from.IsZero() {
		from = to.Add(-defaultDays)
	}
	return from, to, !from.After(to)
}
