package analytics

import (
	"fmt"
	"math"
	"sort"

	"Pasture/internal/domain/models"
	"Pasture/pkg/timeseries"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CorrMethod selects the correlation coefficient.
type CorrMethod string

const (
	Pearson  CorrMethod = "pearson"
	Spearman CorrMethod = "spearman"
)

// CorrConfig controls how a price panel is turned into a correlation matrix.
type CorrConfig struct {
	Method     CorrMethod
	Periods    int // pct-change horizon in rows
	MinPeriods int // minimum overlapping observations per pair
}

// DefaultCorrConfig uses 5-row pearson returns with 20 overlapping observations.
func DefaultCorrConfig() CorrConfig {
	return CorrConfig{Method: Pearson, Periods: 5, MinPeriods: 20}
}

// Correlate computes the correlation of percentage changes of a price panel.
func Correlate(prices *timeseries.Table, cfg CorrConfig) (*Matrix, error) {
	if prices == nil || prices.Empty() {
		return nil, &models.EmptySeriesError{What: "correlation"}
	}
	if cfg.Periods < 1 {
		cfg.Periods = 1
	}
	return CorrelationMatrix(prices.PctChange(cfg.Periods), cfg.Method, cfg.MinPeriods)
}

// CorrelationMatrix computes pairwise-complete correlations between the columns of returns.
// Pairs with fewer than minPeriods overlapping observations are NaN.
func CorrelationMatrix(returns *timeseries.Table, method CorrMethod, minPeriods int) (*Matrix, error) {
	if returns == nil || returns.Empty() {
		return nil, &models.EmptySeriesError{What: "correlation"}
	}
	if minPeriods < 2 {
		minPeriods = 2
	}
	switch method {
	case "", Pearson, Spearman:
	default:
		return nil, fmt.Errorf("unknown correlation method %q", method)
	}
	cols := returns.Columns()
	data := make([][]float64, len(cols))
	for j, c := range cols {
		data[j] = returns.Column(c)
	}
	m := NewMatrix(cols)
	for i := range cols {
		for j := i; j < len(cols); j++ {
			x, y := pairwise(data[i], data[j])
			v := math.NaN()
			if len(x) >= minPeriods {
				if method == Spearman {
					x, y = rank(x), rank(y)
				}
				v = pearson(x, y)
			}
			m.Values[i][j] = v
			m.Values[j][i] = v
		}
	}
	return m, nil
}

// Covariance is the sample covariance of the columns over rows where all are present.
func Covariance(returns *timeseries.Table) (*Matrix, error) {
	if returns == nil {
		return nil, &models.EmptySeriesError{What: "covariance"}
	}
	clean := returns.DropNaNRows()
	if clean.Len() < 2 || clean.Width() == 0 {
		return nil, &models.EmptySeriesError{What: "covariance"}
	}
	obs := mat.NewDense(clean.Len(), clean.Width(), nil)
	for i := 0; i < clean.Len(); i++ {
		obs.SetRow(i, clean.Row(i))
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, obs, nil)

	m := NewMatrix(clean.Columns())
	for i := range m.Labels {
		for j := range m.Labels {
			m.Values[i][j] = cov.At(i, j)
		}
	}
	return m, nil
}

// Distance maps correlation to sqrt(0.5*(1-corr)). The result is symmetric,
// in [0, 1] and zero on the diagonal.
func Distance(corr *Matrix) *Matrix {
	out := NewMatrix(corr.Labels)
	for i := range corr.Labels {
		for j := range corr.Labels {
			if i == j {
				continue
			}
			c := corr.Values[i][j]
			if math.IsNaN(c) {
				out.Values[i][j] = math.NaN()
				continue
			}
			c = math.Max(-1, math.Min(1, c))
			out.Values[i][j] = math.Sqrt(0.5 * (1 - c))
		}
	}
	return out
}

func pairwise(a, b []float64) ([]float64, []float64) {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for k := range a {
		if math.IsNaN(a[k]) || math.IsNaN(b[k]) {
			continue
		}
		x = append(x, a[k])
		y = append(y, b[k])
	}
	return x, y
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

// pearson is NaN when either side is constant.
func pearson(x, y []float64) float64 {
	if stat.Variance(x, nil) == 0 || stat.Variance(y, nil) == 0 {
		return math.NaN()
	}
	return math.Max(-1, math.Min(1, stat.Correlation(x, y, nil)))
}

// rank assigns 1-based ranks, averaging ties.
func rank(xs []float64) []float64 {
	idx := make([]int, len(xs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return xs[idx[a]] < xs[idx[b]] })
	out := make([]float64, len(xs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && xs[idx[j+1]] == xs[idx[i]] {
			j++
		}
		r := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			out[idx[k]] = r
		}
		i = j + 1
	}
	return out
}
