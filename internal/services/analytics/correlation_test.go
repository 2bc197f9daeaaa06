package analytics

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"Pasture/internal/domain/models"
	"Pasture/pkg/timeseries"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticPanel builds n rows of prices for k symbols driven by one market
// factor plus idiosyncratic noise of increasing size.
func syntheticPanel(t *testing.T, n, k int, seed int64) *timeseries.Table {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	start := timeseries.NewDate(2023, 1, 2)
	index := make([]timeseries.Date, n)
	for i := range index {
		index[i] = start.Add(i)
	}
	cols := make(map[string][]float64, k)
	for j := 0; j < k; j++ {
		cols[fmt.Sprintf("S%02d", j)] = make([]float64, n)
	}
	prev := make([]float64, k)
	for j := range prev {
		prev[j] = 100
	}
	for i := 0; i < n; i++ {
		m := rng.NormFloat64() * 0.01
		for j := 0; j < k; j++ {
			if i > 0 {
				beta := 0.5 + float64(j%3)*0.4
				r := beta*m + rng.NormFloat64()*0.004*float64(j+1)
				prev[j] *= 1 + r
			}
			cols[fmt.Sprintf("S%02d", j)][i] = prev[j]
		}
	}
	tbl, err := timeseries.FromColumns(index, cols)
	require.NoError(t, err)
	return tbl
}

func TestDistanceProperties(t *testing.T) {
	corr := NewMatrix([]string{"A", "B", "C"})
	corr.Values = [][]float64{
		{1, 1, -1},
		{1, 1, 0.3},
		{-1, 0.3, 1},
	}
	d := Distance(corr)
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.0, d.At(i, i))
		for j := 0; j < 3; j++ {
			assert.Equal(t, d.At(i, j), d.At(j, i))
			assert.GreaterOrEqual(t, d.At(i, j), 0.0)
			assert.LessOrEqual(t, d.At(i, j), 1.0)
		}
	}
	assert.InDelta(t, 0.0, d.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, d.At(0, 2), 1e-12)
	assert.InDelta(t, math.Sqrt(0.35), d.At(1, 2), 1e-12)
}

func TestCorrelationMatrixPearson(t *testing.T) {
	index := timeseries.DateRange(timeseries.NewDate(2024, 1, 1), timeseries.NewDate(2024, 1, 30))
	x := make([]float64, len(index))
	y := make([]float64, len(index))
	z := make([]float64, len(index))
	for i := range index {
		x[i] = math.Sin(float64(i))
		y[i] = 2*x[i] + 1
		z[i] = -x[i]
	}
	returns, err := timeseries.FromColumns(index, map[string][]float64{"X": x, "Y": y, "Z": z})
	require.NoError(t, err)

	corr, err := CorrelationMatrix(returns, Pearson, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y", "Z"}, corr.Labels)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-9)
	assert.InDelta(t, -1.0, corr.At(0, 2), 1e-9)
	assert.InDelta(t, 1.0, corr.At(2, 2), 1e-9)

	sparse, err := CorrelationMatrix(returns, Pearson, 31)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(sparse.At(0, 1)))
}

func TestCorrelationMatrixSpearman(t *testing.T) {
	index := timeseries.DateRange(timeseries.NewDate(2024, 1, 1), timeseries.NewDate(2024, 1, 5))
	returns, err := timeseries.FromColumns(index, map[string][]float64{
		"A": {1, 2, 3, 4, 5},
		"B": {1, 4, 9, 16, 100},
	})
	require.NoError(t, err)
	corr, err := CorrelationMatrix(returns, Spearman, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)

	_, err = CorrelationMatrix(returns, CorrMethod("kendall"), 2)
	assert.Error(t, err)
}

func TestCorrelateEmpty(t *testing.T) {
	_, err := Correlate(timeseries.New(nil, nil), DefaultCorrConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrEmptySeries))
}

func TestRank(t *testing.T) {
	assert.Equal(t, []float64{1, 2.5, 2.5, 4}, rank([]float64{1, 2, 2, 3}))
}

func TestCovariance(t *testing.T) {
	index := timeseries.DateRange(timeseries.NewDate(2024, 1, 1), timeseries.NewDate(2024, 1, 4))
	returns, err := timeseries.FromColumns(index, map[string][]float64{
		"A": {math.NaN(), 1, 2, 3},
		"B": {math.NaN(), 2, 4, 6},
	})
	require.NoError(t, err)
	cov, err := Covariance(returns)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, cov.At(0, 0), 1e-12)
	assert.InDelta(t, 2.0, cov.At(0, 1), 1e-12)
	assert.InDelta(t, 4.0, cov.At(1, 1), 1e-12)
}

func TestPearsonPairwiseComplete(t *testing.T) {
	index := timeseries.DateRange(timeseries.NewDate(2024, 1, 1), timeseries.NewDate(2024, 1, 6))
	returns, err := timeseries.FromColumns(index, map[string][]float64{
		"A": {1, 2, math.NaN(), 4, 5, 6},
		"B": {2, 4, 9, 8, 10, 12},
		"C": {3, 3, 3, 3, 3, 3},
	})
	require.NoError(t, err)
	corr, err := CorrelationMatrix(returns, Pearson, 2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, corr.At(0, 1), 1e-12)
	assert.True(t, math.IsNaN(corr.At(0, 2)))
	assert.True(t, math.IsNaN(corr.At(2, 2)))
	assert.True(t, math.IsNaN(mean(nil)))
}

func TestLinkage(t *testing.T) {
	dist := NewMatrix([]string{"A", "B", "C"})
	dist.Values = [][]float64{
		{0, 0.1, 0.5},
		{0.1, 0, 0.4},
		{0.5, 0.4, 0},
	}
	cases := map[LinkageMethod]float64{
		LinkageSingle:   0.4,
		LinkageAverage:  0.45,
		LinkageComplete: 0.5,
	}
	for method, want := range cases {
		merges, err := Linkage(dist, method)
		require.NoError(t, err, method)
		require.Len(t, merges, 2)
		assert.Equal(t, Merge{Left: 0, Right: 1, Distance: 0.1, Size: 2}, merges[0])
		assert.Equal(t, 2, merges[1].Left)
		assert.Equal(t, 3, merges[1].Right)
		assert.InDelta(t, want, merges[1].Distance, 1e-12)
		assert.Equal(t, []int{2, 0, 1}, QuasiDiagonal(merges, 3))
	}

	_, err := Linkage(dist, LinkageMethod("ward"))
	assert.Error(t, err)
}

func TestMatrixReorder(t *testing.T) {
	m := NewMatrix([]string{"A", "B"})
	m.Values = [][]float64{{1, 2}, {3, 4}}
	r := m.Reorder([]int{1, 0})
	assert.Equal(t, []string{"B", "A"}, r.Labels)
	assert.Equal(t, [][]float64{{4, 3}, {2, 1}}, r.Values)
	assert.Equal(t, 1, m.Index("B"))
	assert.Equal(t, -1, m.Index("Z"))
}
