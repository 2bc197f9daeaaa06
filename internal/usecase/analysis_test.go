package usecase

import (
	"context"
	"errors"
	"testing"

	"Pasture/internal/domain/models"
	"Pasture/internal/repository"
	"Pasture/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnalysis(t *testing.T) (*Analysis, *repository.MemoryStore, Window) {
	t.Helper()
	store := repository.NewMemoryStore()
	today := d("2024-06-28")
	seedRandomPrices(store, symbolsN(4), today, 120, 3)
	store.AddUniverses(models.AssetUniverse{ID: uuid.New(), Name: "core", Symbols: symbolsN(4)})
	a := NewAnalysis(store, store, store, config.Default().Analytics, nil)
	return a, store, Window{From: today.Add(-119), To: today}
}

func TestUniverseHRP(t *testing.T) {
	a, _, w := newTestAnalysis(t)
	got, err := a.UniverseHRP(context.Background(), "core", w)
	require.NoError(t, err)
	assert.Equal(t, w.To, got.BaseDate)
	assert.Len(t, got.Weights, 4)
	assert.InDelta(t, 100.0, got.Weights.Sum(), 0.01)
	assert.Len(t, got.Order, 4)
	require.Len(t, got.Distance, 4)
	for _, sym := range got.Order {
		for _, p := range got.Distance[sym] {
			if p.Target == sym {
				assert.InDelta(t, 0.0, p.Value, 1e-12)
			}
		}
	}
}

func TestUniverseLookupErrors(t *testing.T) {
	a, store, w := newTestAnalysis(t)
	_, err := a.UniverseHRP(context.Background(), "nope", w)
	assert.True(t, errors.Is(err, models.ErrUniverseNotFound))

	store.AddUniverses(models.AssetUniverse{ID: uuid.New(), Name: "core", Symbols: []string{"S00"}})
	_, err = a.UniverseHRP(context.Background(), "core", w)
	var amb *models.UniverseAmbiguityError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, 2, amb.Matches)
}

func TestCorrelationView(t *testing.T) {
	a, _, w := newTestAnalysis(t)
	req := &models.CorrelationRequest{Symbols: []string{"S00", "S01"}, Periods: 5, MinPeriods: 20, Method: "pearson"}
	got, err := a.Correlation(context.Background(), req, w)
	require.NoError(t, err)
	assert.Equal(t, []string{"S00", "S01"}, got.Symbols)
	assert.Equal(t, 1.0, got.Correlation["S00"][0].Value)
	assert.Equal(t, 0.0, got.Distance["S01"][1].Value)
	assert.Equal(t, got.Correlation["S00"][1].Value, got.Correlation["S01"][0].Value)

	req.MinPeriods = 500
	_, err = a.Correlation(context.Background(), req, w)
	assert.True(t, errors.Is(err, models.ErrEmptySeries))

	req.Symbols = []string{"XXX", "YYY"}
	_, err = a.Correlation(context.Background(), req, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no time series for correlation")
}

func TestRunModel(t *testing.T) {
	a, _, w := newTestAnalysis(t)
	for _, model := range []string{"HRP", "AHRP", "SAHRP"} {
		got, err := a.RunModel(context.Background(), &models.RunModelRequest{Symbols: symbolsN(4), Model: model}, w)
		require.NoError(t, err, model)
		assert.Equal(t, models.ModelKind(model), got.Model)
		assert.Equal(t, w.To, got.BaseDate)
		assert.InDelta(t, 1.0, got.Weights.Sum(), 1e-9)
	}

	_, err := a.RunModel(context.Background(), &models.RunModelRequest{Symbols: []string{"XXX", "YYY"}, Model: "HRP"}, w)
	assert.True(t, errors.Is(err, models.ErrEmptySeries))
}

func TestBacktestAndPerformance(t *testing.T) {
	a, _, w := newTestAnalysis(t)
	portfolio := []models.WeightEntry{{Symbol: "S00", Weight: 0.6}, {Symbol: "S01", Weight: 0.4}}

	pts, err := a.Backtest(context.Background(), &models.BacktestRequest{Portfolio: portfolio}, w)
	require.NoError(t, err)
	assert.Len(t, pts, 119)

	metrics, err := a.Performance(context.Background(), &models.PerformanceRequest{Portfolio: portfolio, BenchMarks: []string{"S02", "S00"}}, w)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "portfolio", metrics[0].Name)
	assert.Equal(t, 1.0, metrics[1].Beta)

	_, err = a.Backtest(context.Background(), &models.BacktestRequest{Portfolio: portfolio[:1]}, w)
	assert.True(t, errors.Is(err, models.ErrInvalidWeights))
}

func TestCalcShares(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddPrices(
		models.PriceBar{Symbol: "AAA", BaseDate: d("2024-01-02"), Close: 10},
		models.PriceBar{Symbol: "AAA", BaseDate: d("2024-01-03"), Close: 30},
		models.PriceBar{Symbol: "BBB", BaseDate: d("2024-01-03"), Close: 200},
	)
	a := NewAnalysis(store, store, store, config.Default().Analytics, nil)

	got, err := a.CalcShares(context.Background(), &models.CalcSharesRequest{
		Weights: map[string]float64{"AAA": 0.5, "BBB": 0.5},
		Base:    1000,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAA": 16.7, "BBB": 2.5}, got)

	_, err = a.CalcShares(context.Background(), &models.CalcSharesRequest{Weights: map[string]float64{"ZZZ": 1}, Base: 1})
	assert.True(t, errors.Is(err, models.ErrDataNotReady))
}

func TestLatestPortfolioEmpty(t *testing.T) {
	a, _, _ := newTestAnalysis(t)
	p, err := a.LatestPortfolio(context.Background())
	require.NoError(t, err)
	assert.Nil(t, p)
}
