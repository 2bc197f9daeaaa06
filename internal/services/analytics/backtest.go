package analytics

import (
	"math"

	"Pasture/internal/domain/models"
	"Pasture/internal/services/features"
	"Pasture/pkg/timeseries"
)

// Point is one (date, value) sample of a chart series.
type Point struct {
	X timeseries.Date `json:"x"`
	Y float64         `json:"y"`
}

// PortfolioReturns computes the daily return Σ w_i r_i of a fixed-weight
// portfolio over the rows where every member has a price.
func PortfolioReturns(prices *timeseries.Table, w models.Weights) ([]Point, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	panel := prices.Select(w.Symbols()...).DropNaNRows()
	if panel.Len() < 2 {
		return nil, &models.EmptySeriesError{What: "backtest"}
	}
	return weightedReturns(panel.PctChange(1), w), nil
}

func weightedReturns(returns *timeseries.Table, w models.Weights) []Point {
	pos := make([]int, len(w))
	for k, e := range w {
		pos[k], _ = returns.ColumnPos(e.Symbol)
	}
	out := make([]Point, 0, returns.Len()-1)
	for i := 1; i < returns.Len(); i++ {
		r := 0.0
		for k, e := range w {
			v := returns.At(i, pos[k])
			if math.IsNaN(v) {
				v = 0
			}
			r += e.Weight * v
		}
		out = append(out, Point{X: returns.DateAt(i), Y: r})
	}
	return out
}

// Metric is the performance summary of one series.
type Metric struct {
	Name              string  `json:"name"`
	MonthlyVolatility float64 `json:"monthly_volatility"`
	Sharpe            float64 `json:"sharpe_ratio"`
	Beta              float64 `json:"beta"`
	TotalReturn       float64 `json:"total_returns"`
	CumulativeReturn  float64 `json:"cumulative_returns"`
}

// PortfolioName labels the portfolio row of a performance report.
const PortfolioName = "portfolio"

// Performance compares a fixed-weight portfolio with benchmarks. Beta is
// measured against the first benchmark. Values are rounded to 3 decimals.
func Performance(prices *timeseries.Table, w models.Weights, benchmarks []string, cfg ProfileConfig) ([]Metric, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = 252
	}
	cols := w.Symbols()
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	for _, b := range benchmarks {
		if !seen[b] {
			cols = append(cols, b)
			seen[b] = true
		}
	}
	panel := prices.Select(cols...).DropNaNRows()
	if panel.Len() < 2 {
		return nil, &models.EmptySeriesError{What: "backtest"}
	}
	returns := panel.PctChange(1)

	series := make([][]float64, 0, 1+len(benchmarks))
	names := make([]string, 0, 1+len(benchmarks))
	port := weightedReturns(returns, w)
	pr := make([]float64, len(port))
	for i, p := range port {
		pr[i] = p.Y
	}
	series = append(series, pr)
	names = append(names, PortfolioName)
	for _, b := range benchmarks {
		series = append(series, returns.Column(b)[1:])
		names = append(names, b)
	}

	var bench []float64
	if len(benchmarks) > 0 {
		bench = series[1]
	}
	out := make([]Metric, len(series))
	for k, r := range series {
		sd := features.StdDev(r)
		sharpe := 0.0
		if sd > 0 {
			sharpe = (features.Mean(r)*cfg.TradingDays - cfg.RiskFreeRate) / (sd * math.Sqrt(cfg.TradingDays))
		}
		logSum := 0.0
		for _, v := range r {
			logSum += math.Log1p(v)
		}
		out[k] = Metric{
			Name:              names[k],
			MonthlyVolatility: round3(sd * math.Sqrt(tradingDaysPerMonth)),
			Sharpe:            round3(sharpe),
			Beta:              round3(features.Beta(r, bench)),
			TotalReturn:       round3(features.CompoundLog(r)),
			CumulativeReturn:  round3(logSum),
		}
	}
	return out, nil
}
