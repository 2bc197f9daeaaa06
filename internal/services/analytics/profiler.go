package analytics

import (
	"math"

	"Pasture/internal/domain/models"
	"Pasture/internal/services/features"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// ProfileConfig holds the annualization constants.
type ProfileConfig struct {
	RiskFreeRate float64
	TradingDays  float64
}

func DefaultProfileConfig() ProfileConfig {
	return ProfileConfig{TradingDays: 252}
}

const tradingDaysPerMonth = 21

// Profiler summarizes return and risk per symbol of a price panel.
type Profiler struct {
	cfg ProfileConfig
}

func NewProfiler(cfg ProfileConfig) *Profiler {
	if cfg.TradingDays <= 0 {
		cfg.TradingDays = 252
	}
	return &Profiler{cfg: cfg}
}

// Profile computes one AssetProfile per column. Columns with fewer than two
// prices are skipped.
func (p *Profiler) Profile(prices *timeseries.Table, period models.Period) []models.AssetProfile {
	base, ok := prices.LastDate()
	if !ok {
		return nil
	}
	out := make([]models.AssetProfile, 0, prices.Width())
	for _, sym := range prices.Columns() {
		col := prices.Column(sym)
		var first, last timeseries.Date
		closes := make([]float64, 0, len(col))
		for i, v := range col {
			if math.IsNaN(v) {
				continue
			}
			if len(closes) == 0 {
				first = prices.DateAt(i)
			}
			last = prices.DateAt(i)
			closes = append(closes, v)
		}
		if len(closes) < 2 {
			continue
		}
		prof := p.series(closes, last.Sub(first))
		prof.BaseDate = base
		prof.Period = period
		prof.Symbol = sym
		out = append(out, prof)
	}
	return out
}

func (p *Profiler) series(closes []float64, days int) models.AssetProfile {
	rets := features.SimpleReturns(closes)
	total := 0.0
	if closes[0] != 0 {
		total = closes[len(closes)-1]/closes[0] - 1
	}
	cagr := 0.0
	if days > 0 && total > -1 {
		cagr = math.Pow(1+total, 365/float64(days)) - 1
	}
	sd := features.StdDev(rets)
	vol := sd * math.Sqrt(p.cfg.TradingDays)
	sharpe := 0.0
	if vol > 0 {
		sharpe = (features.Mean(rets)*p.cfg.TradingDays - p.cfg.RiskFreeRate) / vol
	}
	return models.AssetProfile{
		TotalReturn:       round3(total),
		CAGR:              round3(cagr),
		Volatility:        round3(vol),
		MonthlyVolatility: round3(sd * math.Sqrt(tradingDaysPerMonth)),
		Sharpe:            round3(sharpe),
		MaxDrawdown:       round3(features.MaxDrawdown(closes)),
	}
}

// round3 rounds to 3 decimals and maps NaN/Inf to 0.
func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}
