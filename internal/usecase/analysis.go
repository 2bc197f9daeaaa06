package usecase

import (
	"context"
	"fmt"
	"sort"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/internal/services/analytics"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// Window is a resolved, closed date range.
type Window struct {
	From timeseries.Date
	To   timeseries.Date
}

// UniverseAllocation is an HRP run over a named universe.
type UniverseAllocation struct {
	Name     string                        `json:"name"`
	BaseDate timeseries.Date               `json:"base_date"`
	Weights  models.Weights                `json:"weights"`
	Order    []string                      `json:"order"`
	Distance map[string][]models.PairValue `json:"distance"`
}

// CorrelationView is a correlation matrix with its distance companion.
type CorrelationView struct {
	BaseDate    timeseries.Date               `json:"base_date"`
	Symbols     []string                      `json:"symbols"`
	Correlation map[string][]models.PairValue `json:"correlation"`
	Distance    map[string][]models.PairValue `json:"distance"`
}

// ModelRun is the rounded allocation of one model call.
type ModelRun struct {
	Model    models.ModelKind `json:"model"`
	Weights  models.Weights   `json:"weights"`
	BaseDate timeseries.Date  `json:"base_date"`
}

// Analysis serves the read-only analysis queries.
type Analysis struct {
	prices     drepo.PriceRepository
	universes  drepo.UniverseRepository
	portfolios drepo.PortfolioRepository
	log        *logger.Logger
	cfg        config.AnalyticsConfig
}

func NewAnalysis(
	prices drepo.PriceRepository,
	universes drepo.UniverseRepository,
	portfolios drepo.PortfolioRepository,
	cfg config.AnalyticsConfig,
	lgr *logger.Logger,
) *Analysis {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Analysis{
		prices:     prices,
		universes:  universes,
		portfolios: portfolios,
		log:        lgr.With(logger.String("component", "analysis")),
		cfg:        cfg,
	}
}

// UniverseHRP clusters a named universe and bisects on its correlation
// matrix. Weights are percentages rounded to 3 decimals.
func (a *Analysis) UniverseHRP(ctx context.Context, name string, w Window) (*UniverseAllocation, error) {
	u, err := resolveUniverse(ctx, a.universes, name)
	if err != nil {
		return nil, err
	}
	panel, err := loadPanel(ctx, a.prices, u.Symbols, w.From, w.To)
	if err != nil {
		return nil, err
	}
	panel = panel.Select(observed(panel, a.cfg.MinPeriods)...)
	base, ok := panel.LastDate()
	if !ok || panel.Width() < 2 {
		return nil, &models.EmptySeriesError{What: "universe " + name}
	}

	corr, err := analytics.Correlate(panel, corrConfig(a.cfg))
	if err != nil {
		return nil, err
	}
	alloc, err := newAllocator(models.ModelHRP, a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := alloc.Solve(corr, corr, nil)
	if err != nil {
		return nil, err
	}
	a.log.Debug("universe clustered", logger.String("universe", u.Name), logger.Strings("order", res.Order))
	return &UniverseAllocation{
		Name:     u.Name,
		BaseDate: base,
		Weights:  analytics.PercentWeights(res.Weights, 3),
		Order:    res.Order,
		Distance: res.Distance.Rows(),
	}, nil
}

// Correlation returns the correlation and distance matrices of the symbols.
func (a *Analysis) Correlation(ctx context.Context, req *models.CorrelationRequest, w Window) (*CorrelationView, error) {
	panel, err := loadPanel(ctx, a.prices, req.Symbols, w.From, w.To)
	if err != nil {
		return nil, err
	}
	panel = panel.Select(observed(panel, 1)...)
	base, ok := panel.LastDate()
	if !ok || panel.Width() == 0 {
		return nil, &models.EmptySeriesError{What: "correlation"}
	}
	corr, err := analytics.Correlate(panel, analytics.CorrConfig{
		Method:     analytics.CorrMethod(req.Method),
		Periods:    req.Periods,
		MinPeriods: req.MinPeriods,
	})
	if err != nil {
		return nil, err
	}
	if corr.HasNaN() {
		return nil, &models.EmptySeriesError{What: "correlation"}
	}
	return &CorrelationView{
		BaseDate:    base,
		Symbols:     corr.Labels,
		Correlation: roundRows(corr.Rows()),
		Distance:    roundRows(analytics.Distance(corr).Rows()),
	}, nil
}

// RunModel allocates over the aligned price panel of the symbols.
func (a *Analysis) RunModel(ctx context.Context, req *models.RunModelRequest, w Window) (*ModelRun, error) {
	kind, err := models.ParseModelKind(req.Model)
	if err != nil {
		return nil, err
	}
	panel, dropped, err := alignedPanel(ctx, a.prices, req.Symbols, w.From, w.To)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		a.log.Info("symbols without full price history left out",
			logger.String("model", string(kind)), logger.Strings("symbols", dropped))
	}
	alloc, err := newAllocator(kind, a.cfg)
	if err != nil {
		return nil, err
	}
	res, err := alloc.Allocate(panel.PctChange(1))
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", kind, err)
	}
	base, _ := panel.LastDate()
	return &ModelRun{Model: kind, Weights: analytics.RoundWeights(res.Weights, 3), BaseDate: base}, nil
}

// Backtest returns the daily return series of a fixed-weight portfolio.
func (a *Analysis) Backtest(ctx context.Context, req *models.BacktestRequest, w Window) ([]analytics.Point, error) {
	weights := models.Weights(req.Portfolio)
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	panel, err := loadPanel(ctx, a.prices, weights.Symbols(), w.From, w.To)
	if err != nil {
		return nil, err
	}
	return analytics.PortfolioReturns(panel, weights)
}

// Performance compares a fixed-weight portfolio with benchmarks.
func (a *Analysis) Performance(ctx context.Context, req *models.PerformanceRequest, w Window) ([]analytics.Metric, error) {
	weights := models.Weights(req.Portfolio)
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	symbols := weights.Symbols()
	for _, b := range req.BenchMarks {
		if !contains(symbols, b) {
			symbols = append(symbols, b)
		}
	}
	panel, err := loadPanel(ctx, a.prices, symbols, w.From, w.To)
	if err != nil {
		return nil, err
	}
	return analytics.Performance(panel, weights, req.BenchMarks, profileConfig(a.cfg))
}

// CalcShares converts target weights into share counts at the latest close.
func (a *Analysis) CalcShares(ctx context.Context, req *models.CalcSharesRequest) (map[string]float64, error) {
	symbols := make([]string, 0, len(req.Weights))
	for s := range req.Weights {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	bars, err := a.prices.LatestPrices(ctx, symbols)
	if err != nil {
		return nil, fmt.Errorf("latest prices: %w", err)
	}
	latest := make(map[string]float64, len(bars))
	for _, b := range bars {
		latest[b.Symbol] = b.Close
	}

	base := decimal.NewFromFloat(req.Base)
	out := make(map[string]float64, len(symbols))
	for _, s := range symbols {
		price, ok := latest[s]
		if !ok || price <= 0 {
			return nil, &models.DataNotReadyError{Resource: "price", Detail: s}
		}
		shares := base.Mul(decimal.NewFromFloat(req.Weights[s])).Div(decimal.NewFromFloat(price))
		out[s] = shares.Round(1).InexactFloat64()
	}
	return out, nil
}

// LatestPortfolio returns nil when no snapshot was stored yet.
func (a *Analysis) LatestPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	p, err := a.portfolios.LatestPortfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest portfolio: %w", err)
	}
	return p, nil
}

func roundRows(rows map[string][]models.PairValue) map[string][]models.PairValue {
	for k, v := range rows {
		rows[k] = roundPairs(v)
	}
	return rows
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
