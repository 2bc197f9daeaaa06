package usecase

import (
	"context"
	"fmt"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/internal/services/analytics"
	"Pasture/pkg/config"
	"Pasture/pkg/timeseries"
)

// loadPanel reads closing prices into a (date x symbol) table whose columns
// follow symbols. Rows keep gaps as missing.
func loadPanel(ctx context.Context, prices drepo.PriceRepository, symbols []string, from, to timeseries.Date) (*timeseries.Table, error) {
	bars, err := prices.ListPrices(ctx, symbols, from, to)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	cells := make([]timeseries.Cell, 0, len(bars))
	for _, b := range bars {
		cells = append(cells, timeseries.Cell{Date: b.BaseDate, Column: b.Symbol, Value: b.Close})
	}
	return timeseries.Pivot(cells).ReindexColumns(symbols), nil
}

// alignedPanel is loadPanel without the symbols that miss any date in the
// window. A late listing loses its column, not the other symbols' history.
// dropped lists the removed symbols.
func alignedPanel(ctx context.Context, prices drepo.PriceRepository, symbols []string, from, to timeseries.Date) (panel *timeseries.Table, dropped []string, err error) {
	panel, err = loadPanel(ctx, prices, symbols, from, to)
	if err != nil {
		return nil, nil, err
	}
	panel = panel.DropNaNColumns()
	for _, s := range symbols {
		if !panel.HasColumn(s) {
			dropped = append(dropped, s)
		}
	}
	if panel.Width() == 0 || panel.Len() < 2 {
		return nil, dropped, &models.EmptySeriesError{What: fmt.Sprintf("%v between %s and %s", symbols, from, to)}
	}
	return panel, dropped, nil
}

// observed lists the columns with at least minObs present values.
func observed(panel *timeseries.Table, minObs int) []string {
	var out []string
	for _, c := range panel.Columns() {
		n := 0
		for _, v := range panel.Column(c) {
			if v == v {
				n++
			}
		}
		if n >= minObs && n > 0 {
			out = append(out, c)
		}
	}
	return out
}

func newAllocator(kind models.ModelKind, cfg config.AnalyticsConfig) (*analytics.Allocator, error) {
	return analytics.NewAllocator(kind,
		analytics.WithLinkage(analytics.LinkageMethod(cfg.Linkage)),
		analytics.WithCorrMethod(analytics.CorrMethod(cfg.CorrMethod)),
		analytics.WithMinPeriods(cfg.MinPeriods),
		analytics.WithTemperature(cfg.Temperature),
		analytics.WithRiskFree(cfg.RiskFreeRate, float64(cfg.TradingDays)),
	)
}

func corrConfig(cfg config.AnalyticsConfig) analytics.CorrConfig {
	return analytics.CorrConfig{
		Method:     analytics.CorrMethod(cfg.CorrMethod),
		Periods:    cfg.CorrPeriods,
		MinPeriods: cfg.MinPeriods,
	}
}

func profileConfig(cfg config.AnalyticsConfig) analytics.ProfileConfig {
	return analytics.ProfileConfig{RiskFreeRate: cfg.RiskFreeRate, TradingDays: float64(cfg.TradingDays)}
}

// resolveUniverse returns the single universe named name.
func resolveUniverse(ctx context.Context, repo drepo.UniverseRepository, name string) (*models.AssetUniverse, error) {
	found, err := repo.FindUniverses(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("find universe: %w", err)
	}
	switch len(found) {
	case 0:
		return nil, &models.UniverseNotFoundError{Name: name}
	case 1:
		return &found[0], nil
	default:
		return nil, &models.UniverseAmbiguityError{Name: name, Matches: len(found)}
	}
}
