package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/internal/services/analytics"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/google/uuid"
)

// SimulationOutcome is the result of one PortfolioSimulation run.
type SimulationOutcome struct {
	Snapshot *models.PortfolioSnapshot
	Created  bool
	Result   *analytics.SimulationResult
}

// PortfolioSimulation replays the configured model over recent prices and
// stores the latest allocation.
type PortfolioSimulation struct {
	prices     drepo.PriceRepository
	portfolios drepo.PortfolioRepository
	universes  drepo.UniverseRepository
	pub        drepo.EventPublisher
	metrics    drepo.Metrics
	log        *logger.Logger

	cfg       config.PortfolioConfig
	analytics config.AnalyticsConfig
	now       func() time.Time
}

func NewPortfolioSimulation(
	prices drepo.PriceRepository,
	portfolios drepo.PortfolioRepository,
	universes drepo.UniverseRepository,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg config.PortfolioConfig,
	acfg config.AnalyticsConfig,
	lgr *logger.Logger,
) *PortfolioSimulation {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &PortfolioSimulation{
		prices:     prices,
		portfolios: portfolios,
		universes:  universes,
		pub:        pub,
		metrics:    metrics,
		log:        lgr.With(logger.String("component", "portfolio")),
		cfg:        cfg,
		analytics:  acfg,
		now:        time.Now,
	}
}

func (s *PortfolioSimulation) WithClock(now func() time.Time) *PortfolioSimulation {
	s.now = now
	return s
}

// Run simulates over symbols, or over the configured universe when symbols is empty.
func (s *PortfolioSimulation) Run(ctx context.Context, symbols []string) (*SimulationOutcome, error) {
	start := time.Now()
	kind, err := models.ParseModelKind(s.cfg.Model)
	if err != nil {
		return nil, err
	}
	symbols, err = s.symbols(ctx, symbols)
	if err != nil {
		return nil, err
	}

	today := timeseries.DateOf(s.now())
	from := today.Add(-(365*s.cfg.Years + s.cfg.LookbackDays))
	panel, dropped, err := alignedPanel(ctx, s.prices, symbols, from, today)
	if err != nil {
		s.metrics.RecordError("portfolio")
		return nil, err
	}
	if len(dropped) > 0 {
		s.log.Warn("symbols without full price history left out of simulation",
			logger.Strings("symbols", dropped),
			logger.String("from", from.String()))
	}

	alloc, err := newAllocator(kind, s.analytics)
	if err != nil {
		return nil, err
	}
	res, err := analytics.NewSimulator(alloc, analytics.RebalanceConfig{
		LookbackDays: s.cfg.LookbackDays,
		MinDays:      s.cfg.MinDays,
	}).Run(panel)
	if err != nil {
		s.metrics.RecordError("portfolio")
		return nil, fmt.Errorf("simulate %s: %w", kind, err)
	}
	latest := res.Latest()
	out := &SimulationOutcome{Result: res}

	exists, err := s.portfolios.PortfolioExists(ctx, latest.Date)
	if err != nil {
		return nil, fmt.Errorf("portfolio exists: %w", err)
	}
	if exists {
		s.log.Info("portfolio already stored", logger.Stringer("base_date", latest.Date))
		return out, nil
	}

	weights := analytics.RoundWeights(latest.Weights, 3).SortedDesc()
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	snap := &models.PortfolioSnapshot{
		ID:          uuid.New(),
		BaseDate:    latest.Date,
		Model:       kind,
		Weights:     weights,
		Description: describe(res, panel.Columns()),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.portfolios.InsertPortfolio(ctx, snap); err != nil {
		s.metrics.RecordError("portfolio")
		return nil, fmt.Errorf("insert portfolio: %w", err)
	}
	out.Snapshot = snap
	out.Created = true

	s.metrics.RecordRecords(string(models.RecordPortfolio), 1)
	s.metrics.RecordLatency("portfolio", time.Since(start).Seconds())
	if s.pub != nil {
		if err := s.pub.PublishRecords(ctx, models.RecordEvent{
			Kind: models.RecordPortfolio,
			From: res.From,
			To:   latest.Date,
			Rows: 1,
		}); err != nil {
			s.log.Warn("publish portfolio event failed", logger.Error(err))
		}
	}
	s.log.Info("portfolio stored",
		logger.Stringer("base_date", snap.BaseDate),
		logger.String("model", string(kind)),
		logger.Int("rebalances", len(res.History)),
		logger.Float64("cumulative_return", res.CumulativeReturn),
		logger.Float64("volatility", res.Volatility))
	return out, nil
}

func (s *PortfolioSimulation) symbols(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 {
		return requested, nil
	}
	if len(s.cfg.Symbols) > 0 {
		return s.cfg.Symbols, nil
	}
	if s.cfg.Universe == "" {
		return nil, &models.EmptySeriesError{What: "portfolio symbols"}
	}
	u, err := resolveUniverse(ctx, s.universes, s.cfg.Universe)
	if err != nil {
		return nil, err
	}
	return u.Symbols, nil
}

func describe(res *analytics.SimulationResult, symbols []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulation Period: %s~%s\n", res.From, res.To)
	fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(symbols, ", "))
	fmt.Fprintf(&b, "Cumulative Return: %.3f\n", res.CumulativeReturn)
	fmt.Fprintf(&b, "Volatility: %.3f", res.Volatility)
	return b.String()
}
