package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/internal/services/analytics"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// CorrelationSnapshotter stores the correlation and distance rows of every
// asset for a trailing period, replacing older snapshots of that period.
type CorrelationSnapshotter struct {
	prices       drepo.PriceRepository
	assets       drepo.AssetRepository
	correlations drepo.CorrelationRepository
	pub          drepo.EventPublisher
	metrics      drepo.Metrics
	log          *logger.Logger

	corr      analytics.CorrConfig
	period    models.Period
	assetType models.AssetType
	now       func() time.Time
}

func NewCorrelationSnapshotter(
	prices drepo.PriceRepository,
	assets drepo.AssetRepository,
	correlations drepo.CorrelationRepository,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg config.ProfileConfig,
	acfg config.AnalyticsConfig,
	lgr *logger.Logger,
) *CorrelationSnapshotter {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &CorrelationSnapshotter{
		prices:       prices,
		assets:       assets,
		correlations: correlations,
		pub:          pub,
		metrics:      metrics,
		log:          lgr.With(logger.String("component", "correlation")),
		corr:         corrConfig(acfg),
		period:       models.Period(cfg.CorrelationPeriod),
		assetType:    models.AssetType(cfg.AssetType),
		now:          time.Now,
	}
}

func (j *CorrelationSnapshotter) WithClock(now func() time.Time) *CorrelationSnapshotter {
	j.now = now
	return j
}

// Run snapshots period, or the configured period when empty.
func (j *CorrelationSnapshotter) Run(ctx context.Context, period models.Period) (*PeriodResult, error) {
	if period == "" {
		period = j.period
	}
	res := &PeriodResult{Period: period}
	today := timeseries.DateOf(j.now())
	from, err := period.From(today)
	if err != nil {
		return nil, err
	}

	assets, err := j.assets.ListAssets(ctx, j.assetType)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}
	panel, err := loadPanel(ctx, j.prices, symbols, from, today)
	if err != nil {
		return nil, err
	}
	panel = panel.Select(observed(panel, j.corr.MinPeriods)...)
	base, ok := panel.LastDate()
	if !ok || panel.Width() < 2 {
		j.log.Warn("not enough series to correlate", logger.String("period", string(period)), logger.Int("symbols", panel.Width()))
		res.Skipped = true
		return res, nil
	}
	res.BaseDate = base

	exists, err := j.correlations.CorrelationExists(ctx, base, period)
	if err != nil {
		return nil, fmt.Errorf("correlation exists: %w", err)
	}
	if exists {
		res.Skipped = true
		return res, nil
	}

	corr, err := analytics.Correlate(panel, j.corr)
	if err != nil {
		j.metrics.RecordError("correlation")
		return nil, err
	}
	dist := analytics.Distance(corr)
	corrRows, distRows := corr.Rows(), dist.Rows()
	rows := make([]models.AssetCorrelationSnapshot, 0, corr.Size())
	for _, sym := range corr.Labels {
		rows = append(rows, models.AssetCorrelationSnapshot{
			BaseDate:    base,
			Period:      period,
			Symbol:      sym,
			Correlation: roundPairs(corrRows[sym]),
			Distance:    roundPairs(distRows[sym]),
		})
	}

	if err := j.correlations.InsertCorrelations(ctx, rows); err != nil {
		j.metrics.RecordError("correlation")
		return nil, fmt.Errorf("insert correlations: %w", err)
	}
	res.Inserted = len(rows)
	if res.Deleted, err = j.correlations.DeleteCorrelationsExcept(ctx, period, base); err != nil {
		return nil, fmt.Errorf("delete stale correlations: %w", err)
	}

	j.metrics.RecordRecords(string(models.RecordCorrelation), len(rows))
	if j.pub != nil {
		if err := j.pub.PublishRecords(ctx, models.RecordEvent{
			Kind: models.RecordCorrelation, From: from, To: base, Rows: res.Inserted, Deleted: res.Deleted,
		}); err != nil {
			j.log.Warn("publish correlation event failed", logger.Error(err))
		}
	}
	j.log.Info("correlation snapshot stored",
		logger.String("period", string(period)),
		logger.Stringer("base_date", base),
		logger.Int("rows", res.Inserted),
		logger.Int("deleted", res.Deleted))
	return res, nil
}

// roundPairs rounds to 3 decimals; pairs without enough overlap stay NaN.
func roundPairs(in []models.PairValue) []models.PairValue {
	out := make([]models.PairValue, len(in))
	for i, p := range in {
		out[i] = p
		if !math.IsNaN(p.Value) {
			out[i].Value = decimal.NewFromFloat(p.Value).Round(3).InexactFloat64()
		}
	}
	return out
}
