package usecase

import (
	"context"
	"fmt"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/internal/services/analytics"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"
)

// PeriodResult reports what a snapshot job did for one period.
type PeriodResult struct {
	Period   models.Period   `json:"period"`
	BaseDate timeseries.Date `json:"base_date"`
	Inserted int             `json:"inserted"`
	Deleted  int             `json:"deleted"`
	Skipped  bool            `json:"skipped"`
}

// AssetProfiler stores per-symbol return and risk profiles for trailing periods.
// A recompute replaces the period's rows from older dates.
type AssetProfiler struct {
	prices   drepo.PriceRepository
	assets   drepo.AssetRepository
	profiles drepo.ProfileRepository
	pub      drepo.EventPublisher
	metrics  drepo.Metrics
	log      *logger.Logger

	profiler  *analytics.Profiler
	periods   []models.Period
	assetType models.AssetType
	now       func() time.Time
}

func NewAssetProfiler(
	prices drepo.PriceRepository,
	assets drepo.AssetRepository,
	profiles drepo.ProfileRepository,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg config.ProfileConfig,
	acfg config.AnalyticsConfig,
	lgr *logger.Logger,
) *AssetProfiler {
	if lgr == nil {
		lgr = logger.Nop()
	}
	periods := make([]models.Period, 0, len(cfg.Periods))
	for _, p := range cfg.Periods {
		periods = append(periods, models.Period(p))
	}
	return &AssetProfiler{
		prices:    prices,
		assets:    assets,
		profiles:  profiles,
		pub:       pub,
		metrics:   metrics,
		log:       lgr.With(logger.String("component", "profile")),
		profiler:  analytics.NewProfiler(profileConfig(acfg)),
		periods:   periods,
		assetType: models.AssetType(cfg.AssetType),
		now:       time.Now,
	}
}

func (j *AssetProfiler) WithClock(now func() time.Time) *AssetProfiler {
	j.now = now
	return j
}

// Run profiles the given periods, or every configured period when none are given.
func (j *AssetProfiler) Run(ctx context.Context, periods ...models.Period) ([]PeriodResult, error) {
	if len(periods) == 0 {
		periods = j.periods
	}
	assets, err := j.assets.ListAssets(ctx, j.assetType)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	symbols := make([]string, len(assets))
	for i, a := range assets {
		symbols[i] = a.Symbol
	}
	if len(symbols) == 0 {
		j.log.Warn("no assets to profile", logger.String("asset_type", string(j.assetType)))
		return nil, nil
	}

	today := timeseries.DateOf(j.now())
	out := make([]PeriodResult, 0, len(periods))
	for _, period := range periods {
		res, err := j.runPeriod(ctx, symbols, period, today)
		if err != nil {
			j.metrics.RecordError("profile")
			return out, fmt.Errorf("profile %s: %w", period, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (j *AssetProfiler) runPeriod(ctx context.Context, symbols []string, period models.Period, today timeseries.Date) (PeriodResult, error) {
	res := PeriodResult{Period: period}
	from, err := period.From(today)
	if err != nil {
		return res, err
	}
	panel, err := loadPanel(ctx, j.prices, symbols, from, today)
	if err != nil {
		return res, err
	}
	base, ok := panel.LastDate()
	if !ok {
		j.log.Warn("no prices for period", logger.String("period", string(period)))
		res.Skipped = true
		return res, nil
	}
	res.BaseDate = base

	exists, err := j.profiles.ProfileExists(ctx, base, period)
	if err != nil {
		return res, fmt.Errorf("profile exists: %w", err)
	}
	if exists {
		res.Skipped = true
		return res, nil
	}

	rows := j.profiler.Profile(panel, period)
	if len(rows) == 0 {
		res.Skipped = true
		return res, nil
	}
	if err := j.profiles.InsertProfiles(ctx, rows); err != nil {
		return res, fmt.Errorf("insert profiles: %w", err)
	}
	res.Inserted = len(rows)
	if res.Deleted, err = j.profiles.DeleteProfilesExcept(ctx, period, base); err != nil {
		return res, fmt.Errorf("delete stale profiles: %w", err)
	}

	j.metrics.RecordRecords(string(models.RecordProfile), len(rows))
	if j.pub != nil {
		if err := j.pub.PublishRecords(ctx, models.RecordEvent{
			Kind: models.RecordProfile, From: from, To: base, Rows: res.Inserted, Deleted: res.Deleted,
		}); err != nil {
			j.log.Warn("publish profile event failed", logger.Error(err))
		}
	}
	j.log.Info("asset profiles stored",
		logger.String("period", string(period)),
		logger.Stringer("base_date", base),
		logger.Int("rows", res.Inserted),
		logger.Int("deleted", res.Deleted))
	return res, nil
}
