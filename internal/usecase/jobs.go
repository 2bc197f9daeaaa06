package usecase

import (
	"context"
	"fmt"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/pkg/logger"
	"Pasture/pkg/queue"
)

// Job names, shared by the queue, the scheduler, the HTTP trigger and the CLI.
const (
	JobSettlement  = "settlement"
	JobHolding     = "holding"
	JobPortfolio   = "portfolio"
	JobProfile     = "profile"
	JobCorrelation = "correlation"
)

// JobNames lists every runnable job.
var JobNames = []string{JobSettlement, JobHolding, JobPortfolio, JobProfile, JobCorrelation}

// Jobs dispatches a named job to its use case.
type Jobs struct {
	batch        *AccountBatch
	settlement   *SettlementBuilder
	holding      *HoldingReconstructor
	portfolio    *PortfolioSimulation
	profiles     *AssetProfiler
	correlations *CorrelationSnapshotter
	metrics      drepo.Metrics
	log          *logger.Logger
}

func NewJobs(
	batch *AccountBatch,
	settlement *SettlementBuilder,
	holding *HoldingReconstructor,
	portfolio *PortfolioSimulation,
	profiles *AssetProfiler,
	correlations *CorrelationSnapshotter,
	metrics drepo.Metrics,
	lgr *logger.Logger,
) *Jobs {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Jobs{
		batch:        batch,
		settlement:   settlement,
		holding:      holding,
		portfolio:    portfolio,
		profiles:     profiles,
		correlations: correlations,
		metrics:      metrics,
		log:          lgr.With(logger.String("component", "jobs")),
	}
}

// Run executes one job synchronously and returns its report.
func (j *Jobs) Run(ctx context.Context, name string, p models.JobPayload) (interface{}, error) {
	var accounts []string
	if p.AccountID != "" {
		accounts = []string{p.AccountID}
	}
	switch name {
	case JobSettlement:
		return j.batch.Run(ctx, JobSettlement, j.settlement.Build, accounts...)
	case JobHolding:
		return j.batch.Run(ctx, JobHolding, j.holding.Build, accounts...)
	case JobPortfolio:
		return j.observe(name, func() (interface{}, error) { return j.portfolio.Run(ctx, p.Symbols) })
	case JobProfile:
		var periods []models.Period
		if p.Period != "" {
			periods = append(periods, models.Period(p.Period))
		}
		return j.observe(name, func() (interface{}, error) { return j.profiles.Run(ctx, periods...) })
	case JobCorrelation:
		return j.observe(name, func() (interface{}, error) { return j.correlations.Run(ctx, models.Period(p.Period)) })
	}
	return nil, fmt.Errorf("unknown job %q", name)
}

func (j *Jobs) observe(name string, fn func() (interface{}, error)) (interface{}, error) {
	res, err := fn()
	if err != nil {
		j.metrics.RecordJob(name, "failed")
		j.log.Error("job failed", logger.String("job", name), logger.Error(err))
		return nil, err
	}
	j.metrics.RecordJob(name, "ok")
	return res, nil
}

// QueueJobs adapts every job to the queue runner.
func (j *Jobs) QueueJobs() []queue.Job {
	out := make([]queue.Job, len(JobNames))
	for i, n := range JobNames {
		name := n
		out[i] = queue.NewJob(name+"-job", name, func(ctx context.Context, payload interface{}) error {
			p, err := queue.ParsePayload[models.JobPayload](payload)
			if err != nil {
				return fmt.Errorf("parse %s payload: %w", name, err)
			}
			_, err = j.Run(ctx, name, *p)
			return err
		})
	}
	return out
}
