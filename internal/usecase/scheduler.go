package usecase

import (
	"context"
	"sync"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/queue"
)

// Scheduler enqueues every job on its own interval.
type Scheduler struct {
	queue     queue.QueueService
	intervals map[string]time.Duration
	log       *logger.Logger

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewScheduler(q queue.QueueService, cfg config.ScheduleConfig, lgr *logger.Logger) *Scheduler {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &Scheduler{
		queue: q,
		intervals: map[string]time.Duration{
			JobSettlement:  cfg.Settlement,
			JobHolding:     cfg.Holding,
			JobPortfolio:   cfg.Portfolio,
			JobProfile:     cfg.Profile,
			JobCorrelation: cfg.Correlation,
		},
		log: lgr.With(logger.String("component", "scheduler")),
	}
}

// Start enqueues each job once immediately, then on every tick.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	for _, name := range JobNames {
		every := s.intervals[name]
		if every <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, name, every)
	}
}

func (s *Scheduler) loop(ctx context.Context, job string, every time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	s.enqueue(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueue(ctx, job)
		}
	}
}

func (s *Scheduler) enqueue(ctx context.Context, job string) {
	if err := s.queue.Enqueue(ctx, job, models.JobPayload{}); err != nil {
		s.log.Warn("enqueue failed", logger.String("job", job), logger.Error(err))
		return
	}
	s.log.Debug("job enqueued", logger.String("job", job))
}

func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
