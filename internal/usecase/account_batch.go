package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/pkg/cache"
	"Pasture/pkg/logger"
)

// AccountFunc rebuilds one account.
type AccountFunc func(ctx context.Context, accountID string) (*BuildResult, error)

// BatchReport counts the outcome of one batch.
type BatchReport struct {
	Job       string        `json:"job"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	NotReady  int           `json:"not_ready"`
	Locked    int           `json:"locked"`
	Failed    int           `json:"failed"`
	Rows      int           `json:"rows"`
	Elapsed   time.Duration `json:"elapsed"`
}

// AccountBatch fans per-account work out over a bounded number of goroutines.
// One account failing never stops the others.
type AccountBatch struct {
	accounts drepo.AccountRepository
	locker   cache.Service
	lockTTL  time.Duration
	workers  int
	metrics  drepo.Metrics
	log      *logger.Logger
}

type AccountBatchOption func(*AccountBatch)

// WithAccountLock serializes work on an account across processes sharing the cache.
func WithAccountLock(c cache.Service, ttl time.Duration) AccountBatchOption {
	return func(b *AccountBatch) {
		b.locker = c
		b.lockTTL = ttl
	}
}

func NewAccountBatch(accounts drepo.AccountRepository, workers int, metrics drepo.Metrics, lgr *logger.Logger, opts ...AccountBatchOption) *AccountBatch {
	if workers <= 0 {
		workers = 1
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	b := &AccountBatch{
		accounts: accounts,
		workers:  workers,
		metrics:  metrics,
		log:      lgr.With(logger.String("component", "batch")),
		lockTTL:  10 * time.Minute,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Run applies fn to the given accounts, or to every active account when none are given.
func (b *AccountBatch) Run(ctx context.Context, job string, fn AccountFunc, accountIDs ...string) (*BatchReport, error) {
	start := time.Now()
	if len(accountIDs) == 0 {
		active, err := b.accounts.ListActiveAccounts(ctx)
		if err != nil {
			b.metrics.RecordJob(job, "error")
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		for _, a := range active {
			accountIDs = append(accountIDs, a.AccountID)
		}
	}

	report := &BatchReport{Job: job}
	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, b.workers)

	for _, id := range accountIDs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(accountID string) {
			defer wg.Done()
			defer func() { <-sem }()

			status, rows := b.runOne(ctx, job, accountID, fn)
			mu.Lock()
			defer mu.Unlock()
			report.Rows += rows
			switch status {
			case "ok":
				report.Processed++
			case "skipped":
				report.Skipped++
			case "not_ready":
				report.NotReady++
			case "locked":
				report.Locked++
			default:
				report.Failed++
			}
		}(id)
	}
	wg.Wait()

	report.Elapsed = time.Since(start)
	b.metrics.RecordLatency(job, report.Elapsed.Seconds())
	b.log.Info("batch finished",
		logger.String("job", job),
		logger.Int("accounts", len(accountIDs)),
		logger.Int("processed", report.Processed),
		logger.Int("skipped", report.Skipped),
		logger.Int("not_ready", report.NotReady),
		logger.Int("failed", report.Failed),
		logger.Int("rows", report.Rows),
		logger.Duration("elapsed", report.Elapsed))
	return report, ctx.Err()
}

func (b *AccountBatch) runOne(ctx context.Context, job, accountID string, fn AccountFunc) (status string, rows int) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("account job panicked",
				logger.String("job", job),
				logger.String("account_id", accountID),
				logger.Any("panic", r))
			status = "failed"
		}
		b.metrics.RecordJob(job, status)
	}()

	if b.locker != nil {
		key := cache.Key("lock", job, accountID)
		ok, err := b.locker.TryLock(ctx, key, b.lockTTL)
		if err != nil {
			b.log.Warn("account lock unavailable, running unlocked", logger.String("account_id", accountID), logger.Error(err))
		} else if !ok {
			return "locked", 0
		} else {
			defer func() {
				if err := b.locker.Unlock(context.WithoutCancel(ctx), key); err != nil {
					b.log.Warn("account unlock failed", logger.String("account_id", accountID), logger.Error(err))
				}
			}()
		}
	}

	res, err := fn(ctx, accountID)
	switch {
	case errors.Is(err, models.ErrDataNotReady):
		b.log.Warn("account data not ready",
			logger.String("job", job),
			logger.String("account_id", accountID),
			logger.Error(err))
		return "not_ready", 0
	case err != nil:
		b.metrics.RecordError(job)
		b.log.Error("account job failed",
			logger.String("job", job),
			logger.String("account_id", accountID),
			logger.Error(err))
		return "failed", 0
	case res == nil || res.Skipped:
		return "skipped", 0
	}
	return "ok", res.Inserted
}
