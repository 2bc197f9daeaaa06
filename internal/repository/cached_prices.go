package repository

import (
	"context"
	"sort"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/internal/domain/repository"
	"Pasture/pkg/cache"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"
)

const priceNamespace = "prices"

// CachedPriceRepository serves price windows from a cache in front of the
// store. Cache failures fall through to the store.
type CachedPriceRepository struct {
	next  repository.PriceRepository
	cache cache.Service
	ttl   time.Duration
	log   *logger.Logger
}

var _ repository.PriceRepository = (*CachedPriceRepository)(nil)

func NewCachedPriceRepository(next repository.PriceRepository, c cache.Service, ttl time.Duration, lgr *logger.Logger) *CachedPriceRepository {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &CachedPriceRepository{next: next, cache: c, ttl: ttl, log: lgr}
}

func (r *CachedPriceRepository) ListPrices(ctx context.Context, symbols []string, from, to timeseries.Date) ([]models.PriceBar, error) {
	sorted := append([]string(nil), symbols...)
	sort.Strings(sorted)
	key := cache.Key(priceNamespace, "window", cache.HashKey(sorted...), from, to)

	return cache.GetOrLoad(ctx, r.cache, key, r.ttl, func(ctx context.Context) ([]models.PriceBar, error) {
		return r.next.ListPrices(ctx, symbols, from, to)
	})
}

// LatestPrices always reads through; latest quotes change with every load.
func (r *CachedPriceRepository) LatestPrices(ctx context.Context, symbols []string) ([]models.PriceBar, error) {
	return r.next.LatestPrices(ctx, symbols)
}

// Invalidate drops every cached window. Called when new prices are ingested.
func (r *CachedPriceRepository) Invalidate(ctx context.Context) error {
	if err := r.cache.DeleteByPattern(ctx, cache.Pattern(priceNamespace)); err != nil {
		r.log.Warn("price cache invalidation failed", logger.Error(err))
		return err
	}
	return nil
}
