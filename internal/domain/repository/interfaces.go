package repository

import (
	"context"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/pkg/timeseries"
)

type PriceRepository interface {
	// ListPrices returns bars with base_date in [from, to]; zero bounds are open.
	ListPrices(ctx context.Context, symbols []string, from, to timeseries.Date) ([]models.PriceBar, error)
	// LatestPrices returns the most recent bar of each symbol.
	LatestPrices(ctx context.Context, symbols []string) ([]models.PriceBar, error)
}

type ExchangeRateRepository interface {
	ListRates(ctx context.Context, currency string, from, to timeseries.Date) ([]models.ExchangeRateQuote, error)
}

type AccountRepository interface {
	ListActiveAccounts(ctx context.Context) ([]models.Account, error)
}

type OrderRepository interface {
	// ListOrders returns executed orders with order_date after the given date (all when zero).
	ListOrders(ctx context.Context, accountID string, after timeseries.Date) ([]models.OrderEvent, error)
}

type TradeRepository interface {
	// ListTrades returns trades with trade_date after the given date (all when zero).
	ListTrades(ctx context.Context, accountID string, after timeseries.Date) ([]models.TradeEvent, error)
	// HasLateTrade reports whether a trade dated on or before onOrBefore was created at or after since.
	HasLateTrade(ctx context.Context, accountID string, onOrBefore timeseries.Date, since time.Time) (bool, error)
}

type SettlementRepository interface {
	// LastSettlement returns nil when the account has no ledger yet.
	LastSettlement(ctx context.Context, accountID string) (*models.SettlementRecord, error)
	// ListSettlements returns the ledger newest first.
	ListSettlements(ctx context.Context, accountID string) ([]models.SettlementRecord, error)
	InsertSettlements(ctx context.Context, records []models.SettlementRecord) error
	DeleteSettlementsFrom(ctx context.Context, accountID string, from timeseries.Date) (int, error)
}

type HoldingRepository interface {
	// LastHoldings returns every row of the latest base_date.
	LastHoldings(ctx context.Context, accountID string) ([]models.HoldingRecord, error)
	// ListHoldings returns rows with base_date in [from, to] by date then symbol; zero bounds are open.
	ListHoldings(ctx context.Context, accountID string, from, to timeseries.Date) ([]models.HoldingRecord, error)
	InsertHoldings(ctx context.Context, records []models.HoldingRecord) error
}

type PortfolioRepository interface {
	PortfolioExists(ctx context.Context, baseDate timeseries.Date) (bool, error)
	InsertPortfolio(ctx context.Context, p *models.PortfolioSnapshot) error
	// LatestPortfolio returns nil when nothing was saved yet.
	LatestPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error)
}

type AssetRepository interface {
	ListAssets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error)
}

type UniverseRepository interface {
	FindUniverses(ctx context.Context, name string) ([]models.AssetUniverse, error)
}

type ProfileRepository interface {
	ProfileExists(ctx context.Context, baseDate timeseries.Date, period models.Period) (bool, error)
	InsertProfiles(ctx context.Context, profiles []models.AssetProfile) error
	DeleteProfilesExcept(ctx context.Context, period models.Period, keep timeseries.Date) (int, error)
}

type CorrelationRepository interface {
	CorrelationExists(ctx context.Context, baseDate timeseries.Date, period models.Period) (bool, error)
	InsertCorrelations(ctx context.Context, rows []models.AssetCorrelationSnapshot) error
	DeleteCorrelationsExcept(ctx context.Context, period models.Period, keep timeseries.Date) (int, error)
}

// EventPublisher announces appended derived records.
type EventPublisher interface {
	PublishRecords(ctx context.Context, e models.RecordEvent) error
	Close() error
}

type Metrics interface {
	RecordJob(job, status string)
	RecordRecords(kind string, n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
