package usecase

import (
	"context"
	"errors"
	"testing"

	"Pasture/internal/domain/models"
	"Pasture/internal/repository"
	"Pasture/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettlementBuilder(store *repository.MemoryStore) *SettlementBuilder {
	return NewSettlementBuilder(store, store, store, repository.NoopPublisher{}, testMetrics(),
		config.Default().Settlement, nil)
}

func rate(day string, v float64) models.ExchangeRateQuote {
	return models.ExchangeRateQuote{CurrencyCode: "USD", BaseDate: d(day), TradingRate: v}
}

func trade(day string, typ models.TradeType, amount float64, createdHour int) models.TradeEvent {
	return models.TradeEvent{
		AccountID:    "A1",
		TradeDate:    d(day),
		TradeType:    typ,
		TradeAmount:  amount,
		SettleAmount: amount,
		CreatedAt:    at(day, createdHour),
	}
}

func TestSettlementSingleDeposit(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddRates(rate("2024-01-02", 1300))
	store.AddTrades(trade("2024-01-02", models.TradeDepositKRW, 1000, 9))

	b := newSettlementBuilder(store).WithClock(clock(at("2024-01-02", 18)))
	res, err := b.Build(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)

	ledger, err := store.ListSettlements(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	rec := ledger[0]
	assert.Equal(t, d("2024-01-02"), rec.BaseDate)
	assert.Equal(t, 1000.0, rec.BaseAmountKRW)
	assert.Equal(t, 1000.0, rec.BaseIOKRW)
	assert.Equal(t, 0.0, rec.BaseIOUSD)
	assert.Equal(t, 1300.0, rec.ExchangeRate)
}

func seedLedgerScenario(store *repository.MemoryStore) {
	store.AddRates(
		rate("2024-01-01", 1290),
		rate("2024-01-02", 1300),
		rate("2024-01-03", 1310),
		rate("2024-01-05", 1320),
	)
	store.AddTrades(
		trade("2024-01-02", models.TradeDepositKRW, 1000, 9),
		trade("2024-01-03", models.TradeDepositUSD, 10, 9),
		trade("2024-01-04", models.TradeWithdrawKRW, -200, 9),
		trade("2024-01-04", models.TradeDividendUSD, 1.5, 9),
		trade("2024-01-05", models.TradeDepositInterest, 3, 9),
	)
}

func TestSettlementCumulativeConsistency(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLedgerScenario(store)

	b := newSettlementBuilder(store).WithClock(clock(at("2024-01-05", 18)))
	res, err := b.Build(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, d("2024-01-02"), res.From)
	assert.Equal(t, d("2024-01-05"), res.To)

	ledger, err := store.ListSettlements(context.Background(), "A1")
	require.NoError(t, err)
	require.Len(t, ledger, 4)

	// newest first
	oldest := ledger[len(ledger)-1]
	assert.Equal(t, oldest.BaseIOKRW+oldest.BaseIOUSD*oldest.ExchangeRate, oldest.BaseAmountKRW)
	for i := 0; i < len(ledger)-1; i++ {
		cur, prev := ledger[i], ledger[i+1]
		assert.Equal(t, 1, cur.BaseDate.Sub(prev.BaseDate))
		assert.InDelta(t, prev.BaseAmountKRW+cur.BaseIOKRW+cur.BaseIOUSD*cur.ExchangeRate, cur.BaseAmountKRW, 1e-6)
	}

	byDate := map[string]models.SettlementRecord{}
	for _, r := range ledger {
		byDate[r.BaseDate.String()] = r
	}
	assert.Equal(t, 14100.0, byDate["2024-01-03"].BaseAmountKRW)
	// the 4th has no quote; the 3rd's rate carries forward
	assert.Equal(t, 1310.0, byDate["2024-01-04"].ExchangeRate)
	assert.Equal(t, 13900.0, byDate["2024-01-04"].BaseAmountKRW)
	assert.Equal(t, 1.5, byDate["2024-01-04"].DividendUSD)
	assert.Equal(t, 3.0, byDate["2024-01-05"].DepositInterestKRW)
	assert.Equal(t, 13900.0, byDate["2024-01-05"].BaseAmountKRW)
}

func TestSettlementIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLedgerScenario(store)
	ctx := context.Background()

	b := newSettlementBuilder(store).WithClock(clock(at("2024-01-05", 18)))
	_, err := b.Build(ctx, "A1")
	require.NoError(t, err)
	first, _ := store.ListSettlements(ctx, "A1")

	res, err := b.WithClock(clock(at("2024-01-05", 20))).Build(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Deleted)

	second, _ := store.ListSettlements(ctx, "A1")
	assert.Equal(t, first, second)
}

func TestSettlementBackdatedTradeRewindsLedger(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLedgerScenario(store)
	ctx := context.Background()

	b := newSettlementBuilder(store).WithClock(clock(at("2024-01-05", 18)))
	_, err := b.Build(ctx, "A1")
	require.NoError(t, err)

	// recorded on the 6th, dated the 3rd
	late := trade("2024-01-03", models.TradeDepositKRW, 500, 0)
	late.CreatedAt = at("2024-01-06", 8)
	store.AddTrades(late)

	res, err := b.WithClock(clock(at("2024-01-06", 18))).Build(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Deleted)
	assert.Equal(t, d("2024-01-03"), res.From)
	assert.Equal(t, d("2024-01-05"), res.To)

	ledger, _ := store.ListSettlements(ctx, "A1")
	require.Len(t, ledger, 4)
	assert.Equal(t, d("2024-01-05"), ledger[0].BaseDate)
	assert.Equal(t, 14400.0, ledger[0].BaseAmountKRW)
	assert.Equal(t, 1000.0, ledger[3].BaseAmountKRW)

	// nothing new since the rebuild
	res, err = b.WithClock(clock(at("2024-01-07", 18))).Build(ctx, "A1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Zero(t, res.Deleted)
}

func TestSettlementWithoutRatesIsNotReady(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddTrades(trade("2024-01-02", models.TradeDepositKRW, 1000, 9))

	_, err := newSettlementBuilder(store).WithClock(clock(at("2024-01-02", 18))).Build(context.Background(), "A1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataNotReady))

	var nr *models.DataNotReadyError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, "A1", nr.AccountID)
}

func TestSettlementWithoutTradesSkips(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddRates(rate("2024-01-02", 1300))

	res, err := newSettlementBuilder(store).Build(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
