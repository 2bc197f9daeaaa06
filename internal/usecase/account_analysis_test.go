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

func newAccountAnalysis(store *repository.MemoryStore) *AccountAnalysis {
	return NewAccountAnalysis(store, store, store, store, config.Default().Settlement, nil)
}

func holding(day, symbol string, eval float64) models.HoldingRecord {
	return models.HoldingRecord{AccountID: "A1", BaseDate: d(day), Symbol: symbol, HoldingQty: 1, MarketPrice: eval, EvalAmt: eval}
}

func filled(day, symbol string, side models.Side, amount float64) models.OrderEvent {
	return models.OrderEvent{
		AccountID:      "A1",
		OrderDate:      d(day),
		OrderNo:        day + symbol,
		Symbol:         symbol,
		Side:           side,
		ExecutedQty:    1,
		ExecutedPrice:  amount,
		ExecutedAmount: amount,
	}
}

func seedEvaluationScenario(t *testing.T, store *repository.MemoryStore) {
	t.Helper()
	seedLedgerScenario(store)
	// nothing held on the 4th
	require.NoError(t, store.InsertHoldings(context.Background(), []models.HoldingRecord{
		holding("2024-01-02", "AAA", 100),
		holding("2024-01-03", "AAA", 110),
		holding("2024-01-03", "BBB", 50),
		holding("2024-01-05", "BBB", 60),
	}))
	store.AddOrders(
		filled("2024-01-02", "AAA", models.SideBid, 100),
		filled("2024-01-03", "BBB", models.SideBid, 50),
		filled("2024-01-05", "AAA", models.SideAsk, 120),
	)
}

func TestEvaluationHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvaluationScenario(t, store)

	got, err := newAccountAnalysis(store).EvaluationHistory(context.Background(), "A1", Window{})
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []EvaluationPoint{
		{BaseDate: d("2024-01-02"), EvalAmount: 130000, BuyAmount: 130000, ExchangeRate: 1300},
		{BaseDate: d("2024-01-03"), EvalAmount: 209600, BuyAmount: 196500, ExchangeRate: 1310},
		{BaseDate: d("2024-01-04"), EvalAmount: 0, BuyAmount: 196500, ExchangeRate: 1310},
		{BaseDate: d("2024-01-05"), EvalAmount: 79200, BuyAmount: 39600, ExchangeRate: 1320},
	}
	assert.Equal(t, want, got)
}

func TestEvaluationHistoryWindowKeepsEarlierOrders(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvaluationScenario(t, store)

	got, err := newAccountAnalysis(store).EvaluationHistory(context.Background(), "A1",
		Window{From: d("2024-01-05"), To: d("2024-01-05")})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 79200.0, got[0].EvalAmount)
	assert.Equal(t, 39600.0, got[0].BuyAmount)
}

func TestEvaluationHistoryErrors(t *testing.T) {
	ctx := context.Background()

	store := repository.NewMemoryStore()
	_, err := newAccountAnalysis(store).EvaluationHistory(ctx, "A1", Window{})
	assert.True(t, errors.Is(err, models.ErrEmptySeries))

	require.NoError(t, store.InsertHoldings(ctx, []models.HoldingRecord{holding("2024-01-02", "AAA", 100)}))
	_, err = newAccountAnalysis(store).EvaluationHistory(ctx, "A1", Window{})
	var nr *models.DataNotReadyError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, "A1", nr.AccountID)
}

func TestAssetEvaluationHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	seedEvaluationScenario(t, store)

	got, err := newAccountAnalysis(store).AssetEvaluationHistory(context.Background(), "A1", Window{})
	require.NoError(t, err)
	require.Len(t, got, 8)

	assert.Equal(t, AssetEvaluation{BaseDate: d("2024-01-02"), Symbol: "AAA", Evaluation: 100}, got[0])
	assert.Equal(t, AssetEvaluation{BaseDate: d("2024-01-02"), Symbol: "BBB", Evaluation: 0}, got[1])
	assert.Equal(t, AssetEvaluation{BaseDate: d("2024-01-04"), Symbol: "AAA", Evaluation: 0}, got[4])
	assert.Equal(t, AssetEvaluation{BaseDate: d("2024-01-05"), Symbol: "BBB", Evaluation: 60}, got[7])
}

func TestTradeSummaries(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLedgerScenario(store)
	taxed := trade("2024-01-05", models.TradeDividendUSD, 2, 9)
	taxed.Tax = 0.3
	taxed.VAT = 0.1
	store.AddTrades(taxed, trade("2024-01-05", "ADJUSTMENT", 5, 9))

	got, err := newAccountAnalysis(store).TradeSummaries(context.Background(), "A1",
		Window{From: d("2024-01-03"), To: d("2024-01-05")})
	require.NoError(t, err)

	want := []TradeSummary{
		{TradeType: models.TradeDepositInterest, Count: 1, TradeAmount: 3, SettleAmount: 3},
		{TradeType: models.TradeWithdrawKRW, Count: 1, TradeAmount: -200, SettleAmount: -200},
		{TradeType: models.TradeDepositUSD, Count: 1, TradeAmount: 10, SettleAmount: 10},
		{TradeType: models.TradeDividendUSD, Count: 2, TradeAmount: 3.5, SettleAmount: 3.5, TaxAmount: 0.3, VATAmount: 0.1},
		{TradeType: "ADJUSTMENT", Count: 1, TradeAmount: 5, SettleAmount: 5},
	}
	assert.Equal(t, want, got)
}

func TestCashFlowHistory(t *testing.T) {
	store := repository.NewMemoryStore()
	seedLedgerScenario(store)

	got, err := newAccountAnalysis(store).CashFlowHistory(context.Background(), "A1", Window{From: d("2024-01-03")})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, CashFlowPoint{TradeDate: d("2024-01-03"), BaseUSD: 10, Base: 14100, ExchangeRate: 1310}, got[0])
	// the 4th has no quote; the next one is used
	assert.Equal(t, CashFlowPoint{TradeDate: d("2024-01-04"), BaseKRW: -200, DividendUSD: 1.5, Base: 14000, ExchangeRate: 1320}, got[1])
	assert.Equal(t, CashFlowPoint{TradeDate: d("2024-01-05"), DepositInterest: 3, Base: 14000, ExchangeRate: 1320}, got[2])
}

func TestCashFlowHistoryErrors(t *testing.T) {
	ctx := context.Background()

	store := repository.NewMemoryStore()
	_, err := newAccountAnalysis(store).CashFlowHistory(ctx, "A1", Window{})
	assert.True(t, errors.Is(err, models.ErrEmptySeries))

	store.AddTrades(trade("2024-01-02", models.TradeDepositKRW, 1000, 9))
	_, err = newAccountAnalysis(store).CashFlowHistory(ctx, "A1", Window{})
	assert.True(t, errors.Is(err, models.ErrDataNotReady))
}
