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

func newReconstructor(store *repository.MemoryStore) *HoldingReconstructor {
	return NewHoldingReconstructor(store, store, store, repository.NoopPublisher{}, testMetrics(),
		config.Default().Holding, nil)
}

func order(day, symbol string, side models.Side, qty float64) models.OrderEvent {
	return models.OrderEvent{
		AccountID:   "A1",
		OrderDate:   d(day),
		Symbol:      symbol,
		Side:        side,
		ExecutedQty: qty,
		CreatedAt:   at(day, 10),
	}
}

func closePx(day, symbol string, v float64) models.PriceBar {
	return models.PriceBar{Symbol: symbol, BaseDate: d(day), Close: v}
}

func TestHoldingBuySellScenario(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddOrders(
		order("2024-01-02", "AAA", models.SideBid, 10),
		order("2024-01-03", "AAA", models.SideAsk, 4),
	)
	store.AddPrices(closePx("2024-01-02", "AAA", 50), closePx("2024-01-03", "AAA", 50))

	res, err := newReconstructor(store).WithClock(clock(at("2024-01-03", 18))).Build(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)

	rows := store.Holdings("A1")
	require.Len(t, rows, 2)
	assert.Equal(t, models.HoldingRecord{
		AccountID: "A1", BaseDate: d("2024-01-02"), Symbol: "AAA",
		HoldingQty: 10, MarketPrice: 50, EvalAmt: 500, BuyQty: 10,
	}, rows[0])
	assert.Equal(t, models.HoldingRecord{
		AccountID: "A1", BaseDate: d("2024-01-03"), Symbol: "AAA",
		HoldingQty: 6, MarketPrice: 50, EvalAmt: 300, SellQty: 4,
	}, rows[1])
}

func TestHoldingClosedPositionEmitsNoZeroRows(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddOrders(
		order("2024-01-02", "AAA", models.SideBid, 10),
		order("2024-01-03", "AAA", models.SideAsk, 10),
	)
	for _, day := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		store.AddPrices(closePx(day, "AAA", 20))
	}

	_, err := newReconstructor(store).WithClock(clock(at("2024-01-05", 18))).Build(context.Background(), "A1")
	require.NoError(t, err)

	rows := store.Holdings("A1")
	require.Len(t, rows, 2)
	last := rows[1]
	assert.Equal(t, 0.0, last.HoldingQty)
	assert.Equal(t, 10.0, last.SellQty)
	for _, r := range rows {
		assert.False(t, r.HoldingQty == 0 && r.BuyQty == 0 && r.SellQty == 0, "all-zero row on %s", r.BaseDate)
	}
}

func TestHoldingResumesFromLastHoldings(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()
	store.AddOrders(
		order("2024-01-02", "AAA", models.SideBid, 10),
		order("2024-01-03", "AAA", models.SideAsk, 4),
		order("2024-01-03", "BBB", models.SideBid, 2),
	)
	store.AddPrices(
		closePx("2024-01-02", "AAA", 50), closePx("2024-01-03", "AAA", 50),
		closePx("2024-01-03", "BBB", 100),
	)
	r := newReconstructor(store)
	_, err := r.WithClock(clock(at("2024-01-03", 18))).Build(ctx, "A1")
	require.NoError(t, err)

	// the 4th has no AAA price, so the 3rd's close carries forward
	store.AddOrders(order("2024-01-05", "AAA", models.SideBid, 5))
	store.AddPrices(
		closePx("2024-01-04", "BBB", 110),
		closePx("2024-01-05", "AAA", 60), closePx("2024-01-05", "BBB", 120),
	)
	res, err := r.WithClock(clock(at("2024-01-05", 18))).Build(ctx, "A1")
	require.NoError(t, err)
	assert.Equal(t, d("2024-01-04"), res.From)
	assert.Equal(t, d("2024-01-05"), res.To)
	assert.Equal(t, 4, res.Inserted)

	byKey := map[string]models.HoldingRecord{}
	for _, h := range store.Holdings("A1") {
		byKey[h.BaseDate.String()+"/"+h.Symbol] = h
	}
	assert.Equal(t, 6.0, byKey["2024-01-04/AAA"].HoldingQty)
	assert.Equal(t, 300.0, byKey["2024-01-04/AAA"].EvalAmt)
	assert.Equal(t, 11.0, byKey["2024-01-05/AAA"].HoldingQty)
	assert.Equal(t, 660.0, byKey["2024-01-05/AAA"].EvalAmt)
	assert.Equal(t, 220.0, byKey["2024-01-04/BBB"].EvalAmt)

	// holding_qty[t] = holding_qty[t-1] + buy[t] - sell[t]
	prev := map[string]float64{}
	for _, h := range store.Holdings("A1") {
		assert.Equal(t, prev[h.Symbol]+h.BuyQty-h.SellQty, h.HoldingQty, "%s %s", h.BaseDate, h.Symbol)
		assert.Equal(t, h.HoldingQty*h.MarketPrice, h.EvalAmt)
		prev[h.Symbol] = h.HoldingQty
	}
}

func TestHoldingMissingPriceIsNotReady(t *testing.T) {
	store := repository.NewMemoryStore()
	store.AddOrders(order("2024-01-02", "AAA", models.SideBid, 1))

	_, err := newReconstructor(store).WithClock(clock(at("2024-01-02", 18))).Build(context.Background(), "A1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDataNotReady))
}

func TestHoldingWithoutPositionsSkips(t *testing.T) {
	store := repository.NewMemoryStore()
	res, err := newReconstructor(store).Build(context.Background(), "A1")
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}
