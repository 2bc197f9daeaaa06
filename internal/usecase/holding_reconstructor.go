package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// HoldingReconstructor rebuilds daily positions from executed orders and
// values them at the closing price.
type HoldingReconstructor struct {
	orders   drepo.OrderRepository
	holdings drepo.HoldingRepository
	prices   drepo.PriceRepository
	pub      drepo.EventPublisher
	metrics  drepo.Metrics
	log      *logger.Logger

	lookback int
	now      func() time.Time
}

// NewHoldingReconstructor creates a new HoldingReconstructor instance.
func NewHoldingReconstructor(
	orders drepo.OrderRepository,
	holdings drepo.HoldingRepository,
	prices drepo.PriceRepository,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg config.HoldingConfig,
	lgr *logger.Logger,
) *HoldingReconstructor {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &HoldingReconstructor{
		orders:   orders,
		holdings: holdings,
		prices:   prices,
		pub:      pub,
		metrics:  metrics,
		log:      lgr.With(logger.String("component", "holding")),
		lookback: cfg.PriceLookbackDays,
		now:      time.Now,
	}
}

func (r *HoldingReconstructor) WithClock(now func() time.Time) *HoldingReconstructor {
	r.now = now
	return r
}

// Build appends holding rows from the day after the last stored date through
// the later of the last order and the last available price.
func (r *HoldingReconstructor) Build(ctx context.Context, accountID string) (*BuildResult, error) {
	start := time.Now()
	res := &BuildResult{AccountID: accountID}

	seedRows, err := r.holdings.LastHoldings(ctx, accountID)
	if err != nil {
		r.metrics.RecordError("holding")
		return nil, fmt.Errorf("last holdings: %w", err)
	}
	var after timeseries.Date
	seed := make(map[string]decimal.Decimal, len(seedRows))
	for _, h := range seedRows {
		after = h.BaseDate
		if h.HoldingQty != 0 {
			seed[h.Symbol] = decimal.NewFromFloat(h.HoldingQty)
		}
	}

	orders, err := r.orders.ListOrders(ctx, accountID, after)
	if err != nil {
		r.metrics.RecordError("holding")
		return nil, fmt.Errorf("list orders: %w", err)
	}

	symbols := heldSymbols(seed, orders)
	if len(symbols) == 0 {
		res.Skipped = true
		return res, nil
	}

	var from, lastOrder timeseries.Date
	for _, o := range orders {
		from = timeseries.MinDate(from, o.OrderDate)
		lastOrder = timeseries.MaxDate(lastOrder, o.OrderDate)
	}
	if !after.IsZero() {
		from = after.Add(1)
	}

	today := timeseries.DateOf(r.now())
	bars, err := r.prices.ListPrices(ctx, symbols, from.Add(-r.lookback), today)
	if err != nil {
		r.metrics.RecordError("holding")
		return nil, fmt.Errorf("list prices: %w", err)
	}
	priceCells := make([]timeseries.Cell, 0, len(bars))
	var lastPrice timeseries.Date
	for _, b := range bars {
		priceCells = append(priceCells, timeseries.Cell{Date: b.BaseDate, Column: b.Symbol, Value: b.Close})
		lastPrice = timeseries.MaxDate(lastPrice, b.BaseDate)
	}

	to := timeseries.MaxDate(lastOrder, lastPrice)
	if to.IsZero() || to.Before(from) {
		res.Skipped = true
		return res, nil
	}
	days := timeseries.DateRange(from, to)

	var buyCells, sellCells []timeseries.Cell
	for _, o := range orders {
		c := timeseries.Cell{Date: o.OrderDate, Column: o.Symbol, Value: o.ExecutedQty}
		if o.Side.Sign() > 0 {
			buyCells = append(buyCells, c)
		} else if o.Side.Sign() < 0 {
			sellCells = append(sellCells, c)
		}
	}
	buys := timeseries.Pivot(buyCells).ReindexColumns(symbols).Reindex(days, timeseries.FillZero)
	sells := timeseries.Pivot(sellCells).ReindexColumns(symbols).Reindex(days, timeseries.FillZero)
	px := timeseries.Pivot(priceCells).ReindexColumns(symbols).Reindex(days, timeseries.FillForwardBackward)

	records := make([]models.HoldingRecord, 0, len(days)*len(symbols))
	for j, sym := range symbols {
		qty := seed[sym]
		for i, day := range days {
			buy := decimal.NewFromFloat(buys.At(i, j))
			sell := decimal.NewFromFloat(sells.At(i, j))
			qty = qty.Add(buy).Sub(sell)
			if qty.IsZero() && buy.IsZero() && sell.IsZero() {
				continue
			}
			price := px.At(i, j)
			if math.IsNaN(price) {
				return nil, &models.DataNotReadyError{
					Resource:  "price",
					AccountID: accountID,
					Detail:    fmt.Sprintf("%s on %s", sym, day),
				}
			}
			p := decimal.NewFromFloat(price)
			records = append(records, models.HoldingRecord{
				AccountID:   accountID,
				BaseDate:    day,
				Symbol:      sym,
				HoldingQty:  qty.Round(3).InexactFloat64(),
				MarketPrice: p.Round(3).InexactFloat64(),
				EvalAmt:     qty.Mul(p).Round(3).InexactFloat64(),
				BuyQty:      buy.Round(3).InexactFloat64(),
				SellQty:     sell.Round(3).InexactFloat64(),
			})
		}
	}
	if len(records) == 0 {
		res.Skipped = true
		return res, nil
	}
	sort.SliceStable(records, func(i, j int) bool { return records[i].BaseDate.Before(records[j].BaseDate) })

	if err := r.holdings.InsertHoldings(ctx, records); err != nil {
		r.metrics.RecordError("holding")
		return nil, fmt.Errorf("insert holdings: %w", err)
	}
	res.From = records[0].BaseDate
	res.To = records[len(records)-1].BaseDate
	res.Inserted = len(records)

	r.metrics.RecordRecords(string(models.RecordHolding), len(records))
	r.metrics.RecordLatency("holding", time.Since(start).Seconds())
	if r.pub != nil {
		err := r.pub.PublishRecords(ctx, models.RecordEvent{
			Kind:      models.RecordHolding,
			AccountID: accountID,
			From:      res.From,
			To:        res.To,
			Rows:      res.Inserted,
		})
		if err != nil {
			r.log.Warn("publish holding event failed", logger.String("account_id", accountID), logger.Error(err))
		}
	}
	r.log.Info("holdings rebuilt",
		logger.String("account_id", accountID),
		logger.Stringer("from", res.From),
		logger.Stringer("to", res.To),
		logger.Int("rows", res.Inserted),
		logger.Strings("symbols", symbols))
	return res, nil
}

func heldSymbols(seed map[string]decimal.Decimal, orders []models.OrderEvent) []string {
	set := make(map[string]struct{}, len(seed)+len(orders))
	for s := range seed {
		set[s] = struct{}{}
	}
	for _, o := range orders {
		set[o.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
