package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// BuildResult summarizes one incremental rebuild of an account.
type BuildResult struct {
	AccountID string          `json:"account_id"`
	From      timeseries.Date `json:"from"`
	To        timeseries.Date `json:"to"`
	Inserted  int             `json:"inserted"`
	Deleted   int             `json:"deleted"`
	Skipped   bool            `json:"skipped"`
}

// SettlementBuilder maintains the daily KRW cash ledger of each account.
type SettlementBuilder struct {
	trades      drepo.TradeRepository
	settlements drepo.SettlementRepository
	rates       drepo.ExchangeRateRepository
	pub         drepo.EventPublisher
	metrics     drepo.Metrics
	log         *logger.Logger

	currency   string
	lookback   int
	tradeTypes []string
	now        func() time.Time
}

// NewSettlementBuilder creates a new SettlementBuilder instance.
func NewSettlementBuilder(
	trades drepo.TradeRepository,
	settlements drepo.SettlementRepository,
	rates drepo.ExchangeRateRepository,
	pub drepo.EventPublisher,
	metrics drepo.Metrics,
	cfg config.SettlementConfig,
	lgr *logger.Logger,
) *SettlementBuilder {
	types := cfg.TradeTypes
	if len(types) == 0 {
		for _, t := range models.DefaultTradeTypes {
			types = append(types, string(t))
		}
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &SettlementBuilder{
		trades:      trades,
		settlements: settlements,
		rates:       rates,
		pub:         pub,
		metrics:     metrics,
		log:         lgr.With(logger.String("component", "settlement")),
		currency:    cfg.Currency,
		lookback:    cfg.RateLookbackDays,
		tradeTypes:  types,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock used for created_at and the rate window.
func (b *SettlementBuilder) WithClock(now func() time.Time) *SettlementBuilder {
	b.now = now
	return b
}

// Build corrects the account's ledger for back-dated trades, then appends
// one record per day from the day after the last record.
func (b *SettlementBuilder) Build(ctx context.Context, accountID string) (*BuildResult, error) {
	start := time.Now()
	res := &BuildResult{AccountID: accountID}

	deleted, err := b.correct(ctx, accountID)
	if err != nil {
		b.metrics.RecordError("settlement")
		return nil, err
	}
	res.Deleted = deleted

	last, err := b.settlements.LastSettlement(ctx, accountID)
	if err != nil {
		b.metrics.RecordError("settlement")
		return nil, fmt.Errorf("last settlement: %w", err)
	}
	var after timeseries.Date
	if last != nil {
		after = last.BaseDate
	}

	trades, err := b.trades.ListTrades(ctx, accountID, after)
	if err != nil {
		b.metrics.RecordError("settlement")
		return nil, fmt.Errorf("list trades: %w", err)
	}
	if len(trades) == 0 {
		res.Skipped = true
		return res, nil
	}

	from := trades[0].TradeDate
	for _, t := range trades {
		from = timeseries.MinDate(from, t.TradeDate)
	}
	if last != nil {
		from = last.BaseDate.Add(1)
	}

	today := timeseries.DateOf(b.now())
	quotes, err := b.rates.ListRates(ctx, b.currency, from.Add(-b.lookback), today)
	if err != nil {
		b.metrics.RecordError("settlement")
		return nil, fmt.Errorf("list rates: %w", err)
	}
	if len(quotes) == 0 {
		return nil, &models.DataNotReadyError{
			Resource:  "exchange rate",
			AccountID: accountID,
			Detail:    fmt.Sprintf("no %s quotes since %s", b.currency, from.Add(-b.lookback)),
		}
	}

	records, err := b.accumulate(accountID, last, trades, quotes, from)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		res.Skipped = true
		return res, nil
	}

	if err := b.settlements.InsertSettlements(ctx, records); err != nil {
		b.metrics.RecordError("settlement")
		return nil, fmt.Errorf("insert settlements: %w", err)
	}
	res.From = records[0].BaseDate
	res.To = records[len(records)-1].BaseDate
	res.Inserted = len(records)

	b.metrics.RecordRecords(string(models.RecordSettlement), len(records))
	b.metrics.RecordLatency("settlement", time.Since(start).Seconds())
	b.publish(ctx, res)
	b.log.Info("settlement ledger extended",
		logger.String("account_id", accountID),
		logger.Stringer("from", res.From),
		logger.Stringer("to", res.To),
		logger.Int("rows", res.Inserted),
		logger.Int("deleted", res.Deleted))
	return res, nil
}

// correct removes ledger rows invalidated by trades that were recorded after
// the rows were built but dated on or before them.
func (b *SettlementBuilder) correct(ctx context.Context, accountID string) (int, error) {
	ledger, err := b.settlements.ListSettlements(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("list settlements: %w", err)
	}

	var stale *models.SettlementRecord
	for i := range ledger {
		rec := ledger[i]
		late, err := b.trades.HasLateTrade(ctx, accountID, rec.BaseDate, rec.CreatedAt)
		if err != nil {
			return 0, fmt.Errorf("check late trades: %w", err)
		}
		if !late {
			break
		}
		stale = &rec
	}
	if stale == nil {
		return 0, nil
	}

	n, err := b.settlements.DeleteSettlementsFrom(ctx, accountID, stale.BaseDate)
	if err != nil {
		return 0, fmt.Errorf("delete settlements: %w", err)
	}
	b.log.Warn("back-dated trades found, ledger rewound",
		logger.String("account_id", accountID),
		logger.Stringer("from", stale.BaseDate),
		logger.Int("deleted", n))
	return n, nil
}

func (b *SettlementBuilder) accumulate(
	accountID string,
	last *models.SettlementRecord,
	trades []models.TradeEvent,
	quotes []models.ExchangeRateQuote,
	from timeseries.Date,
) ([]models.SettlementRecord, error) {
	cells := make([]timeseries.Cell, 0, len(trades))
	to := from
	for _, t := range trades {
		cells = append(cells, timeseries.Cell{Date: t.TradeDate, Column: string(t.TradeType), Value: t.SettleAmount})
		to = timeseries.MaxDate(to, t.TradeDate)
	}
	rateCells := make([]timeseries.Cell, 0, len(quotes))
	for _, q := range quotes {
		rateCells = append(rateCells, timeseries.Cell{Date: q.BaseDate, Column: "rate", Value: q.TradingRate})
		to = timeseries.MaxDate(to, q.BaseDate)
	}

	days := timeseries.DateRange(from, to)
	flows := timeseries.Pivot(cells).ReindexColumns(b.tradeTypes).Reindex(days, timeseries.FillZero)
	rates := timeseries.Pivot(rateCells).Reindex(days, timeseries.FillForwardBackward).Column("rate")

	balance := decimal.Zero
	if last != nil {
		balance = decimal.NewFromFloat(last.BaseAmountKRW)
	}
	col := func(t models.TradeType) []float64 {
		if !flows.HasColumn(string(t)) {
			return make([]float64, len(days))
		}
		return flows.Column(string(t))
	}
	depKRW, wdKRW := col(models.TradeDepositKRW), col(models.TradeWithdrawKRW)
	depUSD, wdUSD := col(models.TradeDepositUSD), col(models.TradeWithdrawUSD)
	dividend, interest := col(models.TradeDividendUSD), col(models.TradeDepositInterest)

	created := b.now().UTC()
	out := make([]models.SettlementRecord, 0, len(days))
	for i, day := range days {
		if math.IsNaN(rates[i]) {
			return nil, &models.DataNotReadyError{Resource: "exchange rate", AccountID: accountID, Detail: day.String()}
		}
		rate := decimal.NewFromFloat(rates[i]).Round(3)
		ioKRW := decimal.NewFromFloat(depKRW[i]).Add(decimal.NewFromFloat(wdKRW[i])).Round(3)
		ioUSD := decimal.NewFromFloat(depUSD[i]).Add(decimal.NewFromFloat(wdUSD[i])).Round(3)
		balance = balance.Add(ioKRW).Add(ioUSD.Mul(rate)).Round(3)

		out = append(out, models.SettlementRecord{
			AccountID:          accountID,
			BaseDate:           day,
			BaseAmountKRW:      balance.InexactFloat64(),
			BaseIOKRW:          ioKRW.InexactFloat64(),
			BaseIOUSD:          ioUSD.InexactFloat64(),
			DividendUSD:        decimal.NewFromFloat(dividend[i]).Round(3).InexactFloat64(),
			DepositInterestKRW: decimal.NewFromFloat(interest[i]).Round(3).InexactFloat64(),
			ExchangeRate:       rate.InexactFloat64(),
			CreatedAt:          created,
		})
	}
	return out, nil
}

func (b *SettlementBuilder) publish(ctx context.Context, res *BuildResult) {
	if b.pub == nil {
		return
	}
	err := b.pub.PublishRecords(ctx, models.RecordEvent{
		Kind:      models.RecordSettlement,
		AccountID: res.AccountID,
		From:      res.From,
		To:        res.To,
		Rows:      res.Inserted,
		Deleted:   res.Deleted,
	})
	if err != nil {
		b.log.Warn("publish settlement event failed", logger.String("account_id", res.AccountID), logger.Error(err))
	}
}
