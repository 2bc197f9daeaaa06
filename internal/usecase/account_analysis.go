package usecase

import (
	"context"
	"fmt"
	"math"
	"sort"

	"Pasture/internal/domain/models"
	drepo "Pasture/internal/domain/repository"
	"Pasture/pkg/config"
	"Pasture/pkg/logger"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// EvaluationPoint is one day of an account's market value next to the net
// amount it paid for its positions, both in KRW.
type EvaluationPoint struct {
	BaseDate     timeseries.Date `json:"base_date"`
	EvalAmount   float64         `json:"eval_amount"`
	BuyAmount    float64         `json:"buy_amount"`
	ExchangeRate float64         `json:"exchange_rate"`
}

// AssetEvaluation is one day of one symbol's market value in the quote currency.
type AssetEvaluation struct {
	BaseDate   timeseries.Date `json:"base_date"`
	Symbol     string          `json:"symbol"`
	Evaluation float64         `json:"evaluation"`
}

// TradeSummary totals an account's trades of one type.
type TradeSummary struct {
	TradeType    models.TradeType `json:"trade_type"`
	Count        int              `json:"count"`
	TradeAmount  float64          `json:"trade_amount"`
	SettleAmount float64          `json:"settle_amount"`
	TaxAmount    float64          `json:"tax_amount"`
	VATAmount    float64          `json:"vat_amount"`
}

// CashFlowPoint is one calendar day of deposits and withdrawals. Base is the
// cumulative principal in KRW, USD flows converted at that day's rate.
type CashFlowPoint struct {
	TradeDate       timeseries.Date `json:"trade_date"`
	BaseKRW         float64         `json:"base_krw"`
	BaseUSD         float64         `json:"base_usd"`
	DividendUSD     float64         `json:"dividend_usd"`
	DepositInterest float64         `json:"deposit_interest"`
	Base            float64         `json:"base"`
	ExchangeRate    float64         `json:"exchange_rate"`
}

// AccountAnalysis answers per-account history queries over stored holdings,
// raw orders and trades.
type AccountAnalysis struct {
	orders   drepo.OrderRepository
	trades   drepo.TradeRepository
	holdings drepo.HoldingRepository
	rates    drepo.ExchangeRateRepository
	currency string
	lookback int
	log      *logger.Logger
}

func NewAccountAnalysis(
	orders drepo.OrderRepository,
	trades drepo.TradeRepository,
	holdings drepo.HoldingRepository,
	rates drepo.ExchangeRateRepository,
	cfg config.SettlementConfig,
	lgr *logger.Logger,
) *AccountAnalysis {
	if lgr == nil {
		lgr = logger.Nop()
	}
	return &AccountAnalysis{
		orders:   orders,
		trades:   trades,
		holdings: holdings,
		rates:    rates,
		currency: cfg.Currency,
		lookback: cfg.RateLookbackDays,
		log:      lgr.With(logger.String("component", "account_analysis")),
	}
}

// EvaluationHistory sums the daily holding valuations of an account and
// converts them to KRW. BuyAmount is the running total of bought minus sold
// executed amounts since the first order, at the same rate.
func (a *AccountAnalysis) EvaluationHistory(ctx context.Context, accountID string, w Window) ([]EvaluationPoint, error) {
	evals, err := a.evaluations(ctx, accountID, w)
	if err != nil {
		return nil, err
	}
	days := evals.Index()
	rates, err := a.rateSeries(ctx, accountID, days)
	if err != nil {
		return nil, err
	}

	orders, err := a.orders.ListOrders(ctx, accountID, timeseries.Date{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	cells := make([]timeseries.Cell, 0, len(orders))
	for _, o := range orders {
		cells = append(cells, timeseries.Cell{Date: o.OrderDate, Column: "net", Value: o.Side.Sign() * o.ExecutedAmount})
	}
	net := timeseries.Pivot(cells).ReindexColumns([]string{"net"})
	if first, ok := net.FirstDate(); ok && first.Before(days[0]) {
		net = net.Reindex(timeseries.DateRange(first, days[len(days)-1]), timeseries.FillZero)
	} else {
		net = net.Reindex(days, timeseries.FillZero)
	}
	bought := net.CumSum().Reindex(days, timeseries.FillNone).Column("net")

	out := make([]EvaluationPoint, len(days))
	for i, day := range days {
		total := 0.0
		for _, v := range evals.Row(i) {
			total += v
		}
		rate := decimal.NewFromFloat(rates[i])
		out[i] = EvaluationPoint{
			BaseDate:     day,
			EvalAmount:   decimal.NewFromFloat(total).Mul(rate).Round(3).InexactFloat64(),
			BuyAmount:    decimal.NewFromFloat(bought[i]).Mul(rate).Round(3).InexactFloat64(),
			ExchangeRate: rate.Round(3).InexactFloat64(),
		}
	}
	return out, nil
}

// AssetEvaluationHistory returns every symbol's daily valuation, zero on the
// days the account did not hold it.
func (a *AccountAnalysis) AssetEvaluationHistory(ctx context.Context, accountID string, w Window) ([]AssetEvaluation, error) {
	evals, err := a.evaluations(ctx, accountID, w)
	if err != nil {
		return nil, err
	}
	cols := evals.Columns()
	out := make([]AssetEvaluation, 0, evals.Len()*len(cols))
	for i, day := range evals.Index() {
		row := evals.Row(i)
		for j, sym := range cols {
			out = append(out, AssetEvaluation{BaseDate: day, Symbol: sym, Evaluation: round(row[j], 3)})
		}
	}
	return out, nil
}

// TradeSummaries totals the account's trades inside w per trade type. Known
// types come first in ledger order, others follow alphabetically.
func (a *AccountAnalysis) TradeSummaries(ctx context.Context, accountID string, w Window) ([]TradeSummary, error) {
	trades, err := a.trades.ListTrades(ctx, accountID, timeseries.Date{})
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	type sums struct {
		n                        int
		trade, settle, tax, vat decimal.Decimal
	}
	byType := make(map[models.TradeType]*sums)
	for _, t := range trades {
		if !inWindow(t.TradeDate, w) {
			continue
		}
		s, ok := byType[t.TradeType]
		if !ok {
			s = &sums{}
			byType[t.TradeType] = s
		}
		s.n++
		s.trade = s.trade.Add(decimal.NewFromFloat(t.TradeAmount))
		s.settle = s.settle.Add(decimal.NewFromFloat(t.SettleAmount))
		s.tax = s.tax.Add(decimal.NewFromFloat(t.Tax))
		s.vat = s.vat.Add(decimal.NewFromFloat(t.VAT))
	}

	types := make([]models.TradeType, 0, len(byType))
	for tt := range byType {
		types = append(types, tt)
	}
	pos := make(map[models.TradeType]int, len(models.DefaultTradeTypes))
	for i, tt := range models.DefaultTradeTypes {
		pos[tt] = i
	}
	sort.Slice(types, func(i, j int) bool {
		oi, iok := pos[types[i]]
		oj, jok := pos[types[j]]
		switch {
		case iok && jok:
			return oi < oj
		case iok != jok:
			return iok
		}
		return types[i] < types[j]
	})

	out := make([]TradeSummary, 0, len(types))
	for _, tt := range types {
		s := byType[tt]
		out = append(out, TradeSummary{
			TradeType:    tt,
			Count:        s.n,
			TradeAmount:  s.trade.Round(3).InexactFloat64(),
			SettleAmount: s.settle.Round(3).InexactFloat64(),
			TaxAmount:    s.tax.Round(3).InexactFloat64(),
			VATAmount:    s.vat.Round(3).InexactFloat64(),
		})
	}
	return out, nil
}

// CashFlowHistory rebuilds the account's principal day by day from its first
// trade to the last available exchange rate. The running total always starts
// at the first trade; w only limits the rows returned.
func (a *AccountAnalysis) CashFlowHistory(ctx context.Context, accountID string, w Window) ([]CashFlowPoint, error) {
	trades, err := a.trades.ListTrades(ctx, accountID, timeseries.Date{})
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	if len(trades) == 0 {
		return nil, &models.EmptySeriesError{What: "trades of account " + accountID}
	}
	cells := make([]timeseries.Cell, 0, len(trades))
	for _, t := range trades {
		cells = append(cells, timeseries.Cell{Date: t.TradeDate, Column: string(t.TradeType), Value: t.SettleAmount})
	}
	flows := timeseries.Pivot(cells)
	first, _ := flows.FirstDate()
	last, _ := flows.LastDate()

	quotes, err := a.rates.ListRates(ctx, a.currency, first, timeseries.Date{})
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	if len(quotes) == 0 {
		return nil, &models.DataNotReadyError{Resource: "exchange rate", AccountID: accountID,
			Detail: fmt.Sprintf("no %s quotes since %s", a.currency, first)}
	}
	rateCells := make([]timeseries.Cell, 0, len(quotes))
	for _, q := range quotes {
		rateCells = append(rateCells, timeseries.Cell{Date: q.BaseDate, Column: "rate", Value: q.TradingRate})
	}
	rateTable := timeseries.Pivot(rateCells)
	if lastRate, ok := rateTable.LastDate(); ok {
		last = timeseries.MaxDate(last, lastRate)
	}

	days := timeseries.DateRange(first, last)
	flows = flows.Reindex(days, timeseries.FillZero)
	rates := rateTable.Reindex(days, timeseries.FillNone).BFill().FFill().Column("rate")
	col := func(t models.TradeType) []float64 {
		if !flows.HasColumn(string(t)) {
			return make([]float64, len(days))
		}
		return flows.Column(string(t))
	}
	depKRW, wdKRW := col(models.TradeDepositKRW), col(models.TradeWithdrawKRW)
	depUSD, wdUSD := col(models.TradeDepositUSD), col(models.TradeWithdrawUSD)
	dividend, interest := col(models.TradeDividendUSD), col(models.TradeDepositInterest)

	var out []CashFlowPoint
	cumKRW, cumUSD := decimal.Zero, decimal.Zero
	for i, day := range days {
		baseKRW := decimal.NewFromFloat(depKRW[i]).Add(decimal.NewFromFloat(wdKRW[i]))
		baseUSD := decimal.NewFromFloat(depUSD[i]).Add(decimal.NewFromFloat(wdUSD[i]))
		cumKRW = cumKRW.Add(baseKRW)
		cumUSD = cumUSD.Add(baseUSD)
		if !inWindow(day, w) {
			continue
		}
		rate := decimal.NewFromFloat(rates[i])
		out = append(out, CashFlowPoint{
			TradeDate:       day,
			BaseKRW:         baseKRW.Round(2).InexactFloat64(),
			BaseUSD:         baseUSD.Round(2).InexactFloat64(),
			DividendUSD:     round(dividend[i], 2),
			DepositInterest: round(interest[i], 2),
			Base:            cumKRW.Add(cumUSD.Mul(rate)).Round(2).InexactFloat64(),
			ExchangeRate:    rate.Round(2).InexactFloat64(),
		})
	}
	return out, nil
}

// evaluations pivots stored holding valuations into a daily (date x symbol)
// table. Days without a row for a symbol are zero: closed positions are not stored.
func (a *AccountAnalysis) evaluations(ctx context.Context, accountID string, w Window) (*timeseries.Table, error) {
	recs, err := a.holdings.ListHoldings(ctx, accountID, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("list holdings: %w", err)
	}
	if len(recs) == 0 {
		return nil, &models.EmptySeriesError{What: "holdings of account " + accountID}
	}
	cells := make([]timeseries.Cell, 0, len(recs))
	for _, h := range recs {
		cells = append(cells, timeseries.Cell{Date: h.BaseDate, Column: h.Symbol, Value: h.EvalAmt})
	}
	return timeseries.Pivot(cells).ResampleDaily(timeseries.FillZero), nil
}

// rateSeries aligns the configured currency's rates to days, carrying the last
// quote forward and the first one backward.
func (a *AccountAnalysis) rateSeries(ctx context.Context, accountID string, days []timeseries.Date) ([]float64, error) {
	from := days[0].Add(-a.lookback)
	quotes, err := a.rates.ListRates(ctx, a.currency, from, days[len(days)-1])
	if err != nil {
		return nil, fmt.Errorf("list rates: %w", err)
	}
	if len(quotes) == 0 {
		return nil, &models.DataNotReadyError{Resource: "exchange rate", AccountID: accountID,
			Detail: fmt.Sprintf("no %s quotes since %s", a.currency, from)}
	}
	cells := make([]timeseries.Cell, 0, len(quotes))
	for _, q := range quotes {
		cells = append(cells, timeseries.Cell{Date: q.BaseDate, Column: "rate", Value: q.TradingRate})
	}
	return timeseries.Pivot(cells).Reindex(days, timeseries.FillForwardBackward).Column("rate"), nil
}

func inWindow(d timeseries.Date, w Window) bool {
	if !w.From.IsZero() && d.Before(w.From) {
		return false
	}
	return w.To.IsZero() || !d.After(w.To)
}

func round(v float64, places int32) float64 {
	if math.IsNaN(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
