package repository

import (
	"time"

	"Pasture/pkg/timeseries"
)

// Table names.
const (
	tablePrices       = "price_bars"
	tableRates        = "exchange_rates"
	tableAccounts     = "accounts"
	tableOrders       = "account_orders"
	tableTrades       = "account_trades"
	tableSettlements  = "settlement_history"
	tableHoldings     = "holding_history"
	tablePortfolios   = "portfolio_snapshots"
	tableProfiles     = "asset_profiles"
	tableCorrelations = "asset_correlations"
	tableAssets       = "assets"
	tableUniverses    = "asset_universes"
)

// Schema returns idempotent DDL for every table the repositories touch.
// Raw tables use ReplacingMergeTree so re-ingested rows collapse.
func Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + tablePrices + ` (
			symbol LowCardinality(String),
			base_date Date,
			open Float64,
			high Float64,
			low Float64,
			close Float64,
			adj_close Float64,
			volume Float64
		) ENGINE = ReplacingMergeTree ORDER BY (symbol, base_date)`,
		`CREATE TABLE IF NOT EXISTS ` + tableRates + ` (
			currency_code LowCardinality(String),
			base_date Date,
			trading_rate Float64
		) ENGINE = ReplacingMergeTree ORDER BY (currency_code, base_date)`,
		`CREATE TABLE IF NOT EXISTS ` + tableAccounts + ` (
			account_id String,
			account_type LowCardinality(String),
			is_active UInt8
		) ENGINE = ReplacingMergeTree ORDER BY account_id`,
		`CREATE TABLE IF NOT EXISTS ` + tableOrders + ` (
			account_id String,
			order_date Date,
			order_no String,
			symbol LowCardinality(String),
			side LowCardinality(String),
			executed_qty Float64,
			executed_price Float64,
			executed_amount Float64,
			status LowCardinality(String),
			created_at DateTime
		) ENGINE = ReplacingMergeTree ORDER BY (account_id, order_date, order_no)`,
		`CREATE TABLE IF NOT EXISTS ` + tableTrades + ` (
			account_id String,
			trade_date Date,
			trade_type LowCardinality(String),
			trade_amount Float64,
			settle_amount Float64,
			tax Float64,
			vat Float64,
			currency_code LowCardinality(String),
			symbol String,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY (account_id, trade_date, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + tableSettlements + ` (
			account_id String,
			base_date Date,
			base_amount_krw Float64,
			base_io_krw Float64,
			base_io_usd Float64,
			dividend_usd Float64,
			deposit_interest_krw Float64,
			exchange_rate Float64,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY (account_id, base_date)`,
		`CREATE TABLE IF NOT EXISTS ` + tableHoldings + ` (
			account_id String,
			base_date Date,
			symbol LowCardinality(String),
			holding_qty Float64,
			market_price Float64,
			eval_amt Float64,
			buy_qty Float64,
			sell_qty Float64
		) ENGINE = MergeTree ORDER BY (account_id, base_date, symbol)`,
		`CREATE TABLE IF NOT EXISTS ` + tablePortfolios + ` (
			id UUID,
			base_date Date,
			model LowCardinality(String),
			symbols Array(String),
			weights Array(Float64),
			description String,
			created_at DateTime
		) ENGINE = MergeTree ORDER BY (base_date, created_at)`,
		`CREATE TABLE IF NOT EXISTS ` + tableProfiles + ` (
			base_date Date,
			period LowCardinality(String),
			symbol LowCardinality(String),
			total_return Float64,
			cagr Float64,
			volatility Float64,
			monthly_volatility Float64,
			sharpe Float64,
			max_drawdown Float64
		) ENGINE = MergeTree ORDER BY (period, base_date, symbol)`,
		`CREATE TABLE IF NOT EXISTS ` + tableCorrelations + ` (
			base_date Date,
			period LowCardinality(String),
			symbol LowCardinality(String),
			targets Array(String),
			correlation Array(Float64),
			distance Array(Float64)
		) ENGINE = MergeTree ORDER BY (period, base_date, symbol)`,
		`CREATE TABLE IF NOT EXISTS ` + tableAssets + ` (
			symbol String,
			asset_type LowCardinality(String),
			category String,
			sub_category String,
			description String
		) ENGINE = ReplacingMergeTree ORDER BY symbol`,
		`CREATE TABLE IF NOT EXISTS ` + tableUniverses + ` (
			id UUID,
			name String,
			description String,
			symbols Array(String),
			created_at DateTime
		) ENGINE = ReplacingMergeTree ORDER BY (name, id)`,
	}
}

// Date columns travel through database/sql as time.Time at UTC midnight.

func dateArg(d timeseries.Date) time.Time { return d.Time() }

func scanDate(t time.Time) timeseries.Date { return timeseries.DateOf(t.UTC()) }
