package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/internal/domain/repository"
	pkgch "Pasture/pkg/clickhouse"
	"Pasture/pkg/timeseries"
)

// CHAccountRepository serves the per-account raw events and derived ledgers.
type CHAccountRepository struct {
	db *sql.DB
	ch *pkgch.Client
}

var (
	_ repository.AccountRepository    = (*CHAccountRepository)(nil)
	_ repository.OrderRepository      = (*CHAccountRepository)(nil)
	_ repository.TradeRepository      = (*CHAccountRepository)(nil)
	_ repository.SettlementRepository = (*CHAccountRepository)(nil)
	_ repository.HoldingRepository    = (*CHAccountRepository)(nil)
)

func NewCHAccountRepository(ch *pkgch.Client) *CHAccountRepository {
	return &CHAccountRepository{db: ch.DB(), ch: ch}
}

func (r *CHAccountRepository) ListActiveAccounts(ctx context.Context) ([]models.Account, error) {
	q := fmt.Sprintf("SELECT account_id, account_type FROM %s FINAL WHERE is_active = 1 ORDER BY account_id", tableAccounts)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a := models.Account{IsActive: true}
		if err := rows.Scan(&a.AccountID, &a.AccountType); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const orderColumns = "account_id, order_date, order_no, symbol, side, executed_qty, executed_price, executed_amount, status, created_at"

func (r *CHAccountRepository) ListOrders(ctx context.Context, accountID string, after timeseries.Date) ([]models.OrderEvent, error) {
	w := where{}
	w.add("account_id = ?", accountID)
	w.add("executed_qty > 0")
	if !after.IsZero() {
		w.add("order_date > ?", dateArg(after))
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY order_date, order_no", orderColumns, tableOrders, w.sql())
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var out []models.OrderEvent
	for rows.Next() {
		var (
			o    models.OrderEvent
			od   time.Time
			side string
		)
		if err := rows.Scan(&o.AccountID, &od, &o.OrderNo, &o.Symbol, &side,
			&o.ExecutedQty, &o.ExecutedPrice, &o.ExecutedAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.OrderDate = scanDate(od)
		o.Side = models.Side(side)
		out = append(out, o)
	}
	return out, rows.Err()
}

const tradeColumns = "account_id, trade_date, trade_type, trade_amount, settle_amount, tax, vat, currency_code, symbol, created_at"

func (r *CHAccountRepository) ListTrades(ctx context.Context, accountID string, after timeseries.Date) ([]models.TradeEvent, error) {
	w := where{}
	w.add("account_id = ?", accountID)
	if !after.IsZero() {
		w.add("trade_date > ?", dateArg(after))
	}
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY trade_date, created_at", tradeColumns, tableTrades, w.sql())
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.TradeEvent
	for rows.Next() {
		var (
			t     models.TradeEvent
			td    time.Time
			ttype string
		)
		if err := rows.Scan(&t.AccountID, &td, &ttype, &t.TradeAmount, &t.SettleAmount,
			&t.Tax, &t.VAT, &t.CurrencyCode, &t.Symbol, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.TradeDate = scanDate(td)
		t.TradeType = models.TradeType(ttype)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *CHAccountRepository) HasLateTrade(ctx context.Context, accountID string, onOrBefore timeseries.Date, since time.Time) (bool, error) {
	q := fmt.Sprintf("SELECT count() FROM %s WHERE account_id = ? AND trade_date <= ? AND created_at >= ?", tableTrades)
	var n uint64
	if err := r.db.QueryRowContext(ctx, q, accountID, dateArg(onOrBefore), since).Scan(&n); err != nil {
		return false, fmt.Errorf("count late trades: %w", err)
	}
	return n > 0, nil
}

// InsertOrders and InsertTrades load raw events; used by ingest and tests.
func (r *CHAccountRepository) InsertOrders(ctx context.Context, orders []models.OrderEvent) error {
	rows := make([][]any, len(orders))
	for i, o := range orders {
		rows[i] = []any{o.AccountID, dateArg(o.OrderDate), o.OrderNo, o.Symbol, string(o.Side),
			o.ExecutedQty, o.ExecutedPrice, o.ExecutedAmount, o.Status, o.CreatedAt}
	}
	return r.ch.BulkInsert(ctx, tableOrders, strings.Split(orderColumns, ", "), rows)
}

func (r *CHAccountRepository) InsertTrades(ctx context.Context, trades []models.TradeEvent) error {
	rows := make([][]any, len(trades))
	for i, t := range trades {
		rows[i] = []any{t.AccountID, dateArg(t.TradeDate), string(t.TradeType), t.TradeAmount,
			t.SettleAmount, t.Tax, t.VAT, t.CurrencyCode, t.Symbol, t.CreatedAt}
	}
	return r.ch.BulkInsert(ctx, tableTrades, strings.Split(tradeColumns, ", "), rows)
}

const settlementColumns = "account_id, base_date, base_amount_krw, base_io_krw, base_io_usd, dividend_usd, deposit_interest_krw, exchange_rate, created_at"

func (r *CHAccountRepository) LastSettlement(ctx context.Context, accountID string) (*models.SettlementRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE account_id = ? ORDER BY base_date DESC LIMIT 1", settlementColumns, tableSettlements)
	recs, err := r.querySettlements(ctx, q, accountID)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return &recs[0], nil
}

func (r *CHAccountRepository) ListSettlements(ctx context.Context, accountID string) ([]models.SettlementRecord, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE account_id = ? ORDER BY base_date DESC", settlementColumns, tableSettlements)
	return r.querySettlements(ctx, q, accountID)
}

func (r *CHAccountRepository) querySettlements(ctx context.Context, q string, args ...any) ([]models.SettlementRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query settlements: %w", err)
	}
	defer rows.Close()

	var out []models.SettlementRecord
	for rows.Next() {
		var (
			s  models.SettlementRecord
			bd time.Time
		)
		if err := rows.Scan(&s.AccountID, &bd, &s.BaseAmountKRW, &s.BaseIOKRW, &s.BaseIOUSD,
			&s.DividendUSD, &s.DepositInterestKRW, &s.ExchangeRate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan settlement: %w", err)
		}
		s.BaseDate = scanDate(bd)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *CHAccountRepository) InsertSettlements(ctx context.Context, records []models.SettlementRecord) error {
	rows := make([][]any, len(records))
	for i, s := range records {
		rows[i] = []any{s.AccountID, dateArg(s.BaseDate), s.BaseAmountKRW, s.BaseIOKRW, s.BaseIOUSD,
			s.DividendUSD, s.DepositInterestKRW, s.ExchangeRate, s.CreatedAt}
	}
	return r.ch.BulkInsert(ctx, tableSettlements, strings.Split(settlementColumns, ", "), rows)
}

func (r *CHAccountRepository) DeleteSettlementsFrom(ctx context.Context, accountID string, from timeseries.Date) (int, error) {
	return deleteWhere(ctx, r.db, tableSettlements, "account_id = ? AND base_date >= ?", accountID, dateArg(from))
}

const holdingColumns = "account_id, base_date, symbol, holding_qty, market_price, eval_amt, buy_qty, sell_qty"

func (r *CHAccountRepository) LastHoldings(ctx context.Context, accountID string) ([]models.HoldingRecord, error) {
	q := fmt.Sprintf(`SELECT %[1]s FROM %[2]s
		WHERE account_id = ? AND base_date = (SELECT max(base_date) FROM %[2]s WHERE account_id = ?)
		ORDER BY symbol`, holdingColumns, tableHoldings)
	return r.queryHoldings(ctx, q, accountID, accountID)
}

func (r *CHAccountRepository) ListHoldings(ctx context.Context, accountID string, from, to timeseries.Date) ([]models.HoldingRecord, error) {
	w := where{}
	w.add("account_id = ?", accountID)
	w.dateRange("base_date", from, to)
	q := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY base_date, symbol", holdingColumns, tableHoldings, w.sql())
	return r.queryHoldings(ctx, q, w.args...)
}

func (r *CHAccountRepository) queryHoldings(ctx context.Context, q string, args ...any) ([]models.HoldingRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query holdings: %w", err)
	}
	defer rows.Close()

	var out []models.HoldingRecord
	for rows.Next() {
		var (
			h  models.HoldingRecord
			bd time.Time
		)
		if err := rows.Scan(&h.AccountID, &bd, &h.Symbol, &h.HoldingQty, &h.MarketPrice,
			&h.EvalAmt, &h.BuyQty, &h.SellQty); err != nil {
			return nil, fmt.Errorf("scan holding: %w", err)
		}
		h.BaseDate = scanDate(bd)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *CHAccountRepository) InsertHoldings(ctx context.Context, records []models.HoldingRecord) error {
	rows := make([][]any, len(records))
	for i, h := range records {
		rows[i] = []any{h.AccountID, dateArg(h.BaseDate), h.Symbol, h.HoldingQty, h.MarketPrice,
			h.EvalAmt, h.BuyQty, h.SellQty}
	}
	return r.ch.BulkInsert(ctx, tableHoldings, strings.Split(holdingColumns, ", "), rows)
}

// deleteWhere counts the matching rows and removes them with a lightweight
// DELETE. The count is returned for logging.
func deleteWhere(ctx context.Context, db *sql.DB, table, pred string, args ...any) (int, error) {
	var n uint64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT count() FROM %s WHERE %s", table, pred), args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, pred), args...); err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return int(n), nil
}
