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

	"github.com/google/uuid"
)

// CHMarketRepository reads prices, exchange rates, assets and universes.
type CHMarketRepository struct {
	db *sql.DB
	ch *pkgch.Client
}

var (
	_ repository.PriceRepository        = (*CHMarketRepository)(nil)
	_ repository.ExchangeRateRepository = (*CHMarketRepository)(nil)
	_ repository.AssetRepository        = (*CHMarketRepository)(nil)
	_ repository.UniverseRepository     = (*CHMarketRepository)(nil)
)

func NewCHMarketRepository(ch *pkgch.Client) *CHMarketRepository {
	return &CHMarketRepository{db: ch.DB(), ch: ch}
}

const priceColumns = "symbol, base_date, open, high, low, close, adj_close, volume"

func (r *CHMarketRepository) ListPrices(ctx context.Context, symbols []string, from, to timeseries.Date) ([]models.PriceBar, error) {
	w := where{}
	if len(symbols) > 0 {
		w.add("symbol IN ?", symbols)
	}
	w.dateRange("base_date", from, to)
	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY base_date, symbol", priceColumns, tablePrices, w.sql())
	return r.queryPrices(ctx, q, w.args...)
}

func (r *CHMarketRepository) LatestPrices(ctx context.Context, symbols []string) ([]models.PriceBar, error) {
	w := where{}
	if len(symbols) > 0 {
		w.add("symbol IN ?", symbols)
	}
	q := fmt.Sprintf("SELECT %s FROM %s FINAL%s ORDER BY symbol, base_date DESC LIMIT 1 BY symbol",
		priceColumns, tablePrices, w.sql())
	return r.queryPrices(ctx, q, w.args...)
}

func (r *CHMarketRepository) queryPrices(ctx context.Context, q string, args ...any) ([]models.PriceBar, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var out []models.PriceBar
	for rows.Next() {
		var (
			b  models.PriceBar
			bd time.Time
		)
		if err := rows.Scan(&b.Symbol, &bd, &b.Open, &b.High, &b.Low, &b.Close, &b.AdjClose, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		b.BaseDate = scanDate(bd)
		out = append(out, b)
	}
	return out, rows.Err()
}

// InsertPrices loads raw bars; used by the CLI import and tests.
func (r *CHMarketRepository) InsertPrices(ctx context.Context, bars []models.PriceBar) error {
	rows := make([][]any, len(bars))
	for i, b := range bars {
		rows[i] = []any{b.Symbol, dateArg(b.BaseDate), b.Open, b.High, b.Low, b.Close, b.AdjClose, b.Volume}
	}
	return r.ch.BulkInsert(ctx, tablePrices, strings.Split(priceColumns, ", "), rows)
}

func (r *CHMarketRepository) ListRates(ctx context.Context, currency string, from, to timeseries.Date) ([]models.ExchangeRateQuote, error) {
	w := where{}
	w.add("currency_code = ?", currency)
	w.dateRange("base_date", from, to)
	q := fmt.Sprintf("SELECT currency_code, base_date, trading_rate FROM %s FINAL%s ORDER BY base_date", tableRates, w.sql())
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query rates: %w", err)
	}
	defer rows.Close()

	var out []models.ExchangeRateQuote
	for rows.Next() {
		var (
			q  models.ExchangeRateQuote
			bd time.Time
		)
		if err := rows.Scan(&q.CurrencyCode, &bd, &q.TradingRate); err != nil {
			return nil, fmt.Errorf("scan rate: %w", err)
		}
		q.BaseDate = scanDate(bd)
		out = append(out, q)
	}
	return out, rows.Err()
}

func (r *CHMarketRepository) ListAssets(ctx context.Context, assetType models.AssetType) ([]models.Asset, error) {
	w := where{}
	if assetType != "" {
		w.add("asset_type = ?", string(assetType))
	}
	q := fmt.Sprintf("SELECT symbol, asset_type, category, sub_category, description FROM %s FINAL%s ORDER BY symbol", tableAssets, w.sql())
	rows, err := r.db.QueryContext(ctx, q, w.args...)
	if err != nil {
		return nil, fmt.Errorf("query assets: %w", err)
	}
	defer rows.Close()

	var out []models.Asset
	for rows.Next() {
		var (
			a  models.Asset
			at string
		)
		if err := rows.Scan(&a.Symbol, &at, &a.Category, &a.SubCategory, &a.Description); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		a.AssetType = models.AssetType(at)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *CHMarketRepository) FindUniverses(ctx context.Context, name string) ([]models.AssetUniverse, error) {
	q := fmt.Sprintf("SELECT id, name, description, symbols, created_at FROM %s FINAL WHERE name = ? ORDER BY created_at", tableUniverses)
	rows, err := r.db.QueryContext(ctx, q, name)
	if err != nil {
		return nil, fmt.Errorf("query universes: %w", err)
	}
	defer rows.Close()

	var out []models.AssetUniverse
	for rows.Next() {
		var u models.AssetUniverse
		if err := rows.Scan(&u.ID, &u.Name, &u.Description, &u.Symbols, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan universe: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// InsertUniverse stores a universe, assigning an id when missing.
func (r *CHMarketRepository) InsertUniverse(ctx context.Context, u *models.AssetUniverse) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return r.ch.BulkInsert(ctx, tableUniverses,
		[]string{"id", "name", "description", "symbols", "created_at"},
		[][]any{{u.ID, u.Name, u.Description, u.Symbols, u.CreatedAt}})
}

// where accumulates AND-ed predicates with their positional args.
type where struct {
	preds []string
	args  []any
}

func (w *where) add(pred string, args ...any) {
	w.preds = append(w.preds, pred)
	w.args = append(w.args, args...)
}

// dateRange adds inclusive bounds; zero dates leave that side open.
func (w *where) dateRange(col string, from, to timeseries.Date) {
	if !from.IsZero() {
		w.add(col+" >= ?", dateArg(from))
	}
	if !to.IsZero() {
		w.add(col+" <= ?", dateArg(to))
	}
}

func (w *where) sql() string {
	if len(w.preds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.preds, " AND ")
}
