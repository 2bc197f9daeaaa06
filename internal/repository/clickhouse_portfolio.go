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

// CHPortfolioRepository persists allocation snapshots, asset profiles and
// correlation snapshots.
type CHPortfolioRepository struct {
	db *sql.DB
	ch *pkgch.Client
}

var (
	_ repository.PortfolioRepository   = (*CHPortfolioRepository)(nil)
	_ repository.ProfileRepository     = (*CHPortfolioRepository)(nil)
	_ repository.CorrelationRepository = (*CHPortfolioRepository)(nil)
)

func NewCHPortfolioRepository(ch *pkgch.Client) *CHPortfolioRepository {
	return &CHPortfolioRepository{db: ch.DB(), ch: ch}
}

func (r *CHPortfolioRepository) PortfolioExists(ctx context.Context, baseDate timeseries.Date) (bool, error) {
	return exists(ctx, r.db, tablePortfolios, "base_date = ?", dateArg(baseDate))
}

func (r *CHPortfolioRepository) InsertPortfolio(ctx context.Context, p *models.PortfolioSnapshot) error {
	symbols := make([]string, len(p.Weights))
	weights := make([]float64, len(p.Weights))
	for i, w := range p.Weights {
		symbols[i], weights[i] = w.Symbol, w.Weight
	}
	return r.ch.BulkInsert(ctx, tablePortfolios,
		[]string{"id", "base_date", "model", "symbols", "weights", "description", "created_at"},
		[][]any{{p.ID, dateArg(p.BaseDate), string(p.Model), symbols, weights, p.Description, p.CreatedAt}})
}

func (r *CHPortfolioRepository) LatestPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error) {
	q := fmt.Sprintf(`SELECT id, base_date, model, symbols, weights, description, created_at
		FROM %s ORDER BY base_date DESC, created_at DESC LIMIT 1`, tablePortfolios)
	var (
		p       models.PortfolioSnapshot
		bd      time.Time
		model   string
		symbols []string
		weights []float64
	)
	err := r.db.QueryRowContext(ctx, q).Scan(&p.ID, &bd, &model, &symbols, &weights, &p.Description, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query portfolio: %w", err)
	}
	if len(symbols) != len(weights) {
		return nil, fmt.Errorf("portfolio %s: %d symbols for %d weights", p.ID, len(symbols), len(weights))
	}
	p.BaseDate = scanDate(bd)
	p.Model = models.ModelKind(model)
	p.Weights = make(models.Weights, len(symbols))
	for i := range symbols {
		p.Weights[i] = models.WeightEntry{Symbol: symbols[i], Weight: weights[i]}
	}
	return &p, nil
}

func (r *CHPortfolioRepository) ProfileExists(ctx context.Context, baseDate timeseries.Date, period models.Period) (bool, error) {
	return exists(ctx, r.db, tableProfiles, "base_date = ? AND period = ?", dateArg(baseDate), string(period))
}

const profileColumns = "base_date, period, symbol, total_return, cagr, volatility, monthly_volatility, sharpe, max_drawdown"

func (r *CHPortfolioRepository) InsertProfiles(ctx context.Context, profiles []models.AssetProfile) error {
	rows := make([][]any, len(profiles))
	for i, p := range profiles {
		rows[i] = []any{dateArg(p.BaseDate), string(p.Period), p.Symbol, p.TotalReturn, p.CAGR,
			p.Volatility, p.MonthlyVolatility, p.Sharpe, p.MaxDrawdown}
	}
	return r.ch.BulkInsert(ctx, tableProfiles, strings.Split(profileColumns, ", "), rows)
}

func (r *CHPortfolioRepository) DeleteProfilesExcept(ctx context.Context, period models.Period, keep timeseries.Date) (int, error) {
	return deleteWhere(ctx, r.db, tableProfiles, "period = ? AND base_date != ?", string(period), dateArg(keep))
}

// ListProfiles returns the stored profiles of a period, by symbol.
func (r *CHPortfolioRepository) ListProfiles(ctx context.Context, period models.Period) ([]models.AssetProfile, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE period = ? ORDER BY symbol", profileColumns, tableProfiles)
	rows, err := r.db.QueryContext(ctx, q, string(period))
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []models.AssetProfile
	for rows.Next() {
		var (
			p   models.AssetProfile
			bd  time.Time
			per string
		)
		if err := rows.Scan(&bd, &per, &p.Symbol, &p.TotalReturn, &p.CAGR, &p.Volatility,
			&p.MonthlyVolatility, &p.Sharpe, &p.MaxDrawdown); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		p.BaseDate = scanDate(bd)
		p.Period = models.Period(per)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *CHPortfolioRepository) CorrelationExists(ctx context.Context, baseDate timeseries.Date, period models.Period) (bool, error) {
	return exists(ctx, r.db, tableCorrelations, "base_date = ? AND period = ?", dateArg(baseDate), string(period))
}

// InsertCorrelations stores one row per symbol. Correlation and distance
// share the target list, so both slices must name targets in the same order.
func (r *CHPortfolioRepository) InsertCorrelations(ctx context.Context, snaps []models.AssetCorrelationSnapshot) error {
	rows := make([][]any, 0, len(snaps))
	for _, s := range snaps {
		if len(s.Correlation) != len(s.Distance) {
			return fmt.Errorf("correlation row %s: %d correlations for %d distances", s.Symbol, len(s.Correlation), len(s.Distance))
		}
		targets := make([]string, len(s.Correlation))
		corr := make([]float64, len(s.Correlation))
		dist := make([]float64, len(s.Distance))
		for i := range s.Correlation {
			if s.Distance[i].Target != s.Correlation[i].Target {
				return fmt.Errorf("correlation row %s: target mismatch at %d", s.Symbol, i)
			}
			targets[i] = s.Correlation[i].Target
			corr[i] = s.Correlation[i].Value
			dist[i] = s.Distance[i].Value
		}
		rows = append(rows, []any{dateArg(s.BaseDate), string(s.Period), s.Symbol, targets, corr, dist})
	}
	return r.ch.BulkInsert(ctx, tableCorrelations,
		[]string{"base_date", "period", "symbol", "targets", "correlation", "distance"}, rows)
}

func (r *CHPortfolioRepository) DeleteCorrelationsExcept(ctx context.Context, period models.Period, keep timeseries.Date) (int, error) {
	return deleteWhere(ctx, r.db, tableCorrelations, "period = ? AND base_date != ?", string(period), dateArg(keep))
}

func exists(ctx context.Context, db *sql.DB, table, pred string, args ...any) (bool, error) {
	var n uint8
	q := fmt.Sprintf("SELECT count() > 0 FROM %s WHERE %s", table, pred)
	if err := db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("exists %s: %w", table, err)
	}
	return n == 1, nil
}
