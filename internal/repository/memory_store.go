package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"Pasture/internal/domain/models"
	"Pasture/internal/domain/repository"
	"Pasture/pkg/timeseries"
)

// MemoryStore keeps every table in process. It backs tests and the
// `backend: memory` mode.
type MemoryStore struct {
	mu           sync.RWMutex
	prices       map[string]map[timeseries.Date]models.PriceBar
	rates        []models.ExchangeRateQuote
	accounts     []models.Account
	orders       []models.OrderEvent
	trades       []models.TradeEvent
	settlements  map[string][]models.SettlementRecord
	holdings     map[string][]models.HoldingRecord
	portfolios   []models.PortfolioSnapshot
	profiles     []models.AssetProfile
	correlations []models.AssetCorrelationSnapshot
	assets       []models.Asset
	universes    []models.AssetUniverse
}

var (
	_ repository.PriceRepository        = (*MemoryStore)(nil)
	_ repository.ExchangeRateRepository = (*MemoryStore)(nil)
	_ repository.AccountRepository      = (*MemoryStore)(nil)
	_ repository.OrderRepository        = (*MemoryStore)(nil)
	_ repository.TradeRepository        = (*MemoryStore)(nil)
	_ repository.SettlementRepository   = (*MemoryStore)(nil)
	_ repository.HoldingRepository      = (*MemoryStore)(nil)
	_ repository.PortfolioRepository    = (*MemoryStore)(nil)
	_ repository.AssetRepository        = (*MemoryStore)(nil)
	_ repository.UniverseRepository     = (*MemoryStore)(nil)
	_ repository.ProfileRepository      = (*MemoryStore)(nil)
	_ repository.CorrelationRepository  = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prices:      make(map[string]map[timeseries.Date]models.PriceBar),
		settlements: make(map[string][]models.SettlementRecord),
		holdings:    make(map[string][]models.HoldingRecord),
	}
}

// Seeding.

// AddPrices upserts bars by (symbol, date).
func (m *MemoryStore) AddPrices(bars ...models.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range bars {
		bySym := m.prices[b.Symbol]
		if bySym == nil {
			bySym = make(map[timeseries.Date]models.PriceBar)
			m.prices[b.Symbol] = bySym
		}
		bySym[b.BaseDate] = b
	}
}

func (m *MemoryStore) AddRates(quotes ...models.ExchangeRateQuote) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = append(m.rates, quotes...)
}

func (m *MemoryStore) AddAccounts(accounts ...models.Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, accounts...)
}

func (m *MemoryStore) AddOrders(orders ...models.OrderEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders = append(m.orders, orders...)
}

// AddTrades appends trades; a zero CreatedAt is stamped with now.
func (m *MemoryStore) AddTrades(trades ...models.TradeEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, t := range trades {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		m.trades = append(m.trades, t)
	}
}

func (m *MemoryStore) AddAssets(assets ...models.Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets = append(m.assets, assets...)
}

func (m *MemoryStore) AddUniverses(universes ...models.AssetUniverse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.universes = append(m.universes, universes...)
}

// Market data.

func (m *MemoryStore) ListPrices(_ context.Context, symbols []string, from, to timeseries.Date) ([]models.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PriceBar
	for _, sym := range m.symbols(symbols) {
		for d, b := range m.prices[sym] {
			if inRange(d, from, to) {
				out = append(out, b)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].BaseDate.Compare(out[j].BaseDate); c != 0 {
			return c < 0
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out, nil
}

func (m *MemoryStore) LatestPrices(_ context.Context, symbols []string) ([]models.PriceBar, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.PriceBar
	for _, sym := range m.symbols(symbols) {
		var (
			best  models.PriceBar
			found bool
		)
		for d, b := range m.prices[sym] {
			if !found || d.After(best.BaseDate) {
				best, found = b, true
			}
		}
		if found {
			out = append(out, best)
		}
	}
	return out, nil
}

// symbols returns the requested symbols, or every stored one sorted when none are given.
func (m *MemoryStore) symbols(req []string) []string {
	if len(req) > 0 {
		return req
	}
	out := make([]string, 0, len(m.prices))
	for s := range m.prices {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func (m *MemoryStore) ListRates(_ context.Context, currency string, from, to timeseries.Date) ([]models.ExchangeRateQuote, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ExchangeRateQuote
	for _, q := range m.rates {
		if q.CurrencyCode == currency && inRange(q.BaseDate, from, to) {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].BaseDate.Before(out[j].BaseDate) })
	return out, nil
}

func (m *MemoryStore) ListAssets(_ context.Context, assetType models.AssetType) ([]models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Asset
	for _, a := range m.assets {
		if assetType == "" || a.AssetType == assetType {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MemoryStore) FindUniverses(_ context.Context, name string) ([]models.AssetUniverse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssetUniverse
	for _, u := range m.universes {
		if u.Name == name {
			out = append(out, u)
		}
	}
	return out, nil
}

// Accounts and raw events.

func (m *MemoryStore) ListActiveAccounts(context.Context) ([]models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Account
	for _, a := range m.accounts {
		if a.IsActive {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}

func (m *MemoryStore) ListOrders(_ context.Context, accountID string, after timeseries.Date) ([]models.OrderEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.OrderEvent
	for _, o := range m.orders {
		if o.AccountID == accountID && o.ExecutedQty > 0 && (after.IsZero() || o.OrderDate.After(after)) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderDate.Before(out[j].OrderDate) })
	return out, nil
}

func (m *MemoryStore) ListTrades(_ context.Context, accountID string, after timeseries.Date) ([]models.TradeEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.TradeEvent
	for _, t := range m.trades {
		if t.AccountID == accountID && (after.IsZero() || t.TradeDate.After(after)) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TradeDate.Before(out[j].TradeDate) })
	return out, nil
}

func (m *MemoryStore) HasLateTrade(_ context.Context, accountID string, onOrBefore timeseries.Date, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.trades {
		if t.AccountID == accountID && !t.TradeDate.After(onOrBefore) && !t.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

// Settlements, kept oldest first.

func (m *MemoryStore) LastSettlement(_ context.Context, accountID string) (*models.SettlementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.settlements[accountID]
	if len(recs) == 0 {
		return nil, nil
	}
	last := recs[len(recs)-1]
	return &last, nil
}

func (m *MemoryStore) ListSettlements(_ context.Context, accountID string) ([]models.SettlementRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.settlements[accountID]
	out := make([]models.SettlementRecord, len(recs))
	for i := range recs {
		out[i] = recs[len(recs)-1-i]
	}
	return out, nil
}

func (m *MemoryStore) InsertSettlements(_ context.Context, records []models.SettlementRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	touched := map[string]bool{}
	for _, r := range records {
		m.settlements[r.AccountID] = append(m.settlements[r.AccountID], r)
		touched[r.AccountID] = true
	}
	for acc := range touched {
		recs := m.settlements[acc]
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].BaseDate.Before(recs[j].BaseDate) })
	}
	return nil
}

func (m *MemoryStore) DeleteSettlementsFrom(_ context.Context, accountID string, from timeseries.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	recs := m.settlements[accountID]
	kept := recs[:0]
	for _, r := range recs {
		if r.BaseDate.Before(from) {
			kept = append(kept, r)
		}
	}
	n := len(recs) - len(kept)
	m.settlements[accountID] = kept
	return n, nil
}

// Holdings.

func (m *MemoryStore) LastHoldings(_ context.Context, accountID string) ([]models.HoldingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs := m.holdings[accountID]
	if len(recs) == 0 {
		return nil, nil
	}
	last := recs[0].BaseDate
	for _, h := range recs {
		if h.BaseDate.After(last) {
			last = h.BaseDate
		}
	}
	var out []models.HoldingRecord
	for _, h := range recs {
		if h.BaseDate == last {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MemoryStore) ListHoldings(_ context.Context, accountID string, from, to timeseries.Date) ([]models.HoldingRecord, error) {
	var out []models.HoldingRecord
	for _, h := range m.Holdings(accountID) {
		if inRange(h.BaseDate, from, to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertHoldings(_ context.Context, records []models.HoldingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range records {
		m.holdings[h.AccountID] = append(m.holdings[h.AccountID], h)
	}
	return nil
}

// Holdings returns every stored holding row of an account, by date then symbol.
func (m *MemoryStore) Holdings(accountID string) []models.HoldingRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.HoldingRecord(nil), m.holdings[accountID]...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].BaseDate.Compare(out[j].BaseDate); c != 0 {
			return c < 0
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Portfolio snapshots.

func (m *MemoryStore) PortfolioExists(_ context.Context, baseDate timeseries.Date) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.portfolios {
		if p.BaseDate == baseDate {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertPortfolio(_ context.Context, p *models.PortfolioSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	cp.Weights = append(models.Weights(nil), p.Weights...)
	m.portfolios = append(m.portfolios, cp)
	return nil
}

func (m *MemoryStore) LatestPortfolio(context.Context) (*models.PortfolioSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.portfolios) == 0 {
		return nil, nil
	}
	best := m.portfolios[0]
	for _, p := range m.portfolios[1:] {
		if p.BaseDate.After(best.BaseDate) || (p.BaseDate == best.BaseDate && p.CreatedAt.After(best.CreatedAt)) {
			best = p
		}
	}
	return &best, nil
}

// Profiles and correlation snapshots.

func (m *MemoryStore) ProfileExists(_ context.Context, baseDate timeseries.Date, period models.Period) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.profiles {
		if p.BaseDate == baseDate && p.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertProfiles(_ context.Context, profiles []models.AssetProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = append(m.profiles, profiles...)
	return nil
}

func (m *MemoryStore) DeleteProfilesExcept(_ context.Context, period models.Period, keep timeseries.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.profiles[:0]
	for _, p := range m.profiles {
		if p.Period != period || p.BaseDate == keep {
			kept = append(kept, p)
		}
	}
	n := len(m.profiles) - len(kept)
	m.profiles = kept
	return n, nil
}

// Profiles returns the stored profiles of a period.
func (m *MemoryStore) Profiles(period models.Period) []models.AssetProfile {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssetProfile
	for _, p := range m.profiles {
		if p.Period == period {
			out = append(out, p)
		}
	}
	return out
}

func (m *MemoryStore) CorrelationExists(_ context.Context, baseDate timeseries.Date, period models.Period) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.correlations {
		if c.BaseDate == baseDate && c.Period == period {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) InsertCorrelations(_ context.Context, rows []models.AssetCorrelationSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.correlations = append(m.correlations, rows...)
	return nil
}

func (m *MemoryStore) DeleteCorrelationsExcept(_ context.Context, period models.Period, keep timeseries.Date) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.correlations[:0]
	for _, c := range m.correlations {
		if c.Period != period || c.BaseDate == keep {
			kept = append(kept, c)
		}
	}
	n := len(m.correlations) - len(kept)
	m.correlations = kept
	return n, nil
}

// Correlations returns the stored snapshot rows of a period.
func (m *MemoryStore) Correlations(period models.Period) []models.AssetCorrelationSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AssetCorrelationSnapshot
	for _, c := range m.correlations {
		if c.Period == period {
			out = append(out, c)
		}
	}
	return out
}

func inRange(d, from, to timeseries.Date) bool {
	if !from.IsZero() && d.Before(from) {
		return false
	}
	if !to.IsZero() && d.After(to) {
		return false
	}
	return true
}
