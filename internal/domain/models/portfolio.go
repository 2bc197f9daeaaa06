package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"Pasture/pkg/timeseries"

	"github.com/google/uuid"
)

// ModelKind selects the allocator variant.
type ModelKind string

const (
	ModelHRP   ModelKind = "HRP"
	ModelAHRP  ModelKind = "AHRP"
	ModelSAHRP ModelKind = "SAHRP"
)

func ParseModelKind(s string) (ModelKind, error) {
	switch k := ModelKind(s); k {
	case ModelHRP, ModelAHRP, ModelSAHRP:
		return k, nil
	}
	return "", fmt.Errorf("unknown model %q", s)
}

type WeightEntry struct {
	Symbol string  `json:"symbol" validate:"required"`
	Weight float64 `json:"weight" validate:"gte=0"`
}

// Weights is an allocation; the order of entries is meaningful to callers.
type Weights []WeightEntry

// WeightTolerance is how far a weight set may sum away from 1.
const WeightTolerance = 1e-3

func (w Weights) Sum() float64 {
	s := 0.0
	for _, e := range w {
		s += e.Weight
	}
	return s
}

func (w Weights) Map() map[string]float64 {
	m := make(map[string]float64, len(w))
	for _, e := range w {
		m[e.Symbol] = e.Weight
	}
	return m
}

func (w Weights) Symbols() []string {
	out := make([]string, len(w))
	for i, e := range w {
		out[i] = e.Symbol
	}
	return out
}

// SortedDesc returns a copy ordered by descending weight, ties by symbol.
func (w Weights) SortedDesc() Weights {
	out := append(Weights(nil), w...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Symbol < out[j].Symbol
	})
	return out
}

// Validate rejects empty sets, negative or non-finite weights and sums away from 1.
func (w Weights) Validate() error {
	if len(w) == 0 {
		return &InvalidWeightsError{Reason: "no weights"}
	}
	for _, e := range w {
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
			return &InvalidWeightsError{Sum: w.Sum(), Reason: fmt.Sprintf("weight of %s is %v", e.Symbol, e.Weight)}
		}
	}
	if s := w.Sum(); math.Abs(s-1) > WeightTolerance {
		return &InvalidWeightsError{Sum: s, Reason: "weights must sum to 1"}
	}
	return nil
}

// WeightsFromMap builds a weight set ordered by symbol.
func WeightsFromMap(m map[string]float64) Weights {
	out := make(Weights, 0, len(m))
	for s, v := range m {
		out = append(out, WeightEntry{Symbol: s, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// PortfolioSnapshot is a persisted allocation for one date.
type PortfolioSnapshot struct {
	ID          uuid.UUID       `json:"id"`
	BaseDate    timeseries.Date `json:"base_date"`
	Model       ModelKind       `json:"model"`
	Weights     Weights         `json:"weights"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PairValue struct {
	Target string  `json:"target"`
	Value  float64 `json:"value"`
}

// AssetCorrelationSnapshot holds one symbol's row of the correlation and distance matrices.
type AssetCorrelationSnapshot struct {
	BaseDate    timeseries.Date `json:"base_date"`
	Period      Period          `json:"period"`
	Symbol      string          `json:"symbol"`
	Correlation []PairValue     `json:"correlation"`
	Distance    []PairValue     `json:"distance"`
}

// AssetProfile summarizes one symbol's return and risk over a period.
type AssetProfile struct {
	BaseDate          timeseries.Date `json:"base_date"`
	Period            Period          `json:"period"`
	Symbol            string          `json:"symbol"`
	TotalReturn       float64         `json:"total_return"`
	CAGR              float64         `json:"cagr"`
	Volatility        float64         `json:"volatility"`
	MonthlyVolatility float64         `json:"monthly_volatility"`
	Sharpe            float64         `json:"sharpe"`
	MaxDrawdown       float64         `json:"max_drawdown"`
}

// Period is a trailing window label such as 1M or 1Y.
type Period string

const (
	Period1M Period = "1M"
	Period3M Period = "3M"
	Period6M Period = "6M"
	Period1Y Period = "1Y"
	Period3Y Period = "3Y"
	Period5Y Period = "5Y"
)

// ParsePeriod accepts a label such as "1y" or "3M".
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case Period1M, Period3M, Period6M, Period1Y, Period3Y, Period5Y:
		return p, nil
	}
	return "", fmt.Errorf("unknown period %q", s)
}

// From returns the first day of the window ending at to.
func (p Period) From(to timeseries.Date) (timeseries.Date, error) {
	t := to.Time()
	switch p {
	case Period1M:
		t = t.AddDate(0, -1, 0)
	case Period3M:
		t = t.AddDate(0, -3, 0)
	case Period6M:
		t = t.AddDate(0, -6, 0)
	case Period1Y:
		t = t.AddDate(-1, 0, 0)
	case Period3Y:
		t = t.AddDate(-3, 0, 0)
	case Period5Y:
		t = t.AddDate(-5, 0, 0)
	default:
		return timeseries.Date{}, fmt.Errorf("unknown period %q", p)
	}
	return timeseries.DateOf(t), nil
}
