package analytics

import (
	"fmt"
	"math"

	"Pasture/internal/domain/models"
	"Pasture/internal/services/features"
	"Pasture/pkg/timeseries"
)

// RebalanceConfig controls the simulation loop.
type RebalanceConfig struct {
	LookbackDays int     // rows of returns fed to the allocator
	MinDays      int     // rows that must pass between two rebalances
	Threshold    float64 // drift that triggers a rebalance; 0 means DriftThreshold(N)
}

func DefaultRebalanceConfig() RebalanceConfig {
	return RebalanceConfig{LookbackDays: 180, MinDays: 20}
}

// DriftThreshold is 1/(ln N * sqrt N).
func DriftThreshold(n int) float64 {
	if n < 2 {
		return math.Inf(1)
	}
	fn := float64(n)
	return 1 / math.Log(fn) / math.Sqrt(fn)
}

// Drift is half the L1 distance between two weight vectors.
func Drift(current, target map[string]float64) float64 {
	d := 0.0
	for s, w := range target {
		d += math.Abs(current[s] - w)
	}
	for s, w := range current {
		if _, ok := target[s]; !ok {
			d += math.Abs(w)
		}
	}
	return d / 2
}

// Rebalance is one allocation decision.
type Rebalance struct {
	Date    timeseries.Date
	Weights models.Weights
	Drift   float64
}

// SimulationResult holds the decisions and the realized series of a simulation.
type SimulationResult struct {
	History          []Rebalance
	Dates            []timeseries.Date
	Returns          []float64 // daily portfolio returns aligned with Dates
	CumulativeReturn float64
	Volatility       float64
	From             timeseries.Date
	To               timeseries.Date
}

// Latest returns the last decision.
func (r *SimulationResult) Latest() Rebalance {
	return r.History[len(r.History)-1]
}

// Simulator replays an allocator over a price panel.
type Simulator struct {
	alloc *Allocator
	cfg   RebalanceConfig
}

func NewSimulator(alloc *Allocator, cfg RebalanceConfig) *Simulator {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 180
	}
	if cfg.MinDays < 0 {
		cfg.MinDays = 0
	}
	return &Simulator{alloc: alloc, cfg: cfg}
}

// Run allocates on the first full lookback window, lets weights drift with
// prices, and reallocates when at least MinDays have passed and drift exceeds
// the threshold. Panels shorter than the lookback get one allocation over all rows.
func (s *Simulator) Run(prices *timeseries.Table) (*SimulationResult, error) {
	if prices == nil || prices.Empty() || prices.Len() < 2 {
		return nil, &models.EmptySeriesError{What: "simulation"}
	}
	returns := prices.PctChange(1)
	n := returns.Len()
	cols := returns.Columns()
	threshold := s.cfg.Threshold
	if threshold <= 0 {
		threshold = DriftThreshold(len(cols))
	}
	first, _ := prices.FirstDate()
	last, _ := prices.LastDate()
	res := &SimulationResult{From: first, To: last}

	allocate := func(end int) (models.Weights, error) {
		start := end - s.cfg.LookbackDays + 1
		if start < 1 {
			start = 1
		}
		window := returns.Slice(returns.DateAt(start), returns.DateAt(end))
		a, err := s.alloc.Allocate(window)
		if err != nil {
			return nil, fmt.Errorf("allocate at %s: %w", returns.DateAt(end), err)
		}
		return a.Weights, nil
	}

	begin := s.cfg.LookbackDays
	if begin > n-1 {
		begin = n - 1
	}
	target, err := allocate(begin)
	if err != nil {
		return nil, err
	}
	res.History = append(res.History, Rebalance{Date: returns.DateAt(begin), Weights: target})
	current := target.Map()
	targetMap := target.Map()
	lastRebalance := begin

	for t := begin + 1; t < n; t++ {
		row := returns.Row(t)
		pr := 0.0
		for j, c := range cols {
			r := row[j]
			if math.IsNaN(r) {
				r = 0
			}
			pr += current[c] * r
		}
		for j, c := range cols {
			r := row[j]
			if math.IsNaN(r) {
				r = 0
			}
			if 1+pr != 0 {
				current[c] = current[c] * (1 + r) / (1 + pr)
			}
		}
		res.Dates = append(res.Dates, returns.DateAt(t))
		res.Returns = append(res.Returns, pr)

		drift := Drift(current, targetMap)
		if t-lastRebalance < s.cfg.MinDays || drift <= threshold {
			continue
		}
		target, err = allocate(t)
		if err != nil {
			return nil, err
		}
		res.History = append(res.History, Rebalance{Date: returns.DateAt(t), Weights: target, Drift: drift})
		current = target.Map()
		targetMap = target.Map()
		lastRebalance = t
	}

	res.CumulativeReturn = features.CompoundLog(res.Returns)
	res.Volatility = features.StdDev(res.Returns)
	return res, nil
}
