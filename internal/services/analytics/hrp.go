package analytics

import (
	"math"
	"sort"

	"Pasture/internal/domain/models"
	"Pasture/pkg/timeseries"

	"github.com/shopspring/decimal"
)

// AllocatorConfig tunes an HRP allocator.
type AllocatorConfig struct {
	Linkage    LinkageMethod
	Method     CorrMethod
	MinPeriods int
	Estimator  EstimatorConfig
}

type AllocatorOption func(*AllocatorConfig)

func WithLinkage(m LinkageMethod) AllocatorOption {
	return func(c *AllocatorConfig) { c.Linkage = m }
}

func WithCorrMethod(m CorrMethod) AllocatorOption {
	return func(c *AllocatorConfig) { c.Method = m }
}

func WithMinPeriods(n int) AllocatorOption {
	return func(c *AllocatorConfig) { c.MinPeriods = n }
}

func WithTemperature(t float64) AllocatorOption {
	return func(c *AllocatorConfig) { c.Estimator.Temperature = t }
}

func WithRiskFree(rate float64, periodsPerYear float64) AllocatorOption {
	return func(c *AllocatorConfig) {
		c.Estimator.RiskFree = rate
		c.Estimator.PeriodsPerYear = periodsPerYear
	}
}

// Allocator runs linkage, quasi-diagonalization and recursive bisection.
type Allocator struct {
	kind      models.ModelKind
	cfg       AllocatorConfig
	estimator VarianceEstimator
}

// Allocation is the outcome of one run. Weights are unrounded and follow the
// column order of the input; Order is the quasi-diagonal symbol order.
type Allocation struct {
	Weights     models.Weights
	Order       []string
	Correlation *Matrix
	Distance    *Matrix // rows and columns in Order
	Merges      []Merge
}

func NewAllocator(kind models.ModelKind, opts ...AllocatorOption) (*Allocator, error) {
	cfg := AllocatorConfig{
		Linkage:    LinkageSingle,
		Method:     Pearson,
		MinPeriods: 20,
		Estimator:  EstimatorConfig{Temperature: 0.5, PeriodsPerYear: 252},
	}
	for _, o := range opts {
		o(&cfg)
	}
	est, err := NewEstimator(kind, cfg.Estimator)
	if err != nil {
		return nil, err
	}
	return &Allocator{kind: kind, cfg: cfg, estimator: est}, nil
}

func (a *Allocator) Kind() models.ModelKind { return a.kind }

// Allocate derives weights from a table of period returns.
func (a *Allocator) Allocate(returns *timeseries.Table) (*Allocation, error) {
	if returns == nil || returns.Empty() {
		return nil, &models.EmptySeriesError{What: "allocation"}
	}
	if returns.Width() == 1 {
		sym := returns.Columns()[0]
		return &Allocation{
			Weights: models.Weights{{Symbol: sym, Weight: 1}},
			Order:   []string{sym},
		}, nil
	}
	corr, err := CorrelationMatrix(returns, a.cfg.Method, a.cfg.MinPeriods)
	if err != nil {
		return nil, err
	}
	cov, err := Covariance(returns)
	if err != nil {
		return nil, err
	}
	means := make([]float64, returns.Width())
	for j, c := range returns.Columns() {
		means[j] = mean(dropNaN(returns.Column(c)))
	}
	return a.Solve(corr, cov, means)
}

// Solve allocates over precomputed matrices. cov and corr share labels; means may be nil.
func (a *Allocator) Solve(corr, cov *Matrix, means []float64) (*Allocation, error) {
	if corr.Size() == 0 || corr.HasNaN() || cov.HasNaN() {
		return nil, &models.EmptySeriesError{What: "allocation"}
	}
	dist := Distance(corr)
	merges, err := Linkage(dist, a.cfg.Linkage)
	if err != nil {
		return nil, err
	}
	order := QuasiDiagonal(merges, corr.Size())
	w := Bisect(cov, order, means, a.estimator)

	out := make(models.Weights, len(w))
	for i, label := range corr.Labels {
		out[i] = models.WeightEntry{Symbol: label, Weight: w[i]}
	}
	names := make([]string, len(order))
	for k, i := range order {
		names[k] = corr.Labels[i]
	}
	return &Allocation{
		Weights:     out,
		Order:       names,
		Correlation: corr,
		Distance:    dist.Reorder(order),
		Merges:      merges,
	}, nil
}

// Bisect splits the ordered items in halves, giving each half a share of its
// parent's weight inversely proportional to the half's estimated variance.
func Bisect(cov *Matrix, order []int, means []float64, est VarianceEstimator) []float64 {
	w := make([]float64, cov.Size())
	for _, i := range order {
		w[i] = 1
	}
	clusters := [][]int{order}
	for len(clusters) > 0 {
		var next [][]int
		for _, c := range clusters {
			if len(c) < 2 {
				continue
			}
			half := len(c) / 2
			left, right := c[:half], c[half:]
			vl := est.ClusterVariance(subCovariance(cov, left, means))
			vr := est.ClusterVariance(subCovariance(cov, right, means))
			alpha := 0.5
			if s := vl + vr; s > 0 && !math.IsNaN(s) && !math.IsInf(s, 0) {
				alpha = 1 - vl/s
			}
			alpha = math.Min(math.Max(alpha, 1e-9), 1-1e-9)
			for _, i := range left {
				w[i] *= alpha
			}
			for _, i := range right {
				w[i] *= 1 - alpha
			}
			next = append(next, left, right)
		}
		clusters = next
	}
	return w
}

func subCovariance(cov *Matrix, idx []int, means []float64) SubCovariance {
	sub := SubCovariance{Cov: cov.Sub(idx)}
	if len(means) == cov.Size() {
		sub.Mean = make([]float64, len(idx))
		for k, i := range idx {
			sub.Mean[k] = means[i]
		}
	}
	return sub
}

// RoundWeights rounds to places decimals and adds the rounding residual to the
// largest entry so the total is exactly one. The result is sorted ascending.
func RoundWeights(w models.Weights, places int32) models.Weights {
	out := append(models.Weights(nil), w...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight < out[j].Weight
		}
		return out[i].Symbol < out[j].Symbol
	})
	if len(out) == 0 {
		return out
	}
	total := decimal.Zero
	rounded := make([]decimal.Decimal, len(out))
	for i, e := range out {
		rounded[i] = decimal.NewFromFloat(e.Weight).Round(places)
		total = total.Add(rounded[i])
	}
	last := len(out) - 1
	rounded[last] = rounded[last].Add(decimal.NewFromInt(1).Sub(total))
	for i := range out {
		out[i].Weight = rounded[i].InexactFloat64()
	}
	return out
}

// PercentWeights scales weights to percent rounded to places decimals.
func PercentWeights(w models.Weights, places int32) models.Weights {
	out := make(models.Weights, len(w))
	for i, e := range w {
		out[i] = models.WeightEntry{
			Symbol: e.Symbol,
			Weight: decimal.NewFromFloat(e.Weight).Mul(decimal.NewFromInt(100)).Round(places).InexactFloat64(),
		}
	}
	return out
}

func dropNaN(xs []float64) []float64 {
	out := xs[:0:0]
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}
