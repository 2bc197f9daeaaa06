package analytics

import (
	"fmt"
	"math"

	"Pasture/internal/domain/models"
)

// SubCovariance is the slice of the covariance matrix owned by one cluster,
// with the members' mean period returns when known.
type SubCovariance struct {
	Cov  [][]float64
	Mean []float64
}

// VarianceEstimator scores one cluster during recursive bisection.
type VarianceEstimator interface {
	ClusterVariance(sub SubCovariance) float64
}

const varianceFloor = 1e-18

// InverseVariance weights members by 1/σ² (plain HRP).
type InverseVariance struct{}

func (InverseVariance) ClusterVariance(sub SubCovariance) float64 {
	diag := diagonal(sub.Cov)
	w := make([]float64, len(diag))
	for i, v := range diag {
		w[i] = 1 / math.Max(v, varianceFloor)
	}
	return quadratic(sub.Cov, normalize(w))
}

// Attention weights members with softmax(-ln σ² / T). T = 1 reduces to
// inverse variance; lower temperatures concentrate on the quietest members.
type Attention struct {
	Temperature float64
}

func (a Attention) ClusterVariance(sub SubCovariance) float64 {
	diag := diagonal(sub.Cov)
	scores := make([]float64, len(diag))
	for i, v := range diag {
		scores[i] = -math.Log(math.Max(v, varianceFloor))
	}
	return quadratic(sub.Cov, softmax(scores, a.Temperature))
}

// SharpeAttention adds each member's annualized Sharpe ratio to the attention
// score, so risk-adjusted winners pull weight inside their cluster.
type SharpeAttention struct {
	Temperature    float64
	PeriodsPerYear float64
	RiskFree       float64 // annual
}

func (s SharpeAttention) ClusterVariance(sub SubCovariance) float64 {
	diag := diagonal(sub.Cov)
	periods := s.PeriodsPerYear
	if periods <= 0 {
		periods = 252
	}
	scores := make([]float64, len(diag))
	for i, v := range diag {
		v = math.Max(v, varianceFloor)
		scores[i] = -math.Log(v)
		if i < len(sub.Mean) && !math.IsNaN(sub.Mean[i]) {
			excess := sub.Mean[i] - s.RiskFree/periods
			scores[i] += excess / math.Sqrt(v) * math.Sqrt(periods)
		}
	}
	return quadratic(sub.Cov, softmax(scores, s.Temperature))
}

// EstimatorConfig carries the tunables shared by the attention variants.
type EstimatorConfig struct {
	Temperature    float64
	PeriodsPerYear float64
	RiskFree       float64
}

// NewEstimator selects the variance estimator for a model kind.
func NewEstimator(kind models.ModelKind, cfg EstimatorConfig) (VarianceEstimator, error) {
	switch kind {
	case models.ModelHRP:
		return InverseVariance{}, nil
	case models.ModelAHRP:
		return Attention{Temperature: cfg.Temperature}, nil
	case models.ModelSAHRP:
		return SharpeAttention{Temperature: cfg.Temperature, PeriodsPerYear: cfg.PeriodsPerYear, RiskFree: cfg.RiskFree}, nil
	}
	return nil, fmt.Errorf("unknown model %q", kind)
}

func diagonal(m [][]float64) []float64 {
	out := make([]float64, len(m))
	for i := range m {
		out[i] = m[i][i]
	}
	return out
}

func quadratic(cov [][]float64, w []float64) float64 {
	s := 0.0
	for i := range w {
		for j := range w {
			s += w[i] * cov[i][j] * w[j]
		}
	}
	return s
}

func normalize(w []float64) []float64 {
	s := 0.0
	for _, v := range w {
		s += v
	}
	out := make([]float64, len(w))
	for i, v := range w {
		out[i] = v / s
	}
	return out
}

func softmax(scores []float64, temperature float64) []float64 {
	if temperature <= 0 {
		temperature = 1
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, s)
	}
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = math.Exp((s - maxScore) / temperature)
	}
	return normalize(out)
}
