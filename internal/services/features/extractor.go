package features

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// LogReturns computes r_t = ln(p_t / p_{t-1}).
// Non-positive or missing prices yield 0 for that step. Returns nil with fewer than two prices.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if !(prev > 0) || !(cur > 0) {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// SimpleReturns computes p_t / p_{t-1} - 1, skipping pairs with a missing or zero base.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		cur := prices[i]
		if math.IsNaN(prev) || math.IsNaN(cur) || prev == 0 {
			continue
		}
		out = append(out, cur/prev-1)
	}
	return out
}

// CompoundLog returns exp(Σ ln(1+r)) - 1.
func CompoundLog(returns []float64) float64 {
	s := 0.0
	for _, r := range returns {
		if math.IsNaN(r) {
			continue
		}
		s += math.Log1p(r)
	}
	return math.Expm1(s)
}

// Mean ignores NaN values; 0 for an empty input.
func Mean(xs []float64) float64 {
	xs = present(xs)
	if len(xs) == 0 {
		return 0
	}
	return stat.Mean(xs, nil)
}

// StdDev is the sample standard deviation (n-1), ignoring NaN values.
func StdDev(xs []float64) float64 {
	xs = present(xs)
	if len(xs) < 2 {
		return 0
	}
	return stat.StdDev(xs, nil)
}

func present(xs []float64) []float64 {
	out := make([]float64, 0, len(xs))
	for _, x := range xs {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// RealizedVolatility annualizes the standard deviation of the last window returns.
func RealizedVolatility(returns []float64, window int, periodsPerYear float64) float64 {
	if window <= 1 || len(returns) < window {
		return 0
	}
	return StdDev(returns[len(returns)-window:]) * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the largest peak-to-trough decline of a price path, as a non-positive fraction.
func MaxDrawdown(prices []float64) float64 {
	peak := math.NaN()
	mdd := 0.0
	for _, p := range prices {
		if math.IsNaN(p) {
			continue
		}
		if math.IsNaN(peak) || p > peak {
			peak = p
		}
		if peak > 0 {
			if dd := p/peak - 1; dd < mdd {
				mdd = dd
			}
		}
	}
	return mdd
}

// Beta returns cov(a, b) / var(b) over pairs where both are present.
func Beta(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var xs, ys []float64
	for i := 0; i < n; i++ {
		if math.IsNaN(a[i]) || math.IsNaN(b[i]) {
			continue
		}
		xs = append(xs, a[i])
		ys = append(ys, b[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	vb := stat.Variance(ys, nil)
	if vb == 0 {
		return math.NaN()
	}
	return stat.Covariance(xs, ys, nil) / vb
}
