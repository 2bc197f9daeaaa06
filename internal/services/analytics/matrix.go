package analytics

import (
	"fmt"
	"math"

	"Pasture/internal/domain/models"
)

// Matrix is a square, symbol-labeled matrix such as a correlation or covariance.
type Matrix struct {
	Labels []string
	Values [][]float64
}

func NewMatrix(labels []string) *Matrix {
	vals := make([][]float64, len(labels))
	for i := range vals {
		vals[i] = make([]float64, len(labels))
	}
	return &Matrix{Labels: append([]string(nil), labels...), Values: vals}
}

func (m *Matrix) Size() int { return len(m.Labels) }

func (m *Matrix) At(i, j int) float64 { return m.Values[i][j] }

func (m *Matrix) Index(label string) int {
	for i, l := range m.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Reorder returns the matrix with rows and columns permuted by order.
func (m *Matrix) Reorder(order []int) *Matrix {
	labels := make([]string, len(order))
	for k, i := range order {
		labels[k] = m.Labels[i]
	}
	out := NewMatrix(labels)
	for a, i := range order {
		for b, j := range order {
			out.Values[a][b] = m.Values[i][j]
		}
	}
	return out
}

// Sub extracts the rows and columns listed in idx.
func (m *Matrix) Sub(idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for a, i := range idx {
		out[a] = make([]float64, len(idx))
		for b, j := range idx {
			out[a][b] = m.Values[i][j]
		}
	}
	return out
}

func (m *Matrix) HasNaN() bool {
	for _, row := range m.Values {
		for _, v := range row {
			if math.IsNaN(v) {
				return true
			}
		}
	}
	return false
}

// Rows renders each row as (target, value) pairs keyed by the row label.
func (m *Matrix) Rows() map[string][]models.PairValue {
	out := make(map[string][]models.PairValue, len(m.Labels))
	for i, l := range m.Labels {
		row := make([]models.PairValue, len(m.Labels))
		for j, t := range m.Labels {
			row[j] = models.PairValue{Target: t, Value: m.Values[i][j]}
		}
		out[l] = row
	}
	return out
}

// Diagonal returns the main diagonal.
func (m *Matrix) Diagonal() []float64 {
	out := make([]float64, len(m.Labels))
	for i := range out {
		out[i] = m.Values[i][i]
	}
	return out
}

func (m *Matrix) String() string {
	return fmt.Sprintf("Matrix(%d) %v", len(m.Labels), m.Labels)
}
