package analytics

import (
	"fmt"
	"math"
)

// LinkageMethod is the inter-cluster distance rule.
type LinkageMethod string

const (
	LinkageSingle   LinkageMethod = "single"
	LinkageAverage  LinkageMethod = "average"
	LinkageComplete LinkageMethod = "complete"
)

// Merge is one agglomeration step. Leaves are 0..n-1 and the cluster formed
// by step k has id n+k, matching the scipy linkage layout.
type Merge struct {
	Left     int
	Right    int
	Distance float64
	Size     int
}

// Linkage clusters the items of a distance matrix bottom-up.
// Ties are broken by the lowest cluster ids so the result is deterministic.
func Linkage(dist *Matrix, method LinkageMethod) ([]Merge, error) {
	n := dist.Size()
	if n == 0 {
		return nil, fmt.Errorf("linkage: empty distance matrix")
	}
	if dist.HasNaN() {
		return nil, fmt.Errorf("linkage: distance matrix has missing values")
	}
	switch method {
	case LinkageSingle, LinkageAverage, LinkageComplete:
	case "":
		method = LinkageSingle
	default:
		return nil, fmt.Errorf("linkage: unknown method %q", method)
	}

	// active cluster id -> member leaves
	members := make(map[int][]int, n)
	active := make([]int, n)
	for i := 0; i < n; i++ {
		members[i] = []int{i}
		active[i] = i
	}
	merges := make([]Merge, 0, n-1)
	for step := 0; len(active) > 1; step++ {
		bi, bj := -1, -1
		best := math.Inf(1)
		for a := 0; a < len(active); a++ {
			for b := a + 1; b < len(active); b++ {
				d := clusterDistance(dist, members[active[a]], members[active[b]], method)
				if d < best {
					best, bi, bj = d, a, b
				}
			}
		}
		left, right := active[bi], active[bj]
		if left > right {
			left, right = right, left
		}
		id := n + step
		members[id] = append(append([]int(nil), members[left]...), members[right]...)
		merges = append(merges, Merge{Left: left, Right: right, Distance: best, Size: len(members[id])})
		delete(members, left)
		delete(members, right)

		next := active[:0:0]
		for k, c := range active {
			if k != bi && k != bj {
				next = append(next, c)
			}
		}
		active = append(next, id)
	}
	return merges, nil
}

func clusterDistance(dist *Matrix, a, b []int, method LinkageMethod) float64 {
	switch method {
	case LinkageComplete:
		d := math.Inf(-1)
		for _, i := range a {
			for _, j := range b {
				d = math.Max(d, dist.Values[i][j])
			}
		}
		return d
	case LinkageAverage:
		s := 0.0
		for _, i := range a {
			for _, j := range b {
				s += dist.Values[i][j]
			}
		}
		return s / float64(len(a)*len(b))
	default:
		d := math.Inf(1)
		for _, i := range a {
			for _, j := range b {
				d = math.Min(d, dist.Values[i][j])
			}
		}
		return d
	}
}

// QuasiDiagonal returns the leaf order of the dendrogram, left subtree first.
func QuasiDiagonal(merges []Merge, n int) []int {
	if n == 0 {
		return nil
	}
	if len(merges) == 0 {
		return []int{0}
	}
	var walk func(id int) []int
	walk = func(id int) []int {
		if id < n {
			return []int{id}
		}
		m := merges[id-n]
		return append(walk(m.Left), walk(m.Right)...)
	}
	return walk(n + len(merges) - 1)
}
