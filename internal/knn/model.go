package knn

import (
	"fmt"
	"sort"
)

// model is a neighbor set over already scaled features.
type model struct {
	k         int
	metric    Metric
	weighting Weighting
	x         [][]float64
	y         []int
	classes   []string
}

func newModel(opts Options, x [][]float64, y []int, classes []string) (*model, error) {
	if opts.K > len(x) {
		return nil, fmt.Errorf("%w: k=%d exceeds %d training samples", ErrInvalidK, opts.K, len(x))
	}
	return &model{
		k:         opts.K,
		metric:    opts.Metric,
		weighting: opts.Weighting,
		x:         x,
		y:         y,
		classes:   classes,
	}, nil
}

// neighbors returns the k closest training rows ordered by distance, then
// by index.
func (m *model) neighbors(row []float64) ([]int, []float64) {
	idx := make([]int, len(m.x))
	dist := make([]float64, len(m.x))
	for i, tr := range m.x {
		idx[i] = i
		dist[i] = m.metric.distance(row, tr)
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })

	outIdx := idx[:m.k:m.k]
	outDist := make([]float64, m.k)
	for i, j := range outIdx {
		outDist[i] = dist[j]
	}
	return outIdx, outDist
}

// proba returns per-class vote shares. Under distance weighting, neighbors
// at distance zero take all of the vote.
func (m *model) proba(idx []int, dist []float64) []float64 {
	weights := make([]float64, len(idx))
	for i := range weights {
		weights[i] = 1
	}
	if m.weighting == Distance {
		exact := false
		for _, d := range dist {
			if d == 0 {
				exact = true
				break
			}
		}
		for i, d := range dist {
			switch {
			case exact && d == 0:
				weights[i] = 1
			case exact:
				weights[i] = 0
			default:
				weights[i] = 1 / d
			}
		}
	}

	proba := make([]float64, len(m.classes))
	var total float64
	for i, j := range idx {
		proba[m.y[j]] += weights[i]
		total += weights[i]
	}
	for c := range proba {
		proba[c] /= total
	}
	return proba
}

func (m *model) predict(row []float64) int {
	idx, dist := m.neighbors(row)
	return argmax(m.proba(idx, dist))
}

// score is the fraction of rows predicted correctly.
func (m *model) score(x [][]float64, y []int) float64 {
	if len(x) == 0 {
		return 0
	}
	correct := 0
	for i, row := range x {
		if m.predict(row) == y[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(x))
}
