package knn

import (
	"fmt"
	"math"
	"strings"
)

// Metric names a distance function between two feature rows.
type Metric string

const (
	Euclidean Metric = "euclidean"
	Manhattan Metric = "manhattan"
	Chebyshev Metric = "chebyshev"
	// Minkowski uses p = 2 and so matches Euclidean.
	Minkowski Metric = "minkowski"
)

// ParseMetric resolves a metric name. The empty string means Euclidean.
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "":
		return Euclidean, nil
	case Euclidean, Manhattan, Chebyshev, Minkowski:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

func (m Metric) distance(a, b []float64) float64 {
	var d float64
	switch m {
	case Manhattan:
		for i := range a {
			d += math.Abs(a[i] - b[i])
		}
		return d
	case Chebyshev:
		for i := range a {
			d = math.Max(d, math.Abs(a[i]-b[i]))
		}
		return d
	default:
		for i := range a {
			diff := a[i] - b[i]
			d += diff * diff
		}
		return math.Sqrt(d)
	}
}

// Weighting controls how neighbors vote.
type Weighting string

const (
	Uniform  Weighting = "uniform"
	Distance Weighting = "distance"
)

// ParseWeighting resolves a weighting name. The empty string means Uniform.
func ParseWeighting(s string) (Weighting, error) {
	w := Weighting(strings.ToLower(strings.TrimSpace(s)))
	switch w {
	case "":
		return Uniform, nil
	case Uniform, Distance:
		return w, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownWeighting, s)
	}
}
