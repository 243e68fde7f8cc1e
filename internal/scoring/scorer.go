package scoring

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrNoValues      = errors.New("no input values")
	ErrInvalidValue  = errors.New("invalid input value")
	ErrInvalidWeight = errors.New("invalid weight")
)

// Category labels, in tie-break order.
const (
	Rendah = "rendah"
	Sedang = "sedang"
	Tinggi = "tinggi"
)

var categories = []string{Rendah, Sedang, Tinggi}

// Result is the outcome of a simple weighted inference.
type Result struct {
	Value       float64            `json:"value"`
	Category    string             `json:"category"`
	Memberships map[string]float64 `json:"memberships"`
	WeightsUsed []float64          `json:"weights_used"`
}

// SimpleInference aggregates values into a weighted mean on the 0-100 scale
// and classifies the mean against fixed rendah/sedang/tinggi sets.
func SimpleInference(values []float64, weights []float64) (*Result, error) {
	if len(values) == 0 {
		return nil, ErrNoValues
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: value %d is not finite", ErrInvalidValue, i)
		}
	}

	w, err := Weights(weights).Normalize(len(values))
	if err != nil {
		return nil, err
	}

	var mean float64
	for i, v := range values {
		mean += v * w[i]
	}

	memberships := Memberships(mean)
	return &Result{
		Value:       mean,
		Category:    Categorize(memberships),
		Memberships: memberships,
		WeightsUsed: w,
	}, nil
}

// Memberships returns the degree of v in each category.
//
//	rendah = (50-v)/50, sedang = 1-|v-50|/25, tinggi = (v-50)/50, clamped to [0, 1]
func Memberships(v float64) map[string]float64 {
	return map[string]float64{
		Rendah: clamp01((50 - v) / 50),
		Sedang: clamp01(1 - math.Abs(v-50)/25),
		Tinggi: clamp01((v - 50) / 50),
	}
}

// Categorize picks the category with the highest degree. Ties go to the
// earlier of rendah, sedang, tinggi.
func Categorize(memberships map[string]float64) string {
	best := categories[0]
	for _, c := range categories[1:] {
		if memberships[c] > memberships[best] {
			best = c
		}
	}
	return best
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
