package scoring

import (
	"fmt"
	"math"
)

// Weights holds the relative importance of each input value. After
// Normalize the entries are non-negative and sum to 1.0 (±0.001 tolerance).
type Weights []float64

// UniformWeights returns n equal weights of 1/n.
func UniformWeights(n int) Weights {
	w := make(Weights, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

// Validate checks that every weight is finite and non-negative.
func (w Weights) Validate() error {
	for i, v := range w {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight %d is not finite", ErrInvalidWeight, i)
		}
		if v < 0 {
			return fmt.Errorf("%w: negative weight %d: %f", ErrInvalidWeight, i, v)
		}
	}
	return nil
}

// Normalize fits w to n values and scales it to sum to one.
//
// A nil slice yields uniform weights. Extra weights are dropped, missing
// ones are padded with 1/n, and an all-zero vector falls back to uniform.
func (w Weights) Normalize(n int) (Weights, error) {
	if n <= 0 {
		return nil, ErrNoValues
	}
	if w == nil {
		return UniformWeights(n), nil
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	out := make(Weights, n)
	copy(out, w)
	for i := len(w); i < n; i++ {
		out[i] = 1.0 / float64(n)
	}

	total := out.Sum()
	if total == 0 {
		return UniformWeights(n), nil
	}
	for i := range out {
		out[i] /= total
	}
	return out, nil
}
