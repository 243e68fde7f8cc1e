package knn

import (
	"fmt"
	"math"
)

// StandardScaler centers each feature on its mean and divides by its
// population standard deviation. Constant features are only centered.
type StandardScaler struct {
	Mean []float64
	Std  []float64
}

// Fit learns per-feature mean and deviation from x.
func (s *StandardScaler) Fit(x [][]float64) error {
	dim, err := checkMatrix(x)
	if err != nil {
		return err
	}
	n := float64(len(x))
	s.Mean = make([]float64, dim)
	s.Std = make([]float64, dim)

	for _, row := range x {
		for j, v := range row {
			s.Mean[j] += v
		}
	}
	for j := range s.Mean {
		s.Mean[j] /= n
	}
	for _, row := range x {
		for j, v := range row {
			d := v - s.Mean[j]
			s.Std[j] += d * d
		}
	}
	for j := range s.Std {
		s.Std[j] = math.Sqrt(s.Std[j] / n)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return nil
}

// Transform returns a scaled copy of x.
func (s *StandardScaler) Transform(x [][]float64) ([][]float64, error) {
	if s.Mean == nil {
		return nil, ErrNotFitted
	}
	dim, err := checkMatrix(x)
	if err != nil {
		return nil, err
	}
	if dim != len(s.Mean) {
		return nil, fmt.Errorf("%w: got %d features, want %d", ErrDimensionMismatch, dim, len(s.Mean))
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		scaled := make([]float64, dim)
		for j, v := range row {
			scaled[j] = (v - s.Mean[j]) / s.Std[j]
		}
		out[i] = scaled
	}
	return out, nil
}

// FitTransform fits on x and returns it scaled.
func (s *StandardScaler) FitTransform(x [][]float64) ([][]float64, error) {
	if err := s.Fit(x); err != nil {
		return nil, err
	}
	return s.Transform(x)
}

// checkMatrix returns the row width of a non-empty, rectangular, finite
// matrix.
func checkMatrix(x [][]float64) (int, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return 0, ErrEmptyData
	}
	dim := len(x[0])
	for i, row := range x {
		if len(row) != dim {
			return 0, fmt.Errorf("%w: row %d has %d values, want %d", ErrRaggedData, i, len(row), dim)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: row %d column %d", ErrNonFinite, i, j)
			}
		}
	}
	return dim, nil
}
