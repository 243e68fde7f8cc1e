package knn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Score is the outcome of cross-validating one k.
type Score struct {
	K        int     `json:"k"`
	Accuracy float64 `json:"accuracy"`
	StdDev   float64 `json:"std_dev"`
}

// stratifiedFolds assigns each sample to one of n folds so every fold holds
// roughly the same class mix. Samples of one class fill folds in order.
func stratifiedFolds(y []int, nClasses, n int) ([]int, error) {
	counts := make([]int, nClasses)
	for _, c := range y {
		counts[c]++
	}
	largest := 0
	for _, c := range counts {
		largest = max(largest, c)
	}
	if largest < n {
		return nil, fmt.Errorf("%w: %d folds but no class has that many members", ErrTooFewSamples, n)
	}

	ordered := append([]int(nil), y...)
	sort.Ints(ordered)
	alloc := make([][]int, n)
	for f := range alloc {
		alloc[f] = make([]int, nClasses)
		for i := f; i < len(ordered); i += n {
			alloc[f][ordered[i]]++
		}
	}

	fold := make([]int, len(y))
	next := make([]int, nClasses)
	for i, c := range y {
		for alloc[next[c]][c] == 0 {
			next[c]++
		}
		fold[i] = next[c]
		alloc[next[c]][c]--
	}
	return fold, nil
}

// crossValidate scores opts on scaled features with n stratified folds.
func crossValidate(opts Options, x [][]float64, y []int, nClasses, n int) (Score, error) {
	if n < 2 {
		return Score{}, fmt.Errorf("%w: need at least 2 folds, got %d", ErrTooFewSamples, n)
	}
	fold, err := stratifiedFolds(y, nClasses, n)
	if err != nil {
		return Score{}, err
	}

	classes := make([]string, nClasses)
	scores := make([]float64, n)
	for f := 0; f < n; f++ {
		var trainX, testX [][]float64
		var trainY, testY []int
		for i := range x {
			if fold[i] == f {
				testX = append(testX, x[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		m, err := newModel(opts, trainX, trainY, classes)
		if err != nil {
			return Score{}, err
		}
		scores[f] = m.score(testX, testY)
	}

	mean, std := meanStd(scores)
	return Score{K: opts.K, Accuracy: mean, StdDev: std}, nil
}

func meanStd(v []float64) (float64, float64) {
	var mean float64
	for _, s := range v {
		mean += s
	}
	mean /= float64(len(v))
	var ss float64
	for _, s := range v {
		ss += (s - mean) * (s - mean)
	}
	return mean, math.Sqrt(ss / float64(len(v)))
}

// KRange is an inclusive range of neighbor counts.
type KRange struct {
	Min int
	Max int
}

// Validate checks 1 <= Min <= Max.
func (r KRange) Validate() error {
	if r.Min < 1 || r.Max < r.Min {
		return fmt.Errorf("%w: [%d, %d]", ErrInvalidKRange, r.Min, r.Max)
	}
	return nil
}

// OptimalK reports the best k and the score of every k tried.
type OptimalK struct {
	K         int     `json:"optimal_k"`
	Accuracy  float64 `json:"optimal_accuracy"`
	AllScores []Score `json:"all_scores"`
}

// FindOptimalK cross-validates every k in r on the scaled training data
// and picks the most accurate, preferring the smallest k on ties. A k that
// exceeds a training fold scores zero, so the range is cut at the number of
// training samples; at least r.Min is always scored. When parallel is set
// the k values are evaluated concurrently.
func FindOptimalK(ctx context.Context, x [][]float64, y []string, opts Options, r KRange, parallel bool) (*OptimalK, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrLabelMismatch, len(x), len(y))
	}
	var scaler StandardScaler
	scaled, err := scaler.FitTransform(x)
	if err != nil {
		return nil, err
	}
	if len(scaled) < 2 {
		return nil, fmt.Errorf("%w: %d samples", ErrTooFewSamples, len(scaled))
	}
	classes, encoded := encodeLabels(y)
	folds := min(o.Folds, len(scaled))

	hi := max(r.Min, min(r.Max, len(scaled)))
	scores := make([]Score, hi-r.Min+1)
	evaluate := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ko := o
		ko.K = r.Min + i
		s, err := crossValidate(ko, scaled, encoded, len(classes), folds)
		switch {
		case err == nil:
			scores[i] = s
		case errors.Is(err, ErrInvalidK):
			scores[i] = Score{K: ko.K}
		default:
			return err
		}
		return nil
	}

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range scores {
			g.Go(func() error { return evaluate(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range scores {
			if err := evaluate(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	best := scores[0]
	for _, s := range scores[1:] {
		if s.Accuracy > best.Accuracy {
			best = s
		}
	}
	return &OptimalK{K: best.K, Accuracy: best.Accuracy, AllScores: scores}, nil
}
