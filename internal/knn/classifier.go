// Package knn implements a k-nearest-neighbor classifier over standardized
// features, with stratified cross-validation and a k search.
package knn

import (
	"fmt"
	"sort"
	"strconv"
)

const (
	DefaultK     = 3
	DefaultFolds = 5
)

// Options configures a classifier. Zero values select the defaults.
type Options struct {
	K         int
	Metric    Metric
	Weighting Weighting
	// Folds caps the number of cross-validation folds.
	Folds int
}

func (o Options) withDefaults() (Options, error) {
	if o.K == 0 {
		o.K = DefaultK
	}
	if o.K < 1 {
		return o, fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidK, o.K)
	}
	if o.Folds == 0 {
		o.Folds = DefaultFolds
	}
	m, err := ParseMetric(string(o.Metric))
	if err != nil {
		return o, err
	}
	o.Metric = m
	w, err := ParseWeighting(string(o.Weighting))
	if err != nil {
		return o, err
	}
	o.Weighting = w
	return o, nil
}

// Neighbors lists the k nearest training rows, closest first.
type Neighbors struct {
	Distances []float64 `json:"distances"`
	Indices   []int     `json:"indices"`
}

// Prediction is the classification of one test row.
type Prediction struct {
	Label            string             `json:"prediction"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	NearestNeighbors Neighbors          `json:"nearest_neighbors"`
}

// TrainingMetrics summarizes a fitted classifier.
type TrainingMetrics struct {
	Accuracy float64 `json:"accuracy"`
	StdDev   float64 `json:"std_dev"`
	K        int     `json:"k"`
	Metric   Metric  `json:"metric"`
	Samples  int     `json:"n_samples"`
}

// Classifier scales training features and classifies new rows by the
// vote of their k nearest neighbors.
type Classifier struct {
	opts   Options
	scaler StandardScaler
	model  *model
}

// New returns an untrained classifier.
func New(opts Options) (*Classifier, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Classifier{opts: o}, nil
}

// Options returns the resolved options.
func (c *Classifier) Options() Options { return c.opts }

// Classes returns the known class labels in sorted order.
func (c *Classifier) Classes() []string {
	if c.model == nil {
		return nil
	}
	return append([]string(nil), c.model.classes...)
}

// Fit scales x and stores it as the neighbor set.
func (c *Classifier) Fit(x [][]float64, y []string) error {
	if len(x) != len(y) {
		return fmt.Errorf("%w: %d rows, %d labels", ErrLabelMismatch, len(x), len(y))
	}
	scaled, err := c.scaler.FitTransform(x)
	if err != nil {
		return err
	}
	classes, encoded := encodeLabels(y)
	m, err := newModel(c.opts, scaled, encoded, classes)
	if err != nil {
		return err
	}
	c.model = m
	return nil
}

// Train fits the classifier and reports cross-validated accuracy on the
// training data. With fewer than two samples the accuracy is measured on
// the training data itself. A cross-validation that cannot run reports
// zero accuracy rather than failing the fit.
func (c *Classifier) Train(x [][]float64, y []string) (TrainingMetrics, error) {
	if err := c.Fit(x, y); err != nil {
		return TrainingMetrics{}, err
	}
	metrics := TrainingMetrics{K: c.opts.K, Metric: c.opts.Metric, Samples: len(x)}

	n := len(x)
	if n < 2 {
		metrics.Accuracy = c.model.score(c.model.x, c.model.y)
		return metrics, nil
	}
	s, err := crossValidate(c.opts, c.model.x, c.model.y, len(c.model.classes), min(c.opts.Folds, n))
	if err != nil {
		return metrics, nil
	}
	metrics.Accuracy = s.Accuracy
	metrics.StdDev = s.StdDev
	return metrics, nil
}

// Predict classifies each row of x.
func (c *Classifier) Predict(x [][]float64) ([]Prediction, error) {
	if c.model == nil {
		return nil, ErrNotFitted
	}
	scaled, err := c.scaler.Transform(x)
	if err != nil {
		return nil, err
	}
	out := make([]Prediction, len(scaled))
	for i, row := range scaled {
		idx, dist := c.model.neighbors(row)
		proba := c.model.proba(idx, dist)
		best := argmax(proba)

		probs := make(map[string]float64, len(proba))
		for ci, p := range proba {
			probs[c.model.classes[ci]] = p
		}
		out[i] = Prediction{
			Label:            c.model.classes[best],
			Confidence:       proba[best],
			Probabilities:    probs,
			NearestNeighbors: Neighbors{Distances: dist, Indices: idx},
		}
	}
	return out, nil
}

// Result is the combined output of Calculate.
type Result struct {
	TrainingMetrics  TrainingMetrics `json:"training_metrics"`
	Predictions      []Prediction    `json:"predictions"`
	TotalPredictions int             `json:"total_predictions"`
}

// Calculate trains on (train, labels) and classifies test.
func Calculate(train [][]float64, labels []string, test [][]float64, opts Options) (*Result, error) {
	c, err := New(opts)
	if err != nil {
		return nil, err
	}
	metrics, err := c.Train(train, labels)
	if err != nil {
		return nil, err
	}
	preds, err := c.Predict(test)
	if err != nil {
		return nil, err
	}
	return &Result{TrainingMetrics: metrics, Predictions: preds, TotalPredictions: len(preds)}, nil
}

// encodeLabels sorts the distinct labels, numerically when every label
// parses as a number, and maps y onto class indices.
func encodeLabels(y []string) ([]string, []int) {
	seen := make(map[string]bool)
	var classes []string
	for _, l := range y {
		if !seen[l] {
			seen[l] = true
			classes = append(classes, l)
		}
	}

	numeric := make(map[string]float64, len(classes))
	for _, l := range classes {
		v, err := strconv.ParseFloat(l, 64)
		if err != nil {
			numeric = nil
			break
		}
		numeric[l] = v
	}
	if numeric != nil {
		sort.SliceStable(classes, func(i, j int) bool { return numeric[classes[i]] < numeric[classes[j]] })
	} else {
		sort.Strings(classes)
	}

	index := make(map[string]int, len(classes))
	for i, l := range classes {
		index[l] = i
	}
	encoded := make([]int, len(y))
	for i, l := range y {
		encoded[i] = index[l]
	}
	return classes, encoded
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
