package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/knn"
	"github.com/MikeSquared-Agency/rcount/internal/metrics"
)

type KNNHandler struct {
	events *events.Publisher
	cfg    config.KNNConfig
	logger *slog.Logger
}

func NewKNNHandler(pub *events.Publisher, cfg config.KNNConfig, logger *slog.Logger) *KNNHandler {
	return &KNNHandler{events: pub, cfg: cfg, logger: logger}
}

type KNNCalculateRequest struct {
	TrainData   [][]float64       `json:"train_data" validate:"required,min=1"`
	TrainLabels []json.RawMessage `json:"train_labels" validate:"required,min=1"`
	TestData    [][]float64       `json:"test_data" validate:"required"`
	K           *int              `json:"k"`
	Metric      string            `json:"metric"`
	Weights     string            `json:"weights"`
}

type KNNOptimalKRequest struct {
	TrainData   [][]float64       `json:"train_data" validate:"required,min=1"`
	TrainLabels []json.RawMessage `json:"train_labels" validate:"required,min=1"`
	KRange      []int             `json:"k_range" validate:"omitempty,len=2"`
	Metric      string            `json:"metric"`
	Weights     string            `json:"weights"`
}

// predictionView renders a prediction with the label in the same JSON type
// the caller used for the training labels.
type predictionView struct {
	Prediction       interface{}        `json:"prediction"`
	Confidence       float64            `json:"confidence"`
	Probabilities    map[string]float64 `json:"probabilities"`
	NearestNeighbors knn.Neighbors      `json:"nearest_neighbors"`
}

type knnCalculateResponse struct {
	TrainingMetrics  knn.TrainingMetrics `json:"training_metrics"`
	Predictions      []predictionView    `json:"predictions"`
	TotalPredictions int                 `json:"total_predictions"`
}

func (h *KNNHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req KNNCalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	labels, numeric, err := decodeLabels(req.TrainLabels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	opts := h.options(req.Metric, req.Weights)
	if req.K != nil {
		opts.K = *req.K
		if opts.K < 1 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("k must be at least 1, got %d", opts.K))
			return
		}
	}

	start := time.Now()
	res, err := knn.Calculate(req.TrainData, labels, req.TestData, opts)
	metrics.ObserveKNN("calculate", err, time.Since(start))
	if err != nil {
		h.writeKNNError(w, err)
		return
	}

	out := knnCalculateResponse{
		TrainingMetrics:  res.TrainingMetrics,
		Predictions:      make([]predictionView, len(res.Predictions)),
		TotalPredictions: res.TotalPredictions,
	}
	for i, p := range res.Predictions {
		out.Predictions[i] = predictionView{
			Prediction:       labelValue(p.Label, numeric),
			Confidence:       p.Confidence,
			Probabilities:    p.Probabilities,
			NearestNeighbors: p.NearestNeighbors,
		}
	}

	h.events.Publish(events.SubjectKNNCalculated, events.KNNCalculatedEvent{
		K:           res.TrainingMetrics.K,
		Metric:      string(res.TrainingMetrics.Metric),
		Samples:     res.TrainingMetrics.Samples,
		Predictions: res.TotalPredictions,
		Accuracy:    res.TrainingMetrics.Accuracy,
		At:          time.Now().UTC(),
	})
	writeData(w, http.StatusOK, out)
}

func (h *KNNHandler) FindOptimalK(w http.ResponseWriter, r *http.Request) {
	var req KNNOptimalKRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	labels, _, err := decodeLabels(req.TrainLabels)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kr := knn.KRange{Min: h.cfg.KRange[0], Max: h.cfg.KRange[1]}
	if len(req.KRange) == 2 {
		kr = knn.KRange{Min: req.KRange[0], Max: req.KRange[1]}
	}

	start := time.Now()
	res, err := knn.FindOptimalK(r.Context(), req.TrainData, labels, h.options(req.Metric, req.Weights), kr, h.cfg.ParallelKSearch)
	metrics.ObserveKNN("find_optimal_k", err, time.Since(start))
	if err != nil {
		h.writeKNNError(w, err)
		return
	}

	h.events.Publish(events.SubjectKNNOptimalK, events.KNNOptimalKEvent{
		OptimalK: res.K,
		Accuracy: res.Accuracy,
		KMin:     kr.Min,
		KMax:     kr.Max,
		At:       time.Now().UTC(),
	})
	writeData(w, http.StatusOK, res)
}

func (h *KNNHandler) options(metric, weights string) knn.Options {
	if metric == "" {
		metric = h.cfg.DefaultMetric
	}
	return knn.Options{
		K:         h.cfg.DefaultK,
		Metric:    knn.Metric(metric),
		Weighting: knn.Weighting(weights),
		Folds:     h.cfg.CVFolds,
	}
}

func (h *KNNHandler) writeKNNError(w http.ResponseWriter, err error) {
	if isKNNInputError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("knn request failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func isKNNInputError(err error) bool {
	for _, target := range []error{
		knn.ErrEmptyData, knn.ErrRaggedData, knn.ErrDimensionMismatch, knn.ErrNonFinite,
		knn.ErrLabelMismatch, knn.ErrInvalidK, knn.ErrInvalidKRange, knn.ErrUnknownMetric,
		knn.ErrUnknownWeighting, knn.ErrTooFewSamples,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// decodeLabels accepts string or number labels. Numbers are normalized so
// 1 and 1.0 name the same class; numeric reports whether every label was a
// number.
func decodeLabels(raw []json.RawMessage) ([]string, bool, error) {
	labels := make([]string, len(raw))
	numeric := true
	for i, m := range raw {
		var s string
		if err := json.Unmarshal(m, &s); err == nil {
			labels[i] = s
			numeric = false
			continue
		}
		var f float64
		if err := json.Unmarshal(m, &f); err != nil {
			return nil, false, fmt.Errorf("train_labels[%d]: label must be a string or a number", i)
		}
		labels[i] = strconv.FormatFloat(f, 'f', -1, 64)
	}
	return labels, numeric, nil
}

func labelValue(label string, numeric bool) interface{} {
	if numeric {
		return json.Number(label)
	}
	return label
}
