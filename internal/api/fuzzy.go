package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
	"github.com/MikeSquared-Agency/rcount/internal/metrics"
	"github.com/MikeSquared-Agency/rcount/internal/scoring"
)

type FuzzyHandler struct {
	events *events.Publisher
	opts   []fuzzy.Option
	logger *slog.Logger
}

func NewFuzzyHandler(pub *events.Publisher, cfg config.FuzzyConfig, logger *slog.Logger) *FuzzyHandler {
	return &FuzzyHandler{events: pub, opts: engineOptions(cfg), logger: logger}
}

// engineOptions maps service configuration onto every System the API
// builds. A method in the request definition still wins.
func engineOptions(cfg config.FuzzyConfig) []fuzzy.Option {
	opts := []fuzzy.Option{
		fuzzy.WithMaxUniversePoints(cfg.MaxUniversePoints),
		fuzzy.WithDefaultStep(cfg.DefaultStep),
	}
	if m, err := fuzzy.ParseMethod(cfg.DefaultMethod); err == nil {
		opts = append(opts, fuzzy.WithMethod(m))
	}
	return opts
}

type CalculateRequest struct {
	InputValues []float64 `json:"input_values" validate:"required,min=1"`
	Weights     []float64 `json:"weights"`
}

func (h *FuzzyHandler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	res, err := scoring.SimpleInference(req.InputValues, req.Weights)
	if err != nil {
		metrics.ObserveInference(metrics.KindSimple, "invalid", time.Since(start))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	metrics.ObserveInference(metrics.KindSimple, "", time.Since(start))
	writeData(w, http.StatusOK, res)
}

type InferenceRequest struct {
	fuzzy.DecisionConfig
	Inputs map[string]float64 `json:"inputs" validate:"required"`
}

func (h *FuzzyHandler) Inference(w http.ResponseWriter, r *http.Request) {
	var req InferenceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, code, elapsed, err := evaluate(req.DecisionConfig, req.Inputs, h.opts)
	metrics.ObserveInference(metrics.KindAdhoc, code, elapsed)
	h.events.Publish(events.SubjectAdhocComputed, computedEvent("", req.Inputs, res, code, elapsed))
	if err != nil {
		h.logger.Debug("inference failed", "code", code, "error", err)
		writeFuzzyError(w, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

// evaluate builds a fresh System from def and computes inputs once,
// returning the error code ("" on success) and the time taken.
func evaluate(def fuzzy.DecisionConfig, inputs map[string]float64, opts []fuzzy.Option) (*fuzzy.Result, string, time.Duration, error) {
	start := time.Now()
	res, err := fuzzy.Evaluate(def, inputs, opts...)
	elapsed := time.Since(start)
	if err != nil {
		code := fuzzy.Code(err)
		if code == "" {
			code = "internal"
		}
		return nil, code, elapsed, err
	}
	return res, "", elapsed, nil
}

func computedEvent(systemID string, inputs map[string]float64, res *fuzzy.Result, code string, d time.Duration) events.ComputedEvent {
	evt := events.ComputedEvent{
		SystemID:   systemID,
		Inputs:     inputs,
		ErrorCode:  code,
		DurationMs: durationMs(d),
		At:         time.Now().UTC(),
	}
	if res != nil {
		v := res.OutputValue
		evt.OutputValue = &v
		evt.OutputName = res.OutputName
		evt.Method = string(res.Method)
	}
	return evt
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
