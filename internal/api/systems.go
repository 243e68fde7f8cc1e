package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/fuzzy"
	"github.com/MikeSquared-Agency/rcount/internal/metrics"
	"github.com/MikeSquared-Agency/rcount/internal/store"
)

// SystemsHandler serves saved decision systems. Every compute builds a
// fresh System from the stored definition.
type SystemsHandler struct {
	store  store.Store
	events *events.Publisher
	opts   []fuzzy.Option
	logger *slog.Logger
}

func NewSystemsHandler(s store.Store, pub *events.Publisher, cfg config.FuzzyConfig, logger *slog.Logger) *SystemsHandler {
	return &SystemsHandler{store: s, events: pub, opts: engineOptions(cfg), logger: logger}
}

// RequireStore answers 503 when no database is configured.
func (h *SystemsHandler) RequireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.store == nil {
			writeError(w, http.StatusServiceUnavailable, "saved systems are disabled: no database configured")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type CreateSystemRequest struct {
	Name        string               `json:"name" validate:"required,max=200"`
	Description string               `json:"description,omitempty" validate:"max=2000"`
	Definition  fuzzy.DecisionConfig `json:"definition"`
}

func (h *SystemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSystemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	if _, err := fuzzy.NewDecisionSystem(req.Definition, h.opts...); err != nil {
		writeFuzzyError(w, err)
		return
	}

	sys := &store.DecisionSystem{
		Name:        req.Name,
		Description: req.Description,
		Definition:  req.Definition,
	}
	if err := h.store.CreateSystem(r.Context(), sys); err != nil {
		h.storeFailed(w, "create_system", err)
		return
	}

	h.events.Publish(events.SubjectSystemCreated(sys.ID.String()), events.SystemEvent{
		SystemID: sys.ID.String(),
		Name:     sys.Name,
		At:       time.Now().UTC(),
	})
	writeData(w, http.StatusCreated, sys)
}

func (h *SystemsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.SystemFilter{Name: q.Get("name")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		filter.Offset = n
	}

	systems, err := h.store.ListSystems(r.Context(), filter)
	if err != nil {
		h.storeFailed(w, "list_systems", err)
		return
	}
	if systems == nil {
		systems = []*store.DecisionSystem{}
	}
	writeData(w, http.StatusOK, systems)
}

func (h *SystemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sys, ok := h.loadSystem(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, sys)
}

func (h *SystemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid system id")
		return
	}
	if err := h.store.DeleteSystem(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "system not found")
			return
		}
		h.storeFailed(w, "delete_system", err)
		return
	}

	h.events.Publish(events.SubjectSystemDeleted(id.String()), events.SystemEvent{
		SystemID: id.String(),
		At:       time.Now().UTC(),
	})
	w.WriteHeader(http.StatusNoContent)
}

type ComputeRequest struct {
	Inputs map[string]float64 `json:"inputs" validate:"required"`
}

func (h *SystemsHandler) Compute(w http.ResponseWriter, r *http.Request) {
	sys, ok := h.loadSystem(w, r)
	if !ok {
		return
	}
	var req ComputeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, code, elapsed, evalErr := evaluate(sys.Definition, req.Inputs, h.opts)
	metrics.ObserveInference(metrics.KindSaved, code, elapsed)

	record := &store.Evaluation{
		SystemID:   sys.ID,
		Inputs:     req.Inputs,
		ErrorCode:  code,
		DurationMs: durationMs(elapsed),
	}
	if evalErr != nil {
		record.Error = evalErr.Error()
	} else {
		v := res.OutputValue
		record.OutputValue = &v
		record.OutputName = res.OutputName
	}
	if err := h.store.CreateEvaluation(r.Context(), record); err != nil {
		metrics.StoreError("create_evaluation")
		h.logger.Warn("failed to record evaluation", "system_id", sys.ID, "error", err)
	}

	h.events.Publish(events.SubjectSystemComputed(sys.ID.String()),
		computedEvent(sys.ID.String(), req.Inputs, res, code, elapsed))

	if evalErr != nil {
		writeFuzzyError(w, evalErr)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *SystemsHandler) Evaluations(w http.ResponseWriter, r *http.Request) {
	sys, ok := h.loadSystem(w, r)
	if !ok {
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	evals, err := h.store.ListEvaluations(r.Context(), sys.ID, limit)
	if err != nil {
		h.storeFailed(w, "list_evaluations", err)
		return
	}
	if evals == nil {
		evals = []*store.Evaluation{}
	}
	writeData(w, http.StatusOK, evals)
}

func (h *SystemsHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		h.storeFailed(w, "get_stats", err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

// loadSystem resolves the {id} URL parameter, writing the error response
// itself when it returns false.
func (h *SystemsHandler) loadSystem(w http.ResponseWriter, r *http.Request) (*store.DecisionSystem, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid system id")
		return nil, false
	}
	sys, err := h.store.GetSystem(r.Context(), id)
	if err != nil {
		h.storeFailed(w, "get_system", err)
		return nil, false
	}
	if sys == nil {
		writeError(w, http.StatusNotFound, "system not found")
		return nil, false
	}
	return sys, true
}

func (h *SystemsHandler) storeFailed(w http.ResponseWriter, op string, err error) {
	metrics.StoreError(op)
	h.logger.Error("store operation failed", "operation", op, "error", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}
