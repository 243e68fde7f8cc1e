package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/rcount/internal/config"
	"github.com/MikeSquared-Agency/rcount/internal/events"
	"github.com/MikeSquared-Agency/rcount/internal/store"
)

// NewRouter wires the public API. s may be nil, in which case the saved
// system routes answer 503.
func NewRouter(s store.Store, pub *events.Publisher, cfg *config.Config, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(CORSMiddleware(cfg.Server.CORSOrigins))
	r.Use(RateLimitMiddleware(cfg.Server.RateLimitPerMinute))

	fuzzyH := NewFuzzyHandler(pub, cfg.Fuzzy, logger)
	knnH := NewKNNHandler(pub, cfg.KNN, logger)
	systems := NewSystemsHandler(s, pub, cfg.Fuzzy, logger)
	admin := AdminAuthMiddleware(cfg.Server.AdminToken)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", Health)

		r.Post("/knn/calculate", knnH.Calculate)
		r.Post("/knn/find-optimal-k", knnH.FindOptimalK)

		r.Post("/fuzzy/calculate", fuzzyH.Calculate)
		r.Post("/fuzzy/inference", fuzzyH.Inference)

		r.Group(func(r chi.Router) {
			r.Use(systems.RequireStore)

			r.Post("/fuzzy/systems", systems.Create)
			r.Get("/fuzzy/systems", systems.List)
			r.Get("/fuzzy/systems/{id}", systems.Get)
			r.With(admin).Delete("/fuzzy/systems/{id}", systems.Delete)
			r.Post("/fuzzy/systems/{id}/compute", systems.Compute)
			r.Get("/fuzzy/systems/{id}/evaluations", systems.Evaluations)

			r.With(admin).Get("/stats", systems.Stats)
		})
	})

	return r
}

func NewMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}
