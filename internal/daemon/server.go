package daemon

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"familyboard/internal/assignments"
	"familyboard/internal/auth"
	"familyboard/internal/batch"
	"familyboard/internal/config"
	"familyboard/internal/logging"
	"familyboard/internal/metrics"
	"familyboard/internal/stages"
	"familyboard/internal/store"
	"familyboard/internal/transition"
)

// Services are the components the HTTP surface delegates to.
type Services struct {
	Store       *store.Store
	Engine      *transition.Engine
	Stages      *stages.Registry
	Assignments *assignments.Service
	Batch       *batch.Mutator
	Verifier    *auth.Verifier
	// Metrics is optional.
	Metrics *metrics.Metrics
}

func (s Services) validate() error {
	if s.Store == nil || s.Engine == nil || s.Stages == nil || s.Assignments == nil || s.Batch == nil || s.Verifier == nil {
		return errors.New("daemon requires store, engine, stage registry, assignment service, batch mutator, and verifier")
	}
	return nil
}

type apiServer struct {
	svc     Services
	logger  *slog.Logger
	limiter *rateLimiter
	router  chi.Router
}

// NewHandler builds the board HTTP handler without a listener or lock.
func NewHandler(cfg *config.Config, deps Services, logger *slog.Logger) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return newAPIServer(cfg, deps, logger).router, nil
}

func newAPIServer(cfg *config.Config, deps Services, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		svc:     deps,
		logger:  logging.NewComponentLogger(logger, "api-server"),
		limiter: newRateLimiter(cfg.Limits.MutationRate, cfg.Limits.MutationBurst, deps.Metrics),
	}
	srv.router = srv.routes()
	return srv
}

func (s *apiServer) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	if s.svc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.svc.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/board", s.handleBoard)
		r.Get("/stats", s.handleStats)
		r.Get("/stages", s.handleListStages)
		r.Get("/orders/{orderID}", s.handleGetOrder)
		r.Get("/orders/{orderID}/history", s.handleHistory)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.Handler)

			r.Put("/stages", s.handleSaveStages)
			r.Post("/stages", s.handleCreateStage)
			r.Delete("/stages/{stageID}", s.handleDeleteStage)
			r.Put("/stages/{stageID}/visibility", s.handleStageVisibility)
			r.Put("/stages/{stageID}/position", s.handleStagePosition)
			r.Put("/orders/{orderID}", s.handleUpdateOrder)
			r.Post("/bulk-update", s.handleBulkUpdate)
			r.Post("/orders/sync", s.handleSyncOrders)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusNotFound, errorPayload("not found", "not_found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorPayload("method not allowed", "method_not_allowed"))
	})
	return r
}

func (s *apiServer) httpServer() *http.Server {
	return &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
