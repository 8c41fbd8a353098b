package daemon

import (
	"log/slog"
	"time"

	"familyboard/internal/assignments"
	"familyboard/internal/auth"
	"familyboard/internal/batch"
	"familyboard/internal/config"
	"familyboard/internal/metrics"
	"familyboard/internal/stages"
	"familyboard/internal/store"
	"familyboard/internal/transition"
)

// BuildServices wires the workflow components around an open store. A nil
// clock uses time.Now.
func BuildServices(cfg *config.Config, st *store.Store, m *metrics.Metrics, logger *slog.Logger, clock func() time.Time) Services {
	opts := []transition.Option{transition.WithMetrics(m), transition.WithLogger(logger)}
	if clock != nil {
		opts = append(opts, transition.WithClock(clock))
	}
	engine := transition.New(st, opts...)
	registry := stages.New(st, engine, logger)
	assignmentSvc := assignments.New(st, engine, registry, assignments.Options{
		DefaultStages: cfg.Board.DefaultStages,
		Metrics:       m,
		Logger:        logger,
	})
	return Services{
		Store:       st,
		Engine:      engine,
		Stages:      registry,
		Assignments: assignmentSvc,
		Batch:       batch.New(st, assignmentSvc, m, logger),
		Verifier:    auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer),
		Metrics:     m,
	}
}
