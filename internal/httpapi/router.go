package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/fasttq/galactus/internal/dispatch"
	"github.com/fasttq/galactus/internal/health"
)

// NewRouter assembles the full HTTP surface: request id/recovery/timeout
// middleware, the task/worker/task-kind handlers, and liveness/readiness
// endpoints backed by checks.
func NewRouter(orch *dispatch.Orchestrator, checks health.Checks, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	NewTaskHandler(orch).Routes(r)
	NewWorkerHandler(orch).Routes(r)

	r.Get("/health", health.LivenessHandler())
	r.Get("/health/ready", health.ReadinessHandler(checks))

	return r
}
