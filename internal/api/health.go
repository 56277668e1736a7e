package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/ops-console/internal/domain"
	"github.com/ashureev/ops-console/internal/store"
)

const healthCheckTimeout = 5 * time.Second

// Backend is what the health check asks of the REST gateway.
type Backend interface {
	AgentStatus(ctx context.Context) (domain.AgentStatus, error)
	BreakerState() string
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	repo    store.Repository
	backend Backend
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(repo store.Repository, backend Backend) *HealthHandler {
	return &HealthHandler{repo: repo, backend: backend}
}

// Health reports the database and backend status. An unreachable database
// fails the check; an unreachable backend only degrades it.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]any{
		"status": "healthy",
		"checks": checks,
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "unhealthy"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if _, err := h.backend.AgentStatus(ctx); err != nil {
		slog.Warn("Backend health check failed", "error", err)
		if statusCode == http.StatusOK {
			status["status"] = "degraded"
		}
		checks["backend"] = "unreachable"
	} else {
		checks["backend"] = "ok"
	}
	status["circuit"] = h.backend.BreakerState()

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/api/health", h.Health)
}
