package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/aidiary/internal/llm"
)

const healthCheckTimeout = 5 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db        Pinger
	generator llm.Generator
}

// NewHealthHandler creates a health handler. The generator is checked only when it
// implements llm.Pinger.
func NewHealthHandler(db Pinger, generator llm.Generator) *HealthHandler {
	return &HealthHandler{db: db, generator: generator}
}

// Health returns the health status of the API and its dependencies. An unreachable
// generator degrades the status but keeps 200.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	if p, ok := h.generator.(llm.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("Generator health check failed", "provider", h.generator.Name(), "error", err)
			status = "degraded"
			checks["generator"] = "unreachable"
		} else {
			checks["generator"] = "ok"
		}
	}

	JSON(w, statusCode, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
