package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Pinger checks a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports dependency status
type HealthHandler struct {
	db    Pinger
	cache Pinger
}

// NewHealthHandler creates a new health handler. cache may be nil when caching is disabled.
func NewHealthHandler(db Pinger, cache Pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health returns 200 while the store is reachable. The cache is optional.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	status := http.StatusOK
	body := map[string]string{"status": "ok", "database": "up", "cache": "disabled"}

	if err := h.db.Ping(ctx); err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["database"] = "down"
	}
	if h.cache != nil {
		body["cache"] = "up"
		if err := h.cache.Ping(ctx); err != nil {
			body["cache"] = "down"
		}
	}

	return c.JSON(status, body)
}
