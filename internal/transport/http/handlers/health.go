package http_handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/evgeniivall/notes-auth-micro/internal/logger"
	"github.com/evgeniivall/notes-auth-micro/internal/transport/http/response"
)

// Pinger is anything readiness depends on (database, cache).
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler takes named dependencies; nil entries are skipped.
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	clean := make(map[string]Pinger, len(deps))
	for name, p := range deps {
		if p != nil {
			clean[name] = p
		}
	}
	return &HealthHandler{deps: clean, timeout: 2 * time.Second}
}

// Healthz handles GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	failed := map[string]string{}
	for name, p := range h.deps {
		if err := p.Ping(ctx); err != nil {
			logger.WithCtx(ctx).Warn().Err(err).Str("dependency", name).Msg("readiness check failed")
			failed[name] = "unavailable"
		}
	}

	if len(failed) > 0 {
		response.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "unavailable",
			"checks": failed,
		})
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
