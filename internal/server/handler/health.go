package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"time"
)

// BackendCheck reports whether one backing service is reachable. Checks run
// with a short deadline.
type BackendCheck func(ctx context.Context) error

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	backends map[string]BackendCheck
	logger   *slog.Logger
}

// NewHealthHandler creates a HealthHandler. backends may be nil; each entry is
// reported under its key in "checks".
func NewHealthHandler(backends map[string]BackendCheck, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, logger: logger}
}

// HealthCheck always answers 200 while the process is serving. Status is
// "degraded" when any backend check fails.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(h.backends) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.backends))
	for name := range h.backends {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.backends[name](ctx); err != nil {
			checks[name] = err.Error()
			resp["status"] = "degraded"
			h.logger.WarnContext(ctx, "health: backend check failed",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		checks[name] = "ok"
	}
	resp["checks"] = checks
	writeJSON(w, http.StatusOK, resp)
}
