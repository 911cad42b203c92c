package handler

import (
	"net/http"
	"time"
)

// Backends records which optional backends are wired.
type Backends struct {
	Redis     bool `json:"redis"`
	Postgres  bool `json:"postgres"`
	S3        bool `json:"s3"`
	LLM       bool `json:"llm"`
	Snapshots bool `json:"snapshots"`
}

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	mode      string
	backends  Backends
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given mode.
func NewStatusHandler(mode string, backends Backends) *StatusHandler {
	return &StatusHandler{mode: mode, backends: backends, startedAt: time.Now()}
}

// GetStatus responds with the run mode, enabled backends and uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"backends":       h.backends,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}
