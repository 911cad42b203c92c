package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/export"
)

// SnapshotHandler exposes archived market snapshots.
type SnapshotHandler struct {
	blobs  domain.BlobReader
	now    func() time.Time
	logger *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler over the snapshot archive.
func NewSnapshotHandler(blobs domain.BlobReader, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{blobs: blobs, now: time.Now, logger: logger}
}

// List returns the snapshot objects of one UTC day.
// GET /api/snapshots?date=2006-01-02
func (h *SnapshotHandler) List(w http.ResponseWriter, r *http.Request) {
	day := h.now().UTC()
	if v := queryString(r, "date"); v != "" {
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		day = t
	}

	objs, err := h.blobs.List(r.Context(), domain.SnapshotDayPrefix(day))
	if err != nil {
		requestLogger(h.logger, r, "snapshots").ErrorContext(r.Context(), "handler: list snapshots failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "snapshots_failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":      day.Format(time.DateOnly),
		"snapshots": objs,
	})
}

// Latest streams the newest snapshot of today or yesterday in the requested
// format.
// GET /api/snapshots/latest?format=json
func (h *SnapshotHandler) Latest(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(queryString(r, "format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_format")
		return
	}
	log := requestLogger(h.logger, r, "latest_snapshot")

	today := h.now().UTC()
	var key string
	for _, day := range []time.Time{today, today.AddDate(0, 0, -1)} {
		objs, err := h.blobs.List(r.Context(), domain.SnapshotDayPrefix(day))
		if err != nil {
			log.ErrorContext(r.Context(), "handler: list snapshots failed", slog.String("error", err.Error()))
			writeError(w, http.StatusBadGateway, "snapshots_failed")
			return
		}
		// Keys sort chronologically within a day.
		for i := len(objs) - 1; i >= 0; i-- {
			if strings.HasSuffix(objs[i].Path, "."+format.Ext()) {
				key = objs[i].Path
				break
			}
		}
		if key != "" {
			break
		}
	}
	if key == "" {
		writeError(w, http.StatusNotFound, "snapshot_not_found")
		return
	}

	body, err := h.blobs.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "snapshot_not_found")
			return
		}
		log.ErrorContext(r.Context(), "handler: get snapshot failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "snapshots_failed")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("X-Snapshot-Key", key)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		log.WarnContext(r.Context(), "handler: snapshot copy interrupted", slog.String("error", err.Error()))
	}
}
