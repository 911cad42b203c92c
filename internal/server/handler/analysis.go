package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polydash/internal/domain"
	"github.com/alanyoungcy/polydash/internal/service"
)

// Analyzer produces an LLM market analysis.
type Analyzer interface {
	Analyze(ctx context.Context, question string, mode service.AnalysisMode) domain.AnalysisResult
}

// AnalysisHandler serves market analyses.
type AnalysisHandler struct {
	analyzer Analyzer
	logger   *slog.Logger
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(analyzer Analyzer, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer, logger: logger}
}

// Analyze returns an AnalysisResult. Failures are reported in the body with
// ok=false; only a missing question changes the status code.
// GET /api/analysis?question=...&mode=structured
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	question := queryString(r, "question")
	mode := service.ParseAnalysisMode(queryString(r, "mode"))

	res := h.analyzer.Analyze(r.Context(), question, mode)
	if !res.OK {
		requestLogger(h.logger, r, "analysis").InfoContext(r.Context(), "handler: analysis unavailable",
			slog.String("code", res.ErrorCode),
		)
	}

	status := http.StatusOK
	if res.ErrorCode == service.CodeNoQuestion {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res)
}
