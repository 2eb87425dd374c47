package handlers

import (
	"encoding/json"
	"net/http"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/model"
	"matrixchat/internal/viz"
)

// VisualizeHandler handles HTTP requests for column visualization analysis.
type VisualizeHandler struct {
	analyzer *viz.Analyzer
}

// NewVisualizeHandler creates a new VisualizeHandler.
func NewVisualizeHandler(analyzer *viz.Analyzer) *VisualizeHandler {
	return &VisualizeHandler{analyzer: analyzer}
}

// VisualizationRequest represents the HTTP request payload for column
// analysis. Cells are keyed by the wire format "docId-metricId".
type VisualizationRequest struct {
	Metrics []model.Metric        `json:"metrics"`
	Cells   map[string]model.Cell `json:"cells"`
}

// VisualizationResponse represents the HTTP response payload, keyed by
// metric ID.
type VisualizationResponse struct {
	Columns map[string]viz.ColumnAnalysis `json:"columns"`
}

// ServeHTTP handles POST /api/visualize-columns.
func (h *VisualizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req VisualizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cells := model.DecodeCells(req.Cells, req.Metrics)
	columns := h.analyzer.AnalyzeMatrix(ctx, req.Metrics, cells)

	llmPowered := 0
	for _, analysis := range columns {
		if analysis.LLMPowered {
			llmPowered++
		}
	}
	logger.InfoContext(ctx, "visualization analysis complete",
		"total_columns", len(columns), "llm_powered_count", llmPowered)

	writeJSON(w, http.StatusOK, VisualizationResponse{Columns: columns})
}
