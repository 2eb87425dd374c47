package handlers

import (
	"encoding/json"
	"net/http"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/llm"
)

// ExtractHandler handles HTTP requests for metric extraction.
type ExtractHandler struct {
	llmService llm.Service
}

// NewExtractHandler creates a new ExtractHandler.
func NewExtractHandler(llmService llm.Service) *ExtractHandler {
	return &ExtractHandler{llmService: llmService}
}

// ExtractionRequest represents the HTTP request payload for extraction.
type ExtractionRequest struct {
	DocContent  string `json:"doc_content"`
	MetricLabel string `json:"metric_label"`
}

// ServeHTTP handles POST /api/extract.
func (h *ExtractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ExtractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.MetricLabel == "" {
		writeError(w, http.StatusBadRequest, "metric_label is required")
		return
	}

	result, err := h.llmService.ExtractMetric(ctx, req.DocContent, req.MetricLabel)
	if err != nil {
		logger.ErrorContext(ctx, "extraction failed", "metric_label", req.MetricLabel, "error", err)
		writeError(w, http.StatusInternalServerError, "Extraction failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
