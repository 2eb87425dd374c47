package handlers

import (
	"encoding/json"
	"net/http"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/llm"
	"matrixchat/internal/model"
)

// InferHandler handles HTTP requests for schema inference.
type InferHandler struct {
	llmService llm.Service
}

// NewInferHandler creates a new InferHandler.
func NewInferHandler(llmService llm.Service) *InferHandler {
	return &InferHandler{llmService: llmService}
}

// InferRequest represents the HTTP request payload for schema inference.
type InferRequest struct {
	DocSnippets []model.DocSnippet `json:"doc_snippets"`
}

// InferResponse represents the HTTP response payload for schema inference.
type InferResponse struct {
	Metrics []string `json:"metrics"`
}

// ServeHTTP handles POST /api/infer-schema.
func (h *InferHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req InferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	metrics, err := h.llmService.InferMetrics(ctx, req.DocSnippets)
	if err != nil {
		logger.ErrorContext(ctx, "schema inference failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Schema inference failed")
		return
	}
	if metrics == nil {
		metrics = []string{}
	}

	writeJSON(w, http.StatusOK, InferResponse{Metrics: metrics})
}
