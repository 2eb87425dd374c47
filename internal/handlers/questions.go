package handlers

import (
	"encoding/json"
	"net/http"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/model"
	"matrixchat/internal/questions"
)

// QuestionsHandler handles HTTP requests for analytical question
// generation and answering.
type QuestionsHandler struct {
	questions *questions.Service
}

// NewQuestionsHandler creates a new QuestionsHandler.
func NewQuestionsHandler(svc *questions.Service) *QuestionsHandler {
	return &QuestionsHandler{questions: svc}
}

// QuestionsRequest is the matrix snapshot the questions are generated
// over. Cells are keyed by the wire format "docId-metricId".
type QuestionsRequest struct {
	Documents []model.Document      `json:"documents"`
	Metrics   []model.Metric        `json:"metrics"`
	Cells     map[string]model.Cell `json:"cells"`
}

// QuestionsResponse carries the suggested questions.
type QuestionsResponse struct {
	Questions []model.AnalyticalQuestion `json:"questions"`
}

// AnswerRequest pairs one suggested question with the matrix snapshot
// to answer it against.
type AnswerRequest struct {
	Question  model.AnalyticalQuestion `json:"question"`
	Documents []model.Document         `json:"documents"`
	Metrics   []model.Metric           `json:"metrics"`
	Cells     map[string]model.Cell    `json:"cells"`
}

// Generate handles POST /api/analytical-questions.
func (h *QuestionsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req QuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cells := model.DecodeCells(req.Cells, req.Metrics)
	generated := h.questions.Generate(ctx, req.Documents, req.Metrics, cells)

	writeJSON(w, http.StatusOK, QuestionsResponse{Questions: generated})
}

// Answer handles POST /api/answer-question.
func (h *QuestionsHandler) Answer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Question.Question == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}

	cells := model.DecodeCells(req.Cells, req.Metrics)
	answer := h.questions.Answer(ctx, req.Question, req.Documents, req.Metrics, cells)

	writeJSON(w, http.StatusOK, answer)
}
