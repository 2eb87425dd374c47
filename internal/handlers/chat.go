package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"matrixchat/internal/chat"
	"matrixchat/internal/contextutil"
	"matrixchat/internal/model"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	chatService *chat.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService *chat.Service) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Query         string              `json:"query"`
	SessionID     string              `json:"session_id"`
	MatrixContext model.MatrixContext `json:"matrix_context"`
}

// ClearHistoryRequest represents the payload for clearing chat history.
type ClearHistoryRequest struct {
	SessionID string `json:"session_id"`
}

// Chat handles POST /api/chat.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.chatService.Chat(ctx, chat.Request{
		Query:         req.Query,
		SessionID:     req.SessionID,
		MatrixContext: req.MatrixContext,
	})
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to process chat request")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Stream handles POST /api/chat/stream using Server-Sent Events. Events
// are JSON objects: text deltas, one citations batch, then a done event
// carrying the stored message ID. A mid-stream failure becomes a terminal
// error event.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body for streaming", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Set up Server-Sent Events headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	emit := func(event model.StreamEvent) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chatService.ChatStream(ctx, chat.Request{
		Query:         req.Query,
		SessionID:     req.SessionID,
		MatrixContext: req.MatrixContext,
	}, emit)
	if err != nil {
		logger.ErrorContext(ctx, "error streaming chat", "error", err)
		_ = emit(model.StreamEvent{Type: model.StreamEventError, Error: err.Error()})
	}
}

// Clear handles POST /api/chat/clear.
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req ClearHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	h.chatService.ClearHistory(req.SessionID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
