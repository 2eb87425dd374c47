// Package chat drives the retrieval-and-citation pipeline: matrix-first
// retrieval, document fallback, context assembly, the generative-model
// call (sync or streamed), and citation reconciliation, all against a
// session-scoped context store.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"matrixchat/internal/citation"
	"matrixchat/internal/contextutil"
	"matrixchat/internal/llm"
	"matrixchat/internal/model"
	"matrixchat/internal/retrieval"
	"matrixchat/internal/store"
)

const (
	// historyFetchLimit is how many stored messages a turn reads back.
	historyFetchLimit = 10
	// historyRenderCount is how many of those are rendered into the prompt.
	historyRenderCount = 6

	fallbackResponse  = "I was unable to generate a response."
	defaultConfidence = "Medium"
)

// Request is one chat turn: the query, the session it belongs to, and the
// caller's current matrix snapshot.
type Request struct {
	Query         string              `json:"query"`
	SessionID     string              `json:"session_id"`
	MatrixContext model.MatrixContext `json:"matrix_context"`
}

// Response is the completed turn.
type Response struct {
	Message           model.ChatMessage `json:"message"`
	MatrixCellsUsed   int               `json:"matrix_cells_used"`
	DocumentsSearched int               `json:"documents_searched"`
	Confidence        string            `json:"confidence"`
}

// Service orchestrates chat turns.
type Service struct {
	sessions *store.Manager
	matrix   *retrieval.MatrixRetriever
	docs     *retrieval.DocumentRetriever
	llm      llm.Service
	logger   *slog.Logger
}

// NewService creates a chat Service.
func NewService(sessions *store.Manager, llmService llm.Service) *Service {
	return &Service{
		sessions: sessions,
		matrix:   retrieval.NewMatrixRetriever(),
		docs:     retrieval.NewDocumentRetriever(),
		llm:      llmService,
		logger:   slog.Default(),
	}
}

// turnContext is everything retrieval produced for one turn.
type turnContext struct {
	session         *store.Session
	cellMatches     []model.CellMatch
	docChunks       []model.DocChunk
	matrixContext   string
	documentContext string
	historyText     string
}

// prepareTurn syncs the session from the request snapshot, runs matrix
// retrieval with document fallback, renders the history block, and
// appends the user message to the session log.
func (s *Service) prepareTurn(ctx context.Context, req Request) turnContext {
	logger := contextutil.LoggerFromContext(ctx)

	session := s.sessions.Session(req.SessionID)
	session.SyncContext(req.MatrixContext)

	documents := session.Documents()
	metrics := session.Metrics()
	cells := session.Cells()

	cellMatches := s.matrix.Retrieve(req.Query, cells, metrics, documents, retrieval.DefaultMinCellRelevance)
	matrixContext := s.matrix.FormatForContext(cellMatches)
	matrixSufficient := s.matrix.HasSufficientData(cellMatches, retrieval.DefaultSufficiencyMatches)

	var docChunks []model.DocChunk
	if !matrixSufficient {
		docChunks = s.docs.Retrieve(req.Query, documents, retrieval.DefaultMaxChunks, retrieval.DefaultMinChunkRelevance)
	}
	documentContext := s.docs.FormatForContext(docChunks)

	logger.InfoContext(ctx, "retrieval completed",
		"session_id", req.SessionID,
		"cell_matches", len(cellMatches),
		"matrix_sufficient", matrixSufficient,
		"doc_chunks", len(docChunks),
	)

	history := session.History(historyFetchLimit)
	if len(history) > historyRenderCount {
		history = history[len(history)-historyRenderCount:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		role := "Assistant"
		if m.Role == "user" {
			role = "User"
		}
		lines = append(lines, role+": "+m.Content)
	}
	historyText := strings.Join(lines, "\n")

	session.AppendMessage(model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   req.Query,
		Timestamp: time.Now(),
	})

	return turnContext{
		session:         session,
		cellMatches:     cellMatches,
		docChunks:       docChunks,
		matrixContext:   matrixContext,
		documentContext: documentContext,
		historyText:     historyText,
	}
}

// Chat runs one non-streaming turn.
func (s *Service) Chat(ctx context.Context, req Request) (Response, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.Query == "" {
		return Response{}, &ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if req.SessionID == "" {
		return Response{}, &ValidationError{Field: "session_id", Message: "cannot be empty"}
	}

	turn := s.prepareTurn(ctx, req)

	result, err := s.llm.ChatWithContext(ctx, req.Query, turn.matrixContext, turn.documentContext, turn.historyText)
	if err != nil {
		logger.ErrorContext(ctx, "chat model call failed", "error", err)
		return Response{}, WrapError(fmt.Errorf("%w: %w", ErrExternalService, err), "failed to get model response")
	}

	content := result.Response
	if content == "" {
		content = fallbackResponse
	}

	enriched := citation.Enrich(result.Citations, turn.cellMatches, turn.docChunks)
	content, citations := citation.Normalize(content, enriched)

	assistantMessage := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now(),
		Citations: citations,
	}
	turn.session.AppendMessage(assistantMessage)

	resp := Response{
		Message:           assistantMessage,
		MatrixCellsUsed:   len(turn.cellMatches),
		DocumentsSearched: len(turn.docChunks),
		Confidence:        defaultConfidence,
	}
	if result.MatrixCellsUsed != nil {
		resp.MatrixCellsUsed = *result.MatrixCellsUsed
	}
	if result.DocumentsSearched != nil {
		resp.DocumentsSearched = *result.DocumentsSearched
	}
	if result.Confidence != "" {
		resp.Confidence = result.Confidence
	}

	logger.InfoContext(ctx, "chat turn completed",
		"session_id", req.SessionID,
		"citations", len(citations),
		"confidence", resp.Confidence,
	)
	return resp, nil
}

// ChatStream runs one streaming turn. Text events are forwarded to emit
// as they arrive; after the provider stream completes, the accumulated
// text and raw citations are normalized and emitted as one citations
// event followed by a done event. Citation events never precede text
// events, and a failed turn emits nothing after the error is returned —
// the handler converts it into a terminal error event.
func (s *Service) ChatStream(ctx context.Context, req Request, emit func(model.StreamEvent) error) error {
	logger := contextutil.LoggerFromContext(ctx)

	if req.Query == "" {
		return &ValidationError{Field: "query", Message: "cannot be empty"}
	}
	if req.SessionID == "" {
		return &ValidationError{Field: "session_id", Message: "cannot be empty"}
	}

	turn := s.prepareTurn(ctx, req)

	var fullContent strings.Builder
	var rawCitations []model.RawCitation

	err := s.llm.ChatWithContextStream(ctx, req.Query, turn.matrixContext, turn.documentContext, turn.historyText,
		func(ev model.StreamEvent) error {
			switch ev.Type {
			case model.StreamEventText:
				fullContent.WriteString(ev.Content)
				return emit(ev)
			case model.StreamEventCitations:
				rawCitations = ev.RawCitations
			}
			return nil
		})
	if err != nil {
		logger.ErrorContext(ctx, "streaming chat model call failed", "error", err)
		return WrapError(fmt.Errorf("%w: %w", ErrExternalService, err), "failed to stream model response")
	}

	enriched := citation.Enrich(rawCitations, turn.cellMatches, turn.docChunks)
	content, citations := citation.Normalize(fullContent.String(), enriched)

	assistantMessage := model.ChatMessage{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   content,
		Timestamp: time.Now(),
		Citations: citations,
	}
	turn.session.AppendMessage(assistantMessage)

	if err := emit(model.StreamEvent{Type: model.StreamEventCitations, Citations: citations}); err != nil {
		return err
	}
	return emit(model.StreamEvent{Type: model.StreamEventDone, MessageID: assistantMessage.ID})
}

// ClearHistory drops a session's conversation log.
func (s *Service) ClearHistory(sessionID string) {
	s.sessions.Session(sessionID).ClearHistory()
}
