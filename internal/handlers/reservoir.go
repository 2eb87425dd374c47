package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"matrixchat/internal/contextutil"
	"matrixchat/internal/storage"
)

// ReservoirHandler handles HTTP requests for the document reservoir.
type ReservoirHandler struct {
	reservoir storage.ReservoirStore
}

// NewReservoirHandler creates a new ReservoirHandler.
func NewReservoirHandler(reservoir storage.ReservoirStore) *ReservoirHandler {
	return &ReservoirHandler{reservoir: reservoir}
}

// ReservoirDocumentResponse represents a reservoir document in list
// responses.
type ReservoirDocumentResponse struct {
	ID            string `json:"id"`
	Filename      string `json:"filename"`
	FileType      string `json:"file_type"`
	FileSize      string `json:"file_size"`
	FileSizeBytes int64  `json:"file_size_bytes"`
	CreatedAt     string `json:"created_at"`
}

// ReservoirDocumentDetail extends the list shape with the stored content.
type ReservoirDocumentDetail struct {
	ReservoirDocumentResponse
	Content string `json:"content"`
}

// ReservoirListResponse represents the list endpoint payload.
type ReservoirListResponse struct {
	Documents []ReservoirDocumentResponse `json:"documents"`
	Total     int                         `json:"total"`
}

// IngestRequest represents the payload for ingesting a text document.
type IngestRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// IngestResponse represents the ingest endpoint payload.
type IngestResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	FileType string `json:"file_type"`
	FileSize string `json:"file_size"`
	Message  string `json:"message"`
}

func reservoirToResponse(doc *storage.ReservoirDocumentRecord) ReservoirDocumentResponse {
	return ReservoirDocumentResponse{
		ID:            doc.ID,
		Filename:      doc.Filename,
		FileType:      doc.FileType,
		FileSize:      doc.FileSize,
		FileSizeBytes: doc.FileSizeBytes,
		CreatedAt:     doc.CreatedAt.Format(time.RFC3339),
	}
}

// formatFileSize converts bytes to a human-readable size.
func formatFileSize(sizeBytes int64) string {
	size := float64(sizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}

// fileType infers the stored file type from a filename.
func fileType(filename string) string {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".txt"):
		return "txt"
	case strings.HasSuffix(lower, ".md"):
		return "md"
	default:
		return "other"
	}
}

// List handles GET /api/reservoir.
func (h *ReservoirHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.reservoir.List(ctx)
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to list reservoir documents")
		return
	}

	resp := ReservoirListResponse{
		Documents: make([]ReservoirDocumentResponse, 0, len(docs)),
		Total:     len(docs),
	}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, reservoirToResponse(doc))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/reservoir/{id}.
func (h *ReservoirHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	doc, err := h.reservoir.GetByID(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, ctx, err, "Failed to get reservoir document")
		return
	}

	writeJSON(w, http.StatusOK, ReservoirDocumentDetail{
		ReservoirDocumentResponse: reservoirToResponse(doc),
		Content:                   doc.Content,
	})
}

// Ingest handles POST /api/reservoir. Text content is deduplicated by
// SHA256 hash: re-ingesting identical content returns the existing
// document instead of creating a new one.
func (h *ReservoirHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	sum := sha256.Sum256([]byte(req.Content))
	contentHash := hex.EncodeToString(sum[:])

	existing, err := h.reservoir.GetByHash(ctx, contentHash)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		handleServiceError(w, ctx, err, "Failed to check for duplicate document")
		return
	}
	if existing != nil {
		writeJSON(w, http.StatusOK, IngestResponse{
			ID:       existing.ID,
			Filename: existing.Filename,
			FileType: existing.FileType,
			FileSize: existing.FileSize,
			Message:  "Document already exists in reservoir",
		})
		return
	}

	doc := &storage.ReservoirDocumentRecord{
		Filename:      req.Filename,
		FileType:      fileType(req.Filename),
		FileSize:      formatFileSize(int64(len(req.Content))),
		FileSizeBytes: int64(len(req.Content)),
		ContentHash:   contentHash,
		Content:       req.Content,
	}
	if err := h.reservoir.Insert(ctx, doc); err != nil {
		handleServiceError(w, ctx, err, "Failed to ingest document")
		return
	}

	logger.InfoContext(ctx, "document ingested into reservoir",
		"document_id", doc.ID, "filename", doc.Filename, "size_bytes", doc.FileSizeBytes)

	writeJSON(w, http.StatusOK, IngestResponse{
		ID:       doc.ID,
		Filename: doc.Filename,
		FileType: doc.FileType,
		FileSize: doc.FileSize,
		Message:  "Document ingested successfully",
	})
}

// Delete handles DELETE /api/reservoir/{id}.
func (h *ReservoirHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	id := chi.URLParam(r, "id")
	if err := h.reservoir.Delete(ctx, id); err != nil {
		handleServiceError(w, ctx, err, "Failed to delete reservoir document")
		return
	}

	logger.InfoContext(ctx, "document deleted from reservoir", "document_id", id)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Document deleted successfully",
		"id":      id,
	})
}
