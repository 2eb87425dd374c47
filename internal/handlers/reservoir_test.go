package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"matrixchat/internal/storage"
)

func newReservoirRouter(t *testing.T) http.Handler {
	t.Helper()
	tmpDir := t.TempDir()

	db, err := storage.New(tmpDir + "/test.db")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := storage.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	handler := NewReservoirHandler(storage.NewReservoirRepo(db))
	r := chi.NewRouter()
	r.Get("/api/reservoir", handler.List)
	r.Post("/api/reservoir", handler.Ingest)
	r.Get("/api/reservoir/{id}", handler.Get)
	r.Delete("/api/reservoir/{id}", handler.Delete)
	return r
}

func ingestDocument(t *testing.T, router http.Handler, filename, content string) IngestResponse {
	t.Helper()
	body, _ := json.Marshal(IngestRequest{Filename: filename, Content: content})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/reservoir", bytes.NewBuffer(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("ingest status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp IngestResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestReservoirHandlerIngestAndGet(t *testing.T) {
	router := newReservoirRouter(t)

	resp := ingestDocument(t, router, "board-notes.md", "Churn rose to 8% in Q3.")
	if resp.ID == "" {
		t.Fatal("expected generated document id")
	}
	if resp.Message != "Document ingested successfully" {
		t.Fatalf("message = %q", resp.Message)
	}
	if resp.FileType != "md" {
		t.Fatalf("file_type = %q", resp.FileType)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reservoir/"+resp.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var detail ReservoirDocumentDetail
	if err := json.NewDecoder(w.Body).Decode(&detail); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if detail.Content != "Churn rose to 8% in Q3." {
		t.Fatalf("content = %q", detail.Content)
	}
}

func TestReservoirHandlerIngestDeduplicates(t *testing.T) {
	router := newReservoirRouter(t)

	first := ingestDocument(t, router, "notes.txt", "same content")
	second := ingestDocument(t, router, "renamed.txt", "same content")

	if second.Message != "Document already exists in reservoir" {
		t.Fatalf("message = %q", second.Message)
	}
	if second.ID != first.ID {
		t.Fatalf("duplicate ingest should return the existing document, got %s want %s", second.ID, first.ID)
	}
	if second.Filename != "notes.txt" {
		t.Fatalf("filename = %q, want the original upload's name", second.Filename)
	}
}

func TestReservoirHandlerIngestRequiresFilename(t *testing.T) {
	router := newReservoirRouter(t)

	body, _ := json.Marshal(IngestRequest{Content: "no name"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/reservoir", bytes.NewBuffer(body)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestReservoirHandlerList(t *testing.T) {
	router := newReservoirRouter(t)

	ingestDocument(t, router, "a.txt", "first")
	ingestDocument(t, router, "b.txt", "second")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reservoir", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp ReservoirListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 2 || len(resp.Documents) != 2 {
		t.Fatalf("expected 2 documents, got total=%d len=%d", resp.Total, len(resp.Documents))
	}
}

func TestReservoirHandlerDelete(t *testing.T) {
	router := newReservoirRouter(t)

	doc := ingestDocument(t, router, "obsolete.txt", "old data")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/reservoir/"+doc.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/reservoir/"+doc.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted document should 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/reservoir/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing delete status = %d, want 404", w.Code)
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{512, "512.0 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{2 * 1024 * 1024 * 1024 * 1024, "2.0 TB"},
	}
	for _, tt := range tests {
		if got := formatFileSize(tt.bytes); got != tt.want {
			t.Errorf("formatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestFileType(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"notes.txt", "txt"},
		{"README.MD", "md"},
		{"report.pdf", "other"},
		{"no-extension", "other"},
	}
	for _, tt := range tests {
		if got := fileType(tt.filename); got != tt.want {
			t.Errorf("fileType(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
