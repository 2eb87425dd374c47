package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"matrixchat/internal/storage"
)

func newTemplateRouter(t *testing.T) (http.Handler, *storage.TemplateRepo) {
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

	repo := storage.NewTemplateRepo(db)
	handler := NewTemplateHandler(repo)

	r := chi.NewRouter()
	r.Get("/api/templates", handler.List)
	r.Post("/api/templates", handler.Create)
	r.Get("/api/templates/{id}", handler.Get)
	r.Put("/api/templates/{id}", handler.Update)
	r.Delete("/api/templates/{id}", handler.Delete)
	r.Post("/api/templates/{id}/fork", handler.Fork)
	return r, repo
}

func TestTemplateHandlerCreateAndGet(t *testing.T) {
	router, _ := newTemplateRouter(t)

	body, _ := json.Marshal(TemplateCreateRequest{
		Name:     "Startup Diligence",
		Subtitle: "Seed stage",
		Metrics: []storage.TemplateMetric{
			{ID: "m1", Label: "ARR", Type: "numeric"},
		},
	})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewBuffer(body)))

	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var created TemplateResponse
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.ID == "" || created.Name != "Startup Diligence" || len(created.Metrics) != 1 {
		t.Fatalf("unexpected template: %+v", created)
	}
	if created.CreatedAt == "" {
		t.Fatal("created_at should be set")
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
}

func TestTemplateHandlerCreateRequiresName(t *testing.T) {
	router, _ := newTemplateRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewReader([]byte(`{}`))))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestTemplateHandlerGetNotFound(t *testing.T) {
	router, _ := newTemplateRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestTemplateHandlerList(t *testing.T) {
	router, repo := newTemplateRouter(t)
	ctx := context.Background()

	system := &storage.TemplateRecord{Name: "System", IsSystem: true}
	if err := repo.Create(ctx, system); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	user := &storage.TemplateRecord{Name: "Mine"}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var resp TemplateListResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Templates) != 2 {
		t.Fatalf("expected 2 templates, got %d", len(resp.Templates))
	}
	if !resp.Templates[0].IsSystem {
		t.Fatalf("system template should be listed first: %+v", resp.Templates[0])
	}
}

func TestTemplateHandlerUpdatePartial(t *testing.T) {
	router, repo := newTemplateRouter(t)
	ctx := context.Background()

	template := &storage.TemplateRecord{Name: "Original", Subtitle: "Keep me"}
	if err := repo.Create(ctx, template); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	body := []byte(`{"name": "Renamed"}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/templates/"+template.ID, bytes.NewBuffer(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var updated TemplateResponse
	if err := json.NewDecoder(w.Body).Decode(&updated); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q", updated.Name)
	}
	if updated.Subtitle != "Keep me" {
		t.Fatalf("fields absent from the payload must be kept, subtitle = %q", updated.Subtitle)
	}
}

func TestTemplateHandlerSystemTemplateForbidden(t *testing.T) {
	router, repo := newTemplateRouter(t)
	ctx := context.Background()

	system := &storage.TemplateRecord{Name: "System", IsSystem: true}
	if err := repo.Create(ctx, system); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/templates/"+system.ID, bytes.NewReader([]byte(`{"name":"x"}`))))
	if w.Code != http.StatusForbidden {
		t.Fatalf("update status = %d, want 403", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/templates/"+system.ID, nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("delete status = %d, want 403", w.Code)
	}
}

func TestTemplateHandlerFork(t *testing.T) {
	router, repo := newTemplateRouter(t)
	ctx := context.Background()

	source := &storage.TemplateRecord{Name: "SaaS Basics", IsSystem: true}
	if err := repo.Create(ctx, source); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/templates/"+source.ID+"/fork", bytes.NewReader([]byte(`{}`))))
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var forked TemplateResponse
	if err := json.NewDecoder(w.Body).Decode(&forked); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if forked.Name != "SaaS Basics (Copy)" || forked.IsSystem || forked.ForkedFromID != source.ID {
		t.Fatalf("unexpected fork: %+v", forked)
	}
}

func TestTemplateHandlerDelete(t *testing.T) {
	router, repo := newTemplateRouter(t)
	ctx := context.Background()

	template := &storage.TemplateRecord{Name: "Disposable"}
	if err := repo.Create(ctx, template); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/templates/"+template.ID, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/templates/"+template.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("deleted template should 404, got %d", w.Code)
	}
}
