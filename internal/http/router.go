package http

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matrixchat/internal/chat"
	"matrixchat/internal/handlers"
	"matrixchat/internal/llm"
	"matrixchat/internal/questions"
	"matrixchat/internal/storage"
	"matrixchat/internal/viz"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService *chat.Service
	LLMService  llm.Service
	Analyzer    *viz.Analyzer
	Questions   *questions.Service
	Templates   storage.TemplateStore
	Reservoir   storage.ReservoirStore
	DB          *sql.DB
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.ChatService)
	extractHandler := handlers.NewExtractHandler(deps.LLMService)
	inferHandler := handlers.NewInferHandler(deps.LLMService)
	visualizeHandler := handlers.NewVisualizeHandler(deps.Analyzer)
	questionsHandler := handlers.NewQuestionsHandler(deps.Questions)
	templateHandler := handlers.NewTemplateHandler(deps.Templates)
	reservoirHandler := handlers.NewReservoirHandler(deps.Reservoir)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)
		r.Post("/chat/stream", chatHandler.Stream)
		r.Post("/chat/clear", chatHandler.Clear)

		r.Method(http.MethodPost, "/extract", extractHandler)
		r.Method(http.MethodPost, "/infer-schema", inferHandler)
		r.Method(http.MethodPost, "/visualize-columns", visualizeHandler)

		r.Post("/analytical-questions", questionsHandler.Generate)
		r.Post("/answer-question", questionsHandler.Answer)

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.List)
			r.Post("/", templateHandler.Create)
			r.Get("/{id}", templateHandler.Get)
			r.Put("/{id}", templateHandler.Update)
			r.Delete("/{id}", templateHandler.Delete)
			r.Post("/{id}/fork", templateHandler.Fork)
		})

		r.Route("/reservoir", func(r chi.Router) {
			r.Get("/", reservoirHandler.List)
			r.Post("/", reservoirHandler.Ingest)
			r.Get("/{id}", reservoirHandler.Get)
			r.Delete("/{id}", reservoirHandler.Delete)
		})
	})

	r.Method(http.MethodGet, "/health", healthHandler)

	return r
}
