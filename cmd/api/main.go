package main

import (
	"log"
	"log/slog"
	nethttp "net/http"
	"os"

	"matrixchat/internal/chat"
	"matrixchat/internal/config"
	"matrixchat/internal/http"
	"matrixchat/internal/llm"
	"matrixchat/internal/questions"
	"matrixchat/internal/storage"
	"matrixchat/internal/store"
	"matrixchat/internal/viz"
)

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Configure structured logging with configurable level and format
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("Invalid LOG_LEVEL %q: %v", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{
		Level: level,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", level.String(), "format", cfg.LogFormat)

	// Initialize database
	db, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer func() {
		_ = db.Close()
	}()

	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database initialized", "path", cfg.DBPath)

	// Create repository instances
	templateRepo := storage.NewTemplateRepo(db)
	reservoirRepo := storage.NewReservoirRepo(db)

	// Create provider-backed model service
	llmService, err := llm.NewService(llm.Options{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.LLMAPIKey,
		Model:    cfg.LLMModel,
		BaseURL:  cfg.LLMBaseURL,
	})
	if err != nil {
		log.Fatalf("Failed to create LLM service: %v", err)
	}
	slog.Info("LLM service initialized", "provider", cfg.LLMProvider, "model", cfg.LLMModel)

	// In-memory session store and chat pipeline
	sessions := store.NewManager()
	chatService := chat.NewService(sessions, llmService)

	// Chart analyzer with optional LLM orchestration
	analyzer := viz.NewAnalyzer(llmService, viz.Options{
		UseLLM:   cfg.ChartUseLLM,
		Timeout:  cfg.ChartTimeout,
		CacheTTL: cfg.ChartCacheTTL,
	})
	slog.Info("Chart analyzer initialized", "use_llm", cfg.ChartUseLLM, "timeout", cfg.ChartTimeout)

	// Analytical question generation over the matrix
	questionService := questions.NewService(llmService)

	// Create router with dependencies
	deps := &http.Deps{
		ChatService: chatService,
		LLMService:  llmService,
		Analyzer:    analyzer,
		Questions:   questionService,
		Templates:   templateRepo,
		Reservoir:   reservoirRepo,
		DB:          db,
	}
	router := http.NewRouter(deps)

	// Start API server
	addr := ":" + cfg.APIPort
	slog.Info("Starting API server", "addr", addr)
	if err := nethttp.ListenAndServe(addr, router); err != nil {
		log.Fatalf("API server failed to start: %v", err)
	}
}
