package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	LLMProvider   string // "openai" or "gemini"
	LLMAPIKey     string
	LLMModel      string
	LLMBaseURL    string // Optional endpoint override, mainly for tests
	DBPath        string
	APIPort       string
	LogLevel      string // debug, info, warn, error
	LogFormat     string // text or json
	ChartUseLLM   bool
	ChartTimeout  time.Duration
	ChartCacheTTL time.Duration
}

// Load reads configuration from environment variables and returns a Config struct.
// It applies defaults for optional fields and validates required fields.
// If a .env file exists in the current directory or project root, it will be loaded automatically.
// Environment variables already set take precedence over .env file values.
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	// Check current directory first, then walk up to find project root (where go.mod is)
	_ = godotenv.Load() // Try current directory

	// Try to find project root by looking for go.mod
	wd, err := os.Getwd()
	if err == nil {
		dir := wd
		for i := 0; i < 5; i++ { // Limit search depth
			envPath := filepath.Join(dir, ".env")
			if _, err := os.Stat(envPath); err == nil {
				_ = godotenv.Load(envPath)
				break
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break // Reached filesystem root
			}
			dir = parent
		}
	}

	provider := getEnv("LLM_PROVIDER", "openai")

	cfg := &Config{
		LLMProvider: provider,
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/matrixchat.db"),
		APIPort:     getEnv("API_PORT", "8000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "text"),
	}

	// Provider-specific key and model envs, with generic fallbacks
	switch provider {
	case "openai":
		cfg.LLMAPIKey = getEnv("OPENAI_API_KEY", "")
		cfg.LLMModel = getEnv("OPENAI_MODEL", "gpt-4o-mini")
	case "gemini":
		cfg.LLMAPIKey = getEnv("GEMINI_API_KEY", "")
		cfg.LLMModel = getEnv("GEMINI_MODEL", "gemini-2.0-flash")
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be \"openai\" or \"gemini\", got %q", provider)
	}
	if cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = getEnv("LLM_API_KEY", "")
	}
	if cfg.LLMAPIKey == "" {
		return nil, fmt.Errorf("API key for provider %q is required", provider)
	}

	useLLM, err := getEnvBool("CHART_USE_LLM", true)
	if err != nil {
		return nil, err
	}
	cfg.ChartUseLLM = useLLM

	timeoutSec, err := getEnvFloat("CHART_LLM_TIMEOUT", 5.0)
	if err != nil {
		return nil, err
	}
	if timeoutSec <= 0 {
		return nil, fmt.Errorf("CHART_LLM_TIMEOUT must be greater than 0")
	}
	cfg.ChartTimeout = time.Duration(timeoutSec * float64(time.Second))

	cacheTTLSec, err := getEnvFloat("CHART_CACHE_TTL", 300)
	if err != nil {
		return nil, err
	}
	if cacheTTLSec <= 0 {
		return nil, fmt.Errorf("CHART_CACHE_TTL must be greater than 0")
	}
	cfg.ChartCacheTTL = time.Duration(cacheTTLSec * float64(time.Second))

	// Create ./data directory if it doesn't exist (for future DB file)
	dataDir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value.
func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return parsed, nil
}

// getEnvFloat gets a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number: %w", key, err)
	}
	return parsed, nil
}
