package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Backend names accepted by NewClient.
const (
	BackendOpenAI    = "openai"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
)

// ErrMissingAPIKey is returned when a hosted backend has no credentials.
var ErrMissingAPIKey = errors.New("llm API key is missing")

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopK        *int     `json:"top_k"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// JSON asks the backend for a JSON object when it supports a response
	// format switch.
	JSON bool `json:"json"`
}

// LLMClient defines the standard interface for any LLM backend
type LLMClient interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Backend      string        `yaml:"backend" validate:"omitempty,oneof=openai ollama anthropic"`
	Model        string        `yaml:"model"`
	BaseURL      string        `yaml:"base_url"`
	APIKey       string        `yaml:"-"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
}

const defaultSystemPrompt = "You are an experienced product management interviewer. Reply with JSON only."

// NewClient builds the configured backend. Missing values are filled from the
// backend's environment variables.
func NewClient(cfg Config, logger *slog.Logger) (LLMClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendOpenAI, "":
		return NewOpenAIClient(cfg, logger)
	case BackendOllama:
		return NewOllamaClient(cfg, logger)
	case BackendAnthropic:
		return NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown llm backend %q", cfg.Backend)
	}
}

// resolveAPIKey returns the configured key, then the environment variable,
// then the mounted secret file.
func resolveAPIKey(configured, envVar, secretPath string, logger *slog.Logger) string {
	if configured != "" {
		return configured
	}
	if key := os.Getenv(envVar); key != "" {
		return key
	}
	if content, err := os.ReadFile(secretPath); err == nil {
		logger.Info("read API key from secret file", slog.String("path", secretPath))
		return strings.TrimSpace(string(content))
	}
	return ""
}

func envOr(value, envVar, fallback string) string {
	if value != "" {
		return value
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return fallback
}
