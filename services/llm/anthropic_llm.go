package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	anthropicAPIVersion = "2023-06-01"
	defaultBaseURL      = "https://api.anthropic.com/v1/messages"
	defaultMaxTokens    = 2048
)

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	System    []systemBlock      `json:"system,omitempty"` // Top-level system prompt
	MaxTokens int                `json:"max_tokens"`

	Temperature *float32 `json:"temperature,omitempty"`
	TopP        *float32 `json:"top_p,omitempty"`
	TopK        *int     `json:"top_k,omitempty"`
	StopSeqs    []string `json:"stop_sequences,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"`
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
	Error   *anthropicError    `json:"error,omitempty"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type cacheControl struct {
	Type string `json:"type"` // Must be "ephemeral"
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// --- Client Implementation ---

type AnthropicClient struct {
	httpClient   *http.Client
	apiKey       string
	model        string
	url          string
	systemPrompt string
	logger       *slog.Logger
}

func NewAnthropicClient(cfg Config, logger *slog.Logger) (*AnthropicClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := resolveAPIKey(cfg.APIKey, "ANTHROPIC_API_KEY", "/run/secrets/anthropic_api_key", logger)
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: %w", ErrMissingAPIKey)
	}
	model := envOr(cfg.Model, "CLAUDE_MODEL", "claude-3-5-sonnet-20240620")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &AnthropicClient{
		httpClient:   &http.Client{Timeout: timeout},
		apiKey:       apiKey,
		model:        model,
		url:          envOr(cfg.BaseURL, "ANTHROPIC_BASE_URL", defaultBaseURL),
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}, nil
}

// Generate implements the LLMClient interface
func (a *AnthropicClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "AnthropicClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", a.model))

	reqPayload := anthropicRequest{
		Model:       a.model,
		Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		MaxTokens:   defaultMaxTokens,
		Temperature: params.Temperature,
		TopP:        params.TopP,
		TopK:        params.TopK,
		StopSeqs:    params.Stop,
	}
	if params.MaxTokens != nil {
		reqPayload.MaxTokens = *params.MaxTokens
	}

	// Long system prompts are marked cacheable
	if a.systemPrompt != "" {
		block := systemBlock{Type: "text", Text: a.systemPrompt}
		if len(a.systemPrompt) > 1024 {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		reqPayload.System = []systemBlock{block}
	}

	reqBodyBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(reqBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	req.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	a.logger.Debug("Anthropic response", slog.Int("status", resp.StatusCode), slog.Int("body_length", len(bodyBytes)))

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, fmt.Sprintf("status %d", resp.StatusCode))
		return "", fmt.Errorf("anthropic API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(bodyBytes, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse response JSON: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("anthropic API error: %s - %s", apiResp.Error.Type, apiResp.Error.Message)
	}

	var text strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("received no text content from Anthropic")
	}
	return text.String(), nil
}
