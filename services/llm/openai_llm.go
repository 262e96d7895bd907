package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type OpenAIClient struct {
	client       *openai.Client
	model        string
	systemPrompt string
	logger       *slog.Logger
}

func NewOpenAIClient(cfg Config, logger *slog.Logger) (*OpenAIClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	apiKey := resolveAPIKey(cfg.APIKey, "OPENAI_API_KEY", "/run/secrets/openai_api_key", logger)
	if apiKey == "" {
		return nil, fmt.Errorf("openai: %w", ErrMissingAPIKey)
	}
	model := envOr(cfg.Model, "OPENAI_MODEL", "gpt-4o-mini")

	clientCfg := openai.DefaultConfig(apiKey)
	if base := envOr(cfg.BaseURL, "OPENAI_BASE_URL", ""); base != "" {
		clientCfg.BaseURL = base
	}
	logger.Info("initializing OpenAI client", slog.String("model", model))
	return &OpenAIClient{
		client:       openai.NewClientWithConfig(clientCfg),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		logger:       logger,
	}, nil
}

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	ctx, span := tracer.Start(ctx, "OpenAIClient.Generate")
	defer span.End()
	span.SetAttributes(attribute.String("llm.model", o.model), attribute.Int("llm.prompt_len", len(prompt)))

	system := o.systemPrompt
	if system == "" {
		system = defaultSystemPrompt
	}
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}
	if params.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.Error("OpenAI API call failed", slog.String("error", err.Error()))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", fmt.Errorf("OpenAI returned no choices")
	}
	o.logger.Debug("received response from OpenAI",
		slog.String("finish_reason", string(resp.Choices[0].FinishReason)),
		slog.Int("response_len", len(resp.Choices[0].Message.Content)),
	)
	return resp.Choices[0].Message.Content, nil
}
