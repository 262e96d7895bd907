// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat(v float32) *float32 { return &v }
func ptrInt(v int) *int           { return &v }

func TestOllamaClient_Generate(t *testing.T) {
	var got ollamaGenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: `{"score":7}`, Done: true})
	}))
	defer srv.Close()

	client, err := NewOllamaClient(Config{BaseURL: srv.URL + "/", Model: "llama3", SystemPrompt: "sys"}, nil)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "rate this", GenerationParams{
		Temperature: ptrFloat(0.5),
		MaxTokens:   ptrInt(100),
		JSON:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"score":7}`, out)
	assert.Equal(t, "llama3", got.Model)
	assert.Equal(t, "sys", got.System)
	assert.Equal(t, "json", got.Format)
	assert.False(t, got.Stream)
	assert.EqualValues(t, 0.5, got.Options["temperature"])
	assert.EqualValues(t, 100, got.Options["num_predict"])
}

func TestOllamaClient_ModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"model \"missing\" not found, try pulling it first"}`))
	}))
	defer srv.Close()

	client, err := NewOllamaClient(Config{BaseURL: srv.URL, Model: "missing"}, nil)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ollama pull missing")
}

func TestNewOllamaClient_RequiresBaseURL(t *testing.T) {
	t.Setenv("OLLAMA_BASE_URL", "")
	_, err := NewOllamaClient(Config{}, nil)
	require.Error(t, err)
}

func TestAnthropicClient_Generate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[{"type":"text","text":"hello "},{"type":"tool_use"},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test", SystemPrompt: "sys"}, nil)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "hi", GenerationParams{Stop: []string{"END"}})
	require.NoError(t, err)
	assert.Equal(t, "hello world", out)
	assert.Equal(t, "claude-test", got.Model)
	assert.Equal(t, defaultMaxTokens, got.MaxTokens)
	require.Len(t, got.System, 1)
	assert.Equal(t, "sys", got.System[0].Text)
	assert.Nil(t, got.System[0].CacheControl)
	assert.Equal(t, []string{"END"}, got.StopSeqs)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
}

func TestAnthropicClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	_, err = client.Generate(context.Background(), "hi", GenerationParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAIClient_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Model: "gpt-test"}, nil)
	require.NoError(t, err)

	out, err := client.Generate(context.Background(), "hi", GenerationParams{JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, "gpt-test", got["model"])
	format, ok := got["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestNewClient(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")

	tests := []struct {
		name    string
		cfg     Config
		wantErr error
		check   func(t *testing.T, c LLMClient)
	}{
		{
			name: "default backend is openai",
			cfg:  Config{APIKey: "k"},
			check: func(t *testing.T, c LLMClient) {
				_, ok := c.(*OpenAIClient)
				assert.True(t, ok)
			},
		},
		{
			name: "ollama",
			cfg:  Config{Backend: "Ollama", BaseURL: "http://localhost:11434"},
			check: func(t *testing.T, c LLMClient) {
				oc, ok := c.(*OllamaClient)
				require.True(t, ok)
				assert.Equal(t, defaultSystemPrompt, oc.systemPrompt)
			},
		},
		{
			name: "anthropic",
			cfg:  Config{Backend: BackendAnthropic, APIKey: "k"},
			check: func(t *testing.T, c LLMClient) {
				_, ok := c.(*AnthropicClient)
				assert.True(t, ok)
			},
		},
		{
			name:    "openai without key",
			cfg:     Config{Backend: BackendOpenAI},
			wantErr: ErrMissingAPIKey,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.cfg, nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			tt.check(t, c)
		})
	}

	_, err := NewClient(Config{Backend: "bogus"}, nil)
	assert.Error(t, err)
}
