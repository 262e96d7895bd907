// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/llm"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "coach.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 12210, cfg.Server.Port)
	assert.Equal(t, StoreMemory, cfg.Store.Backend)
	assert.Equal(t, 5, cfg.Engine.Limits.MaxNodeIterations)
	assert.Equal(t, 50, cfg.Engine.Limits.MaxTransitions)
	assert.Equal(t, 300*time.Second, cfg.Engine.TurnTimeout)
	assert.True(t, cfg.Screening.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := load(filepath.Join(t.TempDir(), "absent.yaml"), envMap(nil))
	require.NoError(t, err)
	assert.Empty(t, cfg.Source)
	assert.Equal(t, Default().Server, cfg.Server)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
llm:
  backend: ollama
  model: llama3
engine:
  max_node_iterations: 3
  turn_timeout: 45s
  consensus:
    min_agents: 4
store:
  backend: badger
  data_dir: /tmp/coach
  checkpoint_ttl: 2h
`)
	cfg, err := load(path, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, llm.BackendOllama, cfg.LLM.Backend)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 3, cfg.Engine.Limits.MaxNodeIterations)
	assert.Equal(t, 50, cfg.Engine.Limits.MaxTransitions)
	assert.Equal(t, 45*time.Second, cfg.Engine.TurnTimeout)
	assert.Equal(t, 4, cfg.Engine.Consensus.MinAgents)
	assert.Equal(t, StoreBadger, cfg.Store.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Store.CheckpointTTL)
	assert.Equal(t, 10*time.Minute, cfg.Store.SweepInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9000\n")
	cfg, err := load(path, envMap(map[string]string{
		"COACH_PORT":                  "9100",
		"LLM_BACKEND_TYPE":            "Anthropic",
		"WEAVIATE_SERVICE_URL":        `"http://weaviate:8080"`,
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"COACH_STORE":                 "badger",
		"COACH_DATA_DIR":              "/data",
		"COACH_LOG_LEVEL":             "DEBUG",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, llm.BackendAnthropic, cfg.LLM.Backend)
	assert.Equal(t, "http://weaviate:8080", cfg.Weaviate.URL)
	assert.Equal(t, "collector:4317", cfg.Telemetry.OTelEndpoint)
	assert.Equal(t, StoreBadger, cfg.Store.Backend)
	assert.Equal(t, "/data", cfg.Store.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
	}{
		{name: "malformed yaml", body: "server: [unclosed"},
		{name: "port out of range", body: "server:\n  port: 70000\n"},
		{name: "unknown store", body: "store:\n  backend: redis\n"},
		{name: "unknown llm backend", body: "llm:\n  backend: gemini\n"},
		{name: "bad weaviate url", body: "weaviate:\n  url: not a url\n"},
		{name: "zero node iterations", body: "engine:\n  max_node_iterations: 0\n"},
		{name: "badger without dir", body: "store:\n  backend: badger\n  data_dir: \"\"\n"},
		{name: "non-numeric port env", body: "", env: map[string]string{"COACH_PORT": "http"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := load(writeConfig(t, tt.body), envMap(tt.env))
			assert.Error(t, err)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".aleutian", "coach.yaml"), ExpandHome(DefaultPath))
	assert.Equal(t, "/etc/coach.yaml", ExpandHome("/etc/coach.yaml"))
}
