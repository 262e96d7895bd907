// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the coach service configuration.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// environment overrides. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/engine"
	"github.com/AleutianAI/AleutianCoach/services/interview/session"
	"github.com/AleutianAI/AleutianCoach/services/llm"
)

// DefaultPath is used when --config is not given.
const DefaultPath = "~/.aleutian/coach.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config is the root of coach.yaml.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Logging      LoggingConfig      `yaml:"logging"`
	LLM          llm.Config         `yaml:"llm"`
	Collaborator CollaboratorConfig `yaml:"collaborator"`
	Engine       engine.Config      `yaml:"engine"`
	Store        StoreConfig        `yaml:"store"`
	Weaviate     WeaviateConfig     `yaml:"weaviate"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
	Questions    QuestionsConfig    `yaml:"questions"`
	Screening    ScreeningConfig    `yaml:"screening"`

	// Source is the file the values were read from, empty for defaults only.
	Source string `yaml:"-"`
}

type ServerConfig struct {
	Port    int    `yaml:"port" validate:"gte=1,lte=65535"`
	GinMode string `yaml:"gin_mode" validate:"omitempty,oneof=debug release test"`

	// APIKey enables bearer authentication on /v1 routes. Read from COACH_API_KEY only.
	APIKey string `yaml:"-"`
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
	Dir   string `yaml:"dir"`
}

// CollaboratorConfig tunes the retrying, throttled wrapper around the LLM.
type CollaboratorConfig struct {
	Retry         collaborator.RetryConfig `yaml:",inline"`
	RatePerSecond float64                  `yaml:"rate_per_second" validate:"gt=0"`
	Burst         int                      `yaml:"burst" validate:"gte=1"`
}

type StoreConfig struct {
	Backend       string        `yaml:"backend" validate:"oneof=memory badger"`
	DataDir       string        `yaml:"data_dir"`
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl" validate:"gt=0"`
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gt=0"`
}

type WeaviateConfig struct {
	URL     string        `yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig selects the trace exporter. An empty endpoint disables
// export; "stdout" writes spans to stdout.
type TelemetryConfig struct {
	OTelEndpoint string `yaml:"otel_endpoint"`
	ServiceName  string `yaml:"service_name"`
}

// QuestionsConfig points at an optional question bank file. Watch reloads
// it for sessions started after the change.
type QuestionsConfig struct {
	Path     string        `yaml:"path"`
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce"`
}

// ScreeningConfig controls redaction of credentials and personal data from
// answers before evaluation.
type ScreeningConfig struct {
	Enabled bool `yaml:"enabled"`
}

var validate = validator.New()

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: 12210, GinMode: "release"},
		Logging: LoggingConfig{Level: "info"},
		LLM:     llm.Config{Backend: llm.BackendOpenAI, Timeout: 60 * time.Second},
		Collaborator: CollaboratorConfig{
			Retry:         collaborator.DefaultRetryConfig(),
			RatePerSecond: 10,
			Burst:         5,
		},
		Engine: engine.DefaultConfig(),
		Store: StoreConfig{
			Backend:       StoreMemory,
			DataDir:       "~/.aleutian/coach",
			CheckpointTTL: session.DefaultTTL,
			SweepInterval: 10 * time.Minute,
		},
		Weaviate:  WeaviateConfig{Timeout: 10 * time.Second},
		Telemetry: TelemetryConfig{ServiceName: "coach-service"},
		Questions: QuestionsConfig{Debounce: 500 * time.Millisecond},
		Screening: ScreeningConfig{Enabled: true},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. A missing file at path is not an error.
func Load(path string) (*Config, error) {
	return load(path, os.Getenv)
}

func load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		resolved := ExpandHome(path)
		data, err := os.ReadFile(resolved)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", resolved, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", resolved, err)
			}
			cfg.Source = resolved
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("COACH_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COACH_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("LLM_BACKEND_TYPE"); v != "" {
		c.LLM.Backend = strings.ToLower(v)
	}
	if v := getenv("WEAVIATE_SERVICE_URL"); v != "" {
		c.Weaviate.URL = strings.Trim(v, "\"' ")
	}
	if v := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTelEndpoint = v
	}
	if v := getenv("COACH_STORE"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := getenv("COACH_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := getenv("COACH_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := getenv("COACH_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Store.Backend == StoreBadger && c.Store.DataDir == "" {
		return errors.New("invalid config: store.data_dir is required for the badger store")
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
