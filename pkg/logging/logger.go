// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the process logger for the coach service and CLI.
//
// Records go to stderr (text or JSON) and, when LogDir is set, to a daily
// JSON file named {service}_{date}.log. Every record carries the service
// attribute. Attributes whose key names a secret or a candidate answer are
// replaced before they reach any handler.
//
//	logger := logging.New(logging.Config{Level: logging.LevelInfo, Service: "coach"})
//	defer logger.Close()
//	slog.SetDefault(logger.Slog())
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) toSlogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps debug, info, warn and error (any case) to a Level.
// The empty string is info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Config controls logger construction.
type Config struct {
	Level Level

	// LogDir enables the JSON file sink. Supports ~ expansion.
	LogDir string

	// Service is attached to every record and names the log file.
	Service string

	// JSON switches the console sink from text to JSON.
	JSON bool

	// Quiet disables the console sink.
	Quiet bool

	// Output replaces stderr for the console sink.
	Output io.Writer
}

// Logger wraps a slog.Logger and owns the optional log file.
type Logger struct {
	slog   *slog.Logger
	config Config
	file   *os.File
	mu     sync.Mutex
}

// redactedKeys never reach a sink with their value.
var redactedKeys = map[string]bool{
	"api_key":  true,
	"apikey":   true,
	"password": true,
	"token":    true,
	"answer":   true,
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if redactedKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}

// New builds a Logger. A log directory that cannot be created is skipped and
// reported on the console sink.
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{
		Level:       config.Level.toSlogLevel(),
		ReplaceAttr: redact,
	}
	out := config.Output
	if out == nil {
		out = os.Stderr
	}

	var handlers []slog.Handler
	if !config.Quiet {
		if config.JSON {
			handlers = append(handlers, slog.NewJSONHandler(out, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(out, opts))
		}
	}

	logger := &Logger{config: config}
	var fileErr error
	if config.LogDir != "" {
		logger.file, fileErr = openLogFile(config)
		if logger.file != nil {
			handlers = append(handlers, slog.NewJSONHandler(logger.file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}
	logger.slog = slog.New(handler)

	if fileErr != nil {
		logger.slog.Warn("file logging disabled", slog.String("log_dir", config.LogDir), slog.String("error", fileErr.Error()))
	}
	return logger
}

func openLogFile(config Config) (*os.File, error) {
	dir := expandPath(config.LogDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, err
	}
	service := config.Service
	if service == "" {
		service = "coach"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
}

// Default is an info-level text logger on stderr.
func Default() *Logger {
	return New(Config{Level: LevelInfo, Service: "coach"})
}

// Slog returns the underlying logger for injection into packages that take
// a *slog.Logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// FilePath returns the active log file path, or "" when file logging is off.
func (l *Logger) FilePath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ""
	}
	return l.file.Name()
}

// Close syncs and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := errors.Join(l.file.Sync(), l.file.Close())
	l.file = nil
	if err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	return nil
}

// multiHandler fans a record out to every enabled handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &multiHandler{handlers: handlers}
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
