// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package questions holds the behavioral question bank and plans the question
// queue for a session.
//
// Thread Safety:
//
//	Bank is safe for concurrent use. Reloading swaps the question set
//	atomically; sessions already planned keep their queue.
package questions

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

const (
	// MaxBankFileSize bounds a question bank file (1MB).
	MaxBankFileSize = 1024 * 1024

	// MaxQuestions bounds the number of questions in a bank.
	MaxQuestions = 1000
)

//go:embed bank.yaml
var defaultBankYAML []byte

var tracer = otel.Tracer("aleutian.interview.questions")

// ErrEmptyBank is returned when a bank file defines no questions.
var ErrEmptyBank = errors.New("question bank is empty")

// bankYAML is the on-disk layout.
type bankYAML struct {
	Questions []datatypes.Question `yaml:"questions"`
}

// Bank is the reloadable set of questions sessions are planned from.
type Bank struct {
	mu        sync.RWMutex
	questions []datatypes.Question
	byID      map[string]int
	source    string
	hash      string
}

// DefaultBank returns a bank holding the embedded questions.
func DefaultBank() *Bank {
	qs, err := Parse(defaultBankYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded question bank is invalid: %v", err))
	}
	b := &Bank{}
	b.replace(qs, "embedded", digest(defaultBankYAML))
	return b
}

// LoadBank reads a bank from a YAML file. An empty path yields the default bank.
func LoadBank(ctx context.Context, path string) (*Bank, error) {
	if path == "" {
		return DefaultBank(), nil
	}
	b := &Bank{}
	if err := b.Reload(ctx, path); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload replaces the bank's questions with the contents of path. On error the
// current questions are kept.
func (b *Bank) Reload(ctx context.Context, path string) error {
	_, span := tracer.Start(ctx, "questions.Reload")
	defer span.End()
	span.SetAttributes(attribute.String("path", path))

	info, err := os.Stat(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stat failed")
		return fmt.Errorf("stat question bank: %w", err)
	}
	if info.Size() > MaxBankFileSize {
		err := fmt.Errorf("question bank %s is %d bytes, limit %d", path, info.Size(), MaxBankFileSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, "too large")
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failed")
		return fmt.Errorf("read question bank: %w", err)
	}

	hash := digest(data)
	b.mu.RLock()
	unchanged := hash == b.hash
	b.mu.RUnlock()
	if unchanged {
		return nil
	}

	qs, err := Parse(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return err
	}
	b.replace(qs, path, hash)
	span.SetAttributes(attribute.Int("question_count", len(qs)))
	slog.Info("question bank loaded", slog.String("source", path), slog.Int("questions", len(qs)))
	return nil
}

// Parse decodes and validates a bank document. Unknown fields are rejected.
func Parse(data []byte) ([]datatypes.Question, error) {
	if len(data) > MaxBankFileSize {
		return nil, fmt.Errorf("question bank exceeds %d bytes", MaxBankFileSize)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc bankYAML
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	if len(doc.Questions) == 0 {
		return nil, ErrEmptyBank
	}
	if len(doc.Questions) > MaxQuestions {
		return nil, fmt.Errorf("question bank has %d questions, limit %d", len(doc.Questions), MaxQuestions)
	}

	seen := make(map[string]bool, len(doc.Questions))
	for i := range doc.Questions {
		q := &doc.Questions[i]
		if q.FollowUpStrategy == "" {
			q.FollowUpStrategy = datatypes.FollowUpDeepDive
		}
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", datatypes.ErrInvalidInput, q.ID)
		}
		seen[q.ID] = true
	}
	return doc.Questions, nil
}

func (b *Bank) replace(qs []datatypes.Question, source, hash string) {
	byID := make(map[string]int, len(qs))
	for i, q := range qs {
		byID[q.ID] = i
	}
	b.mu.Lock()
	b.questions = qs
	b.byID = byID
	b.source = source
	b.hash = hash
	b.mu.Unlock()
}

// All returns a copy of every question in bank order.
func (b *Bank) All() []datatypes.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]datatypes.Question, len(b.questions))
	copy(out, b.questions)
	return out
}

// Get returns the question with the given id.
func (b *Bank) Get(id string) (datatypes.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.byID[id]
	if !ok {
		return datatypes.Question{}, false
	}
	return b.questions[i], true
}

// Len returns the number of questions.
func (b *Bank) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.questions)
}

// Source names where the questions were loaded from.
func (b *Bank) Source() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.source
}

// Unasked returns bank questions whose ids are not in asked, in bank order.
func (b *Bank) Unasked(asked map[string]bool) []datatypes.Question {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []datatypes.Question
	for _, q := range b.questions {
		if !asked[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
