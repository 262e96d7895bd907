// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collaborator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/llm"
)

var tracer = otel.Tracer("aleutian.interview.collaborator")

// LLMEvaluator is an Evaluator backed by a text-generation model.
type LLMEvaluator struct {
	client llm.LLMClient
	params llm.GenerationParams
	logger *slog.Logger
}

// NewLLMEvaluator creates an evaluator over client. Generation uses a low
// temperature so repeated scoring of the same answer stays stable.
func NewLLMEvaluator(client llm.LLMClient, logger *slog.Logger) *LLMEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	temp := float32(0.2)
	maxTokens := 1024
	return &LLMEvaluator{
		client: client,
		params: llm.GenerationParams{Temperature: &temp, MaxTokens: &maxTokens},
		logger: logger,
	}
}

// Evaluate renders the prompt, calls the model and parses its JSON reply.
func (e *LLMEvaluator) Evaluate(ctx context.Context, pc PromptContext) (*StructuredResult, error) {
	ctx, span := tracer.Start(ctx, "collaborator.Evaluate",
		trace.WithAttributes(
			attribute.String("task", string(pc.Task)),
			attribute.String("role", string(pc.Role)),
			attribute.String("dimension", string(pc.Dimension)),
		),
	)
	defer span.End()

	raw, err := e.client.Generate(ctx, BuildPrompt(pc), e.params)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", datatypes.ErrUpstreamTimeout, err)
		} else {
			err = fmt.Errorf("generate %s: %w", pc.Task, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err := ParseStructuredResult(pc.Task, raw)
	if err != nil {
		e.logger.Warn("unparsable evaluator response",
			slog.String("task", string(pc.Task)),
			slog.Int("response_len", len(raw)),
			slog.String("error", err.Error()),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Float64("score", res.Score))
	span.SetStatus(codes.Ok, "")
	return res, nil
}
