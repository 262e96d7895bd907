// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package collaborator defines the contracts the interview engine consumes from
// external services, together with their production implementations.
//
// # Description
//
// The engine never talks to a model or a vector store directly. Scoring and
// prose come from an Evaluator, knowledge-base passages from a Retriever. This
// package provides:
//   - LLMEvaluator: an Evaluator over any llm.LLMClient that demands JSON and
//     parses it into a StructuredResult
//   - Retrying: bounded retry with exponential backoff plus rate limiting
//   - WeaviateRetriever: BM25 search over the coaching knowledge base
//   - StaticRetriever: an in-process keyword retriever for offline use
//   - TemplateCache: a bounded LRU for generated template answers
//
// # Thread Safety
//
// Every type in this package is safe for concurrent use.
package collaborator

import (
	"context"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// Task names the kind of output requested from an Evaluator.
type Task string

const (
	TaskBaseline       Task = "baseline"
	TaskAgent          Task = "agent"
	TaskGRAILDimension Task = "grail_dimension"
	TaskTemplateAnswer Task = "template_answer"
	TaskCoaching       Task = "coaching_section"
	TaskTips           Task = "improvement_tips"
	TaskFollowUps      Task = "follow_up_questions"
)

// PromptContext is everything an Evaluator needs to produce one result.
type PromptContext struct {
	Task     Task
	Question datatypes.Question
	Answer   string
	Context  []datatypes.RetrievedContext

	// Role is set for TaskAgent; Dimension for TaskGRAILDimension; Section and
	// Band for TaskCoaching.
	Role      datatypes.AgentRole
	Dimension datatypes.GRAILDimension
	Section   string
	Band      datatypes.PerformanceBand

	// Focus narrows evaluation during a deep dive.
	Focus string

	// Guidance carries deterministic instructions chosen by the engine, such
	// as the coaching tone for a band.
	Guidance string

	// Evidence carries prior evaluation output the task should build on.
	Evidence []string
}

// StructuredResult is the parsed shape every Evaluator returns. Score is always
// in [0,10]; the other fields are filled as the task requires.
type StructuredResult struct {
	Score           float64            `json:"score"`
	Confidence      float64            `json:"confidence"`
	Observations    []string           `json:"observations"`
	Strengths       []string           `json:"strengths"`
	Improvements    []string           `json:"improvements"`
	Rationale       string             `json:"rationale"`
	Evidence        []string           `json:"evidence"`
	MissingElements []string           `json:"missing_elements"`
	AspectScores    map[string]float64 `json:"aspect_scores"`
	SubScores       map[string]float64 `json:"sub_scores"`
	Text            string             `json:"text"`
	Items           []string           `json:"items"`
	FollowUpNeeded  bool               `json:"follow_up_needed"`
}

// Evaluator produces a structured result from a prompt context.
//
// Implementations return an error wrapping datatypes.ErrEvaluationParse when
// the upstream response cannot be parsed, and datatypes.ErrUpstreamTimeout
// when the upstream does not answer in time.
type Evaluator interface {
	Evaluate(ctx context.Context, pc PromptContext) (*StructuredResult, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, pc PromptContext) (*StructuredResult, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, pc PromptContext) (*StructuredResult, error) {
	return f(ctx, pc)
}

// Retriever returns knowledge-base passages ordered by descending relevance.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, opts ...RetrieveOption) ([]datatypes.RetrievedContext, error)
}

// RetrieveOptions narrows a retrieval.
type RetrieveOptions struct {
	Band     datatypes.PerformanceBand
	Category datatypes.Category
}

// RetrieveOption configures a single retrieval.
type RetrieveOption func(*RetrieveOptions)

// WithBand restricts passages to those tagged for a performance band.
func WithBand(b datatypes.PerformanceBand) RetrieveOption {
	return func(o *RetrieveOptions) { o.Band = b }
}

// WithCategory restricts passages to a question category.
func WithCategory(c datatypes.Category) RetrieveOption {
	return func(o *RetrieveOptions) { o.Category = c }
}

func applyRetrieveOptions(opts []RetrieveOption) RetrieveOptions {
	var o RetrieveOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
