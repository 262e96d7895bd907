// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package consensus scores an answer with a panel of five specialist agents
// and aggregates their verdicts.
//
// # Description
//
// Each role (technical, leadership, communication, strategic, customer focus)
// is evaluated concurrently through the collaborator contract. Agents that
// time out or fail to parse are recorded as missing; the panel never aborts
// because of one agent. The remaining verdicts are combined into a weighted
// score, a spread-penalized confidence, divergence notes, consensus strengths
// and improvements, and a hiring-style recommendation.
//
// # Thread Safety
//
// Evaluator is safe for concurrent use.
package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

var tracer = otel.Tracer("aleutian.interview.consensus")

// ErrNoRoles is returned when the evaluator is configured without agents.
var ErrNoRoles = errors.New("consensus panel has no roles")

// Config tunes the panel.
type Config struct {
	// Roles is the panel. Default: all five roles.
	Roles []datatypes.AgentRole `yaml:"roles"`

	// AgentTimeout bounds each agent's evaluation. Default: 30s.
	AgentTimeout time.Duration `yaml:"agent_timeout"`

	// MinAgents is the number of successful agents needed for a confident
	// consensus. Default: 3.
	MinAgents int `yaml:"min_agents" validate:"gte=1,lte=5"`

	// Weights per role. Missing roles weigh 1. Weights are renormalized over
	// the agents that succeeded.
	Weights map[datatypes.AgentRole]float64 `yaml:"weights"`

	// DivergenceThreshold is the score spread above which an aspect is
	// recorded as divergent. Default: 2.0.
	DivergenceThreshold float64 `yaml:"divergence_threshold" validate:"gte=0,lte=10"`

	// SpreadPenalty is the confidence lost per point of score spread under
	// the default confidence function. Default: 0.05.
	SpreadPenalty float64 `yaml:"confidence_spread_penalty" validate:"gte=0"`

	// HighScore and LowScore delimit a split opinion. Defaults: 7.0 and 5.0.
	HighScore float64 `yaml:"high_score"`
	LowScore  float64 `yaml:"low_score"`

	// MaxItems caps consensus strengths and improvements. Default: 3.
	MaxItems int `yaml:"max_items"`
}

// DefaultConfig returns the default panel configuration.
func DefaultConfig() Config {
	return Config{
		Roles:               append([]datatypes.AgentRole(nil), datatypes.AllAgentRoles...),
		AgentTimeout:        30 * time.Second,
		MinAgents:           3,
		DivergenceThreshold: 2.0,
		SpreadPenalty:       0.05,
		HighScore:           7.0,
		LowScore:            5.0,
		MaxItems:            3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Roles) == 0 {
		c.Roles = d.Roles
	}
	if c.AgentTimeout <= 0 {
		c.AgentTimeout = d.AgentTimeout
	}
	if c.MinAgents <= 0 {
		c.MinAgents = d.MinAgents
	}
	if c.DivergenceThreshold <= 0 {
		c.DivergenceThreshold = d.DivergenceThreshold
	}
	if c.SpreadPenalty < 0 {
		c.SpreadPenalty = d.SpreadPenalty
	}
	if c.HighScore <= 0 {
		c.HighScore = d.HighScore
	}
	if c.LowScore <= 0 {
		c.LowScore = d.LowScore
	}
	if c.MaxItems <= 0 {
		c.MaxItems = d.MaxItems
	}
	return c
}

// ConfidenceFunc combines the mean agent confidence with the score spread
// (max minus min, on the 0-10 scale). The result is clipped to [0,1]; it must
// not increase as spread grows.
type ConfidenceFunc func(meanConfidence, spread float64) float64

// LinearSpreadPenalty returns a ConfidenceFunc that subtracts penalty per
// point of spread.
func LinearSpreadPenalty(penalty float64) ConfidenceFunc {
	return func(meanConfidence, spread float64) float64 {
		return meanConfidence - penalty*spread
	}
}

// Input is the triple every agent scores.
type Input struct {
	Question datatypes.Question
	Answer   string
	Context  []datatypes.RetrievedContext
	Focus    string
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithConfidenceFunc replaces the confidence combining function.
func WithConfidenceFunc(fn ConfidenceFunc) Option {
	return func(e *Evaluator) {
		if fn != nil {
			e.confidence = fn
		}
	}
}

// WithAgentObserver registers a callback invoked once per agent with its
// outcome ("success", "timeout", "parse_error", "error") and latency.
func WithAgentObserver(fn func(role datatypes.AgentRole, outcome string, d time.Duration)) Option {
	return func(e *Evaluator) { e.observe = fn }
}

// Evaluator runs the specialist panel.
type Evaluator struct {
	collab     collaborator.Evaluator
	cfg        Config
	confidence ConfidenceFunc
	observe    func(role datatypes.AgentRole, outcome string, d time.Duration)
	logger     *slog.Logger
}

// New creates a panel evaluator over collab.
func New(collab collaborator.Evaluator, cfg Config, logger *slog.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	e := &Evaluator{
		collab:     collab,
		cfg:        cfg,
		confidence: LinearSpreadPenalty(cfg.SpreadPenalty),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Evaluator) Config() Config {
	return e.cfg
}

// agentOutcome is the per-task result: nil Eval means the agent is missing.
type agentOutcome struct {
	Role datatypes.AgentRole
	Eval *datatypes.AgentEvaluation
	Err  error
}

// Evaluate runs every agent concurrently and aggregates their verdicts.
//
// Description:
//
//	Agents run with a worker limit equal to the panel size, each under its
//	own timeout. The call returns only after every agent has finished or
//	timed out. Fewer successful agents than MinAgents yields a result with
//	LowConfidence set; it is never an error.
//
// Inputs:
//
//	ctx - Context for cancellation. Cancelling it marks every pending agent missing.
//	in - The question, answer and retrieved context to score.
//
// Outputs:
//
//	*datatypes.ConsensusEvaluation - The aggregated verdict.
//	error - ErrNoRoles when the panel is empty.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*datatypes.ConsensusEvaluation, error) {
	if len(e.cfg.Roles) == 0 {
		return nil, ErrNoRoles
	}

	ctx, span := tracer.Start(ctx, "consensus.Evaluate",
		trace.WithAttributes(attribute.Int("consensus.agents", len(e.cfg.Roles))),
	)
	defer span.End()

	outcomes := make([]agentOutcome, len(e.cfg.Roles))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(e.cfg.Roles))
	for i, role := range e.cfg.Roles {
		g.Go(func() error {
			outcomes[i] = e.runAgent(gctx, role, in)
			return nil
		})
	}
	_ = g.Wait()

	available := make([]datatypes.AgentEvaluation, 0, len(outcomes))
	var missing []datatypes.AgentRole
	for _, o := range outcomes {
		if o.Eval == nil {
			missing = append(missing, o.Role)
			e.logger.Warn("consensus agent missing",
				slog.String("agent", string(o.Role)),
				slog.String("kind", string(datatypes.KindOf(o.Err))),
				slog.String("error", errString(o.Err)),
			)
			continue
		}
		available = append(available, *o.Eval)
	}

	result := e.aggregate(available)
	result.MissingAgents = missing

	span.SetAttributes(
		attribute.Int("consensus.available", len(available)),
		attribute.Float64("consensus.final_score", result.FinalScore),
		attribute.Bool("consensus.low_confidence", result.LowConfidence),
	)
	if result.LowConfidence {
		span.SetStatus(codes.Error, datatypes.ErrInsufficientConsensus.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, nil
}

// runAgent evaluates one role under the per-agent timeout. The call is raced
// against the deadline so that a collaborator ignoring its context cannot hold
// the join barrier past the timeout.
func (e *Evaluator) runAgent(ctx context.Context, role datatypes.AgentRole, in Input) agentOutcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.cfg.AgentTimeout)
	defer cancel()

	type reply struct {
		res *collaborator.StructuredResult
		err error
	}
	ch := make(chan reply, 1)
	go func() {
		res, err := e.collab.Evaluate(ctx, collaborator.PromptContext{
			Task:     collaborator.TaskAgent,
			Role:     role,
			Question: in.Question,
			Answer:   in.Answer,
			Context:  in.Context,
			Focus:    in.Focus,
		})
		ch <- reply{res, err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-ctx.Done():
		r.err = fmt.Errorf("%w: agent %s: %v", datatypes.ErrUpstreamTimeout, role, ctx.Err())
	}

	outcome := agentOutcome{Role: role, Err: r.err}
	switch {
	case r.err != nil:
	case r.res == nil:
		outcome.Err = fmt.Errorf("%w: agent %s returned no result", datatypes.ErrEvaluationParse, role)
	default:
		outcome.Eval = toAgentEvaluation(role, r.res)
	}

	if e.observe != nil {
		e.observe(role, outcomeLabel(outcome.Err), time.Since(start))
	}
	return outcome
}

func toAgentEvaluation(role datatypes.AgentRole, r *collaborator.StructuredResult) *datatypes.AgentEvaluation {
	var aspects map[string]float64
	if len(r.AspectScores) > 0 {
		aspects = make(map[string]float64, len(r.AspectScores))
		for k, v := range r.AspectScores {
			aspects[k] = v
		}
	}
	return &datatypes.AgentEvaluation{
		Agent:        role,
		Score:        r.Score,
		Confidence:   r.Confidence,
		Observations: append([]string(nil), r.Observations...),
		Strengths:    append([]string(nil), r.Strengths...),
		Improvements: append([]string(nil), r.Improvements...),
		Rationale:    r.Rationale,
		AspectScores: aspects,
	}
}

func outcomeLabel(err error) string {
	switch datatypes.KindOf(err) {
	case "":
		return "success"
	case datatypes.KindUpstreamTimeout:
		return "timeout"
	case datatypes.KindEvaluationParse:
		return "parse_error"
	default:
		return "error"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
