// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

var (
	tracer = otel.Tracer("aleutian.interview.graph")
	meter  = otel.Meter("aleutian.interview.graph")
)

// Sentinel errors for the graph package.
var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrMissingHandler is returned when a stage has no handler registered.
	ErrMissingHandler = errors.New("stage has no handler")

	// ErrInvalidTurn is returned when a turn lacks its session or record.
	ErrInvalidTurn = errors.New("turn requires a session and a record")
)

// Turn is the state threaded through every stage of one submitted answer.
type Turn struct {
	Session *datatypes.InterviewSession
	Record  *datatypes.EvaluationRecord
}

// StageFunc executes one stage. Recoverable problems should be absorbed by the
// stage and noted on the record; a returned error marks the record partial.
type StageFunc func(ctx context.Context, turn *Turn) error

// Result summarizes how a turn's walk ended.
type Result struct {
	Stages            []Stage
	Transitions       int
	Partial           bool
	IterationLimitHit bool
	RecursionLimitHit bool
	Cancelled         bool
	Duration          time.Duration
	StageDurations    map[Stage]time.Duration
}

// Executor walks the stage graph for a turn.
//
// Description:
//
//	Starting at parse_answer, the executor runs each stage's handler, asks
//	the transition table for the next stage, and stops at StageEnd. The
//	guards are consulted before every visit and every transition. Limit
//	conditions never surface as errors: the executor records them on the
//	EvaluationRecord, marks it partial, and returns whatever has been
//	gathered.
//
// Thread Safety:
//
//	Executor is safe for concurrent use. Each Run call owns its Turn.
type Executor struct {
	handlers map[Stage]StageFunc
	limits   Limits
	logger   *slog.Logger

	// Metrics (initialized lazily)
	metricsOnce   sync.Once
	stageLatency  metric.Float64Histogram
	stageFailures metric.Int64Counter
	limitHits     metric.Int64Counter
	turnLatency   metric.Float64Histogram
	activeTurns   metric.Int64UpDownCounter
}

// NewExecutor creates an executor.
//
// Inputs:
//
//	handlers - One handler per entry of Stages. Must be complete.
//	limits - Guard limits. Zero values take the defaults.
//	logger - Logger for turn logs. If nil, uses slog.Default().
//
// Outputs:
//
//	*Executor - The configured executor.
//	error - ErrMissingHandler when a stage has no handler.
func NewExecutor(handlers map[Stage]StageFunc, limits Limits, logger *slog.Logger) (*Executor, error) {
	for _, s := range Stages {
		if handlers[s] == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingHandler, s)
		}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		handlers: handlers,
		limits:   limits.withDefaults(),
		logger:   logger,
	}, nil
}

// Limits returns the effective guard limits.
func (e *Executor) Limits() Limits {
	return e.limits
}

// initMetrics lazily initializes metrics.
// Logs errors if metric creation fails but continues execution (graceful degradation).
func (e *Executor) initMetrics() {
	e.metricsOnce.Do(func() {
		var initErrors []string

		var err error
		e.stageLatency, err = meter.Float64Histogram("interview_stage_duration_seconds",
			metric.WithDescription("Time spent executing each turn stage"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_latency: "+err.Error())
		}

		e.stageFailures, err = meter.Int64Counter("interview_stage_failure_total",
			metric.WithDescription("Number of stages that returned an error"),
		)
		if err != nil {
			initErrors = append(initErrors, "stage_failures: "+err.Error())
		}

		e.limitHits, err = meter.Int64Counter("interview_guard_limit_total",
			metric.WithDescription("Number of iteration or transition limits reached"),
		)
		if err != nil {
			initErrors = append(initErrors, "limit_hits: "+err.Error())
		}

		e.turnLatency, err = meter.Float64Histogram("interview_turn_duration_seconds",
			metric.WithDescription("Total time to process a submitted answer"),
			metric.WithUnit("s"),
		)
		if err != nil {
			initErrors = append(initErrors, "turn_latency: "+err.Error())
		}

		e.activeTurns, err = meter.Int64UpDownCounter("interview_active_turns",
			metric.WithDescription("Number of turns currently executing"),
		)
		if err != nil {
			initErrors = append(initErrors, "active_turns: "+err.Error())
		}

		if len(initErrors) > 0 {
			e.logger.Error("failed to initialize some graph metrics (observability degraded)",
				slog.Int("failed_count", len(initErrors)),
				slog.Any("errors", initErrors),
			)
		}
	})
}

// Run walks the graph for one turn.
//
// Description:
//
//	Runs stages until the transition table reaches StageEnd, the context is
//	done, or a guard trips. On IterationLimitExceeded the walk is forced to
//	conclude. On RecursionLimitExceeded the walk halts at once and the
//	session is marked halted. Both leave the record partial.
//
// Inputs:
//
//	ctx - Context carrying the turn deadline. Must not be nil.
//	turn - The turn to drive. Session and Record must be set.
//
// Outputs:
//
//	*Result - How the walk ended.
//	error - Only for invalid arguments; limit conditions are reported on the record.
func (e *Executor) Run(ctx context.Context, turn *Turn) (*Result, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if turn == nil || turn.Session == nil || turn.Record == nil {
		return nil, ErrInvalidTurn
	}

	e.initMetrics()

	ctx, span := tracer.Start(ctx, "interview.Turn",
		trace.WithAttributes(
			attribute.String("session.id", turn.Session.ID),
			attribute.Int("question.index", turn.Record.QuestionIndex),
		),
	)
	defer span.End()

	if e.activeTurns != nil {
		e.activeTurns.Add(ctx, 1)
		defer e.activeTurns.Add(ctx, -1)
	}

	start := time.Now()
	guards := NewGuards(e.limits, turn.Session)
	state := &TurnState{Features: turn.Session.Config.EnabledFeatures}
	result := &Result{StageDurations: make(map[Stage]time.Duration)}

	stage := StageParseAnswer
	for !stage.IsTerminal() {
		if err := ctx.Err(); err != nil {
			turn.Record.AddIssue(stage.String(), datatypes.KindUpstreamTimeout,
				"turn cancelled before stage: "+err.Error())
			result.Cancelled = true
			result.Partial = true
			e.logger.Warn("turn cancelled",
				slog.String("session_id", turn.Session.ID),
				slog.String("stage", stage.String()),
				slog.String("error", err.Error()),
			)
			break
		}

		if err := guards.Visit(stage); err != nil {
			e.recordLimit(ctx, turn, stage, datatypes.KindIterationLimit, err)
			result.IterationLimitHit = true
			result.Partial = true
			state.ForceConclude = true
			stage = Next(stage, state)
			continue
		}

		stageStart := time.Now()
		if err := e.executeStage(ctx, stage, turn); err != nil {
			result.Partial = true
		}
		result.Stages = append(result.Stages, stage)
		result.StageDurations[stage] += time.Since(stageStart)

		state.Decision = turn.Record.Decision
		next := Next(stage, state)
		if next.IsTerminal() {
			break
		}

		if err := guards.Transition(); err != nil {
			e.recordLimit(ctx, turn, next, datatypes.KindRecursionLimit, err)
			result.RecursionLimitHit = true
			result.Partial = true
			turn.Session.Halted = true
			turn.Session.Partial = true
			break
		}
		stage = next
	}

	result.Transitions = guards.TurnTransitions()
	result.Duration = time.Since(start)
	if result.Partial {
		turn.Record.Partial = true
	}

	if e.turnLatency != nil {
		e.turnLatency.Record(ctx, result.Duration.Seconds(),
			metric.WithAttributes(attribute.Bool("partial", result.Partial)),
		)
	}

	span.SetAttributes(
		attribute.Int("turn.stages", len(result.Stages)),
		attribute.Int("turn.transitions", result.Transitions),
		attribute.Bool("turn.partial", result.Partial),
	)
	if result.Partial {
		span.SetStatus(codes.Error, "partial turn")
	} else {
		span.SetStatus(codes.Ok, "")
	}

	e.logger.Info("turn completed",
		slog.String("session_id", turn.Session.ID),
		slog.Int("question_index", turn.Record.QuestionIndex),
		slog.Int("stages", len(result.Stages)),
		slog.Int("transitions", result.Transitions),
		slog.Bool("partial", result.Partial),
		slog.Duration("duration", result.Duration),
	)

	return result, nil
}

// recordLimit notes a tripped guard on the record.
func (e *Executor) recordLimit(ctx context.Context, turn *Turn, stage Stage, kind datatypes.ErrorKind, err error) {
	turn.Record.AddIssue(stage.String(), kind, err.Error())
	if e.limitHits != nil {
		e.limitHits.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	}
	trace.SpanFromContext(ctx).AddEvent("guard_limit",
		trace.WithAttributes(
			attribute.String("kind", string(kind)),
			attribute.String("stage", stage.String()),
		),
	)
	e.logger.Warn("guard limit reached",
		slog.String("session_id", turn.Session.ID),
		slog.String("stage", stage.String()),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()),
	)
}

// executeStage runs a single stage with observability. Panics are recovered
// into a StageError so that one faulty stage never crashes the turn.
func (e *Executor) executeStage(ctx context.Context, stage Stage, turn *Turn) (err error) {
	ctx, span := tracer.Start(ctx, stage.String(),
		trace.WithAttributes(
			attribute.String("interview.stage", stage.String()),
			attribute.String("session.id", turn.Session.ID),
		),
	)
	defer span.End()

	e.logger.Debug("stage starting",
		slog.String("stage", stage.String()),
		slog.String("session_id", turn.Session.ID),
	)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = datatypes.NewStageError(stage.String(), datatypes.KindInternal, fmt.Errorf("panic: %v", r))
		}

		duration := time.Since(start)
		if e.stageLatency != nil {
			e.stageLatency.Record(ctx, duration.Seconds(),
				metric.WithAttributes(attribute.String("stage", stage.String())),
			)
		}

		if err != nil {
			if e.stageFailures != nil {
				e.stageFailures.Add(ctx, 1,
					metric.WithAttributes(attribute.String("stage", stage.String())),
				)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			turn.Record.AddIssue(stage.String(), datatypes.KindOf(err), err.Error())
			e.logger.Error("stage failed",
				slog.String("stage", stage.String()),
				slog.String("session_id", turn.Session.ID),
				slog.Duration("duration", duration),
				slog.String("error", err.Error()),
			)
			return
		}

		span.SetStatus(codes.Ok, "")
		e.logger.Debug("stage completed",
			slog.String("stage", stage.String()),
			slog.Duration("duration", duration),
		)
	}()

	turn.Record.Stages = append(turn.Record.Stages, stage.String())
	return e.handlers[stage](ctx, turn)
}
