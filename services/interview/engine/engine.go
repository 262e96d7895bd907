// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine exposes the session operations: starting a session,
// submitting an answer and reading the session state.
//
// # Turn lifecycle
//
// SubmitAnswer validates the answer, takes the per-session lock, loads the
// session, builds a fresh EvaluationRecord and hands both to the graph
// executor under the turn timeout. The executor walks the stage handlers in
// stages.go. Afterwards the engine appends the record to the history, applies
// the adaptive decision to the queue, decides completion and writes the
// session back to the store.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Turns on one session are serialized by
// the lock table; turns on different sessions run in parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCoach/services/interview/adaptive"
	"github.com/AleutianAI/AleutianCoach/services/interview/coaching"
	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/consensus"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/grail"
	"github.com/AleutianAI/AleutianCoach/services/interview/graph"
	"github.com/AleutianAI/AleutianCoach/services/interview/questions"
	"github.com/AleutianAI/AleutianCoach/services/interview/screening"
	"github.com/AleutianAI/AleutianCoach/services/interview/session"
)

var tracer = otel.Tracer("aleutian.interview.engine")

const (
	// DefaultTurnTimeout bounds one SubmitAnswer call.
	DefaultTurnTimeout = 300 * time.Second

	// DefaultRetrievalTopK is the number of passages fetched per turn.
	DefaultRetrievalTopK = 5

	// DefaultRetrievalTimeout bounds the context retrieval stage.
	DefaultRetrievalTimeout = 10 * time.Second

	// DefaultSegmentSize is the target answer segment length in characters.
	DefaultSegmentSize = 400

	maxTips      = 5
	maxFollowUps = 3
)

// Config holds the engine tunables.
type Config struct {
	Limits            graph.Limits     `yaml:",inline"`
	TurnTimeout       time.Duration    `yaml:"turn_timeout"`
	RetrievalTopK     int              `yaml:"retrieval_top_k" validate:"gte=0,lte=50"`
	RetrievalTimeout  time.Duration    `yaml:"retrieval_timeout"`
	TemplateCacheSize int              `yaml:"template_cache_size" validate:"gte=0"`
	SegmentSize       int              `yaml:"segment_size" validate:"gte=0"`
	Consensus         consensus.Config `yaml:"consensus"`
	GRAIL             grail.Config     `yaml:"grail"`
	Coaching          coaching.Config  `yaml:"coaching"`
	Adaptive          adaptive.Config  `yaml:"adaptive"`
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Limits:            graph.DefaultLimits(),
		TurnTimeout:       DefaultTurnTimeout,
		RetrievalTopK:     DefaultRetrievalTopK,
		RetrievalTimeout:  DefaultRetrievalTimeout,
		TemplateCacheSize: collaborator.DefaultTemplateCacheSize,
		SegmentSize:       DefaultSegmentSize,
		Consensus:         consensus.DefaultConfig(),
		Coaching:          coaching.DefaultConfig(),
		Adaptive:          adaptive.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TurnTimeout <= 0 {
		c.TurnTimeout = d.TurnTimeout
	}
	if c.RetrievalTopK <= 0 {
		c.RetrievalTopK = d.RetrievalTopK
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = d.RetrievalTimeout
	}
	if c.TemplateCacheSize <= 0 {
		c.TemplateCacheSize = d.TemplateCacheSize
	}
	if c.SegmentSize <= 0 {
		c.SegmentSize = d.SegmentSize
	}
	return c
}

// Observer receives session lifecycle events, typically for metrics.
type Observer interface {
	SessionStarted(cfg datatypes.SessionConfig)
	TurnFinished(record *datatypes.EvaluationRecord, result *graph.Result)
	SessionFinished(s *datatypes.InterviewSession)
}

// Deps are the collaborators the engine is built from.
type Deps struct {
	// Store persists sessions. Required.
	Store session.Store

	// Bank supplies questions. Defaults to the embedded bank.
	Bank *questions.Bank

	// Collaborator produces every structured evaluation. Required.
	Collaborator collaborator.Evaluator

	// Retriever supplies knowledge passages. Optional.
	Retriever collaborator.Retriever

	// Observer is notified of lifecycle events. Optional.
	Observer Observer

	// ConsensusOptions are passed to the consensus evaluator.
	ConsensusOptions []consensus.Option

	// Screener redacts sensitive content from answers before evaluation.
	// Optional.
	Screener AnswerScreener

	Logger *slog.Logger
}

// AnswerScreener removes credentials and personal data from answer text.
type AnswerScreener interface {
	Redact(text string) (string, []screening.Finding)
}

// TurnResult is the outcome of one submitted answer.
type TurnResult struct {
	Record       *datatypes.EvaluationRecord `json:"record"`
	NextQuestion *datatypes.Question         `json:"next_question,omitempty"`
	Completed    bool                        `json:"completed"`
}

// Engine runs interview sessions.
type Engine struct {
	cfg       Config
	store     session.Store
	locks     *session.Locks
	bank      *questions.Bank
	collab    collaborator.Evaluator
	retriever collaborator.Retriever
	templates *collaborator.TemplateCache
	consensus *consensus.Evaluator
	grail     *grail.Evaluator
	coach     *coaching.Generator
	selector  *adaptive.Selector
	executor  *graph.Executor
	screener  AnswerScreener
	splitter  textsplitter.TextSplitter
	observer  Observer
	logger    *slog.Logger

	newID func() string
	now   func() time.Time
}

// New creates an engine.
//
// Inputs:
//
//	cfg - Engine tunables. Zero values take the defaults.
//	deps - Store and Collaborator are required.
//
// Outputs:
//
//	*Engine - The ready engine.
//	error - Non-nil when a required dependency is missing.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil {
		return nil, errors.New("engine: store is required")
	}
	if deps.Collaborator == nil {
		return nil, errors.New("engine: collaborator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bank := deps.Bank
	if bank == nil {
		bank = questions.DefaultBank()
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		cfg:       cfg,
		store:     deps.Store,
		locks:     session.NewLocks(),
		bank:      bank,
		collab:    deps.Collaborator,
		retriever: deps.Retriever,
		templates: collaborator.NewTemplateCache(cfg.TemplateCacheSize),
		consensus: consensus.New(deps.Collaborator, cfg.Consensus, logger, deps.ConsensusOptions...),
		grail:     grail.New(deps.Collaborator, cfg.GRAIL, logger),
		coach:     coaching.New(deps.Collaborator, deps.Retriever, cfg.Coaching, logger),
		selector:  adaptive.NewSelector(cfg.Adaptive, logger),
		screener:  deps.Screener,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(cfg.SegmentSize),
			textsplitter.WithChunkOverlap(0),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
		observer: deps.Observer,
		logger:   logger.With(slog.String("component", "interview_engine")),
		newID:    uuid.NewString,
		now:      time.Now,
	}

	executor, err := graph.NewExecutor(e.handlers(), cfg.Limits, logger)
	if err != nil {
		return nil, fmt.Errorf("build executor: %w", err)
	}
	e.executor = executor
	return e, nil
}

// Bank returns the question bank the engine plans from.
func (e *Engine) Bank() *questions.Bank {
	return e.bank
}

// Templates returns the template answer cache.
func (e *Engine) Templates() *collaborator.TemplateCache {
	return e.templates
}

// StartSession creates a session and plans its question queue.
//
// Description:
//
//	The configuration is validated and frozen into the session. Guards start
//	at zero. Required categories default to the categories of the planned
//	queue when the configuration names none.
//
// Outputs:
//
//	string - The new session id.
//	error - Wraps datatypes.ErrInvalidInput for a bad configuration.
func (e *Engine) StartSession(ctx context.Context, cfg datatypes.SessionConfig) (string, error) {
	ctx, span := tracer.Start(ctx, "engine.StartSession")
	defer span.End()

	if err := cfg.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid config")
		return "", err
	}

	id := e.newID()
	queue := questions.Plan(e.bank.All(), cfg, id)
	if len(queue) == 0 {
		span.SetStatus(codes.Error, questions.ErrEmptyBank.Error())
		return "", fmt.Errorf("plan session: %w", questions.ErrEmptyBank)
	}

	required := append([]datatypes.Category(nil), cfg.RequiredCategories...)
	if len(required) == 0 {
		required = questions.RequiredCategories(queue)
	}

	now := e.now().UTC()
	s := &datatypes.InterviewSession{
		ID:                 id,
		Config:             cfg,
		Queue:              queue,
		NodeIterations:     make(map[string]int),
		Difficulty:         cfg.Difficulty,
		RequiredCategories: required,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.store.Put(ctx, s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("store session: %w", err)
	}

	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("session.queue", len(queue)),
		attribute.String("session.difficulty", string(cfg.Difficulty)),
	)
	e.logger.Info("session started",
		slog.String("session_id", id),
		slog.Int("questions", len(queue)),
		slog.String("difficulty", string(cfg.Difficulty)),
		slog.Bool("custom_question", cfg.CustomQuestion != ""),
	)
	if e.observer != nil {
		e.observer.SessionStarted(cfg)
	}
	return id, nil
}

// GetState returns a deep copy of the session.
func (e *Engine) GetState(ctx context.Context, sessionID string) (*datatypes.InterviewSession, error) {
	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.Clone()
}

// SubmitAnswer runs one turn for the session's current question.
//
// Description:
//
//	The answer is validated before the graph runs. The turn runs under the
//	configured timeout; a timed-out turn still produces a partial record.
//	Guard conditions and collaborator failures are reported on the record
//	rather than returned.
//
// Inputs:
//
//	ctx - Caller context. The session is persisted under ctx, not the turn deadline.
//	sessionID - The session to advance.
//	answer - The candidate's answer text.
//
// Outputs:
//
//	*TurnResult - The record, the next question if any and the completion flag.
//	error - ErrInvalidInput, ErrSessionNotFound, ErrSessionCompleted or a store failure.
func (e *Engine) SubmitAnswer(ctx context.Context, sessionID, answer string) (*TurnResult, error) {
	if err := datatypes.ValidateAnswer(answer); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "engine.SubmitAnswer",
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
	defer span.End()

	unlock, err := e.locks.Lock(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("acquire session lock: %w", err)
	}
	defer unlock()

	s, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s.Completed || s.Halted {
		return nil, fmt.Errorf("%w: %s", datatypes.ErrSessionCompleted, sessionID)
	}
	q := s.CurrentQuestion()
	if q == nil {
		return nil, fmt.Errorf("%w: %s has no current question", datatypes.ErrSessionCompleted, sessionID)
	}

	record := &datatypes.EvaluationRecord{
		SessionID:     s.ID,
		QuestionIndex: s.CurrentIndex,
		Question:      *q,
		Answer:        answer,
		StartedAt:     e.now().UTC(),
	}
	e.screen(record)

	turnCtx, cancel := context.WithTimeout(ctx, e.cfg.TurnTimeout)
	result, err := e.executor.Run(turnCtx, &graph.Turn{Session: s, Record: record})
	cancel()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("run turn: %w", err)
	}
	record.Duration = result.Duration

	e.finishTurn(s, record)

	if err := e.store.Put(ctx, s); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("store session: %w", err)
	}

	if e.observer != nil {
		e.observer.TurnFinished(record, result)
		if s.Completed {
			e.observer.SessionFinished(s)
		}
	}

	out := &TurnResult{Record: record, Completed: s.Completed}
	if !s.Completed {
		out.NextQuestion = s.CurrentQuestion()
	}

	span.SetAttributes(
		attribute.Float64("turn.score", record.Score),
		attribute.Bool("turn.partial", record.Partial),
		attribute.Bool("session.completed", s.Completed),
	)
	e.logger.Info("answer evaluated",
		slog.String("session_id", s.ID),
		slog.Int("question_index", record.QuestionIndex),
		slog.Int("answer_len", len(answer)),
		slog.Float64("score", record.Score),
		slog.Bool("partial", record.Partial),
		slog.Bool("completed", s.Completed),
	)
	return out, nil
}

// screen redacts the record's answer in place. The original text is not kept
// anywhere, including the stored history.
func (e *Engine) screen(record *datatypes.EvaluationRecord) {
	if e.screener == nil {
		return
	}
	redacted, findings := e.screener.Redact(record.Answer)
	if len(findings) == 0 {
		return
	}
	record.Answer = redacted
	for _, f := range findings {
		record.Redactions = append(record.Redactions, f.PatternID)
	}
	e.logger.Warn("sensitive content redacted from answer",
		slog.String("session_id", record.SessionID),
		slog.Int("question_index", record.QuestionIndex),
		slog.Int("redactions", len(findings)),
	)
}

// finishTurn folds a finished record into the session: history, metrics,
// queue adjustments and completion.
func (e *Engine) finishTurn(s *datatypes.InterviewSession, record *datatypes.EvaluationRecord) {
	if score, ok := coaching.BlendedScore(record.Baseline, record.Consensus, record.GRAIL); ok {
		record.Score = score
	}
	s.History = append(s.History, *record)
	s.Metrics = adaptive.ComputeMetrics(s.History, e.selector.Config())
	if record.Partial {
		s.Partial = true
	}

	conclude := false
	if d := record.Decision; d != nil {
		switch d.Action {
		case datatypes.ActionConclude:
			conclude = true
		case datatypes.ActionAdjustDifficulty:
			if d.DifficultyDelta == datatypes.DeltaEasier {
				s.Difficulty = s.Difficulty.Easier()
			} else if d.DifficultyDelta == datatypes.DeltaHarder {
				s.Difficulty = s.Difficulty.Harder()
			}
		}
		if !conclude && d.NextQuestion != nil {
			promote(s, *d.NextQuestion)
		}
	}
	s.CurrentIndex++

	switch {
	case s.Halted:
		s.Completed = true
	case conclude:
		s.Completed = true
	case len(s.History) >= s.Config.TotalQuestions:
		s.Completed = true
	case s.CurrentQuestion() == nil:
		s.Completed = true
	}
	s.UpdatedAt = e.now().UTC()
}

// promote places q directly after the current question. A queued question is
// moved forward; a question from the pool is inserted.
func promote(s *datatypes.InterviewSession, q datatypes.Question) {
	next := s.CurrentIndex + 1
	for i := next; i < len(s.Queue); i++ {
		if s.Queue[i].ID == q.ID {
			found := s.Queue[i]
			copy(s.Queue[next+1:i+1], s.Queue[next:i])
			s.Queue[next] = found
			return
		}
	}
	if next > len(s.Queue) {
		next = len(s.Queue)
	}
	s.Queue = append(s.Queue, datatypes.Question{})
	copy(s.Queue[next+1:], s.Queue[next:])
	s.Queue[next] = q
}
