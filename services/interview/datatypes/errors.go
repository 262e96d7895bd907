// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a turn can encounter.
type ErrorKind string

const (
	KindInvalidInput          ErrorKind = "invalid_input"
	KindUpstreamTimeout       ErrorKind = "upstream_timeout"
	KindEvaluationParse       ErrorKind = "evaluation_parse_error"
	KindIterationLimit        ErrorKind = "iteration_limit_exceeded"
	KindRecursionLimit        ErrorKind = "recursion_limit_exceeded"
	KindInsufficientConsensus ErrorKind = "insufficient_consensus"
	KindSessionNotFound       ErrorKind = "session_not_found"
	KindSessionCompleted      ErrorKind = "session_completed"
	KindInternal              ErrorKind = "internal"
)

// Sentinel errors shared across the interview packages.
var (
	// ErrInvalidInput is returned for a malformed answer or configuration.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamTimeout is returned when a collaborator does not answer in time.
	ErrUpstreamTimeout = errors.New("upstream collaborator timed out")

	// ErrEvaluationParse is returned when a collaborator response has the wrong shape.
	ErrEvaluationParse = errors.New("evaluation response could not be parsed")

	// ErrIterationLimit is returned when a stage is visited too many times in a turn.
	ErrIterationLimit = errors.New("stage iteration limit exceeded")

	// ErrRecursionLimit is returned when a turn makes too many stage transitions.
	ErrRecursionLimit = errors.New("stage transition limit exceeded")

	// ErrInsufficientConsensus is returned when too few specialist agents succeeded.
	ErrInsufficientConsensus = errors.New("insufficient agents for consensus")

	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionCompleted is returned when an answer is submitted to a finished session.
	ErrSessionCompleted = errors.New("session already completed")
)

// StageError wraps an error with the stage that produced it.
type StageError struct {
	Stage string
	Kind  ErrorKind
	Err   error
}

// Error returns the error message.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %q (%s): %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError creates a StageError, classifying err when kind is empty.
func NewStageError(stage string, kind ErrorKind, err error) *StageError {
	if kind == "" {
		kind = KindOf(err)
	}
	return &StageError{Stage: stage, Kind: kind, Err: err}
}

// KindOf maps an error chain to its ErrorKind.
func KindOf(err error) ErrorKind {
	var se *StageError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &se) && se.Kind != "":
		return se.Kind
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindUpstreamTimeout
	case errors.Is(err, ErrEvaluationParse):
		return KindEvaluationParse
	case errors.Is(err, ErrIterationLimit):
		return KindIterationLimit
	case errors.Is(err, ErrRecursionLimit):
		return KindRecursionLimit
	case errors.Is(err, ErrInsufficientConsensus):
		return KindInsufficientConsensus
	case errors.Is(err, ErrSessionNotFound):
		return KindSessionNotFound
	case errors.Is(err, ErrSessionCompleted):
		return KindSessionCompleted
	default:
		return KindInternal
	}
}
