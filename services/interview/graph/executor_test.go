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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// recordingHandlers builds handlers that count calls per stage. Overrides
// replace the default no-op for specific stages.
func recordingHandlers(calls map[Stage]int, overrides map[Stage]StageFunc) map[Stage]StageFunc {
	handlers := make(map[Stage]StageFunc, len(Stages))
	for _, s := range Stages {
		stage := s
		handlers[stage] = func(ctx context.Context, turn *Turn) error {
			calls[stage]++
			if fn := overrides[stage]; fn != nil {
				return fn(ctx, turn)
			}
			return nil
		}
	}
	return handlers
}

func newTurn(features datatypes.EnabledFeatures) *Turn {
	return &Turn{
		Session: &datatypes.InterviewSession{
			ID:     "session-1",
			Config: datatypes.SessionConfig{EnabledFeatures: features},
		},
		Record: &datatypes.EvaluationRecord{SessionID: "session-1"},
	}
}

func TestNewExecutor_MissingHandler(t *testing.T) {
	handlers := recordingHandlers(map[Stage]int{}, nil)
	delete(handlers, StageGRAIL)

	_, err := NewExecutor(handlers, DefaultLimits(), nil)
	assert.ErrorIs(t, err, ErrMissingHandler)
}

func TestExecutor_Run_InvalidArgs(t *testing.T) {
	ex, err := NewExecutor(recordingHandlers(map[Stage]int{}, nil), DefaultLimits(), nil)
	require.NoError(t, err)

	//nolint:staticcheck // nil context is the case under test
	_, err = ex.Run(nil, newTurn(datatypes.AllFeatures()))
	assert.ErrorIs(t, err, ErrNilContext)

	_, err = ex.Run(context.Background(), &Turn{})
	assert.ErrorIs(t, err, ErrInvalidTurn)
}

func TestExecutor_Run_FullWalk(t *testing.T) {
	calls := map[Stage]int{}
	ex, err := NewExecutor(recordingHandlers(calls, nil), DefaultLimits(), nil)
	require.NoError(t, err)

	turn := newTurn(datatypes.AllFeatures())
	res, err := ex.Run(context.Background(), turn)
	require.NoError(t, err)

	assert.Equal(t, Stages, res.Stages)
	assert.Equal(t, len(Stages)-1, res.Transitions)
	assert.False(t, res.Partial)
	assert.False(t, turn.Record.Partial)
	assert.Empty(t, turn.Record.Issues)
	for _, s := range Stages {
		assert.Equal(t, 1, calls[s], s)
		assert.Equal(t, 1, turn.Session.NodeIterations[s.String()], s)
	}
}

func TestExecutor_Run_DisabledFeaturesSkipStages(t *testing.T) {
	calls := map[Stage]int{}
	ex, err := NewExecutor(recordingHandlers(calls, nil), DefaultLimits(), nil)
	require.NoError(t, err)

	res, err := ex.Run(context.Background(), newTurn(datatypes.EnabledFeatures{}))
	require.NoError(t, err)

	assert.Equal(t, []Stage{
		StageParseAnswer, StageRetrieveContext, StageTemplateAnswer,
		StageBaseline, StageTips, StageFollowUps,
	}, res.Stages)
	assert.Zero(t, calls[StageMultiAgent])
	assert.Zero(t, calls[StageAdaptiveSelect])
}

func TestExecutor_Run_DeepDiveHitsIterationLimitOnce(t *testing.T) {
	calls := map[Stage]int{}
	alwaysDeepDive := func(_ context.Context, turn *Turn) error {
		turn.Record.Decision = &datatypes.AdaptiveDecision{Action: datatypes.ActionDeepDive}
		return nil
	}
	ex, err := NewExecutor(
		recordingHandlers(calls, map[Stage]StageFunc{StageAdaptiveSelect: alwaysDeepDive}),
		DefaultLimits(), nil,
	)
	require.NoError(t, err)

	turn := newTurn(datatypes.AllFeatures())
	res, err := ex.Run(context.Background(), turn)
	require.NoError(t, err)

	assert.True(t, res.IterationLimitHit)
	assert.False(t, res.RecursionLimitHit)
	assert.True(t, turn.Record.Partial)
	assert.Equal(t, DefaultMaxNodeIterations, calls[StageRetrieveContext])
	assert.Equal(t, DefaultMaxNodeIterations+1, turn.Session.NodeIterations[StageRetrieveContext.String()])
	assert.False(t, turn.Session.Halted)

	limitIssues := 0
	for _, is := range turn.Record.Issues {
		if is.Kind == datatypes.KindIterationLimit {
			limitIssues++
			assert.Equal(t, StageRetrieveContext.String(), is.Stage)
		}
	}
	assert.Equal(t, 1, limitIssues)
}

func TestExecutor_Run_RecursionLimitHaltsImmediately(t *testing.T) {
	calls := map[Stage]int{}
	ex, err := NewExecutor(recordingHandlers(calls, nil), Limits{MaxNodeIterations: 100, MaxTransitions: 3}, nil)
	require.NoError(t, err)

	turn := newTurn(datatypes.AllFeatures())
	res, err := ex.Run(context.Background(), turn)
	require.NoError(t, err)

	assert.True(t, res.RecursionLimitHit)
	assert.True(t, turn.Record.Partial)
	assert.True(t, turn.Session.Halted)
	assert.True(t, turn.Record.HasIssue(datatypes.KindRecursionLimit))
	assert.Equal(t, []Stage{StageParseAnswer, StageRetrieveContext, StageTemplateAnswer, StageBaseline}, res.Stages)
	assert.Zero(t, calls[StageMultiAgent])
	assert.Zero(t, calls[StageAdaptiveSelect])
}

func TestExecutor_Run_StageErrorIsAbsorbed(t *testing.T) {
	calls := map[Stage]int{}
	ex, err := NewExecutor(recordingHandlers(calls, map[Stage]StageFunc{
		StageGRAIL: func(context.Context, *Turn) error {
			return datatypes.NewStageError(StageGRAIL.String(), datatypes.KindEvaluationParse, errors.New("bad json"))
		},
		StageCoaching: func(context.Context, *Turn) error {
			panic("coaching exploded")
		},
	}), DefaultLimits(), nil)
	require.NoError(t, err)

	turn := newTurn(datatypes.AllFeatures())
	res, err := ex.Run(context.Background(), turn)
	require.NoError(t, err)

	assert.Equal(t, Stages, res.Stages)
	assert.True(t, turn.Record.Partial)
	assert.True(t, turn.Record.HasIssue(datatypes.KindEvaluationParse))
	assert.True(t, turn.Record.HasIssue(datatypes.KindInternal))
	assert.Equal(t, 1, calls[StageAdaptiveSelect])
}

func TestExecutor_Run_CancelledContextStopsWalk(t *testing.T) {
	calls := map[Stage]int{}
	ctx, cancel := context.WithCancel(context.Background())
	ex, err := NewExecutor(recordingHandlers(calls, map[Stage]StageFunc{
		StageBaseline: func(context.Context, *Turn) error {
			cancel()
			return nil
		},
	}), DefaultLimits(), nil)
	require.NoError(t, err)

	turn := newTurn(datatypes.AllFeatures())
	res, err := ex.Run(ctx, turn)
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.True(t, turn.Record.Partial)
	assert.True(t, turn.Record.HasIssue(datatypes.KindUpstreamTimeout))
	assert.Zero(t, calls[StageMultiAgent])
}
