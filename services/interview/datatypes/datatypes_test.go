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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SessionConfig
		wantErr bool
	}{
		{"valid", SessionConfig{TotalQuestions: 5, Difficulty: DifficultyMid}, false},
		{"zero questions", SessionConfig{TotalQuestions: 0, Difficulty: DifficultyMid}, true},
		{"too many questions", SessionConfig{TotalQuestions: 21, Difficulty: DifficultyMid}, true},
		{"unknown difficulty", SessionConfig{TotalQuestions: 3, Difficulty: "principal"}, true},
		{"missing difficulty", SessionConfig{TotalQuestions: 3}, true},
		{"short custom question", SessionConfig{TotalQuestions: 3, Difficulty: DifficultyJunior, CustomQuestion: "why?"}, true},
		{"unknown required category", SessionConfig{
			TotalQuestions: 3, Difficulty: DifficultySenior, RequiredCategories: []Category{"sales"},
		}, true},
		{"known required category", SessionConfig{
			TotalQuestions: 3, Difficulty: DifficultySenior, RequiredCategories: []Category{CategoryLeadership},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAnswer(t *testing.T) {
	assert.NoError(t, ValidateAnswer("I led the migration of our billing system."))
	assert.ErrorIs(t, ValidateAnswer("   short   "), ErrInvalidInput)
	assert.ErrorIs(t, ValidateAnswer(strings.Repeat("a", MaxAnswerBytes+1)), ErrInvalidInput)
	assert.ErrorIs(t, ValidateAnswer("valid prefix \xff\xfe"), ErrInvalidInput)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, ""},
		{fmt.Errorf("wrap: %w", ErrInvalidInput), KindInvalidInput},
		{context.DeadlineExceeded, KindUpstreamTimeout},
		{ErrEvaluationParse, KindEvaluationParse},
		{ErrIterationLimit, KindIterationLimit},
		{ErrRecursionLimit, KindRecursionLimit},
		{ErrInsufficientConsensus, KindInsufficientConsensus},
		{ErrSessionNotFound, KindSessionNotFound},
		{errors.New("boom"), KindInternal},
		{NewStageError("grail_evaluate", KindEvaluationParse, errors.New("bad json")), KindEvaluationParse},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err))
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := NewStageError("retrieve_context", "", ErrUpstreamTimeout)
	assert.Equal(t, KindUpstreamTimeout, err.Kind)
	assert.ErrorIs(t, err, ErrUpstreamTimeout)
	assert.Contains(t, err.Error(), "retrieve_context")
}

func TestInterviewSession_Clone(t *testing.T) {
	s := &InterviewSession{
		ID: "s1",
		Queue: []Question{
			{ID: "q1", Category: CategoryLeadership},
			{ID: "q2", Category: CategoryPrioritization},
		},
		CurrentIndex:   1,
		NodeIterations: map[string]int{"parse_answer": 1},
		History: []EvaluationRecord{{
			SessionID: "s1",
			Question:  Question{ID: "q1", Category: CategoryLeadership},
			Score:     7.5,
			StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		}},
	}

	c, err := s.Clone()
	require.NoError(t, err)
	assert.Equal(t, s.History, c.History)

	c.NodeIterations["parse_answer"] = 9
	c.History[0].Score = 1
	assert.Equal(t, 1, s.NodeIterations["parse_answer"])
	assert.Equal(t, 7.5, s.History[0].Score)
}

func TestInterviewSession_QueueHelpers(t *testing.T) {
	s := &InterviewSession{
		Queue: []Question{
			{ID: "q1", Category: CategoryLeadership},
			{ID: "q2", Category: CategoryPrioritization},
			{ID: "q3", Category: CategoryFailureRecovery},
		},
		History: []EvaluationRecord{{Question: Question{ID: "q1", Category: CategoryLeadership}}},
	}

	require.NotNil(t, s.CurrentQuestion())
	assert.Equal(t, "q1", s.CurrentQuestion().ID)
	assert.Len(t, s.Remaining(), 2)
	assert.True(t, s.CoveredCategories()[CategoryLeadership])
	assert.False(t, s.CoveredCategories()[CategoryPrioritization])

	s.CurrentIndex = 3
	assert.Nil(t, s.CurrentQuestion())
	assert.Empty(t, s.Remaining())
}

func TestDifficulty_Steps(t *testing.T) {
	assert.Equal(t, DifficultyMid, DifficultySenior.Easier())
	assert.Equal(t, DifficultyJunior, DifficultyJunior.Easier())
	assert.Equal(t, DifficultySenior, DifficultySenior.Harder())
	assert.Less(t, DifficultyJunior.Rank(), DifficultySenior.Rank())
}
