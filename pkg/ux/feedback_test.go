// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

func sampleRecord() *datatypes.EvaluationRecord {
	return &datatypes.EvaluationRecord{
		Score: 7.5,
		Consensus: &datatypes.ConsensusEvaluation{
			Recommendation: "positive lean",
			LowConfidence:  true,
		},
		GRAIL: &datatypes.GRAILEvaluation{
			Dimensions: map[datatypes.GRAILDimension]datatypes.DimensionScore{
				datatypes.DimensionGoal: {Dimension: datatypes.DimensionGoal, Score: 8, Band: datatypes.BandStrong},
			},
		},
		Coaching: &datatypes.CoachingFeedback{
			Band:                datatypes.PerformanceStrong,
			PositiveRecognition: "Clear ownership of the launch.",
			Encouragement:       "Keep going.",
		},
		Tips:      []string{"Lead with the outcome."},
		FollowUps: []string{"How did you measure success?"},
		Partial:   true,
	}
}

func TestRenderTurn(t *testing.T) {
	out := RenderTurn(sampleRecord(), 120)

	for _, want := range []string{
		"7.5/10",
		"positive lean",
		"low confidence",
		"goal",
		"not scored",
		"Clear ownership of the launch.",
		"Lead with the outcome.",
		"How did you measure success?",
		"did not finish",
	} {
		assert.Contains(t, out, want)
	}
}

func TestRenderTurn_MinimalRecord(t *testing.T) {
	out := RenderTurn(&datatypes.EvaluationRecord{Score: 3}, 0)
	assert.Contains(t, out, "3.0/10")
	assert.NotContains(t, out, "GRAIL")
	assert.NotContains(t, out, "Tips")
}

func TestRenderQuestion(t *testing.T) {
	q := &datatypes.Question{Text: "Tell me about a hard trade-off.", Category: datatypes.CategoryPrioritization, Difficulty: datatypes.DifficultyMid}
	out := RenderQuestion(2, 5, q, 80)
	assert.Contains(t, out, "Question 2 of 5")
	assert.Contains(t, out, "prioritization")
	assert.Contains(t, out, "hard trade-off")
}

func TestRenderSummary(t *testing.T) {
	s := &datatypes.InterviewSession{
		History:    make([]datatypes.EvaluationRecord, 3),
		Difficulty: datatypes.DifficultySenior,
		Metrics:    datatypes.PerformanceMetrics{RollingAverage: 6.4, Trend: datatypes.TrendImproving},
		Halted:     true,
	}
	out := RenderSummary(s)
	assert.Contains(t, out, "Questions answered: 3")
	assert.Contains(t, out, "6.4")
	assert.Contains(t, out, string(datatypes.TrendImproving))
	assert.Contains(t, out, "transition limit")
}

func TestBoxWidth(t *testing.T) {
	assert.Equal(t, 96, boxWidth(0))
	assert.Equal(t, 36, boxWidth(10))
	assert.Equal(t, 76, boxWidth(80))
}
