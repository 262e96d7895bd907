// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package grail

import (
	"context"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

func dimensionScorer(scores map[datatypes.GRAILDimension]float64, failing ...datatypes.GRAILDimension) collaborator.Evaluator {
	fail := map[datatypes.GRAILDimension]bool{}
	for _, d := range failing {
		fail[d] = true
	}
	return collaborator.EvaluatorFunc(func(ctx context.Context, pc collaborator.PromptContext) (*collaborator.StructuredResult, error) {
		if fail[pc.Dimension] {
			return nil, datatypes.ErrEvaluationParse
		}
		return &collaborator.StructuredResult{
			Score:           scores[pc.Dimension],
			Evidence:        []string{"quote for " + string(pc.Dimension)},
			MissingElements: []string{"missing one", "missing two", "missing three"},
		}, nil
	})
}

func TestBand(t *testing.T) {
	tests := []struct {
		score float64
		want  datatypes.StrengthBand
	}{
		{0, datatypes.BandWeak},
		{3.99, datatypes.BandWeak},
		{4, datatypes.BandDeveloping},
		{5.99, datatypes.BandDeveloping},
		{6, datatypes.BandProficient},
		{7.49, datatypes.BandProficient},
		{7.5, datatypes.BandStrong},
		{8.99, datatypes.BandStrong},
		{9, datatypes.BandExceptional},
		{10, datatypes.BandExceptional},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Band(tt.score), tt.score)
	}
}

func TestCompetencyMapping_IsCompleteAndIsolated(t *testing.T) {
	m := CompetencyMapping()
	require.Len(t, m, 5)

	seen := map[datatypes.Competency]bool{}
	for _, d := range datatypes.AllDimensions {
		require.Len(t, m[d], 3, d)
		for _, c := range m[d] {
			seen[c] = true
		}
	}
	assert.Len(t, seen, 15)

	m[datatypes.DimensionGoal][0] = "mutated"
	assert.Equal(t, datatypes.CompetencyStrategicThinking, CompetencyMapping()[datatypes.DimensionGoal][0])
}

func TestEvaluate_OverallIsWeightedSum(t *testing.T) {
	scores := map[datatypes.GRAILDimension]float64{
		datatypes.DimensionGoal:      8,
		datatypes.DimensionResources: 5,
		datatypes.DimensionActions:   9.5,
		datatypes.DimensionImpact:    3,
		datatypes.DimensionLearning:  6.5,
	}

	res, err := New(dimensionScorer(scores), Config{}, nil).Evaluate(context.Background(), Input{Answer: "a"})
	require.NoError(t, err)

	assert.InDelta(t, 0.2*(8+5+9.5+3+6.5), res.OverallScore, 1e-9)
	assert.Equal(t, datatypes.BandExceptional, res.Dimensions[datatypes.DimensionActions].Band)
	assert.Equal(t, datatypes.BandWeak, res.Dimensions[datatypes.DimensionImpact].Band)
	assert.Len(t, res.CompetencyMapping, 5)
	assert.Empty(t, res.MissingDimensions)
	assert.Contains(t, res.OverallAssessment, "Strengths in: GOAL, ACTIONS.")
	assert.Contains(t, res.OverallAssessment, "Focus areas: RESOURCES, IMPACT.")
}

func TestEvaluate_WeightedSumProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 100; i++ {
		weights := map[datatypes.GRAILDimension]float64{}
		scores := map[datatypes.GRAILDimension]float64{}
		for _, d := range datatypes.AllDimensions {
			weights[d] = rng.Float64()
			scores[d] = rng.Float64() * 10
		}
		ev := New(dimensionScorer(scores), Config{Weights: weights}, nil)
		res, err := ev.Evaluate(context.Background(), Input{})
		require.NoError(t, err)

		var sumW, want float64
		for _, d := range datatypes.AllDimensions {
			sumW += res.Weights[d]
			want += res.Weights[d] * res.Dimensions[d].Score
		}
		assert.InDelta(t, 1.0, sumW, 1e-9)
		assert.InDelta(t, want, res.OverallScore, 1e-9)
	}
}

func TestEvaluate_CategoryWeights(t *testing.T) {
	ev := New(nil, Config{UseCategoryWeights: true}, nil)
	w := ev.WeightsFor(datatypes.CategoryFailureRecovery)
	assert.InDelta(t, 0.30, w[datatypes.DimensionLearning], 1e-9)

	w = ev.WeightsFor(datatypes.CategoryConflictResolution)
	assert.InDelta(t, 0.2, w[datatypes.DimensionLearning], 1e-9)

	ev = New(nil, Config{}, nil)
	assert.InDelta(t, 0.2, ev.WeightsFor(datatypes.CategoryFailureRecovery)[datatypes.DimensionLearning], 1e-9)
}

func TestEvaluate_MissingDimensions(t *testing.T) {
	scores := map[datatypes.GRAILDimension]float64{
		datatypes.DimensionGoal: 8, datatypes.DimensionResources: 8, datatypes.DimensionActions: 8,
	}
	ev := New(dimensionScorer(scores, datatypes.DimensionImpact, datatypes.DimensionLearning), Config{}, nil)

	res, err := ev.Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []datatypes.GRAILDimension{datatypes.DimensionImpact, datatypes.DimensionLearning}, res.MissingDimensions)
	assert.InDelta(t, 8.0, res.OverallScore, 1e-9)
	assert.Equal(t, datatypes.BandWeak, res.Dimensions[datatypes.DimensionImpact].Band)

	_, err = New(dimensionScorer(nil, datatypes.AllDimensions...), Config{}, nil).Evaluate(context.Background(), Input{})
	assert.ErrorIs(t, err, ErrAllDimensionsMissing)
}

func TestEvaluate_FailedDimensionIsRenormalizedAway(t *testing.T) {
	scores := map[datatypes.GRAILDimension]float64{
		datatypes.DimensionGoal: 8, datatypes.DimensionResources: 8, datatypes.DimensionActions: 8,
		datatypes.DimensionImpact: 8, datatypes.DimensionLearning: 8,
	}
	tests := []struct {
		name    string
		cfg     Config
		failing []datatypes.GRAILDimension
		input   Input
		want    float64
	}{
		{"equal weights one failing", Config{}, []datatypes.GRAILDimension{datatypes.DimensionLearning}, Input{}, 8.0},
		{"equal weights none failing", Config{}, nil, Input{}, 8.0},
		{
			name:    "category weights one failing",
			cfg:     Config{UseCategoryWeights: true},
			failing: []datatypes.GRAILDimension{datatypes.DimensionImpact},
			input:   Input{Question: datatypes.Question{Category: datatypes.CategoryProductDecisions}},
			want:    8.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := New(dimensionScorer(scores, tt.failing...), tt.cfg, nil).Evaluate(context.Background(), tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.OverallScore, 1e-9)
			assert.ElementsMatch(t, tt.failing, res.MissingDimensions)
			assert.Contains(t, res.OverallAssessment, "8.0/10")
		})
	}
}

func TestOverallScore_SkipsMissing(t *testing.T) {
	dims := map[datatypes.GRAILDimension]datatypes.DimensionScore{
		datatypes.DimensionGoal:      {Score: 9},
		datatypes.DimensionResources: {Score: 6},
		datatypes.DimensionActions:   {Score: 0},
	}
	weights := map[datatypes.GRAILDimension]float64{
		datatypes.DimensionGoal: 0.5, datatypes.DimensionResources: 0.25, datatypes.DimensionActions: 0.25,
	}

	tests := []struct {
		name    string
		weights map[datatypes.GRAILDimension]float64
		missing []datatypes.GRAILDimension
		want    float64
	}{
		{"renormalized", weights, []datatypes.GRAILDimension{datatypes.DimensionActions, datatypes.DimensionImpact, datatypes.DimensionLearning}, (0.5*9 + 0.25*6) / 0.75},
		{"zero weights average", map[datatypes.GRAILDimension]float64{}, []datatypes.GRAILDimension{datatypes.DimensionActions, datatypes.DimensionImpact, datatypes.DimensionLearning}, 7.5},
		{"all missing", weights, datatypes.AllDimensions, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OverallScore(dims, tt.weights, tt.missing), 1e-9)
		})
	}
}

func TestImprovementRecommendations(t *testing.T) {
	dims := map[datatypes.GRAILDimension]datatypes.DimensionScore{}
	for _, d := range datatypes.AllDimensions {
		dims[d] = datatypes.DimensionScore{Score: 5, MissingElements: []string{"a", "b", "c"}}
	}
	recs := ImprovementRecommendations(dims)
	assert.Len(t, recs, 5)
	assert.Equal(t, "[GOAL] a", recs[0])
	assert.Equal(t, "[GOAL] b", recs[1])
	assert.Equal(t, "[RESOURCES] a", recs[2])

	for _, d := range datatypes.AllDimensions {
		dims[d] = datatypes.DimensionScore{Score: 8, MissingElements: []string{"ignored"}}
	}
	assert.Equal(t, fallbackRecommendations, ImprovementRecommendations(dims))
}

func TestOverallAssessment_Tiers(t *testing.T) {
	dims := map[datatypes.GRAILDimension]datatypes.DimensionScore{}
	tests := map[float64]string{
		9:   "(exceptional)",
		7.2: "(strong)",
		5:   "(proficient)",
		3:   "(developing)",
		1:   "(needs improvement)",
	}
	for score, want := range tests {
		got := OverallAssessment(dims, score)
		assert.True(t, strings.HasSuffix(got, want), got)
	}
}
