// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package grail scores an answer against the five-dimension GRAIL rubric:
// Goal, Resources, Actions, Impact, Learning.
package grail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

var tracer = otel.Tracer("aleutian.interview.grail")

// ErrAllDimensionsMissing is returned when no dimension could be scored.
var ErrAllDimensionsMissing = errors.New("no GRAIL dimension could be evaluated")

// Band thresholds on the 0-10 scale.
const (
	developingFloor  = 4.0
	proficientFloor  = 6.0
	strongFloor      = 7.5
	exceptionalFloor = 9.0

	// recommendationCeiling is the score under which a dimension's missing
	// elements become recommendations.
	recommendationCeiling = 7.0
)

// Band maps a dimension score to its strength band.
func Band(score float64) datatypes.StrengthBand {
	switch {
	case score >= exceptionalFloor:
		return datatypes.BandExceptional
	case score >= strongFloor:
		return datatypes.BandStrong
	case score >= proficientFloor:
		return datatypes.BandProficient
	case score >= developingFloor:
		return datatypes.BandDeveloping
	default:
		return datatypes.BandWeak
	}
}

// competencyMap is the fixed dimension to competency table.
var competencyMap = map[datatypes.GRAILDimension][]datatypes.Competency{
	datatypes.DimensionGoal: {
		datatypes.CompetencyStrategicThinking, datatypes.CompetencyBusinessAcumen, datatypes.CompetencyVisionSetting,
	},
	datatypes.DimensionResources: {
		datatypes.CompetencyResourceManagement, datatypes.CompetencyPrioritization, datatypes.CompetencyConstraintOptimization,
	},
	datatypes.DimensionActions: {
		datatypes.CompetencyExecution, datatypes.CompetencyDecisionMaking, datatypes.CompetencyLeadership,
	},
	datatypes.DimensionImpact: {
		datatypes.CompetencyDataDriven, datatypes.CompetencyResultsOrientation, datatypes.CompetencyMeasurement,
	},
	datatypes.DimensionLearning: {
		datatypes.CompetencyGrowthMindset, datatypes.CompetencyAdaptability, datatypes.CompetencyContinuousImprovement,
	},
}

// CompetencyMapping returns a copy of the full competency table.
func CompetencyMapping() map[datatypes.GRAILDimension][]datatypes.Competency {
	out := make(map[datatypes.GRAILDimension][]datatypes.Competency, len(competencyMap))
	for d, cs := range competencyMap {
		out[d] = append([]datatypes.Competency(nil), cs...)
	}
	return out
}

// Competencies returns the competency tags assessed by a dimension.
func Competencies(d datatypes.GRAILDimension) []datatypes.Competency {
	return append([]datatypes.Competency(nil), competencyMap[d]...)
}

// Config tunes the rubric.
type Config struct {
	// Weights per dimension. Default: 0.2 each. Normalized to sum to one.
	Weights map[datatypes.GRAILDimension]float64 `yaml:"weights"`

	// UseCategoryWeights selects the per-category presets when the question
	// category has one.
	UseCategoryWeights bool `yaml:"use_category_weights"`
}

// DefaultWeights returns equal weights.
func DefaultWeights() map[datatypes.GRAILDimension]float64 {
	w := make(map[datatypes.GRAILDimension]float64, len(datatypes.AllDimensions))
	for _, d := range datatypes.AllDimensions {
		w[d] = 0.2
	}
	return w
}

// categoryWeights are the presets used when UseCategoryWeights is set.
var categoryWeights = map[datatypes.Category]map[datatypes.GRAILDimension]float64{
	datatypes.CategoryLeadership: {
		datatypes.DimensionGoal: 0.25, datatypes.DimensionResources: 0.10, datatypes.DimensionActions: 0.30,
		datatypes.DimensionImpact: 0.20, datatypes.DimensionLearning: 0.15,
	},
	datatypes.CategoryPrioritization: {
		datatypes.DimensionGoal: 0.20, datatypes.DimensionResources: 0.25, datatypes.DimensionActions: 0.20,
		datatypes.DimensionImpact: 0.25, datatypes.DimensionLearning: 0.10,
	},
	datatypes.CategoryStakeholderManagement: {
		datatypes.DimensionGoal: 0.25, datatypes.DimensionResources: 0.15, datatypes.DimensionActions: 0.25,
		datatypes.DimensionImpact: 0.20, datatypes.DimensionLearning: 0.15,
	},
	datatypes.CategoryFailureRecovery: {
		datatypes.DimensionGoal: 0.15, datatypes.DimensionResources: 0.15, datatypes.DimensionActions: 0.20,
		datatypes.DimensionImpact: 0.20, datatypes.DimensionLearning: 0.30,
	},
	datatypes.CategoryProductDecisions: {
		datatypes.DimensionGoal: 0.25, datatypes.DimensionResources: 0.15, datatypes.DimensionActions: 0.20,
		datatypes.DimensionImpact: 0.30, datatypes.DimensionLearning: 0.10,
	},
}

// normalize returns w scaled to sum to one. Negative or missing weights count
// as zero; an all-zero set falls back to equal weights.
func normalize(w map[datatypes.GRAILDimension]float64) map[datatypes.GRAILDimension]float64 {
	out := make(map[datatypes.GRAILDimension]float64, len(datatypes.AllDimensions))
	var sum float64
	for _, d := range datatypes.AllDimensions {
		v := w[d]
		if v < 0 || math.IsNaN(v) {
			v = 0
		}
		out[d] = v
		sum += v
	}
	if sum <= 0 {
		return DefaultWeights()
	}
	for d := range out {
		out[d] /= sum
	}
	return out
}

// Input is the answer to score.
type Input struct {
	Question datatypes.Question
	Answer   string
	Context  []datatypes.RetrievedContext
	Focus    string
}

// Evaluator scores the five dimensions and combines them.
type Evaluator struct {
	collab  collaborator.Evaluator
	cfg     Config
	weights map[datatypes.GRAILDimension]float64
	logger  *slog.Logger
}

// New creates a rubric evaluator.
func New(collab collaborator.Evaluator, cfg Config, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	weights := DefaultWeights()
	if len(cfg.Weights) > 0 {
		weights = normalize(cfg.Weights)
	}
	return &Evaluator{collab: collab, cfg: cfg, weights: weights, logger: logger}
}

// WeightsFor returns the normalized weights applied to a category.
func (e *Evaluator) WeightsFor(category datatypes.Category) map[datatypes.GRAILDimension]float64 {
	if e.cfg.UseCategoryWeights {
		if preset, ok := categoryWeights[category]; ok {
			return normalize(preset)
		}
	}
	out := make(map[datatypes.GRAILDimension]float64, len(e.weights))
	for d, w := range e.weights {
		out[d] = w
	}
	return out
}

// Evaluate scores every dimension concurrently and combines the results.
//
// Description:
//
//	Dimensions are independent so they run in parallel. A dimension whose
//	evaluation fails records a zero score, is banded weak and is listed
//	under MissingDimensions. The overall score is the weighted mean of the
//	dimensions that were scored, with weights renormalized over them. The
//	competency mapping is always the complete table.
//
// Outputs:
//
//	*datatypes.GRAILEvaluation - The rubric result.
//	error - ErrAllDimensionsMissing when nothing could be scored.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) (*datatypes.GRAILEvaluation, error) {
	ctx, span := tracer.Start(ctx, "grail.Evaluate",
		trace.WithAttributes(attribute.String("question.category", string(in.Question.Category))),
	)
	defer span.End()

	results := make([]*collaborator.StructuredResult, len(datatypes.AllDimensions))
	errs := make([]error, len(datatypes.AllDimensions))

	g, gctx := errgroup.WithContext(ctx)
	for i, dim := range datatypes.AllDimensions {
		g.Go(func() error {
			results[i], errs[i] = e.collab.Evaluate(gctx, collaborator.PromptContext{
				Task:      collaborator.TaskGRAILDimension,
				Dimension: dim,
				Question:  in.Question,
				Answer:    in.Answer,
				Context:   in.Context,
				Focus:     in.Focus,
			})
			return nil
		})
	}
	_ = g.Wait()

	dims := make(map[datatypes.GRAILDimension]datatypes.DimensionScore, len(datatypes.AllDimensions))
	var missing []datatypes.GRAILDimension
	for i, dim := range datatypes.AllDimensions {
		if errs[i] != nil || results[i] == nil {
			missing = append(missing, dim)
			e.logger.Warn("GRAIL dimension missing",
				slog.String("dimension", string(dim)),
				slog.String("kind", string(datatypes.KindOf(errs[i]))),
			)
			dims[dim] = datatypes.DimensionScore{
				Dimension:       dim,
				Band:            datatypes.BandWeak,
				Evidence:        []string{},
				MissingElements: []string{"dimension could not be evaluated"},
			}
			continue
		}
		dims[dim] = datatypes.DimensionScore{
			Dimension:       dim,
			Score:           results[i].Score,
			Evidence:        nonNil(results[i].Evidence),
			MissingElements: nonNil(results[i].MissingElements),
			Band:            Band(results[i].Score),
		}
	}

	if len(missing) == len(datatypes.AllDimensions) {
		err := fmt.Errorf("%w: %v", ErrAllDimensionsMissing, errors.Join(errs...))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	weights := e.WeightsFor(in.Question.Category)
	overall := OverallScore(dims, weights, missing)

	result := &datatypes.GRAILEvaluation{
		Dimensions:                 dims,
		Weights:                    weights,
		OverallScore:               overall,
		CompetencyMapping:          CompetencyMapping(),
		OverallAssessment:          OverallAssessment(dims, overall),
		ImprovementRecommendations: ImprovementRecommendations(dims),
		MissingDimensions:          missing,
	}

	span.SetAttributes(attribute.Float64("grail.overall", overall), attribute.Int("grail.missing", len(missing)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// OverallScore is the weighted mean of the dimension scores, skipping the
// missing dimensions. Weights are renormalized over the rest; if those sum to
// zero every remaining dimension weighs the same.
func OverallScore(dims map[datatypes.GRAILDimension]datatypes.DimensionScore, weights map[datatypes.GRAILDimension]float64, missing []datatypes.GRAILDimension) float64 {
	skip := make(map[datatypes.GRAILDimension]bool, len(missing))
	for _, d := range missing {
		skip[d] = true
	}

	var num, den float64
	var n int
	for _, d := range datatypes.AllDimensions {
		if skip[d] {
			continue
		}
		num += weights[d] * dims[d].Score
		den += weights[d]
		n++
	}
	if n == 0 {
		return 0
	}
	if den <= 0 {
		num = 0
		for _, d := range datatypes.AllDimensions {
			if !skip[d] {
				num += dims[d].Score
			}
		}
		return num / float64(n)
	}
	return num / den
}

// OverallAssessment summarizes the rubric in one sentence per finding.
func OverallAssessment(dims map[datatypes.GRAILDimension]datatypes.DimensionScore, overall float64) string {
	var strengths, focus []string
	for _, d := range datatypes.AllDimensions {
		switch dims[d].Band {
		case datatypes.BandStrong, datatypes.BandExceptional:
			strengths = append(strengths, strings.ToUpper(string(d)))
		case datatypes.BandWeak, datatypes.BandDeveloping:
			focus = append(focus, strings.ToUpper(string(d)))
		}
	}

	var level, summary string
	switch {
	case overall >= 8.5:
		level, summary = "exceptional", "Outstanding PM response demonstrating mastery"
	case overall >= 7:
		level, summary = "strong", "Strong PM response with good structure"
	case overall >= 5:
		level, summary = "proficient", "Solid response with room for enhancement"
	case overall >= 3:
		level, summary = "developing", "Developing PM skills, needs more structure"
	default:
		level, summary = "needs improvement", "Significant gaps in PM approach"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", summary)
	if len(strengths) > 0 {
		fmt.Fprintf(&b, "Strengths in: %s. ", strings.Join(strengths, ", "))
	}
	if len(focus) > 0 {
		fmt.Fprintf(&b, "Focus areas: %s. ", strings.Join(focus, ", "))
	}
	fmt.Fprintf(&b, "Overall GRAIL score: %.1f/10 (%s)", overall, level)
	return b.String()
}

// fallbackRecommendations apply when no dimension reports missing elements.
var fallbackRecommendations = []string{
	"Add more specific metrics to quantify impact",
	"Include alternative approaches you considered",
	"Elaborate on long-term learnings and applications",
}

// ImprovementRecommendations lists up to two missing elements from each
// dimension scoring under 7, at most five in total.
func ImprovementRecommendations(dims map[datatypes.GRAILDimension]datatypes.DimensionScore) []string {
	var out []string
	for _, d := range datatypes.AllDimensions {
		ds := dims[d]
		if ds.Score >= recommendationCeiling {
			continue
		}
		for i, m := range ds.MissingElements {
			if i == 2 {
				break
			}
			out = append(out, fmt.Sprintf("[%s] %s", strings.ToUpper(string(d)), m))
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallbackRecommendations...)
	}
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func nonNil(s []string) []string {
	if len(s) == 0 {
		return []string{}
	}
	return append([]string(nil), s...)
}
