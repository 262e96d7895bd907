// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package adaptive tracks candidate performance across a session and decides
// how the interview proceeds after each answer.
package adaptive

import (
	"math"
	"sort"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/grail"
)

// Config tunes the tracker and the decision policy.
type Config struct {
	// Window is the number of recent scores in the rolling average. Default: 3.
	Window int `yaml:"window"`

	// TrendEpsilon is the margin the latest score must clear against the
	// preceding rolling average to count as a change. Default: 0.5.
	TrendEpsilon float64 `yaml:"trend_epsilon"`

	// MidThreshold splits competencies into strengths and weaknesses, and
	// marks a GRAIL dimension as shallow. Default: 6.0.
	MidThreshold float64 `yaml:"mid_threshold"`

	// ExcellenceThreshold and ExcellenceStreak define early conclusion: the
	// last ExcellenceStreak rolling averages at or above the threshold.
	// Defaults: 9.0 and 2.
	ExcellenceThreshold float64 `yaml:"excellence_threshold"`
	ExcellenceStreak    int     `yaml:"excellence_streak"`

	// StruggleThreshold is the score below which difficulty drops. Default: 5.0.
	StruggleThreshold float64 `yaml:"struggle_threshold"`

	// HighThreshold is the score at or above which a shallow answer earns a
	// deep dive. Default: 7.0.
	HighThreshold float64 `yaml:"high_threshold"`

	// MinQuestions answered before the policy applies. Default: 2.
	MinQuestions int `yaml:"min_questions"`

	// ShallowEvidenceMin is the evidence count under which a dimension is
	// considered shallow. Default: 2.
	ShallowEvidenceMin int `yaml:"shallow_evidence_min"`

	// MaxDeepDives caps deep dives per question. Default: 1. A negative value
	// disables deep dives.
	MaxDeepDives int `yaml:"max_deep_dives"`

	// FullConfidenceAt is the answer count at which ConfidenceLevel reaches
	// one. Default: 5.
	FullConfidenceAt int `yaml:"full_confidence_at"`
}

// DefaultConfig returns the standard policy configuration.
func DefaultConfig() Config {
	return Config{
		Window:              3,
		TrendEpsilon:        0.5,
		MidThreshold:        6.0,
		ExcellenceThreshold: 9.0,
		ExcellenceStreak:    2,
		StruggleThreshold:   5.0,
		HighThreshold:       7.0,
		MinQuestions:        2,
		ShallowEvidenceMin:  2,
		MaxDeepDives:        1,
		FullConfidenceAt:    5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.TrendEpsilon <= 0 {
		c.TrendEpsilon = d.TrendEpsilon
	}
	if c.MidThreshold <= 0 {
		c.MidThreshold = d.MidThreshold
	}
	if c.ExcellenceThreshold <= 0 {
		c.ExcellenceThreshold = d.ExcellenceThreshold
	}
	if c.ExcellenceStreak <= 0 {
		c.ExcellenceStreak = d.ExcellenceStreak
	}
	if c.StruggleThreshold <= 0 {
		c.StruggleThreshold = d.StruggleThreshold
	}
	if c.HighThreshold <= 0 {
		c.HighThreshold = d.HighThreshold
	}
	if c.MinQuestions <= 0 {
		c.MinQuestions = d.MinQuestions
	}
	if c.ShallowEvidenceMin <= 0 {
		c.ShallowEvidenceMin = d.ShallowEvidenceMin
	}
	if c.MaxDeepDives == 0 {
		c.MaxDeepDives = d.MaxDeepDives
	}
	if c.FullConfidenceAt <= 0 {
		c.FullConfidenceAt = d.FullConfidenceAt
	}
	return c
}

// baselineCompetencies stands in for GRAIL when only a baseline is available.
var baselineCompetencies = map[string][]datatypes.Competency{
	"leadership": {datatypes.CompetencyLeadership},
	"impact":     {datatypes.CompetencyResultsOrientation},
	"depth":      {datatypes.CompetencyDecisionMaking},
}

// ComputeMetrics derives the performance state from answered records in
// order. It is a pure function of its input.
func ComputeMetrics(records []datatypes.EvaluationRecord, cfg Config) datatypes.PerformanceMetrics {
	cfg = cfg.withDefaults()

	m := datatypes.PerformanceMetrics{
		Scores:          make([]float64, 0, len(records)),
		RollingAverages: make([]float64, 0, len(records)),
		Trend:           datatypes.TrendStable,
		Strengths:       []datatypes.Competency{},
		Weaknesses:      []datatypes.Competency{},
		CategoryCounts:  make(map[datatypes.Category]int),
	}

	sums := make(map[datatypes.Competency]float64)
	counts := make(map[datatypes.Competency]int)
	observe := func(c datatypes.Competency, score float64) {
		sums[c] += score
		counts[c]++
	}

	for _, rec := range records {
		m.Scores = append(m.Scores, rec.Score)
		m.RollingAverages = append(m.RollingAverages, rollingMean(m.Scores, cfg.Window))
		m.CategoryCounts[rec.Question.Category]++

		switch {
		case rec.GRAIL != nil:
			for _, d := range datatypes.AllDimensions {
				if containsDimension(rec.GRAIL.MissingDimensions, d) {
					continue
				}
				for _, c := range grail.Competencies(d) {
					observe(c, rec.GRAIL.Dimensions[d].Score)
				}
			}
		case rec.Baseline != nil:
			sub := map[string]float64{
				"leadership": rec.Baseline.Leadership,
				"impact":     rec.Baseline.Impact,
				"depth":      rec.Baseline.Depth,
			}
			for k, cs := range baselineCompetencies {
				for _, c := range cs {
					observe(c, sub[k])
				}
			}
		}
	}

	n := len(m.Scores)
	m.QuestionsAnswered = n
	m.ConfidenceLevel = math.Min(float64(n)/float64(cfg.FullConfidenceAt), 1)
	if n == 0 {
		return m
	}
	m.RollingAverage = m.RollingAverages[n-1]
	if n >= 2 {
		m.Trend = trend(m.Scores[n-1], m.RollingAverages[n-2], cfg.TrendEpsilon)
	}

	for c, sum := range sums {
		if sum/float64(counts[c]) >= cfg.MidThreshold {
			m.Strengths = append(m.Strengths, c)
		} else {
			m.Weaknesses = append(m.Weaknesses, c)
		}
	}
	sort.Slice(m.Strengths, func(i, j int) bool { return m.Strengths[i] < m.Strengths[j] })
	sort.Slice(m.Weaknesses, func(i, j int) bool { return m.Weaknesses[i] < m.Weaknesses[j] })
	return m
}

func rollingMean(scores []float64, window int) float64 {
	start := len(scores) - window
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, s := range scores[start:] {
		sum += s
	}
	return sum / float64(len(scores)-start)
}

func trend(latest, previousAverage, epsilon float64) datatypes.Trend {
	switch {
	case latest > previousAverage+epsilon:
		return datatypes.TrendImproving
	case latest < previousAverage-epsilon:
		return datatypes.TrendDeclining
	default:
		return datatypes.TrendStable
	}
}

func containsDimension(ds []datatypes.GRAILDimension, d datatypes.GRAILDimension) bool {
	for _, x := range ds {
		if x == d {
			return true
		}
	}
	return false
}
