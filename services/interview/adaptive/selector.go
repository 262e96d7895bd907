// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package adaptive

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// Input is the read-only view the selector decides on.
type Input struct {
	// Current is the record of the turn in progress, scored but not yet
	// appended to the history.
	Current *datatypes.EvaluationRecord

	// History is the snapshot of earlier records taken at turn start.
	History []datatypes.EvaluationRecord

	// Remaining is the planned queue after the current question.
	Remaining []datatypes.Question

	// Pool holds bank questions that are neither asked nor queued.
	Pool []datatypes.Question

	// RequiredCategories must all be visited before the session may
	// conclude.
	RequiredCategories []datatypes.Category

	// Difficulty is the session's current difficulty.
	Difficulty datatypes.Difficulty

	// TotalQuestions caps the session length. Zero means uncapped.
	TotalQuestions int
}

// Selector applies the next-step policy.
//
// Thread Safety: Selector holds no mutable state and is safe for concurrent use.
type Selector struct {
	cfg    Config
	logger *slog.Logger
}

// NewSelector creates a selector.
func NewSelector(cfg Config, logger *slog.Logger) *Selector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Selector{cfg: cfg.withDefaults(), logger: logger}
}

// Config returns the effective configuration.
func (s *Selector) Config() Config {
	return s.cfg
}

// Decide picks the next action for the session.
//
// Description:
//
//	When the slots left under TotalQuestions no longer exceed the unvisited
//	required categories, the next question always comes from one of them
//	and only a deep dive, which asks nothing new, may precede it. Otherwise
//	rules are checked in priority order once MinQuestions answers
//	exist: sustained excellence with every required category visited
//	concludes; a score under the struggle threshold steps difficulty down
//	and stays in the category; an exhausted category switches to another;
//	a high score resting on shallow evidence earns a deep dive into the
//	weakest dimension; a high and improving score steps difficulty up when
//	a harder question exists; anything else continues. Conclude is never
//	returned while a required category is unvisited and a question for it
//	can still be asked.
//
// Inputs:
//
//	in - The turn view. in.Current must be non-nil.
//
// Outputs:
//
//	datatypes.AdaptiveDecision - The verdict.
//	datatypes.PerformanceMetrics - Metrics including the current record.
func (s *Selector) Decide(in Input) (datatypes.AdaptiveDecision, datatypes.PerformanceMetrics) {
	records := make([]datatypes.EvaluationRecord, 0, len(in.History)+1)
	records = append(records, in.History...)
	if in.Current != nil {
		records = append(records, *in.Current)
	}
	metrics := ComputeMetrics(records, s.cfg)

	if in.Current == nil {
		return s.next(in, "No answer to assess"), metrics
	}

	decision := s.decide(in, metrics)
	s.logger.Debug("adaptive decision",
		slog.String("action", string(decision.Action)),
		slog.String("difficulty_delta", string(decision.DifficultyDelta)),
		slog.String("focus", decision.FocusArea),
		slog.Float64("rolling_average", metrics.RollingAverage),
		slog.String("trend", string(metrics.Trend)),
	)
	return decision, metrics
}

func (s *Selector) decide(in Input, m datatypes.PerformanceMetrics) datatypes.AdaptiveDecision {
	cur := in.Current
	category := cur.Question.Category
	uncovered := s.uncovered(in)
	forced, tight := s.coverage(in, uncovered)

	if m.QuestionsAnswered < s.cfg.MinQuestions {
		if tight {
			return forced
		}
		return s.next(in, "Early interview stage, establishing a baseline")
	}

	if s.excellent(m) {
		if len(uncovered) == 0 {
			return datatypes.AdaptiveDecision{
				Action:          datatypes.ActionConclude,
				DifficultyDelta: datatypes.DeltaSame,
				Reasoning: fmt.Sprintf("Rolling average at or above %.1f for %d consecutive answers with every required category covered",
					s.cfg.ExcellenceThreshold, s.cfg.ExcellenceStreak),
			}
		}
		s.logger.Debug("excellence shortcut blocked by coverage", slog.Int("uncovered", len(uncovered)))
	}

	// A deep dive re-asks the current question and costs no slot.
	if tight {
		if d, ok := s.deepDive(cur); ok {
			return d
		}
		return forced
	}

	if cur.Score < s.cfg.StruggleThreshold {
		easier := in.Difficulty.Easier()
		q := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool {
			return q.Category == category && q.Difficulty.Rank() <= easier.Rank()
		})
		if q == nil {
			q = firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return q.Category == category })
		}
		if q == nil && len(in.Remaining) > 0 {
			q = &in.Remaining[0]
		}
		if q != nil {
			return datatypes.AdaptiveDecision{
				Action:          datatypes.ActionAdjustDifficulty,
				NextQuestion:    copyQuestion(q),
				DifficultyDelta: datatypes.DeltaEasier,
				FocusArea:       string(q.Category),
				Reasoning:       fmt.Sprintf("Score %.1f below %.1f, easing difficulty to %s to build confidence", cur.Score, s.cfg.StruggleThreshold, easier),
			}
		}
	}

	inCategory := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return q.Category == category })
	other := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return q.Category != category })
	if inCategory == nil && other != nil {
		q := s.preferUncovered(in, uncovered)
		if q == nil {
			q = other
		}
		return datatypes.AdaptiveDecision{
			Action:          datatypes.ActionSwitchCategory,
			NextQuestion:    copyQuestion(q),
			DifficultyDelta: datatypes.DeltaSame,
			FocusArea:       string(q.Category),
			Reasoning:       fmt.Sprintf("No questions left in %s, moving to %s", category, q.Category),
		}
	}

	if d, ok := s.deepDive(cur); ok {
		return d
	}

	if cur.Score >= s.cfg.HighThreshold && m.Trend == datatypes.TrendImproving {
		if q := s.harderQuestion(in, uncovered); q != nil {
			return datatypes.AdaptiveDecision{
				Action:          datatypes.ActionAdjustDifficulty,
				NextQuestion:    copyQuestion(q),
				DifficultyDelta: datatypes.DeltaHarder,
				FocusArea:       string(q.Category),
				Reasoning:       fmt.Sprintf("Score %.1f and improving, raising difficulty to %s", cur.Score, in.Difficulty.Harder()),
			}
		}
	}

	return s.next(in, "Continuing with the planned question")
}

// deepDive narrows the current question onto its weakest shallow dimension
// when the score is high.
func (s *Selector) deepDive(cur *datatypes.EvaluationRecord) (datatypes.AdaptiveDecision, bool) {
	if cur.Score < s.cfg.HighThreshold || cur.DeepDives >= s.cfg.MaxDeepDives {
		return datatypes.AdaptiveDecision{}, false
	}
	focus, ok := s.shallowFocus(cur)
	if !ok {
		return datatypes.AdaptiveDecision{}, false
	}
	return datatypes.AdaptiveDecision{
		Action:          datatypes.ActionDeepDive,
		DifficultyDelta: datatypes.DeltaSame,
		FocusArea:       focus,
		Reasoning:       fmt.Sprintf("Strong answer with thin evidence on %s, digging deeper", focus),
	}, true
}

// coverage forces the next question into an unvisited required category once
// the slots left under the session cap cannot spare one for anything else.
// The flag is false while the cap still has room or no such question exists.
func (s *Selector) coverage(in Input, uncovered []datatypes.Category) (datatypes.AdaptiveDecision, bool) {
	if in.TotalQuestions <= 0 || len(uncovered) == 0 {
		return datatypes.AdaptiveDecision{}, false
	}
	slots := in.TotalQuestions - len(in.History) - 1
	if slots <= 0 || slots > len(uncovered) {
		return datatypes.AdaptiveDecision{}, false
	}

	if len(in.Remaining) > 0 && containsCategory(uncovered, in.Remaining[0].Category) {
		q := &in.Remaining[0]
		return datatypes.AdaptiveDecision{
			Action:          datatypes.ActionContinue,
			NextQuestion:    copyQuestion(q),
			DifficultyDelta: datatypes.DeltaSame,
			FocusArea:       string(q.Category),
			Reasoning:       fmt.Sprintf("%d slots left for %d uncovered required categories", slots, len(uncovered)),
		}, true
	}
	q := s.preferUncovered(in, uncovered)
	if q == nil {
		return datatypes.AdaptiveDecision{}, false
	}
	return datatypes.AdaptiveDecision{
		Action:          datatypes.ActionSwitchCategory,
		NextQuestion:    copyQuestion(q),
		DifficultyDelta: datatypes.DeltaSame,
		FocusArea:       string(q.Category),
		Reasoning:       fmt.Sprintf("%d slots left for %d uncovered required categories, moving to %s", slots, len(uncovered), q.Category),
	}, true
}

// harderQuestion returns a question above the session difficulty, preferring
// unvisited required categories and then the current category.
func (s *Selector) harderQuestion(in Input, uncovered []datatypes.Category) *datatypes.Question {
	rank := in.Difficulty.Rank()
	if in.Difficulty.Harder().Rank() <= rank {
		return nil
	}
	harder := func(q datatypes.Question) bool { return q.Difficulty.Rank() > rank }
	for _, c := range uncovered {
		if q := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return harder(q) && q.Category == c }); q != nil {
			return q
		}
	}
	category := in.Current.Question.Category
	if q := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return harder(q) && q.Category == category }); q != nil {
		return q
	}
	return firstMatch(in.Remaining, in.Pool, harder)
}

// next continues with the queue, or resolves an exhausted queue into a
// coverage switch or a conclusion.
func (s *Selector) next(in Input, reason string) datatypes.AdaptiveDecision {
	if len(in.Remaining) > 0 {
		q := &in.Remaining[0]
		return datatypes.AdaptiveDecision{
			Action:          datatypes.ActionContinue,
			NextQuestion:    copyQuestion(q),
			DifficultyDelta: datatypes.DeltaSame,
			FocusArea:       string(q.Category),
			Reasoning:       reason,
		}
	}

	uncovered := s.uncovered(in)
	if len(uncovered) > 0 {
		if q := s.preferUncovered(in, uncovered); q != nil {
			return datatypes.AdaptiveDecision{
				Action:          datatypes.ActionSwitchCategory,
				NextQuestion:    copyQuestion(q),
				DifficultyDelta: datatypes.DeltaSame,
				FocusArea:       string(q.Category),
				Reasoning:       fmt.Sprintf("Queue exhausted, covering required category %s", q.Category),
			}
		}
	}

	return datatypes.AdaptiveDecision{
		Action:          datatypes.ActionConclude,
		DifficultyDelta: datatypes.DeltaSame,
		Reasoning:       "No more questions available",
	}
}

// excellent reports whether the last ExcellenceStreak rolling averages meet
// the excellence threshold.
func (s *Selector) excellent(m datatypes.PerformanceMetrics) bool {
	n := len(m.RollingAverages)
	if n < s.cfg.ExcellenceStreak {
		return false
	}
	for _, avg := range m.RollingAverages[n-s.cfg.ExcellenceStreak:] {
		if avg < s.cfg.ExcellenceThreshold {
			return false
		}
	}
	return true
}

// uncovered returns the required categories not yet answered, counting the
// current question as answered.
func (s *Selector) uncovered(in Input) []datatypes.Category {
	covered := make(map[datatypes.Category]bool, len(in.History)+1)
	for _, rec := range in.History {
		covered[rec.Question.Category] = true
	}
	if in.Current != nil {
		covered[in.Current.Question.Category] = true
	}
	var out []datatypes.Category
	for _, c := range in.RequiredCategories {
		if !covered[c] {
			out = append(out, c)
		}
	}
	return out
}

// preferUncovered returns the first available question in an unvisited
// required category, in required-category order.
func (s *Selector) preferUncovered(in Input, uncovered []datatypes.Category) *datatypes.Question {
	for _, c := range uncovered {
		if q := firstMatch(in.Remaining, in.Pool, func(q datatypes.Question) bool { return q.Category == c }); q != nil {
			return q
		}
	}
	return nil
}

// shallowFocus picks the weakest GRAIL dimension whose evidence is thin or
// whose score is below the mid threshold. Without GRAIL it falls back to the
// baseline follow-up flag.
func (s *Selector) shallowFocus(rec *datatypes.EvaluationRecord) (string, bool) {
	if rec.GRAIL != nil {
		var (
			focus datatypes.GRAILDimension
			best  = -1.0
		)
		for _, d := range datatypes.AllDimensions {
			ds, ok := rec.GRAIL.Dimensions[d]
			if !ok || containsDimension(rec.GRAIL.MissingDimensions, d) {
				continue
			}
			shallow := len(ds.Evidence) < s.cfg.ShallowEvidenceMin || ds.Score < s.cfg.MidThreshold
			if !shallow {
				continue
			}
			if best < 0 || ds.Score < best {
				focus, best = d, ds.Score
			}
		}
		if best >= 0 {
			return string(focus), true
		}
		return "", false
	}
	if rec.Baseline != nil && rec.Baseline.FollowUpNeeded {
		return "depth", true
	}
	return "", false
}

func containsCategory(cs []datatypes.Category, c datatypes.Category) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// firstMatch searches the planned queue before the pool.
func firstMatch(remaining, pool []datatypes.Question, match func(datatypes.Question) bool) *datatypes.Question {
	for _, set := range [][]datatypes.Question{remaining, pool} {
		for i := range set {
			if match(set[i]) {
				return &set[i]
			}
		}
	}
	return nil
}

func copyQuestion(q *datatypes.Question) *datatypes.Question {
	c := *q
	c.EvaluationFocus = append([]string(nil), q.EvaluationFocus...)
	return &c
}

// Describe renders a decision for logs and the CLI.
func Describe(d datatypes.AdaptiveDecision) string {
	var b strings.Builder
	b.WriteString(string(d.Action))
	if d.DifficultyDelta != "" && d.DifficultyDelta != datatypes.DeltaSame {
		fmt.Fprintf(&b, " (%s)", d.DifficultyDelta)
	}
	if d.FocusArea != "" {
		fmt.Fprintf(&b, " focus=%s", d.FocusArea)
	}
	return b.String()
}
