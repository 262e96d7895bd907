// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coaching composes the four-part feedback message for a turn.
//
// The package owns the deterministic parts: banding the blended score,
// choosing tone guidance, filtering and ordering knowledge-base passages and
// assembling sections in fixed order. The prose of each section comes from the
// evaluation collaborator, with deterministic fallbacks when it fails.
package coaching

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

var tracer = otel.Tracer("aleutian.interview.coaching")

// Section names passed to the collaborator, in presentation order.
const (
	SectionPositive      = "positive_recognition"
	SectionImprovements  = "improvement_areas"
	SectionNextSteps     = "next_steps"
	SectionEncouragement = "encouragement"
)

// Sections lists the section names in presentation order.
var Sections = []string{SectionPositive, SectionImprovements, SectionNextSteps, SectionEncouragement}

// Band floors for the blended score.
const (
	developingFloor = 5.0
	strongFloor     = 7.0
	excellentFloor  = 8.5
)

// Config tunes knowledge-base retrieval for coaching.
type Config struct {
	// TopK passages requested before source prioritisation. Default: 10.
	TopK int `yaml:"top_k"`

	// RetrievalTimeout bounds the knowledge-base call. Default: 5s.
	RetrievalTimeout time.Duration `yaml:"retrieval_timeout"`

	// CoachSources and OtherSources cap the prioritised passages.
	// Defaults: 3 and 2.
	CoachSources int `yaml:"coach_sources"`
	OtherSources int `yaml:"other_sources"`
}

// DefaultConfig returns the standard coaching configuration.
func DefaultConfig() Config {
	return Config{TopK: 10, RetrievalTimeout: 5 * time.Second, CoachSources: 3, OtherSources: 2}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = d.RetrievalTimeout
	}
	if c.CoachSources <= 0 {
		c.CoachSources = d.CoachSources
	}
	if c.OtherSources <= 0 {
		c.OtherSources = d.OtherSources
	}
	return c
}

// BandFor maps a blended score to its performance band.
func BandFor(score float64) datatypes.PerformanceBand {
	switch {
	case score >= excellentFloor:
		return datatypes.PerformanceExcellent
	case score >= strongFloor:
		return datatypes.PerformanceStrong
	case score >= developingFloor:
		return datatypes.PerformanceDeveloping
	default:
		return datatypes.PerformanceStruggling
	}
}

// BlendedScore is the mean of whichever of the baseline overall, consensus
// final score and GRAIL overall are present. ok is false when none are.
func BlendedScore(b *datatypes.BaselineEvaluation, c *datatypes.ConsensusEvaluation, g *datatypes.GRAILEvaluation) (score float64, ok bool) {
	var sum float64
	var n int
	if b != nil {
		sum += b.OverallScore
		n++
	}
	if c != nil && len(c.Agents) > 0 {
		sum += c.FinalScore
		n++
	}
	if g != nil {
		sum += g.OverallScore
		n++
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

var toneGuidance = map[datatypes.PerformanceBand]string{
	datatypes.PerformanceStruggling: "Be extra encouraging and break down concepts simply. Focus on fundamentals.",
	datatypes.PerformanceDeveloping: "Balance encouragement with specific improvement areas. Provide clear examples.",
	datatypes.PerformanceStrong:     "Challenge them to go deeper. Push for more strategic thinking.",
	datatypes.PerformanceExcellent:  "Focus on nuanced improvements and senior-level considerations.",
}

// ToneGuidance returns the instruction that sets the coaching tone for a band.
func ToneGuidance(band datatypes.PerformanceBand) string {
	if g, ok := toneGuidance[band]; ok {
		return g
	}
	return toneGuidance[datatypes.PerformanceDeveloping]
}

// IsCoachSource reports whether a passage comes from coach-authored material.
func IsCoachSource(rc datatypes.RetrievedContext) bool {
	return strings.Contains(strings.ToLower(rc.Source), collaborator.SourceCoach)
}

// PrioritizeSources orders passages with coach-authored ones first. Each group
// is sorted by descending relevance and capped at maxCoach and maxOther.
func PrioritizeSources(passages []datatypes.RetrievedContext, maxCoach, maxOther int) []datatypes.RetrievedContext {
	var coach, other []datatypes.RetrievedContext
	for _, p := range passages {
		if IsCoachSource(p) {
			coach = append(coach, p)
		} else {
			other = append(other, p)
		}
	}
	byRelevance := func(s []datatypes.RetrievedContext) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Relevance > s[j].Relevance })
	}
	byRelevance(coach)
	byRelevance(other)
	if len(coach) > maxCoach {
		coach = coach[:maxCoach]
	}
	if len(other) > maxOther {
		other = other[:maxOther]
	}
	return append(coach, other...)
}

// Encouragement builds the closing line from the score and the top
// improvement area.
func Encouragement(score float64, improvements []string) string {
	var base string
	switch {
	case score < 5:
		base = "You're building important foundations. "
	case score < 7:
		base = "You're developing strong PM instincts. "
	case score < 9:
		base = "You're demonstrating excellent PM thinking. "
	default:
		base = "You're showing exceptional PM leadership. "
	}
	if len(improvements) > 0 && strings.TrimSpace(improvements[0]) != "" {
		return base + fmt.Sprintf("Focus on %s to take your answer to the next level.", strings.ToLower(strings.TrimSpace(improvements[0])))
	}
	return base + "Keep practicing to refine your storytelling."
}

// AdaptFollowUps reshapes follow-up questions for a band. At most three are
// returned.
func AdaptFollowUps(band datatypes.PerformanceBand, followUps []string) []string {
	first := func(fallback string) string {
		if len(followUps) > 0 {
			return followUps[0]
		}
		return fallback
	}

	var adapted []string
	switch band {
	case datatypes.PerformanceStruggling:
		adapted = []string{
			"Let me help you structure this better. " + first("Can you break down your approach step by step?"),
			"What specific challenge did you face, and how did you initially approach it?",
			"Think about the stakeholders involved. Who were they and what did they need?",
		}
	case datatypes.PerformanceDeveloping:
		adapted = []string{
			first("Can you quantify the impact of your actions?"),
			"What alternative approaches did you consider?",
			"How did you measure success in this situation?",
		}
	case datatypes.PerformanceStrong:
		adapted = []string{
			"How would you handle this differently at a larger scale?",
			"What systemic changes did you implement to prevent similar issues?",
			first("How did you influence without authority?"),
		}
	default:
		if len(followUps) > 0 {
			adapted = append([]string(nil), followUps...)
		} else {
			adapted = []string{
				"What was the strategic implication of your decision?",
				"How did this experience shape your PM philosophy?",
				"What would you advise other PMs facing similar situations?",
			}
		}
	}
	if len(adapted) > 3 {
		adapted = adapted[:3]
	}
	return adapted
}

// Input is everything the generator needs for one turn.
type Input struct {
	Question  datatypes.Question
	Answer    string
	Baseline  *datatypes.BaselineEvaluation
	Consensus *datatypes.ConsensusEvaluation
	GRAIL     *datatypes.GRAILEvaluation

	// History is the read-only snapshot of prior turns.
	History []datatypes.EvaluationRecord

	// FollowUps are the turn's raw follow-up questions, adapted by band.
	FollowUps []string
}

// Generator composes coaching feedback.
type Generator struct {
	collab    collaborator.Evaluator
	retriever collaborator.Retriever
	cfg       Config
	logger    *slog.Logger
}

// New creates a coaching generator. retriever may be nil, in which case no
// knowledge-base patterns are surfaced.
func New(collab collaborator.Evaluator, retriever collaborator.Retriever, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{collab: collab, retriever: retriever, cfg: cfg.withDefaults(), logger: logger}
}

// Generate builds the four-part feedback for a turn.
//
// Description:
//
//	Bands the blended score, fetches knowledge-base passages filtered by
//	band, orders them coach-first and asks the collaborator for each
//	section in turn. A section the collaborator cannot produce falls back
//	to deterministic text built from the evaluation evidence, so the
//	result always has all four sections.
//
// Outputs:
//
//	*datatypes.CoachingFeedback - Always non-nil.
//	error - The context error if ctx ended while generating.
func (g *Generator) Generate(ctx context.Context, in Input) (*datatypes.CoachingFeedback, error) {
	score, _ := BlendedScore(in.Baseline, in.Consensus, in.GRAIL)
	band := BandFor(score)

	ctx, span := tracer.Start(ctx, "coaching.Generate",
		trace.WithAttributes(
			attribute.Float64("coaching.blended_score", score),
			attribute.String("coaching.band", string(band)),
		),
	)
	defer span.End()

	strengths, improvements, steps := g.evidence(in)
	passages := g.knowledge(ctx, in, band, improvements)

	fb := &datatypes.CoachingFeedback{
		Band:              band,
		BlendedScore:      score,
		FollowUpQuestions: AdaptFollowUps(band, in.FollowUps),
	}
	for _, p := range passages {
		fb.KnowledgeSources = append(fb.KnowledgeSources, sourceLabel(p))
	}

	evidence := append(append([]string(nil), strengths...), improvements...)
	evidence = append(evidence, historyNotes(in.History)...)

	fallbacks := map[string]string{
		SectionPositive:      positiveFallback(strengths),
		SectionImprovements:  listFallback("One area to develop further would be: ", improvements, "Add more specific detail on your own actions and their results."),
		SectionNextSteps:     listFallback("Next time, consider: ", steps, "Practice structuring the story with a clear goal, actions and measurable impact."),
		SectionEncouragement: Encouragement(score, improvements),
	}

	out := make(map[string]string, len(Sections))
	for _, section := range Sections {
		out[section] = g.section(ctx, in, band, section, evidence, passages, fallbacks[section])
	}
	fb.PositiveRecognition = out[SectionPositive]
	fb.ImprovementAreas = out[SectionImprovements]
	fb.NextSteps = out[SectionNextSteps]
	fb.Encouragement = out[SectionEncouragement]

	return fb, ctx.Err()
}

func (g *Generator) section(ctx context.Context, in Input, band datatypes.PerformanceBand, section string, evidence []string, passages []datatypes.RetrievedContext, fallback string) string {
	if g.collab == nil || ctx.Err() != nil {
		return fallback
	}
	res, err := g.collab.Evaluate(ctx, collaborator.PromptContext{
		Task:     collaborator.TaskCoaching,
		Question: in.Question,
		Answer:   in.Answer,
		Context:  passages,
		Section:  section,
		Band:     band,
		Guidance: ToneGuidance(band),
		Evidence: evidence,
	})
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty coaching result", datatypes.ErrEvaluationParse)
	}
	if err != nil {
		g.logger.Warn("coaching section fell back",
			slog.String("section", section),
			slog.String("kind", string(datatypes.KindOf(err))),
		)
		return fallback
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		return text
	}
	if len(res.Items) > 0 {
		return strings.Join(res.Items, " ")
	}
	return fallback
}

// knowledge fetches band-filtered passages. Failures yield no passages.
func (g *Generator) knowledge(ctx context.Context, in Input, band datatypes.PerformanceBand, improvements []string) []datatypes.RetrievedContext {
	if g.retriever == nil {
		return nil
	}
	rctx, cancel := context.WithTimeout(ctx, g.cfg.RetrievalTimeout)
	defer cancel()

	query := strings.TrimSpace(in.Question.Text + " " + strings.Join(improvements, " "))
	passages, err := g.retriever.Retrieve(rctx, query, g.cfg.TopK, collaborator.WithBand(band))
	if err != nil {
		g.logger.Warn("coaching knowledge retrieval failed", slog.String("error", err.Error()))
		return nil
	}
	return PrioritizeSources(passages, g.cfg.CoachSources, g.cfg.OtherSources)
}

// evidence gathers strengths, improvement areas and next steps from the
// available evaluations, de-duplicated in order of appearance.
func (g *Generator) evidence(in Input) (strengths, improvements, steps []string) {
	if in.Consensus != nil {
		strengths = append(strengths, in.Consensus.Strengths...)
		improvements = append(improvements, in.Consensus.Improvements...)
	}
	if in.Baseline != nil {
		strengths = append(strengths, in.Baseline.Strengths...)
		improvements = append(improvements, in.Baseline.ImprovementAreas...)
	}
	if in.GRAIL != nil {
		steps = append(steps, in.GRAIL.ImprovementRecommendations...)
	}
	return dedupe(strengths), dedupe(improvements), dedupe(steps)
}

func historyNotes(history []datatypes.EvaluationRecord) []string {
	if len(history) == 0 {
		return nil
	}
	last := history[len(history)-1]
	return []string{fmt.Sprintf("Previous answer (%s) scored %.1f/10", last.Question.Category, last.Score)}
}

func positiveFallback(strengths []string) string {
	if len(strengths) == 0 {
		return "Thank you for sharing a concrete example. You're on the right track with telling a real story."
	}
	return "What stood out positively was " + lowerFirst(strengths[0]) + "."
}

func listFallback(prefix string, items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	if len(items) > 3 {
		items = items[:3]
	}
	return prefix + strings.Join(items, "; ") + "."
}

func sourceLabel(p datatypes.RetrievedContext) string {
	switch {
	case p.Title != "" && p.Source != "":
		return p.Title + " (" + p.Source + ")"
	case p.Title != "":
		return p.Title
	default:
		return p.Source
	}
}

func lowerFirst(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ".")
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		key := strings.ToLower(strings.TrimSpace(s))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
