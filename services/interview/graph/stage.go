// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph drives one interview turn through its named stages.
//
// # Description
//
// A turn is a walk over a small finite graph. Stages are identified by the
// Stage enum and the walk is governed by an explicit transition table: Next
// is a pure function of the current stage and the turn state, so the only
// loop in the graph (adaptive_select routing back to retrieve_context for a
// deep dive) is visible in one place and bounded by Guards.
//
// # Thread Safety
//
// Next and the table are immutable. An Executor is safe for concurrent use
// across sessions; a single Turn must only be driven by one goroutine.
package graph

import "github.com/AleutianAI/AleutianCoach/services/interview/datatypes"

// Stage identifies a processing step of a turn.
type Stage string

const (
	StageParseAnswer     Stage = "parse_answer"
	StageRetrieveContext Stage = "retrieve_context"
	StageTemplateAnswer  Stage = "generate_template_answer"
	StageBaseline        Stage = "baseline_evaluate"
	StageMultiAgent      Stage = "multi_agent_evaluate"
	StageGRAIL           Stage = "grail_evaluate"
	StageCoaching        Stage = "generate_coaching"
	StageTips            Stage = "generate_tips"
	StageFollowUps       Stage = "generate_followups"
	StageAdaptiveSelect  Stage = "adaptive_select"
	StageEnd             Stage = "end"
)

// String returns the stage name.
func (s Stage) String() string {
	return string(s)
}

// IsTerminal reports whether the walk stops at s.
func (s Stage) IsTerminal() bool {
	return s == StageEnd
}

// Stages lists every executable stage in canonical order.
var Stages = []Stage{
	StageParseAnswer,
	StageRetrieveContext,
	StageTemplateAnswer,
	StageBaseline,
	StageMultiAgent,
	StageGRAIL,
	StageCoaching,
	StageTips,
	StageFollowUps,
	StageAdaptiveSelect,
}

// TurnState is the part of a turn the transition table depends on.
type TurnState struct {
	Features      datatypes.EnabledFeatures
	Decision      *datatypes.AdaptiveDecision
	ForceConclude bool
}

type guard func(*TurnState) bool

type edge struct {
	to   Stage
	when guard
}

func always(*TurnState) bool              { return true }
func multiAgentEnabled(s *TurnState) bool { return s.Features.MultiAgent }
func grailEnabled(s *TurnState) bool      { return s.Features.GRAIL }
func coachingEnabled(s *TurnState) bool   { return s.Features.Coaching }
func adaptiveEnabled(s *TurnState) bool   { return s.Features.Adaptive }
func deepDiveRequested(s *TurnState) bool {
	return s.Decision != nil && s.Decision.Action == datatypes.ActionDeepDive
}

// transitions is the complete routing table. Edges are tried in order and the
// first whose guard holds wins.
var transitions = map[Stage][]edge{
	StageParseAnswer:     {{StageRetrieveContext, always}},
	StageRetrieveContext: {{StageTemplateAnswer, always}},
	StageTemplateAnswer:  {{StageBaseline, always}},
	StageBaseline: {
		{StageMultiAgent, multiAgentEnabled},
		{StageGRAIL, grailEnabled},
		{StageCoaching, coachingEnabled},
		{StageTips, always},
	},
	StageMultiAgent: {
		{StageGRAIL, grailEnabled},
		{StageCoaching, coachingEnabled},
		{StageTips, always},
	},
	StageGRAIL: {
		{StageCoaching, coachingEnabled},
		{StageTips, always},
	},
	StageCoaching: {{StageTips, always}},
	StageTips:     {{StageFollowUps, always}},
	StageFollowUps: {
		{StageAdaptiveSelect, adaptiveEnabled},
		{StageEnd, always},
	},
	StageAdaptiveSelect: {
		{StageRetrieveContext, deepDiveRequested},
		{StageEnd, always},
	},
}

// Next returns the stage that follows from in the given state. A forced
// conclusion, a nil state, or an unknown stage all route to StageEnd.
func Next(from Stage, state *TurnState) Stage {
	if state == nil || state.ForceConclude {
		return StageEnd
	}
	for _, e := range transitions[from] {
		if e.when(state) {
			return e.to
		}
	}
	return StageEnd
}
