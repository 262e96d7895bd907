// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collaborator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// roleFocus describes what each specialist looks for.
var roleFocus = map[datatypes.AgentRole]string{
	datatypes.RoleTechnical:     "problem decomposition, technical trade-offs, data-driven reasoning and system thinking",
	datatypes.RoleLeadership:    "influence without authority, team alignment, ownership and conflict handling",
	datatypes.RoleCommunication: "structure (STAR), clarity, concision and audience awareness",
	datatypes.RoleStrategic:     "business context, long-term vision, prioritization and opportunity cost",
	datatypes.RoleCustomerFocus: "user empathy, customer evidence, outcome metrics and feedback loops",
}

// dimensionFocus describes what each GRAIL dimension checks.
var dimensionFocus = map[datatypes.GRAILDimension]string{
	datatypes.DimensionGoal:      "a clear, measurable goal tied to business or user value",
	datatypes.DimensionResources: "the team, budget, time and constraints and how they were used",
	datatypes.DimensionActions:   "specific actions the candidate personally took and why",
	datatypes.DimensionImpact:    "quantified outcomes and how success was measured",
	datatypes.DimensionLearning:  "reflection, what they would change and how they iterated",
}

// outputSchema lists the JSON fields expected per task.
var outputSchema = map[Task]string{
	TaskBaseline: `{"score": 0-10, "sub_scores": {"completeness","clarity","depth","impact","leadership": 0-10},` +
		` "strengths": [...], "improvements": [...], "follow_up_needed": bool, "rationale": "..."}`,
	TaskAgent: `{"score": 0-10, "confidence": 0-1, "observations": [3-5], "strengths": [2-3],` +
		` "improvements": [2-3], "aspect_scores": {"<aspect>": 0-10}, "rationale": "..."}`,
	TaskGRAILDimension: `{"score": 0-10, "evidence": ["<quoted excerpt>"], "missing_elements": [...], "rationale": "..."}`,
	TaskTemplateAnswer: `{"text": "<exemplary STAR answer>"}`,
	TaskCoaching:       `{"text": "<coaching paragraph>"}`,
	TaskTips:           `{"items": ["<tip>", ...]}`,
	TaskFollowUps:      `{"items": ["<question>", ...]}`,
}

// BuildPrompt renders the prompt for a task. The wording is deliberately
// plain; every prompt ends with the JSON shape the parser expects.
func BuildPrompt(pc PromptContext) string {
	var b strings.Builder

	switch pc.Task {
	case TaskAgent:
		fmt.Fprintf(&b, "You are a product-management interview specialist focused on %s.\n", roleFocus[pc.Role])
		b.WriteString("Score the answer strictly from that perspective.\n")
	case TaskGRAILDimension:
		fmt.Fprintf(&b, "Score the %q dimension of the GRAIL rubric: %s.\n", pc.Dimension, dimensionFocus[pc.Dimension])
		b.WriteString("Quote evidence verbatim from the answer and list what is missing.\n")
	case TaskBaseline:
		b.WriteString("Evaluate this behavioral interview answer for a product manager role.\n")
	case TaskTemplateAnswer:
		fmt.Fprintf(&b, "Write an exemplary %s-level STAR answer to the question below.\n", pc.Question.Difficulty)
	case TaskCoaching:
		fmt.Fprintf(&b, "Write the %q part of coaching feedback for a %s candidate.\n", pc.Section, pc.Band)
	case TaskTips:
		b.WriteString("List up to five specific, actionable improvement tips for this answer.\n")
	case TaskFollowUps:
		fmt.Fprintf(&b, "Write three follow-up questions using the %q follow-up strategy.\n", pc.Question.FollowUpStrategy)
	}

	if pc.Guidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", pc.Guidance)
	}
	if pc.Focus != "" {
		fmt.Fprintf(&b, "Focus narrowly on: %s\n", pc.Focus)
	}

	fmt.Fprintf(&b, "\nQuestion (%s, %s): %s\n", pc.Question.Category, pc.Question.Difficulty, pc.Question.Text)
	if pc.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", pc.Answer)
	}
	if len(pc.Evidence) > 0 {
		b.WriteString("Evaluation so far:\n")
		for _, e := range pc.Evidence {
			fmt.Fprintf(&b, "- %s\n", e)
		}
	}
	if len(pc.Context) > 0 {
		b.WriteString("Reference material:\n")
		for i, c := range pc.Context {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- %s\n", truncate(c.Text, 600))
		}
	}

	fmt.Fprintf(&b, "\nRespond with only a JSON object of the form %s\n", outputSchema[pc.Task])
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
