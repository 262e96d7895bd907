// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package questions

import (
	"strings"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// Progression is the category order favoured for each level when planning.
var Progression = map[datatypes.Difficulty][]datatypes.Category{
	datatypes.DifficultyJunior: {
		datatypes.CategoryLeadership, datatypes.CategoryPrioritization, datatypes.CategoryStakeholderManagement,
	},
	datatypes.DifficultyMid: {
		datatypes.CategoryPrioritization, datatypes.CategoryStakeholderManagement,
		datatypes.CategoryProductDecisions, datatypes.CategoryLeadership,
	},
	datatypes.DifficultySenior: {
		datatypes.CategoryLeadership, datatypes.CategoryStakeholderManagement,
		datatypes.CategoryFailureRecovery, datatypes.CategoryProductDecisions,
	},
}

// categoryKeywords is checked in order; the first hit wins.
var categoryKeywords = []struct {
	category datatypes.Category
	words    []string
}{
	{datatypes.CategoryConflictResolution, []string{"conflict", "disagreement", "disagreed"}},
	{datatypes.CategoryLeadership, []string{"leadership", "team", "lead "}},
	{datatypes.CategoryStakeholderManagement, []string{"stakeholder"}},
	{datatypes.CategoryProductDecisions, []string{"product", "feature"}},
	{datatypes.CategoryFailureRecovery, []string{"failure", "mistake", "failed"}},
}

// InferCategory guesses the category of free-form question text. Text with no
// recognised keyword is treated as prioritization.
func InferCategory(text string) datatypes.Category {
	lower := strings.ToLower(text)
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return datatypes.CategoryPrioritization
}

// CustomQuestion builds the question for a candidate-supplied prompt.
func CustomQuestion(sessionID, text string, level datatypes.Difficulty) datatypes.Question {
	return datatypes.Question{
		ID:               "custom_" + sessionID,
		Text:             strings.TrimSpace(text),
		Category:         InferCategory(text),
		Difficulty:       level,
		FollowUpStrategy: datatypes.FollowUpDeepDive,
		Custom:           true,
	}
}

// Plan builds the question queue for a new session.
//
// Description:
//
//	The custom question, when given, comes first. Then one question per
//	category, following the level's progression and then the remaining
//	categories, drawn from questions at the session level or at mid level.
//	Remaining slots are filled from the level-appropriate questions in bank
//	order, then from any other question. The queue is shorter than
//	TotalQuestions only when the bank runs out.
//
// Inputs:
//
//	pool - Candidate questions in bank order.
//	cfg - The validated session configuration.
//	sessionID - Used to identify the custom question.
//
// Outputs:
//
//	[]datatypes.Question - The planned queue.
func Plan(pool []datatypes.Question, cfg datatypes.SessionConfig, sessionID string) []datatypes.Question {
	total := cfg.TotalQuestions
	queue := make([]datatypes.Question, 0, total)
	used := make(map[string]bool, total)
	usedCategory := make(map[datatypes.Category]bool)

	add := func(q datatypes.Question) {
		queue = append(queue, q)
		used[q.ID] = true
		usedCategory[q.Category] = true
	}

	if strings.TrimSpace(cfg.CustomQuestion) != "" && total > 0 {
		add(CustomQuestion(sessionID, cfg.CustomQuestion, cfg.Difficulty))
	}

	appropriate := func(q datatypes.Question) bool {
		return q.Difficulty == cfg.Difficulty || q.Difficulty == datatypes.DifficultyMid
	}

	order := categoryOrder(cfg.Difficulty)
	for _, c := range order {
		if len(queue) >= total {
			break
		}
		if usedCategory[c] {
			continue
		}
		if q, ok := pick(pool, used, func(q datatypes.Question) bool {
			return q.Category == c && q.Difficulty == cfg.Difficulty
		}); ok {
			add(q)
			continue
		}
		if q, ok := pick(pool, used, func(q datatypes.Question) bool {
			return q.Category == c && appropriate(q)
		}); ok {
			add(q)
		}
	}

	for _, match := range []func(datatypes.Question) bool{appropriate, func(datatypes.Question) bool { return true }} {
		for _, q := range pool {
			if len(queue) >= total {
				return queue
			}
			if !used[q.ID] && match(q) {
				add(q)
			}
		}
	}
	return queue
}

// RequiredCategories returns the distinct categories of a queue in order.
func RequiredCategories(queue []datatypes.Question) []datatypes.Category {
	seen := make(map[datatypes.Category]bool)
	var out []datatypes.Category
	for _, q := range queue {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	return out
}

// categoryOrder is the level progression followed by every other category.
func categoryOrder(level datatypes.Difficulty) []datatypes.Category {
	prog, ok := Progression[level]
	if !ok {
		prog = Progression[datatypes.DifficultyMid]
	}
	out := append([]datatypes.Category(nil), prog...)
	in := make(map[datatypes.Category]bool, len(out))
	for _, c := range out {
		in[c] = true
	}
	for _, c := range datatypes.AllCategories {
		if !in[c] {
			out = append(out, c)
		}
	}
	return out
}

func pick(pool []datatypes.Question, used map[string]bool, match func(datatypes.Question) bool) (datatypes.Question, bool) {
	for _, q := range pool {
		if !used[q.ID] && match(q) {
			return q, true
		}
	}
	return datatypes.Question{}, false
}
