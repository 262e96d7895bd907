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
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// StaticRetriever scores an in-memory passage list by term overlap. It backs
// the engine when no vector store is configured.
type StaticRetriever struct {
	items []KnowledgeItem
	terms [][]string
}

// NewStaticRetriever indexes items for keyword search.
func NewStaticRetriever(items []KnowledgeItem) *StaticRetriever {
	terms := make([][]string, len(items))
	for i, it := range items {
		terms[i] = tokenize(it.Title + " " + it.Content)
	}
	return &StaticRetriever{items: items, terms: terms}
}

// Retrieve returns up to k passages whose terms overlap the query.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string, k int, opts ...RetrieveOption) ([]datatypes.RetrievedContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = 5
	}
	o := applyRetrieveOptions(opts)

	queryTerms := make(map[string]bool)
	for _, t := range tokenize(query) {
		queryTerms[t] = true
	}
	if len(queryTerms) == 0 {
		return []datatypes.RetrievedContext{}, nil
	}

	out := make([]datatypes.RetrievedContext, 0, k)
	for i, it := range r.items {
		if o.Category != "" && it.Category != "" && it.Category != o.Category {
			continue
		}
		if o.Band != "" && len(it.Bands) > 0 && !containsBand(it.Bands, o.Band) {
			continue
		}
		hits := 0
		for _, t := range r.terms[i] {
			if queryTerms[t] {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		out = append(out, datatypes.RetrievedContext{
			Title:     it.Title,
			Text:      it.Content,
			Source:    it.Source,
			Relevance: float64(hits) / float64(len(r.terms[i])),
		})
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Relevance != out[b].Relevance {
			return out[a].Relevance > out[b].Relevance
		}
		return out[a].Title < out[b].Title
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func containsBand(bands []datatypes.PerformanceBand, b datatypes.PerformanceBand) bool {
	for _, x := range bands {
		if x == b {
			return true
		}
	}
	return false
}

// stopwords are dropped from both queries and passages.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true, "this": true,
	"you": true, "your": true, "was": true, "are": true, "how": true, "what": true,
	"tell": true, "about": true, "time": true, "when": true, "from": true, "have": true,
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > 2 && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

// DefaultKnowledge returns the built-in coaching passages.
func DefaultKnowledge() []KnowledgeItem {
	all := []datatypes.PerformanceBand{
		datatypes.PerformanceStruggling, datatypes.PerformanceDeveloping,
		datatypes.PerformanceStrong, datatypes.PerformanceExcellent,
	}
	early := all[:2]
	late := all[2:]

	return []KnowledgeItem{
		{
			Title:   "STAR structure basics",
			Content: "Structure every behavioral answer as Situation, Task, Action, Result. Spend most of the time on the actions you personally took and close with a measurable result.",
			Source:  SourceCoach, Bands: early,
		},
		{
			Title:   "Quantify impact",
			Content: "Replace adjectives with numbers. State the metric, the baseline, the change and the time frame, for example retention improved from 62% to 71% within one quarter.",
			Source:  SourceCoach, Bands: all,
		},
		{
			Title:   "Leading without authority",
			Content: "Strong leadership answers show how you aligned a team you did not manage: shared goals, data that changed minds, and explicit commitments from each stakeholder.",
			Source:  SourceCoach, Category: datatypes.CategoryLeadership, Bands: all,
		},
		{
			Title:   "Prioritization frameworks",
			Content: "Name the framework you used (RICE, impact versus effort, cost of delay), the inputs you gathered, and the trade-off you consciously accepted when you said no.",
			Source:  "framework", Category: datatypes.CategoryPrioritization, Bands: all,
		},
		{
			Title:   "Stakeholder mapping",
			Content: "Identify stakeholders by influence and interest, tailor the message to each group, and describe how you kept them aligned as the plan changed.",
			Source:  "framework", Category: datatypes.CategoryStakeholderManagement, Bands: all,
		},
		{
			Title:   "Owning a failure",
			Content: "Failure stories land when you own the decision, explain what signal you missed, describe the recovery plan, and show the process change that prevents a repeat.",
			Source:  SourceCoach, Category: datatypes.CategoryFailureRecovery, Bands: all,
		},
		{
			Title:   "Product decision narratives",
			Content: "Explain the options you considered, the customer evidence behind each, the decision criteria, and how you validated the outcome after launch.",
			Source:  "article", Category: datatypes.CategoryProductDecisions, Bands: all,
		},
		{
			Title:   "Resolving conflict",
			Content: "Describe the disagreement neutrally, the interests behind each position, how you found common ground, and the working relationship afterwards.",
			Source:  SourceCoach, Category: datatypes.CategoryConflictResolution, Bands: all,
		},
		{
			Title:   "Senior-level signals",
			Content: "Senior candidates connect the story to company strategy, discuss second-order effects, and show how they grew other people while delivering the result.",
			Source:  SourceCoach, Bands: late,
		},
		{
			Title:   "Reflection and learning",
			Content: "Close with what you learned and what you now do differently. Concrete behavior changes are more convincing than general statements about growth.",
			Source:  "article", Bands: all,
		},
	}
}
