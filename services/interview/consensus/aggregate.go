// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package consensus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

const (
	// AspectOverall is the divergence key for the agents' overall scores.
	AspectOverall = "overall"

	// AspectSplitOpinion is the divergence key for a high/low split.
	AspectSplitOpinion = "split_opinion"
)

// aggregate combines the available agent verdicts.
func (e *Evaluator) aggregate(agents []datatypes.AgentEvaluation) *datatypes.ConsensusEvaluation {
	result := &datatypes.ConsensusEvaluation{
		Agents:            agents,
		DivergentOpinions: map[string][]string{},
		Strengths:         []string{},
		Improvements:      []string{},
		LowConfidence:     len(agents) < e.cfg.MinAgents,
	}
	if len(agents) == 0 {
		result.Recommendation = Recommendation(0, nil, nil)
		return result
	}

	result.FinalScore = e.weightedScore(agents)

	minScore, maxScore := math.Inf(1), math.Inf(-1)
	var confSum float64
	for _, a := range agents {
		minScore = math.Min(minScore, a.Score)
		maxScore = math.Max(maxScore, a.Score)
		confSum += a.Confidence
	}
	meanConf := confSum / float64(len(agents))
	result.Confidence = clip01(e.confidence(meanConf, maxScore-minScore))

	result.DivergentOpinions = e.divergence(agents)
	result.Strengths = consensusItems(agents, func(a datatypes.AgentEvaluation) []string { return a.Strengths }, e.cfg.MaxItems)
	result.Improvements = consensusItems(agents, func(a datatypes.AgentEvaluation) []string { return a.Improvements }, e.cfg.MaxItems)
	result.Recommendation = Recommendation(result.FinalScore, result.Strengths, result.Improvements)
	return result
}

// weightedScore is the weighted mean over the available agents. Weights are
// renormalized to sum to one over those agents; if they sum to zero every
// agent weighs the same.
func (e *Evaluator) weightedScore(agents []datatypes.AgentEvaluation) float64 {
	var num, den float64
	for _, a := range agents {
		w := e.weight(a.Agent)
		num += w * a.Score
		den += w
	}
	if den <= 0 {
		num, den = 0, 0
		for _, a := range agents {
			num += a.Score
			den++
		}
	}
	return num / den
}

func (e *Evaluator) weight(role datatypes.AgentRole) float64 {
	if w, ok := e.cfg.Weights[role]; ok {
		if w < 0 || math.IsNaN(w) {
			return 0
		}
		return w
	}
	return 1
}

// divergence records, per aspect, the agents holding the extreme values when
// the spread exceeds the threshold. Only the smaller extreme group is named
// (both when they are the same size), which singles out the dissenters.
func (e *Evaluator) divergence(agents []datatypes.AgentEvaluation) map[string][]string {
	out := map[string][]string{}

	overall := make(map[datatypes.AgentRole]float64, len(agents))
	aspects := map[string]map[datatypes.AgentRole]float64{}
	for _, a := range agents {
		overall[a.Agent] = a.Score
		for name, v := range a.AspectScores {
			if aspects[name] == nil {
				aspects[name] = map[datatypes.AgentRole]float64{}
			}
			aspects[name][a.Agent] = v
		}
	}

	if names := extremeHolders(overall, e.cfg.DivergenceThreshold); len(names) > 0 {
		out[AspectOverall] = names
	}
	for name, scores := range aspects {
		if len(scores) < 2 {
			continue
		}
		if names := extremeHolders(scores, e.cfg.DivergenceThreshold); len(names) > 0 {
			out[name] = names
		}
	}

	var high, low []string
	for _, a := range agents {
		switch {
		case a.Score >= e.cfg.HighScore:
			high = append(high, string(a.Agent))
		case a.Score < e.cfg.LowScore:
			low = append(low, string(a.Agent))
		}
	}
	if len(high) > 0 && len(low) > 0 {
		out[AspectSplitOpinion] = minority(high, low)
	}
	return out
}

// extremeHolders returns the dissenting extreme group when max-min exceeds
// threshold, or nil.
func extremeHolders(scores map[datatypes.AgentRole]float64, threshold float64) []string {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range scores {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo <= threshold {
		return nil
	}

	var atLo, atHi []string
	for role, v := range scores {
		if v == lo {
			atLo = append(atLo, string(role))
		}
		if v == hi {
			atHi = append(atHi, string(role))
		}
	}
	return minority(atLo, atHi)
}

func minority(a, b []string) []string {
	var out []string
	switch {
	case len(a) < len(b):
		out = append(out, a...)
	case len(b) < len(a):
		out = append(out, b...)
	default:
		out = append(append(out, a...), b...)
	}
	sort.Strings(out)
	return out
}

// consensusItems keeps the items named by at least half of the agents, most
// frequent first, preserving the wording of the first mention.
func consensusItems(agents []datatypes.AgentEvaluation, pick func(datatypes.AgentEvaluation) []string, max int) []string {
	type tally struct {
		text  string
		count int
		first int
	}
	counts := map[string]*tally{}
	order := 0
	for _, a := range agents {
		seen := map[string]bool{}
		for _, item := range pick(a) {
			key := strings.ToLower(strings.TrimSpace(item))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			if t, ok := counts[key]; ok {
				t.count++
				continue
			}
			counts[key] = &tally{text: strings.TrimSpace(item), count: 1, first: order}
			order++
		}
	}

	kept := make([]*tally, 0, len(counts))
	for _, t := range counts {
		if 2*t.count >= len(agents) {
			kept = append(kept, t)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].count != kept[j].count {
			return kept[i].count > kept[j].count
		}
		return kept[i].first < kept[j].first
	})

	out := make([]string, 0, max)
	for i := 0; i < len(kept) && i < max; i++ {
		out = append(out, kept[i].text)
	}
	return out
}

// Recommendation renders the panel's verdict for a final score.
func Recommendation(score float64, strengths, improvements []string) string {
	var level, action string
	switch {
	case score >= 8:
		level = "Strong hire recommendation"
		action = "Move to next round with focus on senior-level challenges"
	case score >= 6.5:
		level = "Positive lean"
		action = "Proceed with additional behavioral validation"
	case score >= 5:
		level = "Borderline"
		action = "Consider for junior role or provide specific feedback for re-application"
	default:
		level = "Not ready"
		action = "Provide developmental feedback and suggest preparation resources"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s. ", level)
	if len(strengths) > 0 {
		fmt.Fprintf(&b, "Strong in: %s. ", strings.Join(firstN(strengths, 2), ", "))
	}
	if len(improvements) > 0 {
		fmt.Fprintf(&b, "Development areas: %s. ", strings.Join(firstN(improvements, 2), ", "))
	}
	fmt.Fprintf(&b, "Recommendation: %s", action)
	return b.String()
}

func firstN(s []string, n int) []string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
