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
	"context"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// scripted is a collaborator returning canned results per role.
type scripted struct {
	results map[datatypes.AgentRole]*collaborator.StructuredResult
	errs    map[datatypes.AgentRole]error
	block   map[datatypes.AgentRole]bool // wait for ctx
	stall   map[datatypes.AgentRole]time.Duration

	inflight int32
	peak     int32
	calls    int32
}

func (s *scripted) Evaluate(ctx context.Context, pc collaborator.PromptContext) (*collaborator.StructuredResult, error) {
	atomic.AddInt32(&s.calls, 1)
	n := atomic.AddInt32(&s.inflight, 1)
	defer atomic.AddInt32(&s.inflight, -1)
	for {
		p := atomic.LoadInt32(&s.peak)
		if n <= p || atomic.CompareAndSwapInt32(&s.peak, p, n) {
			break
		}
	}

	if s.block[pc.Role] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if d := s.stall[pc.Role]; d > 0 {
		time.Sleep(d) // ignores ctx on purpose
	}
	if err := s.errs[pc.Role]; err != nil {
		return nil, err
	}
	return s.results[pc.Role], nil
}

func scores(vals map[datatypes.AgentRole]float64) map[datatypes.AgentRole]*collaborator.StructuredResult {
	out := make(map[datatypes.AgentRole]*collaborator.StructuredResult, len(vals))
	for role, v := range vals {
		out[role] = &collaborator.StructuredResult{Score: v, Confidence: 0.8}
	}
	return out
}

func uniform(v float64) map[datatypes.AgentRole]float64 {
	out := map[datatypes.AgentRole]float64{}
	for _, r := range datatypes.AllAgentRoles {
		out[r] = v
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AgentTimeout = 100 * time.Millisecond
	return cfg
}

func TestEvaluate_AllAgentsSucceed(t *testing.T) {
	collab := &scripted{results: scores(map[datatypes.AgentRole]float64{
		datatypes.RoleTechnical:     6,
		datatypes.RoleLeadership:    7,
		datatypes.RoleCommunication: 8,
		datatypes.RoleStrategic:     7,
		datatypes.RoleCustomerFocus: 7,
	})}

	res, err := New(collab, testConfig(), nil).Evaluate(context.Background(), Input{Answer: "a"})
	require.NoError(t, err)

	assert.Len(t, res.Agents, 5)
	assert.Empty(t, res.MissingAgents)
	assert.False(t, res.LowConfidence)
	assert.InDelta(t, 7.0, res.FinalScore, 1e-9)
	// mean confidence 0.8 minus 0.05 * spread 2
	assert.InDelta(t, 0.7, res.Confidence, 1e-9)
	assert.Empty(t, res.DivergentOpinions)
	assert.True(t, strings.HasPrefix(res.Recommendation, "Positive lean"))
	assert.LessOrEqual(t, atomic.LoadInt32(&collab.peak), int32(5))
}

func TestEvaluate_DissentingAgentRecordedAsDivergent(t *testing.T) {
	vals := uniform(9.6)
	vals[datatypes.RoleCustomerFocus] = 4.0
	collab := &scripted{results: scores(vals)}

	res, err := New(collab, testConfig(), nil).Evaluate(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, []string{"customer_focus"}, res.DivergentOpinions[AspectOverall])
	assert.Equal(t, []string{"customer_focus"}, res.DivergentOpinions[AspectSplitOpinion])
	assert.GreaterOrEqual(t, res.FinalScore, 4.0)
	assert.LessOrEqual(t, res.FinalScore, 9.6)
}

func TestEvaluate_AspectDivergence(t *testing.T) {
	results := scores(uniform(7))
	results[datatypes.RoleTechnical].AspectScores = map[string]float64{"metrics": 9}
	results[datatypes.RoleStrategic].AspectScores = map[string]float64{"metrics": 3}
	results[datatypes.RoleLeadership].AspectScores = map[string]float64{"empathy": 2}

	res, err := New(&scripted{results: results}, testConfig(), nil).Evaluate(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, []string{"strategic", "technical"}, res.DivergentOpinions["metrics"])
	assert.NotContains(t, res.DivergentOpinions, "empathy", "single-agent aspects cannot diverge")
	assert.NotContains(t, res.DivergentOpinions, AspectOverall)
}

func TestEvaluate_MissingAgentsFlagLowConfidence(t *testing.T) {
	collab := &scripted{
		results: scores(uniform(6)),
		block: map[datatypes.AgentRole]bool{
			datatypes.RoleTechnical:  true,
			datatypes.RoleLeadership: true,
		},
		errs: map[datatypes.AgentRole]error{
			datatypes.RoleStrategic: datatypes.ErrEvaluationParse,
		},
	}

	start := time.Now()
	res, err := New(collab, testConfig(), nil).Evaluate(context.Background(), Input{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, res.Agents, 2)
	assert.ElementsMatch(t, []datatypes.AgentRole{
		datatypes.RoleTechnical, datatypes.RoleLeadership, datatypes.RoleStrategic,
	}, res.MissingAgents)
	assert.True(t, res.LowConfidence)
	assert.InDelta(t, 6.0, res.FinalScore, 1e-9)
}

func TestEvaluate_StalledAgentDoesNotHoldBarrier(t *testing.T) {
	var mu sync.Mutex
	outcomes := map[datatypes.AgentRole]string{}
	collab := &scripted{
		results: scores(uniform(8)),
		stall:   map[datatypes.AgentRole]time.Duration{datatypes.RoleCommunication: 2 * time.Second},
	}

	ev := New(collab, testConfig(), nil, WithAgentObserver(func(role datatypes.AgentRole, outcome string, _ time.Duration) {
		mu.Lock()
		outcomes[role] = outcome
		mu.Unlock()
	}))

	start := time.Now()
	res, err := ev.Evaluate(context.Background(), Input{})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []datatypes.AgentRole{datatypes.RoleCommunication}, res.MissingAgents)
	assert.False(t, res.LowConfidence)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "timeout", outcomes[datatypes.RoleCommunication])
	assert.Equal(t, "success", outcomes[datatypes.RoleTechnical])
}

func TestEvaluate_NoAgentsSucceed(t *testing.T) {
	errs := map[datatypes.AgentRole]error{}
	for _, r := range datatypes.AllAgentRoles {
		errs[r] = datatypes.ErrEvaluationParse
	}
	res, err := New(&scripted{errs: errs}, testConfig(), nil).Evaluate(context.Background(), Input{})
	require.NoError(t, err)
	assert.Empty(t, res.Agents)
	assert.True(t, res.LowConfidence)
	assert.Zero(t, res.FinalScore)
	assert.Len(t, res.MissingAgents, 5)
}

func TestWeightedScore_RenormalizesOverAvailable(t *testing.T) {
	cfg := testConfig()
	cfg.Weights = map[datatypes.AgentRole]float64{
		datatypes.RoleTechnical:     3,
		datatypes.RoleLeadership:    1,
		datatypes.RoleCommunication: 1,
	}
	ev := New(nil, cfg, nil)

	agents := []datatypes.AgentEvaluation{
		{Agent: datatypes.RoleTechnical, Score: 9},
		{Agent: datatypes.RoleLeadership, Score: 5},
	}
	assert.InDelta(t, 8.0, ev.weightedScore(agents), 1e-9)

	cfg.Weights = map[datatypes.AgentRole]float64{
		datatypes.RoleTechnical:  0,
		datatypes.RoleLeadership: 0,
	}
	ev = New(nil, cfg, nil)
	assert.InDelta(t, 7.0, ev.weightedScore(agents), 1e-9)
}

func TestFinalScoreWithinAgentRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	cfg := testConfig()
	cfg.Weights = map[datatypes.AgentRole]float64{}
	for _, r := range datatypes.AllAgentRoles {
		cfg.Weights[r] = rng.Float64() * 3
	}
	ev := New(nil, cfg, nil)

	for i := 0; i < 500; i++ {
		n := 3 + rng.Intn(3)
		agents := make([]datatypes.AgentEvaluation, n)
		lo, hi := math.Inf(1), math.Inf(-1)
		for j := 0; j < n; j++ {
			s := rng.Float64() * 10
			agents[j] = datatypes.AgentEvaluation{Agent: datatypes.AllAgentRoles[j], Score: s, Confidence: rng.Float64()}
			lo, hi = math.Min(lo, s), math.Max(hi, s)
		}
		res := ev.aggregate(agents)
		assert.GreaterOrEqual(t, res.FinalScore, lo-1e-9)
		assert.LessOrEqual(t, res.FinalScore, hi+1e-9)
		assert.GreaterOrEqual(t, res.Confidence, 0.0)
		assert.LessOrEqual(t, res.Confidence, 1.0)
	}
}

func TestConfidence_MonotonicInSpread(t *testing.T) {
	for _, fn := range []ConfidenceFunc{
		LinearSpreadPenalty(0.05),
		LinearSpreadPenalty(0.2),
		func(mean, spread float64) float64 { return mean * math.Exp(-spread/5) },
	} {
		ev := New(nil, testConfig(), nil, WithConfidenceFunc(fn))
		prev := math.Inf(1)
		for spread := 0.0; spread <= 10; spread += 0.5 {
			agents := []datatypes.AgentEvaluation{
				{Agent: datatypes.RoleTechnical, Score: 5 - spread/2, Confidence: 0.9},
				{Agent: datatypes.RoleLeadership, Score: 5 + spread/2, Confidence: 0.9},
				{Agent: datatypes.RoleStrategic, Score: 5, Confidence: 0.9},
			}
			c := ev.aggregate(agents).Confidence
			assert.LessOrEqual(t, c, prev)
			prev = c
		}
	}
}

func TestConsensusItems(t *testing.T) {
	agents := []datatypes.AgentEvaluation{
		{Strengths: []string{"Clear goal", "Data-driven"}},
		{Strengths: []string{"clear goal ", "Strong ownership"}},
		{Strengths: []string{"Data-driven", "Clear goal"}},
		{Strengths: []string{"Empathy"}},
	}
	got := consensusItems(agents, func(a datatypes.AgentEvaluation) []string { return a.Strengths }, 3)
	assert.Equal(t, []string{"Clear goal", "Data-driven"}, got)
}

func TestRecommendation(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{9.1, "Strong hire recommendation"},
		{8.0, "Strong hire recommendation"},
		{7.0, "Positive lean"},
		{6.5, "Positive lean"},
		{5.0, "Borderline"},
		{4.9, "Not ready"},
	}
	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(Recommendation(tt.score, nil, nil), tt.want), tt.score)
	}

	rec := Recommendation(8.5, []string{"a", "b", "c"}, []string{"x"})
	assert.Contains(t, rec, "Strong in: a, b.")
	assert.Contains(t, rec, "Development areas: x.")
}
