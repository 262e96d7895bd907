// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/graph"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(reg), reg
}

func TestMetrics_SessionLifecycle(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.SessionStarted(datatypes.SessionConfig{Difficulty: datatypes.DifficultyMid})
	m.SessionStarted(datatypes.SessionConfig{Difficulty: datatypes.DifficultyMid})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sessionsStarted.WithLabelValues("mid")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.activeSessions))

	m.SessionFinished(&datatypes.InterviewSession{Completed: true})
	m.SessionFinished(&datatypes.InterviewSession{Completed: true, Halted: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessionsCompleted.WithLabelValues("halted")))
	assert.Zero(t, testutil.ToFloat64(m.activeSessions))
}

func TestMetrics_TurnFinished(t *testing.T) {
	m, _ := newTestMetrics(t)

	rec := &datatypes.EvaluationRecord{
		Stages:   []string{"parse_answer", "retrieve_context", "retrieve_context"},
		Score:    7.5,
		Partial:  true,
		Duration: 2 * time.Second,
		Decision: &datatypes.AdaptiveDecision{Action: datatypes.ActionDeepDive},
	}
	rec.AddIssue("retrieve_context", datatypes.KindIterationLimit, "limit")
	m.TurnFinished(rec, &graph.Result{IterationLimitHit: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.stageRuns.WithLabelValues("retrieve_context")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.issues.WithLabelValues("retrieve_context", string(datatypes.KindIterationLimit))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.decisions.WithLabelValues("deep_dive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.limitHits.WithLabelValues(string(datatypes.KindIterationLimit))))
	assert.Zero(t, testutil.ToFloat64(m.limitHits.WithLabelValues(string(datatypes.KindRecursionLimit))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.turnDuration))
}

func TestMetrics_AgentAndStore(t *testing.T) {
	m, reg := newTestMetrics(t)

	m.ObserveAgent(datatypes.RoleTechnical, "success", 200*time.Millisecond)
	m.ObserveAgent(datatypes.RoleTechnical, "timeout", 30*time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentOutcomes.WithLabelValues("technical", "timeout")))

	m.ObserveStore("put", time.Millisecond, nil)
	m.ObserveStore("put", time.Millisecond, errors.New("disk full"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeErrors.WithLabelValues("put")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["aleutian_consensus_agent_duration_seconds"])
	assert.True(t, names["aleutian_session_store_operation_duration_seconds"])
}

func TestMetrics_ObserveSweep(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.ObserveSweep(3, nil)
	m.ObserveSweep(0, errors.New("badger closed"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.expired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepFailures))
}
