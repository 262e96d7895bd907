// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability exports Prometheus metrics for interview sessions.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/graph"
)

const namespace = "aleutian"

// Metrics holds the interview collectors.
//
// Thread Safety: Safe for concurrent use.
type Metrics struct {
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	activeSessions    prometheus.Gauge

	turnDuration *prometheus.HistogramVec
	turnScore    prometheus.Histogram
	stageRuns    *prometheus.CounterVec
	issues       *prometheus.CounterVec
	decisions    *prometheus.CounterVec
	limitHits    *prometheus.CounterVec

	agentDuration *prometheus.HistogramVec
	agentOutcomes *prometheus.CounterVec

	storeDuration *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	expired       prometheus.Counter
	sweepFailures prometheus.Counter
}

// NewMetrics registers the collectors with reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_started_total",
			Help:      "Interview sessions started, by difficulty",
		}, []string{"difficulty"}),

		sessionsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "sessions_completed_total",
			Help:      "Interview sessions finished, by outcome (completed, halted)",
		}, []string{"outcome"}),

		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "active_sessions",
			Help:      "Sessions started but not yet finished by this process",
		}),

		turnDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "turn_duration_seconds",
			Help:      "Time to evaluate one submitted answer",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"partial"}),

		turnScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "turn_score",
			Help:      "Distribution of blended turn scores",
			Buckets:   []float64{1, 2, 3, 4, 5, 6, 7, 8, 8.5, 9, 10},
		}),

		stageRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "stage_runs_total",
			Help:      "Stage executions, by stage",
		}, []string{"stage"}),

		issues: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "issues_total",
			Help:      "Issues recorded on evaluation records, by stage and kind",
		}, []string{"stage", "kind"}),

		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "adaptive_decisions_total",
			Help:      "Final adaptive decisions, by action",
		}, []string{"action"}),

		limitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interview",
			Name:      "guard_limits_total",
			Help:      "Turns that tripped a flow-control guard, by kind",
		}, []string{"kind"}),

		agentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "agent_duration_seconds",
			Help:      "Specialist agent evaluation latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}, []string{"agent"}),

		agentOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consensus",
			Name:      "agent_outcomes_total",
			Help:      "Specialist agent results, by agent and outcome (success, timeout, parse_error, error)",
		}, []string{"agent", "outcome"}),

		storeDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session_store",
			Name:      "operation_duration_seconds",
			Help:      "Session store operation latency",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"op"}),

		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_store",
			Name:      "errors_total",
			Help:      "Failed session store operations",
		}, []string{"op"}),

		expired: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_store",
			Name:      "expired_checkpoints_total",
			Help:      "Checkpoints purged by the TTL sweeper",
		}),

		sweepFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session_store",
			Name:      "sweep_failures_total",
			Help:      "TTL sweep cycles that returned an error",
		}),
	}
}

// SessionStarted implements engine.Observer.
func (m *Metrics) SessionStarted(cfg datatypes.SessionConfig) {
	m.sessionsStarted.WithLabelValues(string(cfg.Difficulty)).Inc()
	m.activeSessions.Inc()
}

// SessionFinished implements engine.Observer.
func (m *Metrics) SessionFinished(s *datatypes.InterviewSession) {
	outcome := "completed"
	if s.Halted {
		outcome = "halted"
	}
	m.sessionsCompleted.WithLabelValues(outcome).Inc()
	m.activeSessions.Dec()
}

// TurnFinished implements engine.Observer.
func (m *Metrics) TurnFinished(record *datatypes.EvaluationRecord, result *graph.Result) {
	partial := "false"
	if record.Partial {
		partial = "true"
	}
	m.turnDuration.WithLabelValues(partial).Observe(record.Duration.Seconds())
	m.turnScore.Observe(record.Score)

	for _, stage := range record.Stages {
		m.stageRuns.WithLabelValues(stage).Inc()
	}
	for _, is := range record.Issues {
		m.issues.WithLabelValues(is.Stage, string(is.Kind)).Inc()
	}
	if record.Decision != nil {
		m.decisions.WithLabelValues(string(record.Decision.Action)).Inc()
	}
	if result != nil {
		if result.IterationLimitHit {
			m.limitHits.WithLabelValues(string(datatypes.KindIterationLimit)).Inc()
		}
		if result.RecursionLimitHit {
			m.limitHits.WithLabelValues(string(datatypes.KindRecursionLimit)).Inc()
		}
	}
}

// ObserveAgent matches consensus.WithAgentObserver.
func (m *Metrics) ObserveAgent(role datatypes.AgentRole, outcome string, d time.Duration) {
	m.agentDuration.WithLabelValues(string(role)).Observe(d.Seconds())
	m.agentOutcomes.WithLabelValues(string(role), outcome).Inc()
}

// ObserveStore matches session.Observer.
func (m *Metrics) ObserveStore(op string, d time.Duration, err error) {
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(op).Inc()
	}
}

// ObserveSweep records one TTL sweep cycle.
func (m *Metrics) ObserveSweep(removed int, err error) {
	m.expired.Add(float64(removed))
	if err != nil {
		m.sweepFailures.Inc()
	}
}
