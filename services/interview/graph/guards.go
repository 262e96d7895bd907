// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"fmt"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

const (
	// DefaultMaxNodeIterations bounds visits to any single stage in one turn.
	DefaultMaxNodeIterations = 5

	// DefaultMaxTransitions bounds stage transitions in one turn.
	DefaultMaxTransitions = 50
)

// Limits configures the flow-control guards.
type Limits struct {
	MaxNodeIterations int `yaml:"max_node_iterations" validate:"gte=1"`
	MaxTransitions    int `yaml:"max_recursion_depth" validate:"gte=1"`
}

// DefaultLimits returns the default guard limits.
func DefaultLimits() Limits {
	return Limits{
		MaxNodeIterations: DefaultMaxNodeIterations,
		MaxTransitions:    DefaultMaxTransitions,
	}
}

func (l Limits) withDefaults() Limits {
	if l.MaxNodeIterations <= 0 {
		l.MaxNodeIterations = DefaultMaxNodeIterations
	}
	if l.MaxTransitions <= 0 {
		l.MaxTransitions = DefaultMaxTransitions
	}
	return l
}

// Guards enforces iteration and transition bounds for one turn.
//
// Description:
//
//	The counters live on the session and accumulate for its whole lifetime;
//	they are only zeroed when a session is created. Guards snapshots them when
//	a turn begins and enforces the limits against the visits made since the
//	snapshot, so a deep-dive loop keeps counting toward the same bound.
//
// Thread Safety:
//
//	Not safe for concurrent use. One turn owns one Guards.
type Guards struct {
	limits   Limits
	session  *datatypes.InterviewSession
	baseline map[string]int
	baseTx   int
}

// NewGuards creates guards over the session's counters.
func NewGuards(limits Limits, session *datatypes.InterviewSession) *Guards {
	if session.NodeIterations == nil {
		session.NodeIterations = make(map[string]int)
	}
	baseline := make(map[string]int, len(session.NodeIterations))
	for k, v := range session.NodeIterations {
		baseline[k] = v
	}
	return &Guards{
		limits:   limits.withDefaults(),
		session:  session,
		baseline: baseline,
		baseTx:   session.RecursionDepth,
	}
}

// Visit counts a visit to stage and reports ErrIterationLimit once the visits
// in this turn exceed the per-node maximum.
func (g *Guards) Visit(stage Stage) error {
	name := stage.String()
	g.session.NodeIterations[name]++
	if n := g.TurnVisits(stage); n > g.limits.MaxNodeIterations {
		return fmt.Errorf("%w: %s visited %d times (max %d)",
			datatypes.ErrIterationLimit, name, n, g.limits.MaxNodeIterations)
	}
	return nil
}

// Transition counts one stage transition and reports ErrRecursionLimit once the
// transitions in this turn exceed the maximum.
func (g *Guards) Transition() error {
	g.session.RecursionDepth++
	if n := g.TurnTransitions(); n > g.limits.MaxTransitions {
		return fmt.Errorf("%w: %d transitions (max %d)",
			datatypes.ErrRecursionLimit, n, g.limits.MaxTransitions)
	}
	return nil
}

// TurnVisits returns the visits to stage made during this turn.
func (g *Guards) TurnVisits(stage Stage) int {
	name := stage.String()
	return g.session.NodeIterations[name] - g.baseline[name]
}

// TurnTransitions returns the transitions made during this turn.
func (g *Guards) TurnTransitions() int {
	return g.session.RecursionDepth - g.baseTx
}
