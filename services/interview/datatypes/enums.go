// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the value types shared by the interview engine.
//
// # Description
//
// Everything that crosses a package boundary inside services/interview lives
// here: questions, session configuration, the session aggregate itself, and the
// per-turn evaluation record with every evaluator's output. The types are plain
// data with JSON tags so that they can be checkpointed by any session store and
// returned verbatim by the HTTP layer.
//
// # Thread Safety
//
// Values are not synchronized. The engine is the only writer of a session and
// hands out deep copies (see InterviewSession.Clone) to readers.
package datatypes

// =============================================================================
// Question taxonomy
// =============================================================================

// Category is a behavioral question category.
type Category string

const (
	CategoryLeadership            Category = "leadership"
	CategoryConflictResolution    Category = "conflict_resolution"
	CategoryPrioritization        Category = "prioritization"
	CategoryStakeholderManagement Category = "stakeholder_management"
	CategoryProductDecisions      Category = "product_decisions"
	CategoryFailureRecovery       Category = "failure_recovery"
)

// AllCategories lists every category in presentation order.
var AllCategories = []Category{
	CategoryLeadership,
	CategoryConflictResolution,
	CategoryPrioritization,
	CategoryStakeholderManagement,
	CategoryProductDecisions,
	CategoryFailureRecovery,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Difficulty is the seniority level a question targets.
type Difficulty string

const (
	DifficultyJunior Difficulty = "junior"
	DifficultyMid    Difficulty = "mid"
	DifficultySenior Difficulty = "senior"
)

// Valid reports whether d is a known difficulty.
func (d Difficulty) Valid() bool {
	return d == DifficultyJunior || d == DifficultyMid || d == DifficultySenior
}

// Rank orders difficulties from 0 (junior) to 2 (senior). Unknown values rank as mid.
func (d Difficulty) Rank() int {
	switch d {
	case DifficultyJunior:
		return 0
	case DifficultySenior:
		return 2
	default:
		return 1
	}
}

// Easier returns the next easier difficulty, or d itself at the floor.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case DifficultySenior:
		return DifficultyMid
	default:
		return DifficultyJunior
	}
}

// Harder returns the next harder difficulty, or d itself at the ceiling.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case DifficultyJunior:
		return DifficultyMid
	default:
		return DifficultySenior
	}
}

// FollowUpStrategy names how follow-up questions dig into an answer.
type FollowUpStrategy string

const (
	FollowUpDeepDive     FollowUpStrategy = "deep_dive"
	FollowUpMetrics      FollowUpStrategy = "metrics"
	FollowUpStakeholders FollowUpStrategy = "stakeholders"
	FollowUpAlternatives FollowUpStrategy = "alternatives"
)

// =============================================================================
// Adaptive selection
// =============================================================================

// Action is the adaptive selector's verdict for the next step of a session.
type Action string

const (
	ActionContinue         Action = "continue"
	ActionAdjustDifficulty Action = "adjust_difficulty"
	ActionSwitchCategory   Action = "switch_category"
	ActionDeepDive         Action = "deep_dive"
	ActionConclude         Action = "conclude"
)

// DifficultyDelta describes how the next question's difficulty moves.
type DifficultyDelta string

const (
	DeltaEasier DifficultyDelta = "easier"
	DeltaSame   DifficultyDelta = "same"
	DeltaHarder DifficultyDelta = "harder"
)

// Trend is the direction of recent performance.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// =============================================================================
// Scoring bands
// =============================================================================

// StrengthBand is the banding applied to a single GRAIL dimension score.
type StrengthBand string

const (
	BandWeak        StrengthBand = "weak"
	BandDeveloping  StrengthBand = "developing"
	BandProficient  StrengthBand = "proficient"
	BandStrong      StrengthBand = "strong"
	BandExceptional StrengthBand = "exceptional"
)

// PerformanceBand is the coaching band selected from a blended score.
type PerformanceBand string

const (
	PerformanceStruggling PerformanceBand = "struggling"
	PerformanceDeveloping PerformanceBand = "developing"
	PerformanceStrong     PerformanceBand = "strong"
	PerformanceExcellent  PerformanceBand = "excellent"
)

// =============================================================================
// Evaluators
// =============================================================================

// AgentRole identifies one specialist on the consensus panel.
type AgentRole string

const (
	RoleTechnical     AgentRole = "technical"
	RoleLeadership    AgentRole = "leadership"
	RoleCommunication AgentRole = "communication"
	RoleStrategic     AgentRole = "strategic"
	RoleCustomerFocus AgentRole = "customer_focus"
)

// AllAgentRoles is the fixed panel in evaluation order.
var AllAgentRoles = []AgentRole{
	RoleTechnical,
	RoleLeadership,
	RoleCommunication,
	RoleStrategic,
	RoleCustomerFocus,
}

// GRAILDimension is one of Goal, Resources, Actions, Impact, Learning.
type GRAILDimension string

const (
	DimensionGoal      GRAILDimension = "goal"
	DimensionResources GRAILDimension = "resources"
	DimensionActions   GRAILDimension = "actions"
	DimensionImpact    GRAILDimension = "impact"
	DimensionLearning  GRAILDimension = "learning"
)

// AllDimensions lists the GRAIL dimensions in rubric order.
var AllDimensions = []GRAILDimension{
	DimensionGoal,
	DimensionResources,
	DimensionActions,
	DimensionImpact,
	DimensionLearning,
}

// Competency is one of the fifteen fixed PM competency tags.
type Competency string

const (
	CompetencyStrategicThinking      Competency = "strategic_thinking"
	CompetencyBusinessAcumen         Competency = "business_acumen"
	CompetencyVisionSetting          Competency = "vision_setting"
	CompetencyResourceManagement     Competency = "resource_management"
	CompetencyPrioritization         Competency = "prioritization"
	CompetencyConstraintOptimization Competency = "constraint_optimization"
	CompetencyExecution              Competency = "execution"
	CompetencyDecisionMaking         Competency = "decision_making"
	CompetencyLeadership             Competency = "leadership"
	CompetencyDataDriven             Competency = "data_driven"
	CompetencyResultsOrientation     Competency = "results_orientation"
	CompetencyMeasurement            Competency = "measurement"
	CompetencyGrowthMindset          Competency = "growth_mindset"
	CompetencyAdaptability           Competency = "adaptability"
	CompetencyContinuousImprovement  Competency = "continuous_improvement"
)
