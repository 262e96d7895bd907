// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import "time"

// RetrievedContext is one knowledge-base passage returned by retrieval.
type RetrievedContext struct {
	Text      string  `json:"text"`
	Relevance float64 `json:"relevance"`
	Source    string  `json:"source,omitempty"`
	Title     string  `json:"title,omitempty"`
}

// BaselineEvaluation is the single-pass rubric score of an answer.
type BaselineEvaluation struct {
	OverallScore      float64  `json:"overall_score"`
	Completeness      float64  `json:"completeness"`
	Clarity           float64  `json:"clarity"`
	Depth             float64  `json:"depth"`
	Impact            float64  `json:"impact"`
	Leadership        float64  `json:"leadership"`
	Strengths         []string `json:"strengths"`
	ImprovementAreas  []string `json:"improvement_areas"`
	FollowUpNeeded    bool     `json:"follow_up_needed"`
	EvaluationSummary string   `json:"evaluation_summary,omitempty"`
}

// AgentEvaluation is one specialist's verdict. It is never mutated after the
// consensus evaluator produces it.
type AgentEvaluation struct {
	Agent        AgentRole          `json:"agent"`
	Score        float64            `json:"score"`
	Confidence   float64            `json:"confidence"`
	Observations []string           `json:"observations"`
	Strengths    []string           `json:"strengths"`
	Improvements []string           `json:"improvements"`
	Rationale    string             `json:"rationale"`
	AspectScores map[string]float64 `json:"aspect_scores,omitempty"`
}

// ConsensusEvaluation aggregates the specialist panel.
type ConsensusEvaluation struct {
	FinalScore        float64             `json:"final_score"`
	Confidence        float64             `json:"confidence"`
	Agents            []AgentEvaluation   `json:"agents"`
	MissingAgents     []AgentRole         `json:"missing_agents,omitempty"`
	Strengths         []string            `json:"strengths"`
	Improvements      []string            `json:"improvements"`
	DivergentOpinions map[string][]string `json:"divergent_opinions"`
	Recommendation    string              `json:"recommendation"`
	LowConfidence     bool                `json:"low_confidence"`
}

// DimensionScore is the GRAIL score of a single dimension.
type DimensionScore struct {
	Dimension       GRAILDimension `json:"dimension"`
	Score           float64        `json:"score"`
	Evidence        []string       `json:"evidence"`
	MissingElements []string       `json:"missing_elements"`
	Band            StrengthBand   `json:"band"`
}

// GRAILEvaluation is the five-dimension rubric result.
type GRAILEvaluation struct {
	Dimensions                 map[GRAILDimension]DimensionScore `json:"dimensions"`
	Weights                    map[GRAILDimension]float64        `json:"weights"`
	OverallScore               float64                           `json:"overall_score"`
	CompetencyMapping          map[GRAILDimension][]Competency   `json:"competency_mapping"`
	OverallAssessment          string                            `json:"overall_assessment"`
	ImprovementRecommendations []string                          `json:"improvement_recommendations"`
	MissingDimensions          []GRAILDimension                  `json:"missing_dimensions,omitempty"`
}

// CoachingFeedback is the four-part coaching message in fixed order.
type CoachingFeedback struct {
	Band                PerformanceBand `json:"band"`
	BlendedScore        float64         `json:"blended_score"`
	PositiveRecognition string          `json:"positive_recognition"`
	ImprovementAreas    string          `json:"improvement_areas"`
	NextSteps           string          `json:"next_steps"`
	Encouragement       string          `json:"encouragement"`
	KnowledgeSources    []string        `json:"knowledge_sources,omitempty"`
	FollowUpQuestions   []string        `json:"follow_up_questions,omitempty"`
}

// Sections returns the four parts in presentation order.
func (c CoachingFeedback) Sections() []string {
	return []string{c.PositiveRecognition, c.ImprovementAreas, c.NextSteps, c.Encouragement}
}

// PerformanceMetrics is the rolling performance state kept by the adaptive selector.
type PerformanceMetrics struct {
	Scores            []float64        `json:"scores"`
	RollingAverages   []float64        `json:"rolling_averages"`
	RollingAverage    float64          `json:"rolling_average"`
	Trend             Trend            `json:"trend"`
	Strengths         []Competency     `json:"strengths"`
	Weaknesses        []Competency     `json:"weaknesses"`
	ConfidenceLevel   float64          `json:"confidence_level"`
	QuestionsAnswered int              `json:"questions_answered"`
	CategoryCounts    map[Category]int `json:"category_counts"`
}

// AdaptiveDecision is the selector's verdict for what happens next.
type AdaptiveDecision struct {
	Action          Action          `json:"action"`
	NextQuestion    *Question       `json:"next_question,omitempty"`
	DifficultyDelta DifficultyDelta `json:"difficulty_delta"`
	FocusArea       string          `json:"focus_area,omitempty"`
	Reasoning       string          `json:"reasoning"`
}

// Issue records a recoverable problem encountered during a turn.
type Issue struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// EvaluationRecord is the outcome of one answered question. Records are
// appended to InterviewSession.History and never modified afterwards.
type EvaluationRecord struct {
	SessionID      string   `json:"session_id"`
	QuestionIndex  int      `json:"question_index"`
	Question       Question `json:"question"`
	Answer         string   `json:"answer"`
	Redactions     []string `json:"redactions,omitempty"`
	AnswerSegments []string `json:"answer_segments,omitempty"`
	FocusArea      string   `json:"focus_area,omitempty"`
	DeepDives      int      `json:"deep_dives"`

	Context        []RetrievedContext   `json:"context,omitempty"`
	TemplateAnswer string               `json:"template_answer,omitempty"`
	Baseline       *BaselineEvaluation  `json:"baseline,omitempty"`
	Consensus      *ConsensusEvaluation `json:"consensus,omitempty"`
	GRAIL          *GRAILEvaluation     `json:"grail,omitempty"`
	Coaching       *CoachingFeedback    `json:"coaching,omitempty"`
	Tips           []string             `json:"tips,omitempty"`
	FollowUps      []string             `json:"follow_ups,omitempty"`
	Decision       *AdaptiveDecision    `json:"decision,omitempty"`

	Score     float64       `json:"score"`
	Partial   bool          `json:"partial"`
	Issues    []Issue       `json:"issues,omitempty"`
	Stages    []string      `json:"stages"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// AddIssue appends an issue to the record.
func (r *EvaluationRecord) AddIssue(stage string, kind ErrorKind, msg string) {
	r.Issues = append(r.Issues, Issue{Stage: stage, Kind: kind, Message: msg})
}

// HasIssue reports whether the record contains an issue of the given kind.
func (r *EvaluationRecord) HasIssue(kind ErrorKind) bool {
	for _, is := range r.Issues {
		if is.Kind == kind {
			return true
		}
	}
	return false
}
