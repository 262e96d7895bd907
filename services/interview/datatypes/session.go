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

import (
	"encoding/json"
	"time"
)

// Question is a behavioral interview question.
type Question struct {
	ID               string           `json:"id" yaml:"id" validate:"required"`
	Text             string           `json:"text" yaml:"text" validate:"required,min=10"`
	Category         Category         `json:"category" yaml:"category" validate:"required,category"`
	Difficulty       Difficulty       `json:"difficulty" yaml:"difficulty" validate:"required,difficulty"`
	FollowUpStrategy FollowUpStrategy `json:"follow_up_strategy" yaml:"follow_up_strategy"`
	EvaluationFocus  []string         `json:"evaluation_focus,omitempty" yaml:"evaluation_focus"`
	Custom           bool             `json:"custom,omitempty" yaml:"-"`
}

// EnabledFeatures toggles optional stages of a turn.
type EnabledFeatures struct {
	Coaching   bool `json:"coaching" yaml:"coaching"`
	GRAIL      bool `json:"grail" yaml:"grail"`
	MultiAgent bool `json:"multi_agent" yaml:"multi_agent"`
	Adaptive   bool `json:"adaptive" yaml:"adaptive"`
}

// AllFeatures enables every optional stage.
func AllFeatures() EnabledFeatures {
	return EnabledFeatures{Coaching: true, GRAIL: true, MultiAgent: true, Adaptive: true}
}

// SessionConfig is the per-session configuration passed to StartSession. It is
// resolved once when the session starts and never changes afterwards.
type SessionConfig struct {
	TotalQuestions     int             `json:"total_questions" validate:"required,min=1,max=20"`
	Difficulty         Difficulty      `json:"difficulty" validate:"required,difficulty"`
	EnabledFeatures    EnabledFeatures `json:"enabled_features"`
	CandidateName      string          `json:"candidate_name,omitempty" validate:"max=200"`
	CustomQuestion     string          `json:"custom_question,omitempty" validate:"omitempty,min=10,max=2000"`
	RequiredCategories []Category      `json:"required_categories,omitempty" validate:"omitempty,dive,category"`
}

// InterviewSession is the aggregate persisted by the session store.
type InterviewSession struct {
	ID           string             `json:"id"`
	Config       SessionConfig      `json:"config"`
	Queue        []Question         `json:"queue"`
	CurrentIndex int                `json:"current_index"`
	History      []EvaluationRecord `json:"history"`

	// NodeIterations counts stage visits for the whole session. The per-turn
	// limit is enforced against the visits made since the turn began.
	NodeIterations map[string]int `json:"node_iterations"`
	RecursionDepth int            `json:"recursion_depth"`

	Difficulty         Difficulty         `json:"difficulty"`
	RequiredCategories []Category         `json:"required_categories"`
	Metrics            PerformanceMetrics `json:"metrics"`

	Completed bool      `json:"completed"`
	Partial   bool      `json:"partial"`
	Halted    bool      `json:"halted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentQuestion returns the question awaiting an answer, or nil when the
// queue is exhausted.
func (s *InterviewSession) CurrentQuestion() *Question {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Queue) {
		return nil
	}
	q := s.Queue[s.CurrentIndex]
	return &q
}

// Remaining returns the questions queued after the current one.
func (s *InterviewSession) Remaining() []Question {
	if s.CurrentIndex+1 >= len(s.Queue) {
		return nil
	}
	out := make([]Question, len(s.Queue)-s.CurrentIndex-1)
	copy(out, s.Queue[s.CurrentIndex+1:])
	return out
}

// CoveredCategories returns the categories of every answered question.
func (s *InterviewSession) CoveredCategories() map[Category]bool {
	covered := make(map[Category]bool, len(s.History))
	for _, rec := range s.History {
		covered[rec.Question.Category] = true
	}
	return covered
}

// AskedIDs returns the ids of every question already answered or queued.
func (s *InterviewSession) AskedIDs() map[string]bool {
	ids := make(map[string]bool, len(s.Queue))
	for _, q := range s.Queue {
		ids[q.ID] = true
	}
	return ids
}

// Clone returns a deep copy of the session.
func (s *InterviewSession) Clone() (*InterviewSession, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out InterviewSession
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
