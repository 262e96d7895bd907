// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the REST surface of the coach service.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/engine"
)

// InterviewEngine is the subset of *engine.Engine the handlers call.
type InterviewEngine interface {
	StartSession(ctx context.Context, cfg datatypes.SessionConfig) (string, error)
	SubmitAnswer(ctx context.Context, sessionID, answer string) (*engine.TurnResult, error)
	GetState(ctx context.Context, sessionID string) (*datatypes.InterviewSession, error)
}

// StartInterviewRequest is the body of POST /v1/interviews. Omitted
// features default to all enabled.
type StartInterviewRequest struct {
	TotalQuestions     int                        `json:"total_questions"`
	Difficulty         datatypes.Difficulty       `json:"difficulty"`
	EnabledFeatures    *datatypes.EnabledFeatures `json:"enabled_features,omitempty"`
	CandidateName      string                     `json:"candidate_name,omitempty"`
	CustomQuestion     string                     `json:"custom_question,omitempty"`
	RequiredCategories []datatypes.Category       `json:"required_categories,omitempty"`
}

func (r StartInterviewRequest) sessionConfig() datatypes.SessionConfig {
	features := datatypes.AllFeatures()
	if r.EnabledFeatures != nil {
		features = *r.EnabledFeatures
	}
	return datatypes.SessionConfig{
		TotalQuestions:     r.TotalQuestions,
		Difficulty:         r.Difficulty,
		EnabledFeatures:    features,
		CandidateName:      r.CandidateName,
		CustomQuestion:     r.CustomQuestion,
		RequiredCategories: r.RequiredCategories,
	}
}

type StartInterviewResponse struct {
	SessionID     string              `json:"session_id"`
	FirstQuestion *datatypes.Question `json:"first_question"`
	Total         int                 `json:"total_questions"`
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer" binding:"required"`
}

// StartInterview creates a session and returns its first question.
func StartInterview(eng InterviewEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartInterviewRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "kind": datatypes.KindInvalidInput})
			return
		}
		ctx := c.Request.Context()
		id, err := eng.StartSession(ctx, req.sessionConfig())
		if err != nil {
			respondError(c, "start session", err)
			return
		}
		s, err := eng.GetState(ctx, id)
		if err != nil {
			respondError(c, "load new session", err)
			return
		}
		slog.Info("interview started",
			slog.String("session_id", id),
			slog.String("difficulty", string(s.Difficulty)),
			slog.Int("total_questions", len(s.Queue)))
		c.JSON(http.StatusCreated, StartInterviewResponse{
			SessionID:     id,
			FirstQuestion: s.CurrentQuestion(),
			Total:         len(s.Queue),
		})
	}
}

// SubmitAnswer runs one turn for the session in the path.
func SubmitAnswer(eng InterviewEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		var req SubmitAnswerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "answer is required", "kind": datatypes.KindInvalidInput})
			return
		}
		res, err := eng.SubmitAnswer(c.Request.Context(), sessionID, req.Answer)
		if err != nil {
			respondError(c, "submit answer", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// GetInterview returns the session snapshot.
func GetInterview(eng InterviewEngine) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := eng.GetState(c.Request.Context(), c.Param("sessionId"))
		if err != nil {
			respondError(c, "get session", err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

// StatusFor maps an error chain to its HTTP status.
func StatusFor(err error) int {
	switch datatypes.KindOf(err) {
	case datatypes.KindInvalidInput:
		return http.StatusBadRequest
	case datatypes.KindSessionNotFound:
		return http.StatusNotFound
	case datatypes.KindSessionCompleted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, op string, err error) {
	status := StatusFor(err)
	kind := datatypes.KindOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("op", op), slog.String("kind", string(kind)), slog.String("error", err.Error()))
	} else {
		slog.Warn("request rejected", slog.String("op", op), slog.String("kind", string(kind)))
	}
	msg := err.Error()
	if errors.Is(err, context.Canceled) {
		msg = "request cancelled"
	}
	c.JSON(status, gin.H{"error": msg, "kind": kind})
}
