// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/engine"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEngine struct {
	startCfg  datatypes.SessionConfig
	startErr  error
	submitErr error
	sessions  map[string]*datatypes.InterviewSession
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{sessions: map[string]*datatypes.InterviewSession{}}
}

func (f *fakeEngine) StartSession(ctx context.Context, cfg datatypes.SessionConfig) (string, error) {
	f.startCfg = cfg
	if f.startErr != nil {
		return "", f.startErr
	}
	id := fmt.Sprintf("s-%d", len(f.sessions)+1)
	f.sessions[id] = &datatypes.InterviewSession{
		ID:         id,
		Config:     cfg,
		Difficulty: cfg.Difficulty,
		Queue: []datatypes.Question{
			{ID: "q1", Text: "Tell me about a time you led a team.", Category: datatypes.CategoryLeadership, Difficulty: cfg.Difficulty},
			{ID: "q2", Text: "Describe a difficult prioritization call.", Category: datatypes.CategoryPrioritization, Difficulty: cfg.Difficulty},
		},
	}
	return id, nil
}

func (f *fakeEngine) SubmitAnswer(ctx context.Context, id, answer string) (*engine.TurnResult, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("load: %w", datatypes.ErrSessionNotFound)
	}
	q := s.CurrentQuestion()
	s.CurrentIndex++
	return &engine.TurnResult{
		Record:       &datatypes.EvaluationRecord{SessionID: id, Question: *q, Answer: answer, Score: 7},
		NextQuestion: s.CurrentQuestion(),
		Completed:    s.CurrentQuestion() == nil,
	}, nil
}

func (f *fakeEngine) GetState(ctx context.Context, id string) (*datatypes.InterviewSession, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, datatypes.ErrSessionNotFound
	}
	return s, nil
}

func newRouter(eng InterviewEngine, importer KnowledgeImporter) *gin.Engine {
	router := gin.New()
	router.GET("/health", HealthCheck)
	router.POST("/v1/interviews", StartInterview(eng))
	router.POST("/v1/interviews/:sessionId/answers", SubmitAnswer(eng))
	router.GET("/v1/interviews/:sessionId", GetInterview(eng))
	router.POST("/v1/knowledge", ImportKnowledge(importer))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	w := do(t, newRouter(newFakeEngine(), nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestStartInterview(t *testing.T) {
	eng := newFakeEngine()
	router := newRouter(eng, nil)

	w := do(t, router, http.MethodPost, "/v1/interviews", map[string]any{
		"total_questions": 2,
		"difficulty":      "mid",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp StartInterviewResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "s-1", resp.SessionID)
	require.NotNil(t, resp.FirstQuestion)
	assert.Equal(t, "q1", resp.FirstQuestion.ID)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, datatypes.AllFeatures(), eng.startCfg.EnabledFeatures)
}

func TestStartInterview_ExplicitFeatures(t *testing.T) {
	eng := newFakeEngine()
	w := do(t, newRouter(eng, nil), http.MethodPost, "/v1/interviews", map[string]any{
		"total_questions":  1,
		"difficulty":       "senior",
		"enabled_features": map[string]bool{"coaching": true},
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, datatypes.EnabledFeatures{Coaching: true}, eng.startCfg.EnabledFeatures)
}

func TestStartInterview_Errors(t *testing.T) {
	eng := newFakeEngine()
	eng.startErr = fmt.Errorf("%w: total_questions", datatypes.ErrInvalidInput)
	router := newRouter(eng, nil)

	w := do(t, router, http.MethodPost, "/v1/interviews", map[string]any{"total_questions": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), string(datatypes.KindInvalidInput))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/interviews", bytes.NewBufferString("{not json"))
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAnswer(t *testing.T) {
	eng := newFakeEngine()
	router := newRouter(eng, nil)
	id, err := eng.StartSession(context.Background(), datatypes.SessionConfig{TotalQuestions: 2, Difficulty: datatypes.DifficultyMid})
	require.NoError(t, err)

	w := do(t, router, http.MethodPost, "/v1/interviews/"+id+"/answers", SubmitAnswerRequest{Answer: "I aligned the team on one goal."})
	require.Equal(t, http.StatusOK, w.Code)

	var res engine.TurnResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "q1", res.Record.Question.ID)
	require.NotNil(t, res.NextQuestion)
	assert.Equal(t, "q2", res.NextQuestion.ID)
	assert.False(t, res.Completed)
}

func TestSubmitAnswer_MissingAnswer(t *testing.T) {
	w := do(t, newRouter(newFakeEngine(), nil), http.MethodPost, "/v1/interviews/s-1/answers", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInterview(t *testing.T) {
	eng := newFakeEngine()
	router := newRouter(eng, nil)
	id, err := eng.StartSession(context.Background(), datatypes.SessionConfig{TotalQuestions: 2, Difficulty: datatypes.DifficultyJunior})
	require.NoError(t, err)

	w := do(t, router, http.MethodGet, "/v1/interviews/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var s datatypes.InterviewSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	assert.Equal(t, id, s.ID)

	w = do(t, router, http.MethodGet, "/v1/interviews/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid input", fmt.Errorf("wrap: %w", datatypes.ErrInvalidInput), http.StatusBadRequest},
		{"not found", datatypes.ErrSessionNotFound, http.StatusNotFound},
		{"completed", fmt.Errorf("submit: %w", datatypes.ErrSessionCompleted), http.StatusConflict},
		{"timeout", datatypes.ErrUpstreamTimeout, http.StatusInternalServerError},
		{"stage error", datatypes.NewStageError("grail", "", datatypes.ErrEvaluationParse), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestSubmitAnswer_CompletedSessionConflicts(t *testing.T) {
	eng := newFakeEngine()
	eng.submitErr = datatypes.ErrSessionCompleted
	w := do(t, newRouter(eng, nil), http.MethodPost, "/v1/interviews/s-1/answers", SubmitAnswerRequest{Answer: "a long enough answer"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestImportKnowledge(t *testing.T) {
	item := collaborator.KnowledgeItem{Title: "STAR", Content: "Situation, Task, Action, Result.", Source: "coach_handbook"}

	t.Run("not configured", func(t *testing.T) {
		w := do(t, newRouter(newFakeEngine(), nil), http.MethodPost, "/v1/knowledge", ImportKnowledgeRequest{Items: []collaborator.KnowledgeItem{item}})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("imports", func(t *testing.T) {
		var got []collaborator.KnowledgeItem
		importer := func(ctx context.Context, items []collaborator.KnowledgeItem) (int, error) {
			got = items
			return len(items), nil
		}
		w := do(t, newRouter(newFakeEngine(), importer), http.MethodPost, "/v1/knowledge", ImportKnowledgeRequest{Items: []collaborator.KnowledgeItem{item, item}})
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"imported":2}`, w.Body.String())
		assert.Len(t, got, 2)
	})

	t.Run("rejects invalid items", func(t *testing.T) {
		called := false
		importer := func(ctx context.Context, items []collaborator.KnowledgeItem) (int, error) {
			called = true
			return 0, nil
		}
		router := newRouter(newFakeEngine(), importer)
		w := do(t, router, http.MethodPost, "/v1/knowledge", ImportKnowledgeRequest{Items: []collaborator.KnowledgeItem{{Title: "no content"}}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		w = do(t, router, http.MethodPost, "/v1/knowledge", ImportKnowledgeRequest{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, called)
	})

	t.Run("importer failure", func(t *testing.T) {
		importer := func(ctx context.Context, items []collaborator.KnowledgeItem) (int, error) {
			return 1, errors.New("weaviate down")
		}
		w := do(t, newRouter(newFakeEngine(), importer), http.MethodPost, "/v1/knowledge", ImportKnowledgeRequest{Items: []collaborator.KnowledgeItem{item, item}})
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Contains(t, w.Body.String(), `"imported":1`)
	})
}
