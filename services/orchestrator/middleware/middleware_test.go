// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(mw...)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": GetRequestID(c)})
	})
	return router
}

func TestAPIKeyAuth(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header string
		want   int
	}{
		{name: "disabled", key: "", header: "", want: http.StatusOK},
		{name: "missing header", key: "secret", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", key: "secret", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong key", key: "secret", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid", key: "secret", header: "Bearer secret", want: http.StatusOK},
		{name: "case insensitive scheme", key: "secret", header: "bearer  secret ", want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(APIKeyAuth(tt.key))
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequestID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newRouter(RequestID(logger))

	t.Run("generates", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		id := w.Header().Get(RequestIDHeader)
		_, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Contains(t, w.Body.String(), id)
	})

	t.Run("propagates a valid id", func(t *testing.T) {
		id := uuid.NewString()
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, id)
		router.ServeHTTP(w, req)
		assert.Equal(t, id, w.Header().Get(RequestIDHeader))
	})

	t.Run("replaces an invalid id", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "<script>")
		router.ServeHTTP(w, req)
		assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
	})
}
