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
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
)

// MaxKnowledgeBatch bounds one import request.
const MaxKnowledgeBatch = 500

// KnowledgeImporter writes knowledge items and reports how many were stored.
type KnowledgeImporter func(ctx context.Context, items []collaborator.KnowledgeItem) (int, error)

type ImportKnowledgeRequest struct {
	Items []collaborator.KnowledgeItem `json:"items"`
}

var validate = validator.New()

// ImportKnowledge batch-imports coaching knowledge. Responds 503 when no
// knowledge base is configured.
func ImportKnowledge(importer KnowledgeImporter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if importer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "knowledge base is not configured"})
			return
		}
		var req ImportKnowledgeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if len(req.Items) == 0 || len(req.Items) > MaxKnowledgeBatch {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("items must contain 1 to %d entries", MaxKnowledgeBatch)})
			return
		}
		for i, item := range req.Items {
			if err := validate.Struct(item); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("item %d: %v", i, err)})
				return
			}
		}

		n, err := importer(c.Request.Context(), req.Items)
		if err != nil {
			slog.Error("knowledge import failed", slog.Int("items", len(req.Items)), slog.Int("imported", n), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "knowledge import failed", "imported": n})
			return
		}
		slog.Info("knowledge imported", slog.Int("imported", n))
		c.JSON(http.StatusOK, gin.H{"imported": n})
	}
}
