// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package collaborator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// KnowledgeClassName is the Weaviate class holding coaching knowledge.
const KnowledgeClassName = "CoachingKnowledge"

// KnowledgeBatchSize is the number of items imported per batch.
const KnowledgeBatchSize = 100

// SourceCoach marks passages written by interview coaches. Coaching feedback
// surfaces these before any other source.
const SourceCoach = "coach"

// knowledgeNamespace seeds deterministic object ids.
var knowledgeNamespace = uuid.MustParse("6f1c2a8e-3b7d-4e59-9c1a-52d0b7e4a913")

// KnowledgeItem is one passage of the coaching knowledge base.
type KnowledgeItem struct {
	Title    string                      `json:"title" yaml:"title" validate:"required"`
	Content  string                      `json:"content" yaml:"content" validate:"required"`
	Source   string                      `json:"source" yaml:"source" validate:"required"`
	Category datatypes.Category          `json:"category,omitempty" yaml:"category"`
	Bands    []datatypes.PerformanceBand `json:"bands,omitempty" yaml:"bands"`
}

// ID returns the deterministic object id of the item, so re-imports overwrite
// rather than duplicate.
func (k KnowledgeItem) ID() strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(knowledgeNamespace, []byte(k.Source+"\x00"+k.Title)).String())
}

// KnowledgeSchema returns the Weaviate schema for the knowledge class.
func KnowledgeSchema() *models.Class {
	indexFilterable := new(bool)
	*indexFilterable = true

	return &models.Class{
		Class:       KnowledgeClassName,
		Description: "Interview coaching passages: frameworks, examples and coach notes",
		Vectorizer:  "none",
		Properties: []*models.Property{
			{
				Name:        "title",
				DataType:    []string{"text"},
				Description: "Short passage title",
			},
			{
				Name:        "content",
				DataType:    []string{"text"},
				Description: "Passage body used for BM25 search",
			},
			{
				Name:            "source",
				DataType:        []string{"text"},
				Description:     "Origin of the passage (coach, article, framework)",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "category",
				DataType:        []string{"text"},
				Description:     "Question category the passage applies to",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
			{
				Name:            "bands",
				DataType:        []string{"text[]"},
				Description:     "Performance bands the passage is written for",
				IndexFilterable: indexFilterable,
				Tokenization:    "field",
			},
		},
	}
}

// EnsureKnowledgeSchema creates the knowledge class if it does not exist.
func EnsureKnowledgeSchema(ctx context.Context, client *weaviate.Client) error {
	_, err := client.Schema().ClassGetter().WithClassName(KnowledgeClassName).Do(ctx)
	if err == nil {
		slog.Info("CoachingKnowledge schema already exists")
		return nil
	}

	slog.Info("Creating CoachingKnowledge schema")
	if err := client.Schema().ClassCreator().WithClass(KnowledgeSchema()).Do(ctx); err != nil {
		return fmt.Errorf("creating CoachingKnowledge schema: %w", err)
	}
	return nil
}

// ImportKnowledge batch imports items into Weaviate.
//
// Inputs:
//
//	ctx - Context for cancellation
//	client - Weaviate client
//	items - Passages to import
//
// Outputs:
//
//	int - Number of items successfully imported
//	error - Non-nil if a batch request fails
func ImportKnowledge(ctx context.Context, client *weaviate.Client, items []KnowledgeItem) (int, error) {
	imported := 0
	for i := 0; i < len(items); i += KnowledgeBatchSize {
		if err := ctx.Err(); err != nil {
			return imported, err
		}

		end := i + KnowledgeBatchSize
		if end > len(items) {
			end = len(items)
		}

		objects := make([]*models.Object, 0, end-i)
		for _, item := range items[i:end] {
			objects = append(objects, knowledgeObject(item))
		}

		result, err := client.Batch().ObjectsBatcher().WithObjects(objects...).Do(ctx)
		if err != nil {
			return imported, fmt.Errorf("batch import failed: %w", err)
		}
		for _, obj := range result {
			if obj.Result != nil && obj.Result.Errors == nil {
				imported++
			}
		}
		slog.Info("Imported knowledge batch", "count", end-i, "total_imported", imported)
	}
	return imported, nil
}

func knowledgeObject(item KnowledgeItem) *models.Object {
	bands := make([]string, len(item.Bands))
	for i, b := range item.Bands {
		bands[i] = string(b)
	}
	return &models.Object{
		Class: KnowledgeClassName,
		ID:    item.ID(),
		Properties: map[string]interface{}{
			"title":    item.Title,
			"content":  item.Content,
			"source":   strings.ToLower(item.Source),
			"category": string(item.Category),
			"bands":    bands,
		},
	}
}
