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
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// WeaviateRetriever runs BM25 queries against the coaching knowledge class.
type WeaviateRetriever struct {
	client  *weaviate.Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewWeaviateRetriever creates a retriever. A zero timeout defaults to 5s.
func NewWeaviateRetriever(client *weaviate.Client, timeout time.Duration, logger *slog.Logger) *WeaviateRetriever {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WeaviateRetriever{client: client, timeout: timeout, logger: logger}
}

// Retrieve returns up to k passages matching query, most relevant first.
//
// Outputs:
//
//	[]datatypes.RetrievedContext - Matching passages; empty when nothing matches.
//	error - Wraps datatypes.ErrUpstreamTimeout when the query times out.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, k int, opts ...RetrieveOption) ([]datatypes.RetrievedContext, error) {
	if k <= 0 {
		k = 5
	}
	o := applyRetrieveOptions(opts)

	ctx, span := tracer.Start(ctx, "collaborator.WeaviateRetrieve",
		trace.WithAttributes(
			attribute.Int("k", k),
			attribute.String("band", string(o.Band)),
			attribute.String("category", string(o.Category)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields := []graphql.Field{
		{Name: "title"},
		{Name: "content"},
		{Name: "source"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}}},
	}

	getBuilder := r.client.GraphQL().Get().
		WithClassName(KnowledgeClassName).
		WithFields(fields...).
		WithBM25(r.client.GraphQL().Bm25ArgBuilder().WithQuery(query)).
		WithLimit(k)

	if where := knowledgeFilter(o); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: knowledge search: %v", datatypes.ErrUpstreamTimeout, err)
		} else {
			err = fmt.Errorf("knowledge search failed: %w", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(result.Errors) > 0 {
		err := fmt.Errorf("knowledge search error: %s", result.Errors[0].Message)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	data := make(map[string]interface{}, len(result.Data))
	for k, v := range result.Data {
		data[k] = v
	}
	passages := parseKnowledgeResponse(data)
	span.SetAttributes(attribute.Int("results", len(passages)))
	span.SetStatus(codes.Ok, "")
	return passages, nil
}

func knowledgeFilter(o RetrieveOptions) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder
	if o.Band != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"bands"}).
			WithOperator(filters.ContainsAny).
			WithValueText(string(o.Band)))
	}
	if o.Category != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"category"}).
			WithOperator(filters.Equal).
			WithValueString(string(o.Category)))
	}
	switch len(operands) {
	case 0:
		return nil
	case 1:
		return operands[0]
	default:
		return filters.Where().WithOperator(filters.And).WithOperands(operands)
	}
}

// parseKnowledgeResponse converts a GraphQL Get payload into passages.
func parseKnowledgeResponse(data map[string]interface{}) []datatypes.RetrievedContext {
	get, ok := data["Get"].(map[string]interface{})
	if !ok {
		return []datatypes.RetrievedContext{}
	}
	objects, ok := get[KnowledgeClassName].([]interface{})
	if !ok {
		return []datatypes.RetrievedContext{}
	}

	out := make([]datatypes.RetrievedContext, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, datatypes.RetrievedContext{
			Title:     getString(m, "title"),
			Text:      getString(m, "content"),
			Source:    getString(m, "source"),
			Relevance: additionalScore(m),
		})
	}
	return out
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// additionalScore reads _additional.score, which Weaviate returns as a string.
func additionalScore(m map[string]interface{}) float64 {
	add, ok := m["_additional"].(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := add["score"].(type) {
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return v
	default:
		return 0
	}
}
