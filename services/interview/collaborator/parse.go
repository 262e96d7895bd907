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
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// ParseStructuredResult extracts and validates the JSON object in raw.
//
// Description:
//
//	Models frequently wrap JSON in prose or code fences, so the outermost
//	object is located first. Scored tasks must carry a finite score in
//	[0,10]; text tasks must carry text or items. Confidence is clipped to
//	[0,1] and defaults to 0.5 when absent.
//
// Inputs:
//
//	task - The task the response answers.
//	raw - The upstream response.
//
// Outputs:
//
//	*StructuredResult - The parsed result.
//	error - Wraps datatypes.ErrEvaluationParse on any shape violation.
func ParseStructuredResult(task Task, raw string) (*StructuredResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in response", datatypes.ErrEvaluationParse)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", datatypes.ErrEvaluationParse, err)
	}
	var res StructuredResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &res); err != nil {
		return nil, fmt.Errorf("%w: %v", datatypes.ErrEvaluationParse, err)
	}

	if task.scored() {
		if _, ok := fields["score"]; !ok {
			return nil, fmt.Errorf("%w: missing score", datatypes.ErrEvaluationParse)
		}
		if math.IsNaN(res.Score) || res.Score < 0 || res.Score > 10 {
			return nil, fmt.Errorf("%w: score %v outside [0,10]", datatypes.ErrEvaluationParse, res.Score)
		}
	} else if strings.TrimSpace(res.Text) == "" && len(res.Items) == 0 {
		return nil, fmt.Errorf("%w: empty %s response", datatypes.ErrEvaluationParse, task)
	}

	if _, ok := fields["confidence"]; !ok {
		res.Confidence = 0.5
	}
	res.Confidence = clip01(res.Confidence)

	for k, v := range res.AspectScores {
		if math.IsNaN(v) || v < 0 || v > 10 {
			delete(res.AspectScores, k)
		}
	}
	return &res, nil
}

func (t Task) scored() bool {
	switch t {
	case TaskBaseline, TaskAgent, TaskGRAILDimension:
		return true
	default:
		return false
	}
}

func clip01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
