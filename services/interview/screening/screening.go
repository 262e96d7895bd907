// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package screening removes credentials and personal data from candidate
// answers before they are evaluated or persisted.
package screening

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ClassPublic is returned by Classify when nothing matches.
const ClassPublic = "public"

//go:embed patterns.yaml
var defaultPatterns []byte

// Screener classifies and redacts text against a compiled pattern set. It is
// immutable after construction and safe for concurrent use.
type Screener struct {
	classifications []Classification
}

// New returns a Screener over the patterns embedded in the binary.
func New() (*Screener, error) {
	return NewFromYAML(defaultPatterns)
}

// NewFromYAML parses and compiles a pattern file.
//
// Outputs:
//
//	*Screener - Ready to use.
//	error - The YAML is malformed, a confidence is unknown or a regex is invalid.
func NewFromYAML(data []byte) (*Screener, error) {
	var file PatternFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the pattern file: %w", err)
	}
	if err := file.compile(); err != nil {
		return nil, err
	}
	return &Screener{classifications: file.Classifications}, nil
}

// Classify returns the name of the highest-priority classification with a
// match in text, or ClassPublic.
func (s *Screener) Classify(text string) string {
	for _, c := range s.classifications {
		for _, p := range c.Patterns {
			if p.compiled.MatchString(text) {
				return c.Name
			}
		}
	}
	return ClassPublic
}

// Redact replaces every match with a [REDACTED:<pattern id>] marker and
// reports one Finding per replaced span. Text without matches is returned
// unchanged with a nil slice.
func (s *Screener) Redact(text string) (string, []Finding) {
	var findings []Finding
	for _, c := range s.classifications {
		for _, p := range c.Patterns {
			marker := "[REDACTED:" + p.ID + "]"
			text = p.compiled.ReplaceAllStringFunc(text, func(string) string {
				findings = append(findings, Finding{
					Classification: c.Name,
					PatternID:      p.ID,
					Description:    p.Description,
					Confidence:     p.Confidence,
				})
				return marker
			})
		}
	}
	return text, findings
}
