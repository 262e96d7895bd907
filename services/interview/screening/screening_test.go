// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package screening

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScreener_Redact(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	tests := []struct {
		name          string
		input         string
		want          string
		expectedClass string
		patterns      []string
	}{
		{
			name:          "safe answer",
			input:         "I grew weekly active users by 20% across 3 regions in 2023.",
			want:          "I grew weekly active users by 20% across 3 regions in 2023.",
			expectedClass: ClassPublic,
		},
		{
			name:          "aws access key",
			input:         "I rotated AKIA1234567890123456 after the incident.",
			want:          "I rotated [REDACTED:AWS_ACCESS_KEY_ID] after the incident.",
			expectedClass: "secret",
			patterns:      []string{"AWS_ACCESS_KEY_ID"},
		},
		{
			name:          "email address",
			input:         "My manager jdoe@example.com approved it.",
			want:          "My manager [REDACTED:EMAIL_ADDRESS] approved it.",
			expectedClass: "pii",
			patterns:      []string{"EMAIL_ADDRESS"},
		},
		{
			name:          "phone number",
			input:         "Call me at (555) 123-4567 tomorrow.",
			want:          "Call me at [REDACTED:PHONE_NUMBER] tomorrow.",
			expectedClass: "pii",
			patterns:      []string{"PHONE_NUMBER"},
		},
		{
			name:          "card before phone",
			input:         "Card 4111 1111 1111 1111 was charged.",
			want:          "Card [REDACTED:CREDIT_CARD] was charged.",
			expectedClass: "pii",
			patterns:      []string{"CREDIT_CARD"},
		},
		{
			name:          "secret outranks pii",
			input:         "Token sk-abcdefghijklmnopqrstuv was sent to ops@example.com twice, ops@example.com.",
			want:          "Token [REDACTED:API_TOKEN] was sent to [REDACTED:EMAIL_ADDRESS] twice, [REDACTED:EMAIL_ADDRESS].",
			expectedClass: "secret",
			patterns:      []string{"API_TOKEN", "EMAIL_ADDRESS", "EMAIL_ADDRESS"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedClass, s.Classify(tc.input))

			got, findings := s.Redact(tc.input)
			assert.Equal(t, tc.want, got)

			var ids []string
			for _, f := range findings {
				ids = append(ids, f.PatternID)
				assert.NotEmpty(t, f.Classification)
				assert.NotEmpty(t, f.Confidence)
			}
			assert.Equal(t, tc.patterns, ids)
		})
	}
}

func TestNewFromYAML(t *testing.T) {
	t.Run("priority order", func(t *testing.T) {
		s, err := NewFromYAML([]byte(`classifications:
  - name: low
    priority: 1
    patterns:
      - {id: WORD, regex: 'alpha', confidence: low}
  - name: high
    priority: 9
    patterns:
      - {id: WORD_HIGH, regex: 'alpha', confidence: high}
`))
		require.NoError(t, err)
		assert.Equal(t, "high", s.Classify("alpha"))

		got, findings := s.Redact("alpha")
		assert.Equal(t, "[REDACTED:WORD_HIGH]", got)
		require.Len(t, findings, 1)
		assert.Equal(t, High, findings[0].Confidence)
	})

	rejects := []struct {
		name string
		yaml string
	}{
		{name: "bad confidence", yaml: "classifications:\n  - name: x\n    patterns:\n      - {id: A, regex: 'a', confidence: certain}\n"},
		{name: "bad regex", yaml: "classifications:\n  - name: x\n    patterns:\n      - {id: A, regex: '(', confidence: low}\n"},
		{name: "missing id", yaml: "classifications:\n  - name: x\n    patterns:\n      - {regex: 'a', confidence: low}\n"},
		{name: "malformed", yaml: "classifications: [\n"},
	}
	for _, tc := range rejects {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFromYAML([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}
