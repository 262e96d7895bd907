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
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	// MinAnswerChars is the shortest answer accepted, after trimming.
	MinAnswerChars = 10

	// MaxAnswerBytes bounds the size of a submitted answer.
	MaxAnswerBytes = 20000
)

// interviewValidate is the validator instance for interview datatypes.
// Initialized in init() with custom validators.
var interviewValidate *validator.Validate

func init() {
	interviewValidate = validator.New()
	_ = interviewValidate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return Category(fl.Field().String()).Valid()
	})
	_ = interviewValidate.RegisterValidation("difficulty", func(fl validator.FieldLevel) bool {
		return Difficulty(fl.Field().String()).Valid()
	})
}

// Validate checks the session configuration.
//
// Outputs:
//
//	error - Wraps ErrInvalidInput with the failing field details, nil if valid.
func (c *SessionConfig) Validate() error {
	if err := interviewValidate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Validate checks a question definition.
func (q *Question) Validate() error {
	if err := interviewValidate.Struct(q); err != nil {
		return fmt.Errorf("%w: question %q: %v", ErrInvalidInput, q.ID, err)
	}
	return nil
}

// ValidateAnswer rejects answers that must not enter the graph.
func ValidateAnswer(answer string) error {
	if !utf8.ValidString(answer) {
		return fmt.Errorf("%w: answer is not valid UTF-8", ErrInvalidInput)
	}
	if len(answer) > MaxAnswerBytes {
		return fmt.Errorf("%w: answer exceeds %d bytes", ErrInvalidInput, MaxAnswerBytes)
	}
	if utf8.RuneCountInString(strings.TrimSpace(answer)) < MinAnswerChars {
		return fmt.Errorf("%w: answer must contain at least %d characters", ErrInvalidInput, MinAnswerChars)
	}
	return nil
}
