// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreStyle(t *testing.T) {
	tests := []struct {
		score float64
		want  any
	}{
		{score: 9.5, want: ColorStrong},
		{score: 7, want: ColorStrong},
		{score: 6.9, want: ColorMiddle},
		{score: 5, want: ColorMiddle},
		{score: 4.9, want: ColorWeak},
		{score: 0, want: ColorWeak},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreStyle(tt.score).GetForeground(), "score %.1f", tt.score)
	}
}

func TestIconRender(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError, IconArrow, IconBullet} {
		assert.Contains(t, icon.Render(), string(icon))
	}
}
