// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders interview practice output for the terminal.
package ux

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette, brightest teal first.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorStrong = lipgloss.Color("#2CD7C7")
	ColorMiddle = lipgloss.Color("#F4D03F")
	ColorWeak   = lipgloss.Color("#E74C3C")
)

// Styles are shared by the practice renderers and the CLI.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	// Box frames a question; InfoBox frames its evaluation.
	Box     lipgloss.Style
	InfoBox lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
	Success:  lipgloss.NewStyle().Foreground(ColorStrong),
	Warning:  lipgloss.NewStyle().Foreground(ColorMiddle),
	Error:    lipgloss.NewStyle().Foreground(ColorWeak),

	Box:     lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorTealDeep).Padding(0, 1),
	InfoBox: lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(ColorTealPrimary).Padding(0, 1),
}

type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// Render colours the icon by meaning.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	}
	return Styles.Subtitle.Render(string(i))
}

// ScoreStyle colours a 0-10 score: 7 and above strong, 5 to 7 middling,
// below 5 weak.
func ScoreStyle(score float64) lipgloss.Style {
	color := ColorWeak
	switch {
	case score >= 7:
		color = ColorStrong
	case score >= 5:
		color = ColorMiddle
	}
	return lipgloss.NewStyle().Bold(true).Foreground(color)
}
