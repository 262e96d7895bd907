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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
)

// RenderQuestion formats the question header shown before an answer.
func RenderQuestion(index, total int, q *datatypes.Question, width int) string {
	header := Styles.Title.Render(fmt.Sprintf("Question %d of %d", index, total))
	meta := Styles.Muted.Render(fmt.Sprintf("%s %s %s", q.Category, IconBullet, q.Difficulty))
	body := lipgloss.NewStyle().Width(boxWidth(width)).Render(q.Text)
	return Styles.Box.Render(lipgloss.JoinVertical(lipgloss.Left, header+"  "+meta, "", body))
}

// RenderTurn formats the evaluation of one answer.
func RenderTurn(rec *datatypes.EvaluationRecord, width int) string {
	var b strings.Builder
	score := ScoreStyle(rec.Score).Render(fmt.Sprintf("%.1f/10", rec.Score))
	b.WriteString(Styles.Title.Render("Score ") + score)
	if rec.Coaching != nil {
		b.WriteString("  " + Styles.Muted.Render(string(rec.Coaching.Band)))
	}
	b.WriteString("\n")

	if rec.Consensus != nil {
		fmt.Fprintf(&b, "%s %s", Styles.Subtitle.Render("Panel:"), rec.Consensus.Recommendation)
		if rec.Consensus.LowConfidence {
			b.WriteString(" " + IconWarning.Render() + Styles.Warning.Render(" low confidence"))
		}
		b.WriteString("\n")
	}

	if rec.GRAIL != nil {
		b.WriteString("\n" + Styles.Bold.Render("GRAIL") + "\n")
		for _, d := range datatypes.AllDimensions {
			ds, ok := rec.GRAIL.Dimensions[d]
			if !ok {
				fmt.Fprintf(&b, "  %-10s %s\n", d, Styles.Muted.Render("not scored"))
				continue
			}
			fmt.Fprintf(&b, "  %-10s %s %s\n", d, ScoreStyle(ds.Score).Render(fmt.Sprintf("%4.1f", ds.Score)), Styles.Muted.Render(string(ds.Band)))
		}
	}

	if rec.Coaching != nil {
		b.WriteString("\n" + Styles.Bold.Render("Coaching") + "\n")
		for _, section := range rec.Coaching.Sections() {
			if section != "" {
				b.WriteString(section + "\n")
			}
		}
	}

	writeList(&b, "Tips", rec.Tips)
	writeList(&b, "Follow-ups to prepare", rec.FollowUps)

	if rec.Partial {
		b.WriteString("\n" + IconWarning.Render() + Styles.Warning.Render(" Some evaluation stages did not finish.") + "\n")
	}

	return Styles.InfoBox.Render(lipgloss.NewStyle().Width(boxWidth(width)).Render(strings.TrimRight(b.String(), "\n")))
}

// RenderSummary formats the end-of-session overview.
func RenderSummary(s *datatypes.InterviewSession) string {
	var b strings.Builder
	b.WriteString(Styles.Title.Render("Session complete") + "\n")
	fmt.Fprintf(&b, "Questions answered: %d\n", len(s.History))
	fmt.Fprintf(&b, "Rolling average:    %s\n", ScoreStyle(s.Metrics.RollingAverage).Render(fmt.Sprintf("%.1f", s.Metrics.RollingAverage)))
	fmt.Fprintf(&b, "Trend:              %s\n", s.Metrics.Trend)
	fmt.Fprintf(&b, "Final difficulty:   %s\n", s.Difficulty)
	if s.Halted {
		b.WriteString(IconWarning.Render() + Styles.Warning.Render(" The session stopped early at its transition limit.") + "\n")
	}
	return Styles.Box.Render(strings.TrimRight(b.String(), "\n"))
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString("\n" + Styles.Bold.Render(title) + "\n")
	for _, item := range items {
		fmt.Fprintf(b, "  %s %s\n", IconArrow.Render(), item)
	}
}

func boxWidth(width int) int {
	if width <= 0 || width > 100 {
		width = 100
	}
	if width < 40 {
		width = 40
	}
	return width - 4
}
