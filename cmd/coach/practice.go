// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianCoach/pkg/config"
	"github.com/AleutianAI/AleutianCoach/pkg/ux"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator"
	"github.com/AleutianAI/AleutianCoach/services/orchestrator/handlers"
)

const renderWidth = 100

var (
	practiceQuestions  int
	practiceDifficulty string
	practiceCustom     string
	practiceName       string
)

var practiceCmd = &cobra.Command{
	Use:   "practice",
	Short: "Run an interactive practice interview in the terminal",
	RunE:  runPractice,
}

func init() {
	practiceCmd.Flags().IntVarP(&practiceQuestions, "questions", "n", 3, "number of questions (1-20)")
	practiceCmd.Flags().StringVarP(&practiceDifficulty, "difficulty", "d", "", "junior, mid or senior (prompted when omitted)")
	practiceCmd.Flags().StringVar(&practiceCustom, "custom", "", "ask this question first")
	practiceCmd.Flags().StringVar(&practiceName, "name", "", "candidate name")
}

// answerSource supplies the candidate's answer to the current question.
type answerSource interface {
	Answer(ctx context.Context, q *datatypes.Question) (string, error)
}

func runPractice(cmd *cobra.Command, args []string) error {
	ctx := contextOrBackground(cmd)
	interactive := isTerminal(os.Stdin) && isTerminal(os.Stdout)

	difficulty, err := chooseDifficulty(ctx, practiceDifficulty, interactive)
	if errors.Is(err, huh.ErrUserAborted) {
		return nil
	}
	if err != nil {
		return err
	}

	// Practice runs are never persisted.
	local := *cfg
	local.Store.Backend = config.StoreMemory
	svc, err := orchestrator.New(ctx, local, orchestrator.Options{Logger: logger.Slog()})
	if err != nil {
		return fmt.Errorf("failed to start practice engine: %w", err)
	}
	defer svc.Close()

	var answers answerSource = &lineAnswers{in: bufio.NewReader(os.Stdin), out: cmd.OutOrStdout()}
	if interactive {
		answers = huhAnswers{}
	}

	sessionCfg := datatypes.SessionConfig{
		TotalQuestions:  practiceQuestions,
		Difficulty:      difficulty,
		EnabledFeatures: datatypes.AllFeatures(),
		CandidateName:   practiceName,
		CustomQuestion:  practiceCustom,
	}
	err = practice(ctx, svc.Engine(), sessionCfg, answers, cmd.OutOrStdout())
	if errors.Is(err, huh.ErrUserAborted) {
		fmt.Fprintln(cmd.OutOrStdout(), ux.Styles.Muted.Render("Practice ended early."))
		return nil
	}
	return err
}

// practice drives one session to completion, rendering each turn to out.
// Rejected answers are reported and asked for again.
func practice(ctx context.Context, eng handlers.InterviewEngine, sessionCfg datatypes.SessionConfig, answers answerSource, out io.Writer) error {
	id, err := eng.StartSession(ctx, sessionCfg)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	for {
		state, err := eng.GetState(ctx, id)
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		q := state.CurrentQuestion()
		if state.Completed || q == nil {
			fmt.Fprintln(out, ux.RenderSummary(state))
			return nil
		}
		fmt.Fprintln(out, ux.RenderQuestion(state.CurrentIndex+1, len(state.Queue), q, renderWidth))

		answer, err := answers.Answer(ctx, q)
		if err != nil {
			return err
		}
		res, err := eng.SubmitAnswer(ctx, id, answer)
		if datatypes.KindOf(err) == datatypes.KindInvalidInput {
			fmt.Fprintln(out, ux.IconError.Render()+" "+ux.Styles.Error.Render(err.Error()))
			continue
		}
		if err != nil {
			return fmt.Errorf("evaluate answer: %w", err)
		}
		fmt.Fprintln(out, ux.RenderTurn(res.Record, renderWidth))
	}
}

func chooseDifficulty(ctx context.Context, flag string, interactive bool) (datatypes.Difficulty, error) {
	if flag != "" || !interactive {
		d := datatypes.Difficulty(strings.ToLower(strings.TrimSpace(flag)))
		if d == "" {
			d = datatypes.DifficultyMid
		}
		if !d.Valid() {
			return "", fmt.Errorf("unknown difficulty %q (want junior, mid or senior)", flag)
		}
		return d, nil
	}

	d := datatypes.DifficultyMid
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[datatypes.Difficulty]().
			Title("Interview level").
			Options(
				huh.NewOption("Junior", datatypes.DifficultyJunior),
				huh.NewOption("Mid-level", datatypes.DifficultyMid),
				huh.NewOption("Senior", datatypes.DifficultySenior),
			).
			Value(&d),
	)).RunWithContext(ctx)
	return d, err
}

// huhAnswers prompts with a multi-line text field.
type huhAnswers struct{}

func (huhAnswers) Answer(ctx context.Context, q *datatypes.Question) (string, error) {
	var answer string
	err := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title("Your answer").
			Description("Alt+Enter for a new line, Enter to submit").
			CharLimit(datatypes.MaxAnswerBytes).
			Validate(datatypes.ValidateAnswer).
			Value(&answer),
	)).RunWithContext(ctx)
	return answer, err
}

// lineAnswers reads answers from a pipe. An answer ends at a blank line or
// at end of input.
type lineAnswers struct {
	in  *bufio.Reader
	out io.Writer
}

func (l *lineAnswers) Answer(ctx context.Context, q *datatypes.Question) (string, error) {
	fmt.Fprint(l.out, "> ")
	var lines []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		line, err := l.in.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" && len(lines) > 0 {
			break
		}
		if line != "" {
			lines = append(lines, line)
		}
		if errors.Is(err, io.EOF) {
			if len(lines) == 0 {
				return "", huh.ErrUserAborted
			}
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.Join(lines, "\n"), nil
}
