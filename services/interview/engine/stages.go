// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianCoach/services/interview/adaptive"
	"github.com/AleutianAI/AleutianCoach/services/interview/coaching"
	"github.com/AleutianAI/AleutianCoach/services/interview/collaborator"
	"github.com/AleutianAI/AleutianCoach/services/interview/consensus"
	"github.com/AleutianAI/AleutianCoach/services/interview/datatypes"
	"github.com/AleutianAI/AleutianCoach/services/interview/grail"
	"github.com/AleutianAI/AleutianCoach/services/interview/graph"
	"github.com/AleutianAI/AleutianCoach/services/interview/questions"
)

var fallbackTips = []string{
	"Open with the goal and why it mattered to the business.",
	"Quantify the result with a concrete metric and a time frame.",
	"Spell out the trade-offs you weighed before acting.",
	"Close with what you learned and what you now do differently.",
}

func (e *Engine) handlers() map[graph.Stage]graph.StageFunc {
	return map[graph.Stage]graph.StageFunc{
		graph.StageParseAnswer:     e.parseAnswer,
		graph.StageRetrieveContext: e.retrieveContext,
		graph.StageTemplateAnswer:  e.templateAnswer,
		graph.StageBaseline:        e.baselineEvaluate,
		graph.StageMultiAgent:      e.multiAgentEvaluate,
		graph.StageGRAIL:           e.grailEvaluate,
		graph.StageCoaching:        e.generateCoaching,
		graph.StageTips:            e.generateTips,
		graph.StageFollowUps:       e.generateFollowUps,
		graph.StageAdaptiveSelect:  e.adaptiveSelect,
	}
}

// parseAnswer splits the answer into evidence segments.
func (e *Engine) parseAnswer(_ context.Context, turn *graph.Turn) error {
	rec := turn.Record
	answer := strings.TrimSpace(rec.Answer)
	segments, err := e.splitter.SplitText(answer)
	if err != nil || len(segments) == 0 {
		if err != nil {
			rec.AddIssue(graph.StageParseAnswer.String(), datatypes.KindInternal, "answer split failed: "+err.Error())
		}
		segments = []string{answer}
	}
	rec.AnswerSegments = segments
	return nil
}

// retrieveContext fetches knowledge passages. A slow or failing retriever
// yields an empty context.
func (e *Engine) retrieveContext(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	rec.Context = nil
	if e.retriever == nil {
		return nil
	}

	query := rec.Question.Text
	if rec.FocusArea != "" {
		query = rec.FocusArea + " " + query
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RetrievalTimeout)
	defer cancel()
	passages, err := e.retriever.Retrieve(ctx, query, e.cfg.RetrievalTopK,
		collaborator.WithCategory(rec.Question.Category))
	if err != nil {
		kind := datatypes.KindOf(err)
		if errors.Is(err, context.DeadlineExceeded) {
			kind = datatypes.KindUpstreamTimeout
		}
		rec.AddIssue(graph.StageRetrieveContext.String(), kind, "retrieval unavailable, continuing without context")
		e.logger.Warn("context retrieval failed",
			slog.String("session_id", rec.SessionID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil
	}
	rec.Context = passages
	return nil
}

// templateAnswer fills the exemplary answer from the cache, generating it on
// a miss and falling back to the category template.
func (e *Engine) templateAnswer(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	q := rec.Question
	key := q.ID + "|" + string(turn.Session.Difficulty)

	text, err := e.templates.GetOrGenerate(ctx, key, func(ctx context.Context) (string, error) {
		res, err := e.collab.Evaluate(ctx, collaborator.PromptContext{
			Task:     collaborator.TaskTemplateAnswer,
			Question: q,
			Context:  rec.Context,
		})
		if err != nil {
			return "", err
		}
		if res == nil || strings.TrimSpace(res.Text) == "" {
			return "", fmt.Errorf("%w: empty template answer", datatypes.ErrEvaluationParse)
		}
		return res.Text, nil
	})
	if err != nil {
		rec.AddIssue(graph.StageTemplateAnswer.String(), datatypes.KindOf(err), "template generation failed, using category template")
		text = questions.TemplateAnswer(q.Category)
	}
	rec.TemplateAnswer = text
	return nil
}

func (e *Engine) baselineEvaluate(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	res, err := e.collab.Evaluate(ctx, collaborator.PromptContext{
		Task:     collaborator.TaskBaseline,
		Question: rec.Question,
		Answer:   rec.Answer,
		Context:  rec.Context,
		Focus:    rec.FocusArea,
	})
	if err == nil && res == nil {
		err = fmt.Errorf("%w: empty baseline result", datatypes.ErrEvaluationParse)
	}
	if err != nil {
		return datatypes.NewStageError(graph.StageBaseline.String(), "", err)
	}

	rec.Baseline = &datatypes.BaselineEvaluation{
		OverallScore:      res.Score,
		Completeness:      res.SubScores["completeness"],
		Clarity:           res.SubScores["clarity"],
		Depth:             res.SubScores["depth"],
		Impact:            res.SubScores["impact"],
		Leadership:        res.SubScores["leadership"],
		Strengths:         append([]string(nil), res.Strengths...),
		ImprovementAreas:  append([]string(nil), res.Improvements...),
		FollowUpNeeded:    res.FollowUpNeeded,
		EvaluationSummary: res.Rationale,
	}
	return nil
}

func (e *Engine) multiAgentEvaluate(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	result, err := e.consensus.Evaluate(ctx, consensus.Input{
		Question: rec.Question,
		Answer:   rec.Answer,
		Context:  rec.Context,
		Focus:    rec.FocusArea,
	})
	if err != nil {
		return datatypes.NewStageError(graph.StageMultiAgent.String(), datatypes.KindInternal, err)
	}
	rec.Consensus = result
	if result.LowConfidence {
		rec.AddIssue(graph.StageMultiAgent.String(), datatypes.KindInsufficientConsensus,
			fmt.Sprintf("%s: %d of %d agents succeeded", datatypes.ErrInsufficientConsensus,
				len(result.Agents), len(result.Agents)+len(result.MissingAgents)))
	}
	return nil
}

func (e *Engine) grailEvaluate(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	result, err := e.grail.Evaluate(ctx, grail.Input{
		Question: rec.Question,
		Answer:   rec.Answer,
		Context:  rec.Context,
		Focus:    rec.FocusArea,
	})
	if err != nil {
		return datatypes.NewStageError(graph.StageGRAIL.String(), "", err)
	}
	rec.GRAIL = result
	if n := len(result.MissingDimensions); n > 0 {
		rec.AddIssue(graph.StageGRAIL.String(), datatypes.KindEvaluationParse,
			fmt.Sprintf("%d GRAIL dimensions could not be evaluated", n))
	}
	return nil
}

func (e *Engine) generateCoaching(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	fb, err := e.coach.Generate(ctx, coaching.Input{
		Question:  rec.Question,
		Answer:    rec.Answer,
		Baseline:  rec.Baseline,
		Consensus: rec.Consensus,
		GRAIL:     rec.GRAIL,
		History:   turn.Session.History,
		FollowUps: rec.FollowUps,
	})
	if fb != nil {
		rec.Coaching = fb
	}
	if err != nil {
		return datatypes.NewStageError(graph.StageCoaching.String(), "", err)
	}
	return nil
}

// generateTips merges collaborator tips with the GRAIL recommendations.
func (e *Engine) generateTips(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	var tips []string

	res, err := e.collab.Evaluate(ctx, collaborator.PromptContext{
		Task:     collaborator.TaskTips,
		Question: rec.Question,
		Answer:   rec.Answer,
		Context:  rec.Context,
		Evidence: improvementEvidence(rec),
	})
	switch {
	case err != nil:
		rec.AddIssue(graph.StageTips.String(), datatypes.KindOf(err), "tip generation failed, using rubric recommendations")
	case res != nil:
		tips = append(tips, res.Items...)
	}
	if rec.GRAIL != nil {
		tips = append(tips, rec.GRAIL.ImprovementRecommendations...)
	}
	tips = uniqueNonEmpty(tips)
	if len(tips) == 0 {
		tips = append([]string(nil), fallbackTips...)
	}
	if len(tips) > maxTips {
		tips = tips[:maxTips]
	}
	rec.Tips = tips
	return nil
}

func (e *Engine) generateFollowUps(ctx context.Context, turn *graph.Turn) error {
	rec := turn.Record
	var followUps []string

	res, err := e.collab.Evaluate(ctx, collaborator.PromptContext{
		Task:     collaborator.TaskFollowUps,
		Question: rec.Question,
		Answer:   rec.Answer,
		Focus:    rec.FocusArea,
	})
	if err != nil {
		rec.AddIssue(graph.StageFollowUps.String(), datatypes.KindOf(err), "follow-up generation failed, using category follow-ups")
	} else if res != nil {
		followUps = uniqueNonEmpty(res.Items)
	}
	if len(followUps) == 0 {
		followUps = questions.FollowUps(rec.Question.Category)
	}
	if len(followUps) > maxFollowUps {
		followUps = followUps[:maxFollowUps]
	}
	rec.FollowUps = followUps
	if rec.Coaching != nil {
		rec.Coaching.FollowUpQuestions = coaching.AdaptFollowUps(rec.Coaching.Band, followUps)
	}
	return nil
}

// adaptiveSelect scores the turn so far and asks the selector for the next
// step. A deep dive narrows the focus for the re-entered stages.
func (e *Engine) adaptiveSelect(_ context.Context, turn *graph.Turn) error {
	rec := turn.Record
	s := turn.Session
	if score, ok := coaching.BlendedScore(rec.Baseline, rec.Consensus, rec.GRAIL); ok {
		rec.Score = score
	}

	decision, metrics := e.selector.Decide(adaptive.Input{
		Current:            rec,
		History:            s.History,
		Remaining:          s.Remaining(),
		Pool:               e.unqueued(s),
		RequiredCategories: s.RequiredCategories,
		Difficulty:         s.Difficulty,
		TotalQuestions:     s.Config.TotalQuestions,
	})
	rec.Decision = &decision
	if decision.Action == datatypes.ActionDeepDive {
		rec.DeepDives++
		rec.FocusArea = decision.FocusArea
	}

	e.logger.Debug("adaptive decision",
		slog.String("session_id", s.ID),
		slog.String("decision", adaptive.Describe(decision)),
		slog.String("trend", string(metrics.Trend)),
	)
	return nil
}

// unqueued returns bank questions not already in the session queue.
func (e *Engine) unqueued(s *datatypes.InterviewSession) []datatypes.Question {
	return e.bank.Unasked(s.AskedIDs())
}

func improvementEvidence(rec *datatypes.EvaluationRecord) []string {
	var out []string
	if rec.Baseline != nil {
		out = append(out, rec.Baseline.ImprovementAreas...)
	}
	if rec.Consensus != nil {
		out = append(out, rec.Consensus.Improvements...)
	}
	if rec.GRAIL != nil {
		for _, d := range datatypes.AllDimensions {
			out = append(out, rec.GRAIL.Dimensions[d].MissingElements...)
		}
	}
	return uniqueNonEmpty(out)
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
