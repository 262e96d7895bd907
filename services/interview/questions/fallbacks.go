// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package questions

import "github.com/AleutianAI/AleutianCoach/services/interview/datatypes"

var templateAnswers = map[datatypes.Category]string{
	datatypes.CategoryLeadership: "Situation: Led cross-functional team during critical product pivot. " +
		"Task: Align 15+ stakeholders on new direction within 2 weeks. " +
		"Action: Conducted 1:1s, created shared vision doc, ran design sprints. " +
		"Result: 100% buy-in, launched MVP 3 weeks early, 40% adoption rate.",
	datatypes.CategoryPrioritization: "Situation: 5 high-priority features, only resources for 2. " +
		"Task: Choose features maximizing user value and business impact. " +
		"Action: Analyzed usage data, ran opportunity sizing, stakeholder mapping. " +
		"Result: Selected features increased NPS by 15 points, $2M additional revenue.",
	datatypes.CategoryStakeholderManagement: "Situation: Engineering and design disagreed on implementation approach. " +
		"Task: Find solution balancing technical feasibility and user experience. " +
		"Action: Facilitated workshop, created decision matrix, ran A/B test. " +
		"Result: Hybrid approach reduced dev time 30%, improved usability score 25%.",
	datatypes.CategoryConflictResolution: "Situation: Two senior engineers blocked each other on an API redesign. " +
		"Task: Unblock the release without losing either engineer's trust. " +
		"Action: Met each separately, wrote up both options with costs, agreed decision criteria together. " +
		"Result: Shipped on time with the combined design, no escalations in the following quarter.",
	datatypes.CategoryProductDecisions: "Situation: Onboarding drop-off rose to 45% after a redesign. " +
		"Task: Decide whether to roll back or iterate. " +
		"Action: Segmented funnel data, ran five user interviews, tested a shorter flow with 10% of traffic. " +
		"Result: Iterated instead of rolling back, drop-off fell to 28% within a month.",
	datatypes.CategoryFailureRecovery: "Situation: A pricing change I led caused a 12% churn spike. " +
		"Task: Stop the churn and rebuild customer trust. " +
		"Action: Owned the mistake publicly, grandfathered affected accounts, added a pricing review step. " +
		"Result: Churn returned to baseline in six weeks and the review caught two later issues.",
}

const genericTemplateAnswer = "Use STAR: Describe Situation clearly, define your Task/role, " +
	"explain specific Actions taken, quantify Results achieved."

// TemplateAnswer returns the fallback model answer for a category.
func TemplateAnswer(c datatypes.Category) string {
	if t, ok := templateAnswers[c]; ok {
		return t
	}
	return genericTemplateAnswer
}

var followUps = map[datatypes.Category][]string{
	datatypes.CategoryLeadership: {
		"How did you measure the success of your leadership approach in this situation?",
		"What would you do differently if you faced a similar leadership challenge again?",
		"How did you ensure team buy-in for your decisions throughout this process?",
	},
	datatypes.CategoryConflictResolution: {
		"What early warning signs helped you identify this conflict?",
		"How did you balance different stakeholder perspectives in your resolution?",
		"What processes did you put in place to prevent similar conflicts?",
	},
	datatypes.CategoryPrioritization: {
		"What framework did you use to evaluate competing priorities?",
		"How did you communicate these prioritization decisions to stakeholders?",
		"What metrics did you use to validate your prioritization choices?",
	},
	datatypes.CategoryStakeholderManagement: {
		"How did you tailor your communication style for different stakeholders?",
		"What strategies did you use to maintain stakeholder alignment over time?",
		"How did you handle pushback from key stakeholders?",
	},
	datatypes.CategoryProductDecisions: {
		"What data sources influenced your product decision-making process?",
		"How did you validate your assumptions before implementing this decision?",
		"What was the long-term impact of this product decision?",
	},
	datatypes.CategoryFailureRecovery: {
		"What early indicators helped you recognize this failure?",
		"How did you communicate the failure and recovery plan to stakeholders?",
		"What systems did you implement to prevent similar failures?",
	},
}

var genericFollowUps = []string{
	"Can you elaborate on the decision-making process you used?",
	"What alternative approaches did you consider?",
	"How did you measure the success of your actions?",
}

// FollowUps returns the fallback follow-up questions for a category.
func FollowUps(c datatypes.Category) []string {
	if f, ok := followUps[c]; ok {
		return append([]string(nil), f...)
	}
	return append([]string(nil), genericFollowUps...)
}
