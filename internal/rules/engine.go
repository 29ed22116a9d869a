package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/money"
)

// Snapshot is the project state a rule is evaluated against. It is loaded once
// per evaluation so every condition sees the same data.
type Snapshot struct {
	Project            models.Project
	Milestones         map[uuid.UUID]models.Milestone
	VerificationCounts map[uuid.UUID]int64
	Now                time.Time
}

// NewSnapshot indexes milestones by id.
func NewSnapshot(project models.Project, milestones []models.Milestone, counts map[uuid.UUID]int64, now time.Time) Snapshot {
	byID := make(map[uuid.UUID]models.Milestone, len(milestones))
	for _, m := range milestones {
		byID[m.ID] = m
	}
	if counts == nil {
		counts = map[uuid.UUID]int64{}
	}
	return Snapshot{Project: project, Milestones: byID, VerificationCounts: counts, Now: now}
}

// ConditionResult reports one condition of a dry run.
type ConditionResult struct {
	Index  int                     `json:"index"`
	Type   enums.RuleConditionType `json:"type"`
	Met    bool                    `json:"met"`
	Detail string                  `json:"detail"`
}

// Evaluation is the outcome of checking every condition of a rule.
type Evaluation struct {
	Matched    bool              `json:"matched"`
	Conditions []ConditionResult `json:"conditions"`
}

// Evaluate checks all conditions. A rule matches only when it has at least one
// condition and all of them hold.
func Evaluate(rule models.ReleaseRule, snap Snapshot) Evaluation {
	out := Evaluation{Conditions: make([]ConditionResult, 0, len(rule.Conditions))}
	matched := len(rule.Conditions) > 0
	for i, cond := range rule.Conditions {
		met, detail := evaluateCondition(cond, rule, snap)
		out.Conditions = append(out.Conditions, ConditionResult{Index: i, Type: cond.Type, Met: met, Detail: detail})
		matched = matched && met
	}
	out.Matched = matched
	return out
}

func evaluateCondition(cond models.RuleCondition, rule models.ReleaseRule, snap Snapshot) (bool, string) {
	switch cond.Type {
	case enums.RuleConditionMilestoneCompleted:
		m, ok := lookupMilestone(cond.MilestoneID, snap)
		if !ok {
			return false, "milestone not found"
		}
		return m.Status == enums.MilestoneStatusApproved, fmt.Sprintf("milestone %q is %s", m.Title, m.Status)

	case enums.RuleConditionVerificationCount:
		m, ok := lookupMilestone(cond.MilestoneID, snap)
		if !ok {
			return false, "milestone not found"
		}
		need := 0
		if cond.MinCount != nil {
			need = *cond.MinCount
		}
		have := snap.VerificationCounts[m.ID]
		return have >= int64(need), fmt.Sprintf("%d of %d verifications", have, need)

	case enums.RuleConditionTimePassed:
		days := 0
		if cond.Days != nil {
			days = *cond.Days
		}
		start := rule.CreatedAt
		if cond.MilestoneID != nil {
			m, ok := lookupMilestone(cond.MilestoneID, snap)
			if !ok {
				return false, "milestone not found"
			}
			if m.ApprovedAt == nil {
				return false, fmt.Sprintf("milestone %q not approved yet", m.Title)
			}
			start = *m.ApprovedAt
		}
		elapsed := snap.Now.Sub(start)
		return elapsed >= time.Duration(days)*24*time.Hour,
			fmt.Sprintf("%d of %d days passed", int(elapsed.Hours()/24), days)

	case enums.RuleConditionProjectFunding:
		want := 0.0
		if cond.Percentage != nil {
			want = *cond.Percentage
		}
		have := money.Percent(snap.Project.PledgedFunding, snap.Project.FundingGoal)
		return have >= want, fmt.Sprintf("%.2f%% of %.2f%% funded", have, want)

	default:
		return false, fmt.Sprintf("unknown condition type %q", cond.Type)
	}
}

func lookupMilestone(id *uuid.UUID, snap Snapshot) (models.Milestone, bool) {
	if id == nil {
		return models.Milestone{}, false
	}
	m, ok := snap.Milestones[*id]
	return m, ok
}
