package projects

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/internal/verifications"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
)

// SummaryDTO is the reporting view of a project's funding and milestone state.
type SummaryDTO struct {
	ProjectID       uuid.UUID                     `json:"project_id"`
	Status          enums.ProjectStatus           `json:"status"`
	FundingGoal     decimal.Decimal               `json:"funding_goal"`
	CurrentFunding  decimal.Decimal               `json:"current_funding"`
	PledgedFunding  decimal.Decimal               `json:"pledged_funding"`
	ReleasedTotal   decimal.Decimal               `json:"released_total"`
	Remaining       decimal.Decimal               `json:"remaining"`
	ProjectProgress float64                       `json:"project_progress"`
	MilestoneCounts map[enums.MilestoneStatus]int `json:"milestone_counts"`
	Milestones      []MilestoneSummary            `json:"milestones"`
}

type MilestoneSummary struct {
	ID                   uuid.UUID                     `json:"id"`
	Title                string                        `json:"title"`
	Status               enums.MilestoneStatus         `json:"status"`
	CompletionPercentage float64                       `json:"completion_percentage"`
	EstimatedFunding     decimal.Decimal               `json:"estimated_funding"`
	Released             *decimal.Decimal              `json:"released,omitempty"`
	Ratings              verifications.RatingAggregate `json:"ratings"`
}

func (s *service) Summary(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SummaryDTO, error) {
	project, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	milestones, err := s.repo.ListMilestones(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
	}
	payments, err := s.repo.ListMilestonePayments(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list escrow payments")
	}
	records, err := s.repo.ListVerifications(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verifications")
	}
	return BuildSummary(project, milestones, payments, records), nil
}

// BuildSummary folds the project's rows into a SummaryDTO.
func BuildSummary(project *models.Project, milestones []models.Milestone, payments []models.EscrowTransaction, records []models.Verification) *SummaryDTO {
	counts := make(map[enums.MilestoneStatus]int, len(enums.MilestoneStatuses()))
	for _, status := range enums.MilestoneStatuses() {
		counts[status] = 0
	}

	released := decimal.Zero
	paid := make(map[uuid.UUID]decimal.Decimal, len(payments))
	for _, p := range payments {
		released = released.Add(p.Amount)
		paid[p.MilestoneID] = paid[p.MilestoneID].Add(p.Amount)
	}

	byMilestone := make(map[uuid.UUID][]models.Verification)
	for _, v := range records {
		byMilestone[v.MilestoneID] = append(byMilestone[v.MilestoneID], v)
	}

	items := make([]MilestoneSummary, 0, len(milestones))
	for _, m := range milestones {
		counts[m.Status]++
		item := MilestoneSummary{
			ID:                   m.ID,
			Title:                m.Title,
			Status:               m.Status,
			CompletionPercentage: m.CompletionPercentage,
			EstimatedFunding:     m.EstimatedFunding,
			Ratings:              verifications.Aggregate(byMilestone[m.ID]),
		}
		if amount, ok := paid[m.ID]; ok {
			amount := amount
			item.Released = &amount
		}
		items = append(items, item)
	}

	remaining := project.FundingGoal.Sub(project.CurrentFunding)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return &SummaryDTO{
		ProjectID:       project.ID,
		Status:          project.Status,
		FundingGoal:     project.FundingGoal,
		CurrentFunding:  project.CurrentFunding,
		PledgedFunding:  project.PledgedFunding,
		ReleasedTotal:   released,
		Remaining:       remaining,
		ProjectProgress: project.ProjectProgress,
		MilestoneCounts: counts,
		Milestones:      items,
	}
}
