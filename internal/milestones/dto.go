package milestones

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// AddRequest appends a milestone. Rebalance assigns new weights to existing,
// non-approved milestones so the plan still sums to 100.
type AddRequest struct {
	Milestone projects.MilestoneInput `json:"milestone" validate:"required"`
	Rebalance map[uuid.UUID]float64   `json:"rebalance"`
}

type ReweightRequest struct {
	Weights map[uuid.UUID]float64 `json:"weights" validate:"required,min=1"`
}

type UpdateRequest struct {
	Title            *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description      *string          `json:"description,omitempty" validate:"omitempty,max=5000"`
	DueDate          *time.Time       `json:"due_date,omitempty"`
	EstimatedFunding *decimal.Decimal `json:"estimated_funding,omitempty"`
}

type SubmitRequest struct {
	CompletionDetails string            `json:"completion_details" validate:"max=10000"`
	CompletionDate    time.Time         `json:"completion_date"`
	Documents         []models.Document `json:"verification_documents" validate:"omitempty,max=20"`
}

type DecisionRequest struct {
	Decision enums.ReviewDecision `json:"decision" validate:"required"`
	Reason   string               `json:"reason" validate:"max=2000"`
}

// DecisionResult is the milestone after a decision plus the project fields it touched.
type DecisionResult struct {
	Milestone       projects.MilestoneDTO `json:"milestone"`
	ProjectProgress float64               `json:"project_progress"`
	ProjectStatus   enums.ProjectStatus   `json:"project_status"`
	Changed         bool                  `json:"changed"`
}
