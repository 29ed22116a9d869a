package projects

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// MilestoneInput is one planned milestone, used at project creation and when
// adding milestones later.
type MilestoneInput struct {
	Title                string          `json:"title" validate:"required,max=200"`
	Description          string          `json:"description" validate:"max=5000"`
	DueDate              time.Time       `json:"due_date" validate:"required"`
	CompletionPercentage float64         `json:"completion_percentage" validate:"gt=0,lte=100"`
	EstimatedFunding     decimal.Decimal `json:"estimated_funding"`
}

type CreateProjectRequest struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description string           `json:"description" validate:"required,max=10000"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	FundingGoal decimal.Decimal  `json:"funding_goal"`
	SDGs        []string         `json:"sdgs" validate:"omitempty,dive,required,max=50"`
	Milestones  []MilestoneInput `json:"milestones" validate:"required,min=1,dive"`
}

// UpdateProjectRequest carries optional field edits; nil leaves a field as is.
type UpdateProjectRequest struct {
	Title       *string          `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string          `json:"description,omitempty" validate:"omitempty,max=10000"`
	Category    *string          `json:"category,omitempty" validate:"omitempty,max=100"`
	FundingGoal *decimal.Decimal `json:"funding_goal,omitempty"`
	SDGs        []string         `json:"sdgs,omitempty" validate:"omitempty,dive,required,max=50"`
}

type ReviewRequest struct {
	Decision enums.ReviewDecision `json:"decision" validate:"required"`
	Reason   string               `json:"reason" validate:"max=2000"`
}

type ProjectDTO struct {
	ID              uuid.UUID           `json:"id"`
	OwnerID         uuid.UUID           `json:"owner_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Category        *string             `json:"category,omitempty"`
	FundingGoal     decimal.Decimal     `json:"funding_goal"`
	CurrentFunding  decimal.Decimal     `json:"current_funding"`
	PledgedFunding  decimal.Decimal     `json:"pledged_funding"`
	ProjectProgress float64             `json:"project_progress"`
	Status          enums.ProjectStatus `json:"status"`
	SDGs            []string            `json:"sdgs"`
	RejectionReason *string             `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID          `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time          `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Milestones      []MilestoneDTO      `json:"milestones,omitempty"`
}

type MilestoneDTO struct {
	ID                    uuid.UUID             `json:"id"`
	ProjectID             uuid.UUID             `json:"project_id"`
	Position              int                   `json:"position"`
	Title                 string                `json:"title"`
	Description           string                `json:"description"`
	DueDate               time.Time             `json:"due_date"`
	CompletionPercentage  float64               `json:"completion_percentage"`
	EstimatedFunding      decimal.Decimal       `json:"estimated_funding"`
	Status                enums.MilestoneStatus `json:"status"`
	CompletionDetails     *string               `json:"completion_details,omitempty"`
	CompletionDate        *time.Time            `json:"completion_date,omitempty"`
	VerificationDocuments []models.Document     `json:"verification_documents"`
	StartedAt             *time.Time            `json:"started_at,omitempty"`
	SubmittedAt           *time.Time            `json:"submitted_at,omitempty"`
	ApprovedBy            *uuid.UUID            `json:"approved_by,omitempty"`
	ApprovedAt            *time.Time            `json:"approved_at,omitempty"`
	RejectedBy            *uuid.UUID            `json:"rejected_by,omitempty"`
	RejectedAt            *time.Time            `json:"rejected_at,omitempty"`
	RejectionReason       *string               `json:"rejection_reason,omitempty"`
	CreatedAt             time.Time             `json:"created_at"`
	UpdatedAt             time.Time             `json:"updated_at"`
}

func FromModel(p *models.Project) *ProjectDTO {
	if p == nil {
		return nil
	}
	sdgs := []string(p.SDGs)
	if sdgs == nil {
		sdgs = []string{}
	}
	return &ProjectDTO{
		ID:              p.ID,
		OwnerID:         p.OwnerID,
		Title:           p.Title,
		Description:     p.Description,
		Category:        p.Category,
		FundingGoal:     p.FundingGoal,
		CurrentFunding:  p.CurrentFunding,
		PledgedFunding:  p.PledgedFunding,
		ProjectProgress: p.ProjectProgress,
		Status:          p.Status,
		SDGs:            sdgs,
		RejectionReason: p.RejectionReason,
		ReviewedBy:      p.ReviewedBy,
		ReviewedAt:      p.ReviewedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func MilestoneFromModel(m *models.Milestone) MilestoneDTO {
	docs := []models.Document(m.VerificationDocuments)
	if docs == nil {
		docs = []models.Document{}
	}
	return MilestoneDTO{
		ID:                    m.ID,
		ProjectID:             m.ProjectID,
		Position:              m.Position,
		Title:                 m.Title,
		Description:           m.Description,
		DueDate:               m.DueDate,
		CompletionPercentage:  m.CompletionPercentage,
		EstimatedFunding:      m.EstimatedFunding,
		Status:                m.Status,
		CompletionDetails:     m.CompletionDetails,
		CompletionDate:        m.CompletionDate,
		VerificationDocuments: docs,
		StartedAt:             m.StartedAt,
		SubmittedAt:           m.SubmittedAt,
		ApprovedBy:            m.ApprovedBy,
		ApprovedAt:            m.ApprovedAt,
		RejectedBy:            m.RejectedBy,
		RejectedAt:            m.RejectedAt,
		RejectionReason:       m.RejectionReason,
		CreatedAt:             m.CreatedAt,
		UpdatedAt:             m.UpdatedAt,
	}
}

func MilestonesFromModels(rows []models.Milestone) []MilestoneDTO {
	out := make([]MilestoneDTO, 0, len(rows))
	for i := range rows {
		out = append(out, MilestoneFromModel(&rows[i]))
	}
	return out
}
