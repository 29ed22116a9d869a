package verifications

import (
	"time"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Ratings are optional 1-5 scores.
type Ratings struct {
	Completion    *int `json:"completion,omitempty" validate:"omitempty,min=1,max=5"`
	Documentation *int `json:"documentation,omitempty" validate:"omitempty,min=1,max=5"`
	Quality       *int `json:"quality,omitempty" validate:"omitempty,min=1,max=5"`
	Average       *int `json:"average,omitempty" validate:"omitempty,min=1,max=5"`
}

type CreateRequest struct {
	Ratings          Ratings  `json:"ratings"`
	CriteriaVerified []string `json:"criteria_verified" validate:"omitempty,max=50,dive,required,max=200"`
	Comment          *string  `json:"comment,omitempty" validate:"omitempty,max=5000"`
}

type VerificationDTO struct {
	ID               uuid.UUID      `json:"id"`
	MilestoneID      uuid.UUID      `json:"milestone_id"`
	ProjectID        uuid.UUID      `json:"project_id"`
	VerifierID       uuid.UUID      `json:"verifier_id"`
	VerifierRole     enums.UserRole `json:"verifier_role"`
	Ratings          Ratings        `json:"ratings"`
	CriteriaVerified []string       `json:"criteria_verified"`
	Comment          *string        `json:"comment,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// ListResult is a milestone's verifications with their aggregate.
type ListResult struct {
	Items     []VerificationDTO `json:"items"`
	Aggregate RatingAggregate   `json:"aggregate"`
}

func FromModel(v *models.Verification) VerificationDTO {
	criteria := []string(v.CriteriaVerified)
	if criteria == nil {
		criteria = []string{}
	}
	return VerificationDTO{
		ID:           v.ID,
		MilestoneID:  v.MilestoneID,
		ProjectID:    v.ProjectID,
		VerifierID:   v.VerifierID,
		VerifierRole: v.VerifierRole,
		Ratings: Ratings{
			Completion:    v.RatingCompletion,
			Documentation: v.RatingDocumentation,
			Quality:       v.RatingQuality,
			Average:       v.RatingAverage,
		},
		CriteriaVerified: criteria,
		Comment:          v.Comment,
		CreatedAt:        v.CreatedAt,
	}
}
