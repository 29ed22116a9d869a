package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Verification is an investor (or admin) attestation about a submitted milestone.
// Ratings are optional 1-5 scores; nil means the verifier skipped the dimension.
type Verification struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MilestoneID         uuid.UUID      `gorm:"column:milestone_id;type:uuid;not null"`
	ProjectID           uuid.UUID      `gorm:"column:project_id;type:uuid;not null"`
	VerifierID          uuid.UUID      `gorm:"column:verifier_id;type:uuid;not null"`
	VerifierRole        enums.UserRole `gorm:"column:verifier_role;type:user_role;not null"`
	RatingCompletion    *int           `gorm:"column:rating_completion"`
	RatingDocumentation *int           `gorm:"column:rating_documentation"`
	RatingQuality       *int           `gorm:"column:rating_quality"`
	RatingAverage       *int           `gorm:"column:rating_average"`
	CriteriaVerified    pq.StringArray `gorm:"column:criteria_verified;type:text[];not null;default:'{}'"`
	Comment             *string        `gorm:"column:comment"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (v *Verification) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
