package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Project is a crowdfunded initiative split into weighted milestones.
// CurrentFunding only grows through escrow releases; PledgedFunding through investments.
type Project struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID         uuid.UUID           `gorm:"column:owner_id;type:uuid;not null"`
	Title           string              `gorm:"column:title;not null"`
	Description     string              `gorm:"column:description;not null"`
	Category        *string             `gorm:"column:category"`
	FundingGoal     decimal.Decimal     `gorm:"column:funding_goal;type:numeric(14,2);not null"`
	CurrentFunding  decimal.Decimal     `gorm:"column:current_funding;type:numeric(14,2);not null;default:0"`
	PledgedFunding  decimal.Decimal     `gorm:"column:pledged_funding;type:numeric(14,2);not null;default:0"`
	ProjectProgress float64             `gorm:"column:project_progress;type:numeric(5,2);not null;default:0"`
	Status          enums.ProjectStatus `gorm:"column:status;type:project_status;not null"`
	SDGs            pq.StringArray      `gorm:"column:sdgs;type:text[];not null;default:'{}'"`
	RejectionReason *string             `gorm:"column:rejection_reason"`
	ReviewedBy      *uuid.UUID          `gorm:"column:reviewed_by;type:uuid"`
	ReviewedAt      *time.Time          `gorm:"column:reviewed_at"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
