package models

import (
	"database/sql/driver"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/innocapforge/forge-backend/pkg/db/types"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Milestone is a weighted slice of a project. CompletionPercentage is the
// share of project progress granted when the milestone is approved.
type Milestone struct {
	ID                    uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID             uuid.UUID             `gorm:"column:project_id;type:uuid;not null"`
	Position              int                   `gorm:"column:position;not null"`
	Title                 string                `gorm:"column:title;not null"`
	Description           string                `gorm:"column:description;not null"`
	DueDate               time.Time             `gorm:"column:due_date;not null"`
	CompletionPercentage  float64               `gorm:"column:completion_percentage;type:numeric(5,2);not null"`
	EstimatedFunding      decimal.Decimal       `gorm:"column:estimated_funding;type:numeric(14,2);not null"`
	Status                enums.MilestoneStatus `gorm:"column:status;type:milestone_status;not null"`
	CompletionDetails     *string               `gorm:"column:completion_details"`
	CompletionDate        *time.Time            `gorm:"column:completion_date"`
	VerificationDocuments Documents             `gorm:"column:verification_documents;type:jsonb;not null;default:'[]'"`
	StartedAt             *time.Time            `gorm:"column:started_at"`
	SubmittedAt           *time.Time            `gorm:"column:submitted_at"`
	ApprovedBy            *uuid.UUID            `gorm:"column:approved_by;type:uuid"`
	ApprovedAt            *time.Time            `gorm:"column:approved_at"`
	RejectedBy            *uuid.UUID            `gorm:"column:rejected_by;type:uuid"`
	RejectedAt            *time.Time            `gorm:"column:rejected_at"`
	RejectionReason       *string               `gorm:"column:rejection_reason"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Milestone) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.VerificationDocuments == nil {
		m.VerificationDocuments = Documents{}
	}
	return nil
}

// Document is evidence metadata attached to a milestone submission.
type Document struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	SizeBytes   int64  `json:"size_bytes,omitempty"`
}

type Documents []Document

func (d Documents) Value() (driver.Value, error) {
	if d == nil {
		d = Documents{}
	}
	return dbtypes.JSONValue([]Document(d))
}

func (d *Documents) Scan(src any) error {
	return dbtypes.ScanJSON(src, (*[]Document)(d))
}
