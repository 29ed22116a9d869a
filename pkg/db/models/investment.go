package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Investment is an investor's pledge to a project.
type Investment struct {
	ID         uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID  uuid.UUID           `gorm:"column:project_id;type:uuid;not null"`
	InvestorID uuid.UUID           `gorm:"column:investor_id;type:uuid;not null"`
	Amount     decimal.Decimal     `gorm:"column:amount;type:numeric(14,2);not null"`
	Phases     []DisbursementPhase `gorm:"foreignKey:InvestmentID"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (i *Investment) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// DisbursementPhase is the part of an investment tied to one milestone. Released
// is derived from the milestone's escrow payment and written in the same transaction.
type DisbursementPhase struct {
	ID                  uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	InvestmentID        uuid.UUID       `gorm:"column:investment_id;type:uuid;not null"`
	MilestoneID         uuid.UUID       `gorm:"column:milestone_id;type:uuid;not null"`
	Amount              decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null"`
	Released            bool            `gorm:"column:released;not null;default:false"`
	ReleasedAt          *time.Time      `gorm:"column:released_at"`
	EscrowTransactionID *uuid.UUID      `gorm:"column:escrow_transaction_id;type:uuid"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (DisbursementPhase) TableName() string { return "investment_disbursements" }

func (d *DisbursementPhase) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
