package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/enums"
)

// EscrowTransaction is an append-only fund movement out of escrow. At most one
// milestone_payment row exists per milestone (ux_escrow_milestone_payment).
type EscrowTransaction struct {
	ID          uuid.UUID                     `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID   uuid.UUID                     `gorm:"column:project_id;type:uuid;not null"`
	MilestoneID uuid.UUID                     `gorm:"column:milestone_id;type:uuid;not null"`
	Amount      decimal.Decimal               `gorm:"column:amount;type:numeric(14,2);not null"`
	Type        enums.EscrowTransactionType   `gorm:"column:type;type:escrow_transaction_type;not null"`
	Status      enums.EscrowTransactionStatus `gorm:"column:status;type:escrow_transaction_status;not null"`
	ReleasedBy  uuid.UUID                     `gorm:"column:released_by;type:uuid;not null"`
	ReleasedAt  time.Time                     `gorm:"column:released_at;not null"`
	Note        *string                       `gorm:"column:note"`
	CreatedAt   time.Time                     `gorm:"column:created_at;autoCreateTime"`
}

func (e *EscrowTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// WalletTransaction mirrors escrow movements into a user's wallet ledger.
type WalletTransaction struct {
	ID                  uuid.UUID             `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID              uuid.UUID             `gorm:"column:user_id;type:uuid;not null"`
	ProjectID           uuid.UUID             `gorm:"column:project_id;type:uuid;not null"`
	EscrowTransactionID *uuid.UUID            `gorm:"column:escrow_transaction_id;type:uuid"`
	Direction           enums.WalletDirection `gorm:"column:direction;type:wallet_direction;not null"`
	Amount              decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Description         string                `gorm:"column:description;not null"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (w *WalletTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
