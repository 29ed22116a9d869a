package escrow

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

// ReleaseRequest overrides the released amount; nil releases the milestone's
// estimated funding.
type ReleaseRequest struct {
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Note   string           `json:"note" validate:"max=2000"`
}

type TransactionDTO struct {
	ID          uuid.UUID                     `json:"id"`
	ProjectID   uuid.UUID                     `json:"project_id"`
	MilestoneID uuid.UUID                     `json:"milestone_id"`
	Amount      decimal.Decimal               `json:"amount"`
	Type        enums.EscrowTransactionType   `json:"type"`
	Status      enums.EscrowTransactionStatus `json:"status"`
	ReleasedBy  uuid.UUID                     `json:"released_by"`
	ReleasedAt  time.Time                     `json:"released_at"`
	Note        *string                       `json:"note,omitempty"`
	CreatedAt   time.Time                     `json:"created_at"`
}

// ReleaseResult reports the milestone payment and whether this call created it.
type ReleaseResult struct {
	Transaction    TransactionDTO  `json:"transaction"`
	Created        bool            `json:"created"`
	CurrentFunding decimal.Decimal `json:"current_funding"`
}

type WalletTransactionDTO struct {
	ID                  uuid.UUID             `json:"id"`
	ProjectID           uuid.UUID             `json:"project_id"`
	EscrowTransactionID *uuid.UUID            `json:"escrow_transaction_id,omitempty"`
	Direction           enums.WalletDirection `json:"direction"`
	Amount              decimal.Decimal       `json:"amount"`
	Description         string                `json:"description"`
	CreatedAt           time.Time             `json:"created_at"`
}

type WalletPage struct {
	Items      []WalletTransactionDTO `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

func FromModel(row *models.EscrowTransaction) TransactionDTO {
	return TransactionDTO{
		ID:          row.ID,
		ProjectID:   row.ProjectID,
		MilestoneID: row.MilestoneID,
		Amount:      row.Amount,
		Type:        row.Type,
		Status:      row.Status,
		ReleasedBy:  row.ReleasedBy,
		ReleasedAt:  row.ReleasedAt,
		Note:        row.Note,
		CreatedAt:   row.CreatedAt,
	}
}

func walletFromModel(row *models.WalletTransaction) WalletTransactionDTO {
	return WalletTransactionDTO{
		ID:                  row.ID,
		ProjectID:           row.ProjectID,
		EscrowTransactionID: row.EscrowTransactionID,
		Direction:           row.Direction,
		Amount:              row.Amount,
		Description:         row.Description,
		CreatedAt:           row.CreatedAt,
	}
}
