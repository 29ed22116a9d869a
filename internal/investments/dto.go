package investments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

type CreateRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PhaseDTO struct {
	ID                  uuid.UUID       `json:"id"`
	MilestoneID         uuid.UUID       `json:"milestone_id"`
	Amount              decimal.Decimal `json:"amount"`
	Released            bool            `json:"released"`
	ReleasedAt          *time.Time      `json:"released_at,omitempty"`
	EscrowTransactionID *uuid.UUID      `json:"escrow_transaction_id,omitempty"`
}

type InvestmentDTO struct {
	ID                   uuid.UUID       `json:"id"`
	ProjectID            uuid.UUID       `json:"project_id"`
	InvestorID           uuid.UUID       `json:"investor_id"`
	Amount               decimal.Decimal `json:"amount"`
	DisbursementSchedule []PhaseDTO      `json:"disbursement_schedule"`
	CreatedAt            time.Time       `json:"created_at"`
}

type Page struct {
	Items      []InvestmentDTO `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func FromModel(inv *models.Investment) InvestmentDTO {
	phases := make([]PhaseDTO, 0, len(inv.Phases))
	for _, p := range inv.Phases {
		phases = append(phases, PhaseDTO{
			ID:                  p.ID,
			MilestoneID:         p.MilestoneID,
			Amount:              p.Amount,
			Released:            p.Released,
			ReleasedAt:          p.ReleasedAt,
			EscrowTransactionID: p.EscrowTransactionID,
		})
	}
	return InvestmentDTO{
		ID:                   inv.ID,
		ProjectID:            inv.ProjectID,
		InvestorID:           inv.InvestorID,
		Amount:               inv.Amount,
		DisbursementSchedule: phases,
		CreatedAt:            inv.CreatedAt,
	}
}
