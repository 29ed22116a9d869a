package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/innocapforge/forge-backend/pkg/enums"
)

// ProjectCreatedEvent announces a new pending project.
type ProjectCreatedEvent struct {
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
}

// ProjectReviewedEvent is emitted when an admin approves or rejects a project.
type ProjectReviewedEvent struct {
	ProjectID uuid.UUID           `json:"project_id"`
	OwnerID   uuid.UUID           `json:"owner_id"`
	Title     string              `json:"title"`
	Status    enums.ProjectStatus `json:"status"`
	Reason    string              `json:"reason,omitempty"`
}

// MilestoneSubmittedEvent is emitted when the owner submits completion evidence.
type MilestoneSubmittedEvent struct {
	MilestoneID uuid.UUID `json:"milestone_id"`
	ProjectID   uuid.UUID `json:"project_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
}

// MilestoneDecidedEvent covers both milestone_approved and milestone_rejected.
type MilestoneDecidedEvent struct {
	MilestoneID uuid.UUID             `json:"milestone_id"`
	ProjectID   uuid.UUID             `json:"project_id"`
	OwnerID     uuid.UUID             `json:"owner_id"`
	Title       string                `json:"title"`
	Status      enums.MilestoneStatus `json:"status"`
	Reason      string                `json:"reason,omitempty"`
	DecidedBy   uuid.UUID             `json:"decided_by"`
}

// FundsReleasedEvent is emitted once per milestone payment.
type FundsReleasedEvent struct {
	EscrowTransactionID uuid.UUID       `json:"escrow_transaction_id"`
	ProjectID           uuid.UUID       `json:"project_id"`
	MilestoneID         uuid.UUID       `json:"milestone_id"`
	OwnerID             uuid.UUID       `json:"owner_id"`
	Amount              decimal.Decimal `json:"amount"`
	ReleasedBy          *uuid.UUID      `json:"released_by,omitempty"`
}

// InvestmentCreatedEvent notifies the project owner of a new pledge.
type InvestmentCreatedEvent struct {
	InvestmentID uuid.UUID       `json:"investment_id"`
	ProjectID    uuid.UUID       `json:"project_id"`
	InvestorID   uuid.UUID       `json:"investor_id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Amount       decimal.Decimal `json:"amount"`
}

// ReleaseRuleTriggeredEvent records that a rule fired and which actions ran.
type ReleaseRuleTriggeredEvent struct {
	RuleID    uuid.UUID `json:"rule_id"`
	ProjectID uuid.UUID `json:"project_id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Name      string    `json:"name"`
	Actions   []string  `json:"actions"`
	Message   string    `json:"message,omitempty"`
}

// MessageSentEvent notifies the recipient of a direct message.
type MessageSentEvent struct {
	MessageID   uuid.UUID  `json:"message_id"`
	SenderID    uuid.UUID  `json:"sender_id"`
	RecipientID uuid.UUID  `json:"recipient_id"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	Preview     string     `json:"preview"`
}
