package rules

import (
	"time"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

// RuleRequest creates or fully replaces a rule.
type RuleRequest struct {
	Name       string                 `json:"name" yaml:"name" validate:"required,max=200"`
	Conditions []models.RuleCondition `json:"conditions" yaml:"conditions" validate:"required,min=1"`
	Actions    []models.RuleAction    `json:"actions" yaml:"actions" validate:"required,min=1"`
	Active     *bool                  `json:"active,omitempty" yaml:"active,omitempty"`
}

func (r RuleRequest) definition() Definition {
	return Definition{Name: r.Name, Conditions: r.Conditions, Actions: r.Actions}
}

// ToggleRequest switches a rule on or off.
type ToggleRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type RuleDTO struct {
	ID              uuid.UUID              `json:"id"`
	ProjectID       uuid.UUID              `json:"project_id"`
	Name            string                 `json:"name"`
	Conditions      []models.RuleCondition `json:"conditions"`
	Actions         []models.RuleAction    `json:"actions"`
	Active          bool                   `json:"active"`
	LastEvaluatedAt *time.Time             `json:"last_evaluated_at,omitempty"`
	TriggeredAt     *time.Time             `json:"triggered_at,omitempty"`
	CreatedBy       uuid.UUID              `json:"created_by"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func FromModel(r *models.ReleaseRule) RuleDTO {
	conditions := []models.RuleCondition(r.Conditions)
	if conditions == nil {
		conditions = []models.RuleCondition{}
	}
	actions := []models.RuleAction(r.Actions)
	if actions == nil {
		actions = []models.RuleAction{}
	}
	return RuleDTO{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		Name:            r.Name,
		Conditions:      conditions,
		Actions:         actions,
		Active:          r.Active,
		LastEvaluatedAt: r.LastEvaluatedAt,
		TriggeredAt:     r.TriggeredAt,
		CreatedBy:       r.CreatedBy,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// EvaluationDTO is the dry-run answer for one rule.
type EvaluationDTO struct {
	RuleID      uuid.UUID         `json:"rule_id"`
	Active      bool              `json:"active"`
	Matched     bool              `json:"matched"`
	Conditions  []ConditionResult `json:"conditions"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

// RunSummary counts what one RunActive pass did.
type RunSummary struct {
	Evaluated int         `json:"evaluated"`
	Triggered int         `json:"triggered"`
	Failed    int         `json:"failed"`
	Fired     []uuid.UUID `json:"fired"`
}
