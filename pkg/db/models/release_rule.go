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

// ReleaseRule is a declarative "when all conditions hold, run these actions" document.
type ReleaseRule struct {
	ID              uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID       uuid.UUID      `gorm:"column:project_id;type:uuid;not null"`
	Name            string         `gorm:"column:name;not null"`
	Conditions      RuleConditions `gorm:"column:conditions;type:jsonb;not null"`
	Actions         RuleActions    `gorm:"column:actions;type:jsonb;not null"`
	Active          bool           `gorm:"column:active;not null"`
	LastEvaluatedAt *time.Time     `gorm:"column:last_evaluated_at"`
	TriggeredAt     *time.Time     `gorm:"column:triggered_at"`
	CreatedBy       uuid.UUID      `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *ReleaseRule) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// RuleCondition is a tagged variant; which optional fields apply depends on Type.
type RuleCondition struct {
	Type        enums.RuleConditionType `json:"type" yaml:"type"`
	MilestoneID *uuid.UUID              `json:"milestone_id,omitempty" yaml:"milestone_id,omitempty"`
	MinCount    *int                    `json:"min_count,omitempty" yaml:"min_count,omitempty"`
	Days        *int                    `json:"days,omitempty" yaml:"days,omitempty"`
	Percentage  *float64                `json:"percentage,omitempty" yaml:"percentage,omitempty"`
}

// RuleAction is a tagged variant; which optional fields apply depends on Type.
type RuleAction struct {
	Type        enums.RuleActionType `json:"type" yaml:"type"`
	MilestoneID *uuid.UUID           `json:"milestone_id,omitempty" yaml:"milestone_id,omitempty"`
	Amount      *decimal.Decimal     `json:"amount,omitempty" yaml:"amount,omitempty"`
	Message     *string              `json:"message,omitempty" yaml:"message,omitempty"`
	Status      *string              `json:"status,omitempty" yaml:"status,omitempty"`
}

type RuleConditions []RuleCondition

func (c RuleConditions) Value() (driver.Value, error) {
	if c == nil {
		c = RuleConditions{}
	}
	return dbtypes.JSONValue([]RuleCondition(c))
}

func (c *RuleConditions) Scan(src any) error {
	return dbtypes.ScanJSON(src, (*[]RuleCondition)(c))
}

type RuleActions []RuleAction

func (a RuleActions) Value() (driver.Value, error) {
	if a == nil {
		a = RuleActions{}
	}
	return dbtypes.JSONValue([]RuleAction(a))
}

func (a *RuleActions) Scan(src any) error {
	return dbtypes.ScanJSON(src, (*[]RuleAction)(a))
}
