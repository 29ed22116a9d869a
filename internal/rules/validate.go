package rules

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/money"
)

const maxNameLength = 200

// FieldError names the offending part of a rule document.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) Error() string { return e.Field + ": " + e.Message }

func fieldErr(field, format string, args ...any) error {
	return FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Definition is the editable part of a rule.
type Definition struct {
	Name       string
	Conditions []models.RuleCondition
	Actions    []models.RuleAction
}

// Validate checks a definition against the milestones of its project. Every
// problem is reported, not just the first.
func Validate(def Definition, milestoneIDs map[uuid.UUID]struct{}) error {
	var errs error
	if name := strings.TrimSpace(def.Name); name == "" {
		errs = multierr.Append(errs, fieldErr("name", "is required"))
	} else if len(name) > maxNameLength {
		errs = multierr.Append(errs, fieldErr("name", "must be at most %d characters", maxNameLength))
	}
	if len(def.Conditions) == 0 {
		errs = multierr.Append(errs, fieldErr("conditions", "at least one condition is required"))
	}
	if len(def.Actions) == 0 {
		errs = multierr.Append(errs, fieldErr("actions", "at least one action is required"))
	}
	for i, c := range def.Conditions {
		errs = multierr.Append(errs, validateCondition(fmt.Sprintf("conditions[%d]", i), c, milestoneIDs))
	}
	for i, a := range def.Actions {
		errs = multierr.Append(errs, validateAction(fmt.Sprintf("actions[%d]", i), a, milestoneIDs))
	}
	return errs
}

func validateCondition(path string, c models.RuleCondition, milestoneIDs map[uuid.UUID]struct{}) error {
	var errs error
	switch c.Type {
	case enums.RuleConditionMilestoneCompleted:
		errs = multierr.Append(errs, requireMilestone(path, c.MilestoneID, milestoneIDs))
	case enums.RuleConditionVerificationCount:
		errs = multierr.Append(errs, requireMilestone(path, c.MilestoneID, milestoneIDs))
		if c.MinCount == nil || *c.MinCount < 1 {
			errs = multierr.Append(errs, fieldErr(path+".min_count", "must be at least 1"))
		}
	case enums.RuleConditionTimePassed:
		if c.MilestoneID != nil {
			errs = multierr.Append(errs, requireMilestone(path, c.MilestoneID, milestoneIDs))
		}
		if c.Days == nil || *c.Days < 0 {
			errs = multierr.Append(errs, fieldErr(path+".days", "must be zero or more"))
		}
	case enums.RuleConditionProjectFunding:
		if c.Percentage == nil || *c.Percentage <= 0 || *c.Percentage > 100 {
			errs = multierr.Append(errs, fieldErr(path+".percentage", "must be in (0, 100]"))
		}
	default:
		errs = multierr.Append(errs, fieldErr(path+".type", "unknown condition type %q", c.Type))
	}
	return errs
}

func validateAction(path string, a models.RuleAction, milestoneIDs map[uuid.UUID]struct{}) error {
	var errs error
	switch a.Type {
	case enums.RuleActionReleaseFunds:
		errs = multierr.Append(errs, requireMilestone(path, a.MilestoneID, milestoneIDs))
		if a.Amount != nil {
			if err := money.ValidatePositive("amount", *a.Amount); err != nil {
				errs = multierr.Append(errs, fieldErr(path+".amount", "%s", pkgerrors.As(err).Message()))
			}
		}
	case enums.RuleActionNotify:
		if a.Message == nil || strings.TrimSpace(*a.Message) == "" {
			errs = multierr.Append(errs, fieldErr(path+".message", "is required"))
		}
	case enums.RuleActionUpdateStatus:
		if a.Status == nil {
			errs = multierr.Append(errs, fieldErr(path+".status", "is required"))
		} else if _, err := targetStatus(*a.Status); err != nil {
			errs = multierr.Append(errs, fieldErr(path+".status", "%s", err.Error()))
		}
	default:
		errs = multierr.Append(errs, fieldErr(path+".type", "unknown action type %q", a.Type))
	}
	return errs
}

func requireMilestone(path string, id *uuid.UUID, milestoneIDs map[uuid.UUID]struct{}) error {
	if id == nil || *id == uuid.Nil {
		return fieldErr(path+".milestone_id", "is required")
	}
	if _, ok := milestoneIDs[*id]; !ok {
		return fieldErr(path+".milestone_id", "does not belong to the project")
	}
	return nil
}

// targetStatus limits update_status to the states a rule may move a project to.
func targetStatus(value string) (enums.ProjectStatus, error) {
	status := enums.ProjectStatus(strings.TrimSpace(value))
	if status != enums.ProjectStatusActive && status != enums.ProjectStatusCompleted {
		return "", fmt.Errorf("must be %s or %s", enums.ProjectStatusActive, enums.ProjectStatusCompleted)
	}
	return status, nil
}

// asValidationError folds a multierr chain into one VALIDATION error whose
// details list every field problem.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}
	problems := multierr.Errors(err)
	details := make([]FieldError, 0, len(problems))
	for _, p := range problems {
		if fe, ok := p.(FieldError); ok {
			details = append(details, fe)
			continue
		}
		details = append(details, FieldError{Message: p.Error()})
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid release rule").
		WithDetails(map[string]any{"errors": details})
}
