package rules

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/internal/escrow"
	"github.com/innocapforge/forge-backend/internal/notifications"
	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
)

// errAlreadyFired means a concurrent runner deactivated the rule first.
var errAlreadyFired = errors.New("release rule already fired")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type projectStore interface {
	WithTx(tx *gorm.DB) projects.Repository
}

type notificationStore interface {
	WithTx(tx *gorm.DB) notifications.Repository
}

type releaser interface {
	Release(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req escrow.ReleaseRequest) (*escrow.ReleaseResult, error)
}

// Service manages release rules and runs the interpreter over active ones.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req RuleRequest) (*RuleDTO, error)
	ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]RuleDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*RuleDTO, error)
	Replace(ctx context.Context, actor auth.Actor, id uuid.UUID, req RuleRequest) (*RuleDTO, error)
	SetActive(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) (*RuleDTO, error)
	Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error
	Validate(ctx context.Context, projectID uuid.UUID, req RuleRequest) error
	Evaluate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EvaluationDTO, error)
	RunActive(ctx context.Context) (*RunSummary, error)
}

type ServiceParams struct {
	Repo          Repository
	Projects      projectStore
	Notifications notificationStore
	Escrow        releaser
	DB            txRunner
	Emitter       outbox.Emitter
	Metrics       *metrics.DomainMetrics
	Logger        *logger.Logger
}

type service struct {
	repo          Repository
	projects      projectStore
	notifications notificationStore
	escrow        releaser
	tx            txRunner
	emitter       outbox.Emitter
	metrics       *metrics.DomainMetrics
	logg          *logger.Logger
	now           func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("rules repository required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("projects repository required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Escrow == nil {
		return nil, fmt.Errorf("escrow service required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:          params.Repo,
		projects:      params.Projects,
		notifications: params.Notifications,
		escrow:        params.Escrow,
		tx:            params.DB,
		emitter:       params.Emitter,
		metrics:       params.Metrics,
		logg:          params.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req RuleRequest) (*RuleDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.Validate(ctx, projectID, req); err != nil {
		return nil, err
	}
	rule := &models.ReleaseRule{
		ProjectID:  projectID,
		Name:       strings.TrimSpace(req.Name),
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Active:     req.Active == nil || *req.Active,
		CreatedBy:  actor.UserID,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create release rule")
	}
	dto := FromModel(rule)
	return &dto, nil
}

func (s *service) ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]RuleDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list release rules")
	}
	out := make([]RuleDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*RuleDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(rule)
	return &dto, nil
}

func (s *service) Replace(ctx context.Context, actor auth.Actor, id uuid.UUID, req RuleRequest) (*RuleDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(ctx, rule.ProjectID, req); err != nil {
		return nil, err
	}
	fields := map[string]any{
		"name":       strings.TrimSpace(req.Name),
		"conditions": models.RuleConditions(req.Conditions),
		"actions":    models.RuleActions(req.Actions),
	}
	if req.Active != nil {
		fields["active"] = *req.Active
		if *req.Active {
			fields["triggered_at"] = nil
		}
	}
	return s.update(ctx, id, fields)
}

// SetActive toggles a rule. Re-activating a fired rule arms it again.
func (s *service) SetActive(ctx context.Context, actor auth.Actor, id uuid.UUID, active bool) (*RuleDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.loadRule(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{"active": active}
	if active {
		fields["triggered_at"] = nil
	}
	return s.update(ctx, id, fields)
}

func (s *service) Delete(ctx context.Context, actor auth.Actor, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "release rule not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete release rule")
	}
	return nil
}

// Validate checks a rule definition against the project's milestones.
func (s *service) Validate(ctx context.Context, projectID uuid.UUID, req RuleRequest) error {
	if _, err := s.loadProject(ctx, projectID); err != nil {
		return err
	}
	milestones, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestones")
	}
	ids := make(map[uuid.UUID]struct{}, len(milestones))
	for _, m := range milestones {
		ids[m.ID] = struct{}{}
	}
	return asValidationError(Validate(req.definition(), ids))
}

func (s *service) Evaluate(ctx context.Context, actor auth.Actor, id uuid.UUID) (*EvaluationDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.snapshot(ctx, rule.ProjectID)
	if err != nil {
		return nil, asServiceError(err, "load rule snapshot")
	}
	eval := Evaluate(*rule, snap)
	return &EvaluationDTO{
		RuleID:      rule.ID,
		Active:      rule.Active,
		Matched:     eval.Matched,
		Conditions:  eval.Conditions,
		EvaluatedAt: snap.Now,
	}, nil
}

// RunActive evaluates every active rule and fires the ones that match. A rule
// fires at most once. Failures are collected so one bad rule does not block
// the rest.
func (s *service) RunActive(ctx context.Context) (*RunSummary, error) {
	rules, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active release rules")
	}
	summary := &RunSummary{Evaluated: len(rules), Fired: []uuid.UUID{}}
	var errs error
	for _, rule := range rules {
		if err := ctx.Err(); err != nil {
			return summary, multierr.Append(errs, err)
		}
		fired, err := s.runRule(ctx, rule)
		switch {
		case err != nil:
			summary.Failed++
			s.metrics.RuleEvaluated("error")
			errs = multierr.Append(errs, fmt.Errorf("rule %s: %w", rule.ID, err))
			if s.logg != nil {
				s.logg.Error(s.logg.WithField(ctx, "rule_id", rule.ID.String()), "release rule failed", err)
			}
		case fired:
			summary.Triggered++
			summary.Fired = append(summary.Fired, rule.ID)
			s.metrics.RuleEvaluated("triggered")
		default:
			s.metrics.RuleEvaluated("skipped")
		}
	}
	return summary, errs
}

func (s *service) runRule(ctx context.Context, rule models.ReleaseRule) (bool, error) {
	snap, err := s.snapshot(ctx, rule.ProjectID)
	if err != nil {
		return false, err
	}
	if !Evaluate(rule, snap).Matched || awaitingApproval(rule, snap) {
		return false, s.repo.MarkEvaluated(ctx, rule.ID, snap.Now)
	}

	// Releases run first in their own transactions. They are idempotent, so a
	// failure later leaves the rule active and the next pass resumes safely.
	system := auth.Actor{UserID: rule.CreatedBy, Role: enums.UserRoleAdmin}
	for _, action := range rule.Actions {
		if action.Type != enums.RuleActionReleaseFunds || action.MilestoneID == nil {
			continue
		}
		if _, err := s.escrow.Release(ctx, system, *action.MilestoneID, escrow.ReleaseRequest{
			Amount: action.Amount,
			Note:   "Release rule: " + rule.Name,
		}); err != nil {
			return false, fmt.Errorf("release_funds %s: %w", *action.MilestoneID, err)
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		fired, err := s.repo.WithTx(tx).Trigger(ctx, rule.ID, snap.Now)
		if err != nil {
			return err
		}
		if !fired {
			return errAlreadyFired
		}
		return s.applyActions(ctx, tx, rule, snap)
	})
	if errors.Is(err, errAlreadyFired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"rule_id":    rule.ID.String(),
			"project_id": rule.ProjectID.String(),
		})
		s.logg.Info(logCtx, "release rule triggered")
	}
	return true, nil
}

// awaitingApproval reports whether a release_funds action targets a milestone
// that cannot be paid yet. The rule stays armed until it is approved.
func awaitingApproval(rule models.ReleaseRule, snap Snapshot) bool {
	for _, action := range rule.Actions {
		if action.Type != enums.RuleActionReleaseFunds || action.MilestoneID == nil {
			continue
		}
		if m, ok := snap.Milestones[*action.MilestoneID]; !ok || m.Status != enums.MilestoneStatusApproved {
			return true
		}
	}
	return false
}

func (s *service) applyActions(ctx context.Context, tx *gorm.DB, rule models.ReleaseRule, snap Snapshot) error {
	project := snap.Project
	ran := make([]string, 0, len(rule.Actions))
	var message string
	for _, action := range rule.Actions {
		switch action.Type {
		case enums.RuleActionReleaseFunds:
		case enums.RuleActionNotify:
			if action.Message == nil {
				continue
			}
			text := strings.TrimSpace(*action.Message)
			if message == "" {
				message = text
			}
			link := "/projects/" + project.ID.String()
			if err := s.notifications.WithTx(tx).Create(ctx, &models.Notification{
				UserID:  project.OwnerID,
				Type:    enums.NotificationTypeRule,
				Title:   "Release rule: " + rule.Name,
				Message: text,
				Link:    &link,
			}); err != nil {
				return err
			}
		case enums.RuleActionUpdateStatus:
			if action.Status == nil {
				continue
			}
			status, err := targetStatus(*action.Status)
			if err != nil {
				return err
			}
			repo := s.projects.WithTx(tx)
			current, err := repo.LockByID(ctx, project.ID)
			if err != nil {
				return err
			}
			// rules may only close out a live project; review owns the rest
			if current.Status != enums.ProjectStatusActive || status == current.Status {
				continue
			}
			if err := repo.Updates(ctx, project.ID, map[string]any{"status": status}); err != nil {
				return err
			}
		default:
			continue
		}
		ran = append(ran, string(action.Type))
	}

	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventReleaseRuleTriggered,
		AggregateType: enums.AggregateReleaseRule,
		AggregateID:   rule.ID,
		Data: payloads.ReleaseRuleTriggeredEvent{
			RuleID:    rule.ID,
			ProjectID: project.ID,
			OwnerID:   project.OwnerID,
			Name:      rule.Name,
			Actions:   ran,
			Message:   message,
		},
	})
}

func (s *service) snapshot(ctx context.Context, projectID uuid.UUID) (Snapshot, error) {
	project, err := s.loadProject(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}
	milestones, err := s.repo.ListMilestones(ctx, projectID)
	if err != nil {
		return Snapshot{}, err
	}
	ids := make([]uuid.UUID, 0, len(milestones))
	for _, m := range milestones {
		ids = append(ids, m.ID)
	}
	counts, err := s.repo.CountVerifications(ctx, ids)
	if err != nil {
		return Snapshot{}, err
	}
	return NewSnapshot(*project, milestones, counts, s.now()), nil
}

func (s *service) update(ctx context.Context, id uuid.UUID, fields map[string]any) (*RuleDTO, error) {
	if err := s.repo.Updates(ctx, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "release rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update release rule")
	}
	rule, err := s.loadRule(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(rule)
	return &dto, nil
}

func (s *service) loadRule(ctx context.Context, id uuid.UUID) (*models.ReleaseRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "release rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load release rule")
	}
	return rule, nil
}

func (s *service) loadProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	project, err := s.repo.FindProject(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return project, nil
}

func requireAdmin(actor auth.Actor) error {
	if !actor.Valid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if !actor.IsAdmin() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	return nil
}

func asServiceError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
