package projects

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/money"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes project creation, review, listing and reporting.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, req CreateProjectRequest) (*ProjectDTO, error)
	Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ProjectDTO, error)
	List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error)
	Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateProjectRequest) (*ProjectDTO, error)
	Review(ctx context.Context, actor auth.Actor, id uuid.UUID, req ReviewRequest) (*ProjectDTO, error)
	Summary(ctx context.Context, actor auth.Actor, id uuid.UUID) (*SummaryDTO, error)
}

// ListParams carries the listing filters accepted from the API.
type ListParams struct {
	Status  *enums.ProjectStatus
	OwnerID *uuid.UUID
	Limit   int
	Cursor  string
}

type ListResult struct {
	Items      []ProjectDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type service struct {
	repo    Repository
	tx      txRunner
	emitter outbox.Emitter
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("projects repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		emitter: emitter,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, req CreateProjectRequest) (*ProjectDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if actor.Role != enums.UserRoleInnovator && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only innovators can create projects")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}
	if err := money.ValidatePositive("funding_goal", req.FundingGoal); err != nil {
		return nil, err
	}
	for i, m := range req.Milestones {
		if strings.TrimSpace(m.Title) == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: title is required", i+1)
		}
		if !money.HasCentPrecision(m.EstimatedFunding) {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %d: estimated_funding must have at most two decimal places", i+1)
		}
	}
	if err := ValidatePlan(req.FundingGoal, req.Milestones); err != nil {
		return nil, err
	}

	project := &models.Project{
		OwnerID:        actor.UserID,
		Title:          title,
		Description:    description,
		Category:       trimOptional(req.Category),
		FundingGoal:    req.FundingGoal,
		CurrentFunding: decimal.Zero,
		PledgedFunding: decimal.Zero,
		Status:         enums.ProjectStatusPendingApproval,
		SDGs:           normalizeSDGs(req.SDGs),
	}

	var milestones []models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, project); err != nil {
			return err
		}
		milestones = make([]models.Milestone, len(req.Milestones))
		for i, m := range req.Milestones {
			milestones[i] = models.Milestone{
				ProjectID:            project.ID,
				Position:             i + 1,
				Title:                strings.TrimSpace(m.Title),
				Description:          strings.TrimSpace(m.Description),
				DueDate:              m.DueDate.UTC(),
				CompletionPercentage: m.CompletionPercentage,
				EstimatedFunding:     m.EstimatedFunding,
				Status:               enums.MilestoneStatusPending,
			}
		}
		if err := repo.CreateMilestones(ctx, milestones); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProjectCreated,
			AggregateType: enums.AggregateProject,
			AggregateID:   project.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.ProjectCreatedEvent{
				ProjectID: project.ID,
				OwnerID:   project.OwnerID,
				Title:     project.Title,
			},
		})
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create project")
	}

	dto := FromModel(project)
	dto.Milestones = MilestonesFromModels(milestones)
	return dto, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*ProjectDTO, error) {
	project, err := s.loadVisible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	milestones, err := s.repo.ListMilestones(ctx, project.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
	}
	dto := FromModel(project)
	dto.Milestones = MilestonesFromModels(milestones)
	return dto, nil
}

func (s *service) List(ctx context.Context, actor auth.Actor, params ListParams) (*ListResult, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query := ListQuery{
		Status:  params.Status,
		OwnerID: params.OwnerID,
		Cursor:  cursor,
		Limit:   pagination.LimitWithBuffer(params.Limit),
	}
	if !actor.IsAdmin() {
		viewer := actor.UserID
		query.Viewer = &viewer
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list projects")
	}
	page := pagination.Trim(rows, params.Limit, func(p models.Project) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	items := make([]ProjectDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	return &ListResult{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, id uuid.UUID, req UpdateProjectRequest) (*ProjectDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	var updated *models.Project
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		project, err := lockProject(ctx, repo, id)
		if err != nil {
			return err
		}
		if project.OwnerID != actor.UserID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the project owner can edit the project")
		}
		if !project.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s cannot be edited", project.Status)
		}

		fields := map[string]any{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
			}
			fields["title"] = title
			project.Title = title
		}
		if req.Description != nil {
			description := strings.TrimSpace(*req.Description)
			if description == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "description must not be empty")
			}
			fields["description"] = description
			project.Description = description
		}
		if req.Category != nil {
			project.Category = trimOptional(req.Category)
			fields["category"] = project.Category
		}
		if req.SDGs != nil {
			project.SDGs = normalizeSDGs(req.SDGs)
			fields["sdgs"] = project.SDGs
		}
		if req.FundingGoal != nil {
			goal := *req.FundingGoal
			if err := money.ValidatePositive("funding_goal", goal); err != nil {
				return err
			}
			if goal.LessThan(project.CurrentFunding) {
				return pkgerrors.New(pkgerrors.CodeValidation, "funding_goal cannot be below current funding")
			}
			if goal.LessThan(project.PledgedFunding) {
				return pkgerrors.New(pkgerrors.CodeValidation, "funding_goal cannot be below pledged funding")
			}
			milestones, err := repo.ListMilestones(ctx, project.ID)
			if err != nil {
				return err
			}
			estimated := decimal.Zero
			for _, m := range milestones {
				estimated = estimated.Add(m.EstimatedFunding)
			}
			if goal.LessThan(estimated) {
				return pkgerrors.New(pkgerrors.CodeValidation, "funding_goal cannot be below the milestones' estimated funding")
			}
			fields["funding_goal"] = goal
			project.FundingGoal = goal
		}
		if len(fields) == 0 {
			updated = project
			return nil
		}
		if err := repo.Updates(ctx, project.ID, fields); err != nil {
			return err
		}
		updated = project
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "update project")
	}
	return FromModel(updated), nil
}

func (s *service) Review(ctx context.Context, actor auth.Actor, id uuid.UUID, req ReviewRequest) (*ProjectDTO, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !req.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}
	reason := strings.TrimSpace(req.Reason)
	target := enums.ProjectStatusActive
	if req.Decision == enums.ReviewDecisionReject {
		if reason == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "a rejection reason is required")
		}
		target = enums.ProjectStatusRejected
	}

	var result *models.Project
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		project, err := lockProject(ctx, repo, id)
		if err != nil {
			return err
		}
		if project.Status == target {
			result = project
			return nil
		}
		if project.Status != enums.ProjectStatusPendingApproval {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s cannot be reviewed", project.Status).
				WithDetails(map[string]any{"status": project.Status})
		}

		now := s.now()
		reviewer := actor.UserID
		fields := map[string]any{
			"status":      target,
			"reviewed_by": reviewer,
			"reviewed_at": now,
		}
		project.Status = target
		project.ReviewedBy = &reviewer
		project.ReviewedAt = &now
		if target == enums.ProjectStatusRejected {
			fields["rejection_reason"] = reason
			project.RejectionReason = &reason
		} else {
			fields["rejection_reason"] = nil
			project.RejectionReason = nil
		}
		if err := repo.Updates(ctx, project.ID, fields); err != nil {
			return err
		}
		result = project
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProjectReviewed,
			AggregateType: enums.AggregateProject,
			AggregateID:   project.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.ProjectReviewedEvent{
				ProjectID: project.ID,
				OwnerID:   project.OwnerID,
				Title:     project.Title,
				Status:    target,
				Reason:    reason,
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "review project")
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "project_id", id.String()), "project reviewed: "+string(result.Status))
	}
	return FromModel(result), nil
}

// loadVisible returns the project when the actor may read it. Hidden projects
// read as not found.
func (s *service) loadVisible(ctx context.Context, actor auth.Actor, id uuid.UUID) (*models.Project, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	if !CanView(actor, project) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return project, nil
}

// CanView reports whether the actor may read the project.
func CanView(actor auth.Actor, project *models.Project) bool {
	if actor.IsAdmin() || project.OwnerID == actor.UserID {
		return true
	}
	return project.Status == enums.ProjectStatusActive || project.Status == enums.ProjectStatusCompleted
}

func lockProject(ctx context.Context, repo Repository, id uuid.UUID) (*models.Project, error) {
	project, err := repo.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, err
	}
	return project, nil
}

// asServiceError keeps typed errors and wraps anything else as a dependency failure.
func asServiceError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func normalizeSDGs(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
