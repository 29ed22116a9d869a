package milestones

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/money"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type projectStore interface {
	WithTx(tx *gorm.DB) projects.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error
}

// Service owns the milestone lifecycle: plan edits, start, submission and the
// admin decision.
type Service interface {
	Add(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req AddRequest) (*projects.MilestoneDTO, error)
	Reweight(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req ReweightRequest) ([]projects.MilestoneDTO, error)
	Update(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req UpdateRequest) (*projects.MilestoneDTO, error)
	Start(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID) (*projects.MilestoneDTO, error)
	Submit(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req SubmitRequest) (*projects.MilestoneDTO, error)
	Decide(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req DecisionRequest) (*DecisionResult, error)
	Get(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID) (*projects.MilestoneDTO, error)
	ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]projects.MilestoneDTO, error)
}

type ServiceParams struct {
	Repo     Repository
	Projects projectStore
	DB       txRunner
	Emitter  outbox.Emitter
	Metrics  *metrics.DomainMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	projects projectStore
	tx       txRunner
	emitter  outbox.Emitter
	metrics  *metrics.DomainMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("milestones repository required")
	}
	if params.Projects == nil {
		return nil, fmt.Errorf("projects repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		projects: params.Projects,
		tx:       params.DB,
		emitter:  params.Emitter,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Add(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req AddRequest) (*projects.MilestoneDTO, error) {
	in := req.Milestone
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if in.DueDate.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "due_date is required")
	}
	if in.EstimatedFunding.IsNegative() || !money.HasCentPrecision(in.EstimatedFunding) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "estimated_funding must be a non-negative amount with at most two decimals")
	}

	var created *models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		if !project.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s cannot change its plan", project.Status)
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}

		weights, err := applyWeights(existing, req.Rebalance, false)
		if err != nil {
			return err
		}
		all := append(weightsInOrder(existing, weights), in.CompletionPercentage)
		if err := projects.ValidateWeights(all); err != nil {
			return err
		}

		estimated := in.EstimatedFunding
		maxPosition := 0
		var lastDue time.Time
		for _, m := range existing {
			estimated = estimated.Add(m.EstimatedFunding)
			if m.Position > maxPosition {
				maxPosition = m.Position
			}
			if m.DueDate.After(lastDue) {
				lastDue = m.DueDate
			}
		}
		if estimated.GreaterThan(project.FundingGoal) {
			return pkgerrors.New(pkgerrors.CodeValidation, "estimated funding would exceed the funding goal")
		}
		if in.DueDate.Before(lastDue) {
			return pkgerrors.New(pkgerrors.CodeValidation, "due_date must not be before the last milestone's due date")
		}

		for _, m := range existing {
			if w := weights[m.ID]; w != m.CompletionPercentage {
				if err := repo.Updates(ctx, m.ID, map[string]any{"completion_percentage": w}); err != nil {
					return err
				}
			}
		}
		created = &models.Milestone{
			ProjectID:            projectID,
			Position:             maxPosition + 1,
			Title:                title,
			Description:          strings.TrimSpace(in.Description),
			DueDate:              in.DueDate.UTC(),
			CompletionPercentage: in.CompletionPercentage,
			EstimatedFunding:     in.EstimatedFunding,
			Status:               enums.MilestoneStatusPending,
		}
		return repo.Create(ctx, created)
	})
	if err != nil {
		return nil, asServiceError(err, "add milestone")
	}
	dto := projects.MilestoneFromModel(created)
	return &dto, nil
}

func (s *service) Reweight(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req ReweightRequest) ([]projects.MilestoneDTO, error) {
	var rows []models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		if !project.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s cannot change its plan", project.Status)
		}
		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		weights, err := applyWeights(existing, req.Weights, true)
		if err != nil {
			return err
		}
		if err := projects.ValidateWeights(weightsInOrder(existing, weights)); err != nil {
			return err
		}
		for i := range existing {
			m := &existing[i]
			w := weights[m.ID]
			if w == m.CompletionPercentage {
				continue
			}
			if err := repo.Updates(ctx, m.ID, map[string]any{"completion_percentage": w}); err != nil {
				return err
			}
			m.CompletionPercentage = w
		}
		rows = existing
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "reweight milestones")
	}
	return projects.MilestonesFromModels(rows), nil
}

func (s *service) Update(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req UpdateRequest) (*projects.MilestoneDTO, error) {
	var result *models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		project, err := s.lockOwnedProject(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		if !project.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s cannot change its plan", project.Status)
		}
		repo := s.repo.WithTx(tx)
		siblings, err := repo.ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range siblings {
			if siblings[i].ID == milestoneID {
				idx = i
			}
		}
		if idx < 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		m := &siblings[idx]
		if !m.Status.Editable() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "milestone in status %s cannot be edited", m.Status)
		}

		fields := map[string]any{}
		if req.Title != nil {
			title := strings.TrimSpace(*req.Title)
			if title == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
			}
			fields["title"] = title
			m.Title = title
		}
		if req.Description != nil {
			m.Description = strings.TrimSpace(*req.Description)
			fields["description"] = m.Description
		}
		if req.DueDate != nil {
			due := req.DueDate.UTC()
			if due.IsZero() {
				return pkgerrors.New(pkgerrors.CodeValidation, "due_date must not be empty")
			}
			if idx > 0 && due.Before(siblings[idx-1].DueDate) {
				return pkgerrors.New(pkgerrors.CodeValidation, "due_date is before the previous milestone")
			}
			if idx < len(siblings)-1 && due.After(siblings[idx+1].DueDate) {
				return pkgerrors.New(pkgerrors.CodeValidation, "due_date is after the next milestone")
			}
			fields["due_date"] = due
			m.DueDate = due
		}
		if req.EstimatedFunding != nil {
			amount := *req.EstimatedFunding
			if amount.IsNegative() || !money.HasCentPrecision(amount) {
				return pkgerrors.New(pkgerrors.CodeValidation, "estimated_funding must be a non-negative amount with at most two decimals")
			}
			m.EstimatedFunding = amount
			total := decimal.Zero
			for _, sib := range siblings {
				total = total.Add(sib.EstimatedFunding)
			}
			if total.GreaterThan(project.FundingGoal) {
				return pkgerrors.New(pkgerrors.CodeValidation, "estimated funding would exceed the funding goal")
			}
			fields["estimated_funding"] = amount
		}
		if len(fields) > 0 {
			ok, err := repo.Transition(ctx, m.ID, editableStatuses, fields)
			if err != nil {
				return err
			}
			if !ok {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone changed concurrently")
			}
		}
		result = m
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "update milestone")
	}
	dto := projects.MilestoneFromModel(result)
	return &dto, nil
}

func (s *service) Start(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID) (*projects.MilestoneDTO, error) {
	var result *models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		project, m, err := s.loadOwned(ctx, tx, actor, projectID, milestoneID)
		if err != nil {
			return err
		}
		if project.Status != enums.ProjectStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestones can only be started on active projects")
		}
		if m.Status == enums.MilestoneStatusInProgress {
			result = m
			return nil
		}
		from := []enums.MilestoneStatus{enums.MilestoneStatusPending, enums.MilestoneStatusRejected}
		if !containsStatus(from, m.Status) {
			return stateConflict(m.Status, "started")
		}
		now := s.now()
		ok, err := s.repo.WithTx(tx).Transition(ctx, m.ID, from, map[string]any{
			"status":     enums.MilestoneStatusInProgress,
			"started_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone changed concurrently")
		}
		m.Status = enums.MilestoneStatusInProgress
		m.StartedAt = &now
		result = m
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "start milestone")
	}
	dto := projects.MilestoneFromModel(result)
	return &dto, nil
}

func (s *service) Submit(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID, req SubmitRequest) (*projects.MilestoneDTO, error) {
	var result *models.Milestone
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		project, m, err := s.loadOwned(ctx, tx, actor, projectID, milestoneID)
		if err != nil {
			return err
		}
		details := strings.TrimSpace(req.CompletionDetails)
		if details == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "completion_details is required")
		}
		if req.CompletionDate.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "completion_date is required")
		}
		docs, err := cleanDocuments(req.Documents)
		if err != nil {
			return err
		}
		if project.Status != enums.ProjectStatusActive {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestones can only be submitted on active projects")
		}
		from := []enums.MilestoneStatus{enums.MilestoneStatusInProgress, enums.MilestoneStatusRejected}
		if !containsStatus(from, m.Status) {
			return stateConflict(m.Status, "submitted")
		}

		now := s.now()
		completion := req.CompletionDate.UTC()
		ok, err := s.repo.WithTx(tx).Transition(ctx, m.ID, from, map[string]any{
			"status":                 enums.MilestoneStatusAwaitingVerification,
			"completion_details":     details,
			"completion_date":        completion,
			"verification_documents": docs,
			"submitted_at":           now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone changed concurrently")
		}
		m.Status = enums.MilestoneStatusAwaitingVerification
		m.CompletionDetails = &details
		m.CompletionDate = &completion
		m.VerificationDocuments = docs
		m.SubmittedAt = &now
		result = m

		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventMilestoneSubmitted,
			AggregateType: enums.AggregateMilestone,
			AggregateID:   m.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.MilestoneSubmittedEvent{
				MilestoneID: m.ID,
				ProjectID:   project.ID,
				OwnerID:     project.OwnerID,
				Title:       m.Title,
			},
		})
	})
	if err != nil {
		return nil, asServiceError(err, "submit milestone")
	}
	dto := projects.MilestoneFromModel(result)
	return &dto, nil
}

func (s *service) Decide(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req DecisionRequest) (*DecisionResult, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if !req.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be approve or reject")
	}
	reason := strings.TrimSpace(req.Reason)
	if req.Decision == enums.ReviewDecisionReject && reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a rejection reason is required")
	}

	var result *DecisionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		m, err := repo.FindByID(ctx, milestoneID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return err
		}
		project, err := s.projects.WithTx(tx).LockByID(ctx, m.ProjectID)
		if err != nil {
			return err
		}
		// re-read under the project lock so a concurrent decision is visible
		if m, err = repo.FindByID(ctx, milestoneID); err != nil {
			return err
		}
		if req.Decision == enums.ReviewDecisionApprove {
			result, err = s.approve(ctx, tx, actor, project, m)
		} else {
			result, err = s.reject(ctx, tx, actor, project, m, reason)
		}
		return err
	})
	if err != nil {
		return nil, asServiceError(err, "decide milestone")
	}
	if result.Changed {
		s.metrics.MilestoneDecided(string(req.Decision))
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"milestone_id": milestoneID.String(),
				"decision":     string(req.Decision),
			})
			s.logg.Info(logCtx, "milestone decided")
		}
	}
	return result, nil
}

func (s *service) approve(ctx context.Context, tx *gorm.DB, actor auth.Actor, project *models.Project, m *models.Milestone) (*DecisionResult, error) {
	if m.Status == enums.MilestoneStatusApproved {
		return decisionResult(m, project, false), nil
	}
	if m.Status != enums.MilestoneStatusAwaitingVerification {
		return nil, stateConflict(m.Status, "approved")
	}

	now := s.now()
	approver := actor.UserID
	repo := s.repo.WithTx(tx)
	ok, err := repo.Transition(ctx, m.ID, []enums.MilestoneStatus{enums.MilestoneStatusAwaitingVerification}, map[string]any{
		"status":      enums.MilestoneStatusApproved,
		"approved_by": approver,
		"approved_at": now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "milestone changed concurrently")
	}
	m.Status = enums.MilestoneStatusApproved
	m.ApprovedBy = &approver
	m.ApprovedAt = &now

	progress := NextProgress(project.ProjectProgress, m.CompletionPercentage)
	fields := map[string]any{"project_progress": progress}
	siblings, err := repo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	if allApproved(siblings) && project.Status == enums.ProjectStatusActive {
		fields["status"] = enums.ProjectStatusCompleted
		project.Status = enums.ProjectStatusCompleted
	}
	if err := s.projects.WithTx(tx).Updates(ctx, project.ID, fields); err != nil {
		return nil, err
	}
	project.ProjectProgress = progress

	if err := s.emitDecision(ctx, tx, actor, project, m, enums.EventMilestoneApproved, ""); err != nil {
		return nil, err
	}
	return decisionResult(m, project, true), nil
}

func (s *service) reject(ctx context.Context, tx *gorm.DB, actor auth.Actor, project *models.Project, m *models.Milestone, reason string) (*DecisionResult, error) {
	if m.Status == enums.MilestoneStatusRejected {
		return decisionResult(m, project, false), nil
	}
	if m.Status != enums.MilestoneStatusAwaitingVerification {
		return nil, stateConflict(m.Status, "rejected")
	}
	now := s.now()
	rejecter := actor.UserID
	ok, err := s.repo.WithTx(tx).Transition(ctx, m.ID, []enums.MilestoneStatus{enums.MilestoneStatusAwaitingVerification}, map[string]any{
		"status":           enums.MilestoneStatusRejected,
		"rejected_by":      rejecter,
		"rejected_at":      now,
		"rejection_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "milestone changed concurrently")
	}
	m.Status = enums.MilestoneStatusRejected
	m.RejectedBy = &rejecter
	m.RejectedAt = &now
	m.RejectionReason = &reason

	if err := s.emitDecision(ctx, tx, actor, project, m, enums.EventMilestoneRejected, reason); err != nil {
		return nil, err
	}
	return decisionResult(m, project, true), nil
}

func (s *service) emitDecision(ctx context.Context, tx *gorm.DB, actor auth.Actor, project *models.Project, m *models.Milestone, eventType enums.OutboxEventType, reason string) error {
	return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateMilestone,
		AggregateID:   m.ID,
		Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
		Data: payloads.MilestoneDecidedEvent{
			MilestoneID: m.ID,
			ProjectID:   project.ID,
			OwnerID:     project.OwnerID,
			Title:       m.Title,
			Status:      m.Status,
			Reason:      reason,
			DecidedBy:   actor.UserID,
		},
	})
}

func (s *service) Get(ctx context.Context, actor auth.Actor, projectID, milestoneID uuid.UUID) (*projects.MilestoneDTO, error) {
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	m, err := s.repo.FindByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone")
	}
	if m.ProjectID != projectID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
	}
	dto := projects.MilestoneFromModel(m)
	return &dto, nil
}

func (s *service) ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]projects.MilestoneDTO, error) {
	if _, err := s.visibleProject(ctx, actor, projectID); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list milestones")
	}
	return projects.MilestonesFromModels(rows), nil
}

func (s *service) visibleProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) (*models.Project, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	if !projects.CanView(actor, project) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
	}
	return project, nil
}

// lockOwnedProject locks the project and checks the actor owns it (admins pass).
func (s *service) lockOwnedProject(ctx context.Context, tx *gorm.DB, actor auth.Actor, projectID uuid.UUID) (*models.Project, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	project, err := s.projects.WithTx(tx).LockByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, err
	}
	if project.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the project owner can manage milestones")
	}
	return project, nil
}

// loadOwned resolves project and milestone for owner-only transitions. A
// milestone of another project reads as not found.
func (s *service) loadOwned(ctx context.Context, tx *gorm.DB, actor auth.Actor, projectID, milestoneID uuid.UUID) (*models.Project, *models.Milestone, error) {
	if !actor.Valid() {
		return nil, nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	project, err := s.projects.WithTx(tx).LockByID(ctx, projectID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
		}
		return nil, nil, err
	}
	m, err := s.repo.WithTx(tx).FindByID(ctx, milestoneID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
		}
		return nil, nil, err
	}
	if m.ProjectID != project.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
	}
	if project.OwnerID != actor.UserID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the project owner can update this milestone")
	}
	return project, m, nil
}

var editableStatuses = []enums.MilestoneStatus{
	enums.MilestoneStatusPending,
	enums.MilestoneStatusInProgress,
	enums.MilestoneStatusRejected,
}

// NextProgress adds a milestone weight to project progress, capped at 100.
func NextProgress(current, weight float64) float64 {
	next := math.Round((current+weight)*100) / 100
	if next > 100 {
		return 100
	}
	return next
}

// applyWeights merges requested weights into the current plan. Approved
// milestones keep their weight. With requireAll, every non-approved milestone
// must be present.
func applyWeights(existing []models.Milestone, requested map[uuid.UUID]float64, requireAll bool) (map[uuid.UUID]float64, error) {
	known := make(map[uuid.UUID]*models.Milestone, len(existing))
	out := make(map[uuid.UUID]float64, len(existing))
	for i := range existing {
		m := &existing[i]
		known[m.ID] = m
		out[m.ID] = m.CompletionPercentage
	}
	for id, w := range requested {
		m, ok := known[id]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "milestone %s does not belong to the project", id)
		}
		if m.Status == enums.MilestoneStatusApproved {
			if w != m.CompletionPercentage {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "approved milestone %s keeps its weight", id)
			}
			continue
		}
		out[id] = w
	}
	if requireAll {
		for _, m := range existing {
			if m.Status == enums.MilestoneStatusApproved {
				continue
			}
			if _, ok := requested[m.ID]; !ok {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "missing weight for milestone %s", m.ID)
			}
		}
	}
	return out, nil
}

func weightsInOrder(existing []models.Milestone, weights map[uuid.UUID]float64) []float64 {
	out := make([]float64, 0, len(existing)+1)
	for _, m := range existing {
		out = append(out, weights[m.ID])
	}
	return out
}

func allApproved(rows []models.Milestone) bool {
	if len(rows) == 0 {
		return false
	}
	for _, m := range rows {
		if m.Status != enums.MilestoneStatusApproved {
			return false
		}
	}
	return true
}

func cleanDocuments(docs []models.Document) (models.Documents, error) {
	out := make(models.Documents, 0, len(docs))
	for i, d := range docs {
		d.Name = strings.TrimSpace(d.Name)
		d.URL = strings.TrimSpace(d.URL)
		if d.Name == "" || d.URL == "" {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "document %d: name and url are required", i+1)
		}
		if d.SizeBytes < 0 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "document %d: size_bytes must not be negative", i+1)
		}
		out = append(out, d)
	}
	return out, nil
}

func containsStatus(set []enums.MilestoneStatus, status enums.MilestoneStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func stateConflict(status enums.MilestoneStatus, verb string) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict, "milestone in status %s cannot be %s", status, verb).
		WithDetails(map[string]any{"status": status})
}

func decisionResult(m *models.Milestone, project *models.Project, changed bool) *DecisionResult {
	return &DecisionResult{
		Milestone:       projects.MilestoneFromModel(m),
		ProjectProgress: project.ProjectProgress,
		ProjectStatus:   project.Status,
		Changed:         changed,
	}
}

func asServiceError(err error, msg string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, msg)
}
