package investments

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/money"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type projectStore interface {
	WithTx(tx *gorm.DB) projects.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Service records investor pledges and their disbursement schedules.
type Service interface {
	Create(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req CreateRequest) (*InvestmentDTO, error)
	ListMine(ctx context.Context, actor auth.Actor, params pagination.Params) (*Page, error)
	ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID, params pagination.Params) (*Page, error)
}

type service struct {
	repo     Repository
	projects projectStore
	tx       txRunner
	emitter  outbox.Emitter
	metrics  *metrics.DomainMetrics
}

func NewService(repo Repository, projectRepo projectStore, tx txRunner, emitter outbox.Emitter, domainMetrics *metrics.DomainMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("investments repository required")
	}
	if projectRepo == nil {
		return nil, fmt.Errorf("projects repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{repo: repo, projects: projectRepo, tx: tx, emitter: emitter, metrics: domainMetrics}, nil
}

func (s *service) Create(ctx context.Context, actor auth.Actor, projectID uuid.UUID, req CreateRequest) (*InvestmentDTO, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	if actor.Role != enums.UserRoleInvestor {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only investors can invest")
	}
	if err := money.ValidatePositive("amount", req.Amount); err != nil {
		return nil, err
	}

	var created *models.Investment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		projectRepo := s.projects.WithTx(tx)
		repo := s.repo.WithTx(tx)

		project, err := projectRepo.LockByID(ctx, projectID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "project not found")
			}
			return err
		}
		if project.Status != enums.ProjectStatusActive {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "project in status %s is not accepting investments", project.Status)
		}
		pledged := project.PledgedFunding.Add(req.Amount)
		if pledged.GreaterThan(project.FundingGoal) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "investment exceeds the remaining funding goal").
				WithDetails(map[string]any{
					"remaining": project.FundingGoal.Sub(project.PledgedFunding).StringFixed(2),
				})
		}

		milestones, err := repo.ListMilestones(ctx, project.ID)
		if err != nil {
			return err
		}
		if len(milestones) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "project has no milestones")
		}
		amounts := Schedule(req.Amount, milestones)
		phases := make([]models.DisbursementPhase, len(milestones))
		for i, m := range milestones {
			phases[i] = models.DisbursementPhase{MilestoneID: m.ID, Amount: amounts[i]}
			payment, err := repo.FindMilestonePayment(ctx, m.ID)
			if err != nil {
				return err
			}
			if payment != nil {
				releasedAt := payment.ReleasedAt
				escrowID := payment.ID
				phases[i].Released = true
				phases[i].ReleasedAt = &releasedAt
				phases[i].EscrowTransactionID = &escrowID
			}
		}

		created = &models.Investment{
			ProjectID:  project.ID,
			InvestorID: actor.UserID,
			Amount:     req.Amount,
			Phases:     phases,
		}
		if err := repo.Create(ctx, created); err != nil {
			return err
		}
		if err := projectRepo.Updates(ctx, project.ID, map[string]any{"pledged_funding": pledged}); err != nil {
			return err
		}
		return s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInvestmentCreated,
			AggregateType: enums.AggregateInvestment,
			AggregateID:   created.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.InvestmentCreatedEvent{
				InvestmentID: created.ID,
				ProjectID:    project.ID,
				InvestorID:   actor.UserID,
				OwnerID:      project.OwnerID,
				Amount:       req.Amount,
			},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create investment")
	}
	s.metrics.InvestmentCreated()
	dto := FromModel(created)
	return &dto, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, params pagination.Params) (*Page, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByInvestor(ctx, actor.UserID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list investments")
	}
	return toPage(rows, params.Limit), nil
}

func (s *service) ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID, params pagination.Params) (*Page, error) {
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
	if project.OwnerID != actor.UserID && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the project owner can list its investments")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByProject(ctx, projectID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list investments")
	}
	return toPage(rows, params.Limit), nil
}

func toPage(rows []models.Investment, limit int) *Page {
	page := pagination.Trim(rows, limit, func(inv models.Investment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: inv.CreatedAt, ID: inv.ID}
	})
	items := make([]InvestmentDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, FromModel(&page.Items[i]))
	}
	return &Page{Items: items, NextCursor: page.NextCursor}
}
