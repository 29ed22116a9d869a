package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/internal/projects"
	"github.com/innocapforge/forge-backend/pkg/auth"
	"github.com/innocapforge/forge-backend/pkg/db"
	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	pkgerrors "github.com/innocapforge/forge-backend/pkg/errors"
	"github.com/innocapforge/forge-backend/pkg/logger"
	"github.com/innocapforge/forge-backend/pkg/metrics"
	"github.com/innocapforge/forge-backend/pkg/money"
	"github.com/innocapforge/forge-backend/pkg/outbox"
	"github.com/innocapforge/forge-backend/pkg/outbox/payloads"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

const milestonePaymentIndex = "ux_escrow_milestone_payment"

// errLostRace marks a release that lost the unique index to a concurrent writer.
var errLostRace = errors.New("milestone payment already recorded")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type projectStore interface {
	WithTx(tx *gorm.DB) projects.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
}

// Service is the only writer of milestone payments.
type Service interface {
	Release(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req ReleaseRequest) (*ReleaseResult, error)
	ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]TransactionDTO, error)
	ListWallet(ctx context.Context, actor auth.Actor, params pagination.Params) (*WalletPage, error)
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
		return nil, fmt.Errorf("escrow repository required")
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

// Release pays out an approved milestone exactly once. Repeated calls return
// the existing payment with Created=false.
func (s *service) Release(ctx context.Context, actor auth.Actor, milestoneID uuid.UUID, req ReleaseRequest) (*ReleaseResult, error) {
	if !actor.IsAdmin() || actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if req.Amount != nil {
		if err := money.ValidatePositive("amount", *req.Amount); err != nil {
			return nil, err
		}
	}

	var result *ReleaseResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		projectRepo := s.projects.WithTx(tx)

		milestone, err := repo.FindMilestone(ctx, milestoneID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone not found")
			}
			return err
		}
		project, err := projectRepo.LockByID(ctx, milestone.ProjectID)
		if err != nil {
			return err
		}

		existing, err := repo.FindPaymentByMilestone(ctx, milestoneID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = &ReleaseResult{Transaction: FromModel(existing), CurrentFunding: project.CurrentFunding}
			return nil
		}

		if milestone.Status != enums.MilestoneStatusApproved {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "milestone in status %s cannot release funds", milestone.Status).
				WithDetails(map[string]any{"status": milestone.Status})
		}
		amount := milestone.EstimatedFunding
		if req.Amount != nil {
			amount = *req.Amount
		}
		if err := money.ValidatePositive("amount", amount); err != nil {
			return err
		}
		funded := project.CurrentFunding.Add(amount)
		if funded.GreaterThan(project.FundingGoal) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "release would exceed the funding goal").
				WithDetails(map[string]any{
					"current_funding": project.CurrentFunding.StringFixed(2),
					"funding_goal":    project.FundingGoal.StringFixed(2),
					"amount":          amount.StringFixed(2),
				})
		}

		now := s.now()
		row := &models.EscrowTransaction{
			ProjectID:   project.ID,
			MilestoneID: milestone.ID,
			Amount:      amount,
			Type:        enums.EscrowTypeMilestonePayment,
			Status:      enums.EscrowStatusCompleted,
			ReleasedBy:  actor.UserID,
			ReleasedAt:  now,
			Note:        trimOptional(req.Note),
		}
		if err := repo.CreateTransaction(ctx, row); err != nil {
			if db.IsUniqueViolation(err, milestonePaymentIndex) {
				return errLostRace
			}
			return err
		}
		if err := projectRepo.Updates(ctx, project.ID, map[string]any{"current_funding": funded}); err != nil {
			return err
		}
		if _, err := repo.ReleasePhases(ctx, milestone.ID, row.ID, now); err != nil {
			return err
		}
		escrowID := row.ID
		if err := repo.CreateWalletTransaction(ctx, &models.WalletTransaction{
			UserID:              project.OwnerID,
			ProjectID:           project.ID,
			EscrowTransactionID: &escrowID,
			Direction:           enums.WalletCredit,
			Amount:              amount,
			Description:         "Milestone payment: " + milestone.Title,
		}); err != nil {
			return err
		}

		releasedBy := actor.UserID
		if err := s.emitter.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFundsReleased,
			AggregateType: enums.AggregateEscrow,
			AggregateID:   row.ID,
			Actor:         outbox.NewActorRef(actor.UserID, string(actor.Role)),
			Data: payloads.FundsReleasedEvent{
				EscrowTransactionID: row.ID,
				ProjectID:           project.ID,
				MilestoneID:         milestone.ID,
				OwnerID:             project.OwnerID,
				Amount:              amount,
				ReleasedBy:          &releasedBy,
			},
		}); err != nil {
			return err
		}
		result = &ReleaseResult{Transaction: FromModel(row), Created: true, CurrentFunding: funded}
		return nil
	})
	if errors.Is(err, errLostRace) {
		return s.readWinner(ctx, milestoneID)
	}
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release funds")
	}

	if result.Created {
		s.metrics.FundsReleased(result.Transaction.Amount)
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"milestone_id":          milestoneID.String(),
				"escrow_transaction_id": result.Transaction.ID.String(),
				"amount":                result.Transaction.Amount.StringFixed(2),
			})
			s.logg.Info(logCtx, "milestone funds released")
		}
	}
	return result, nil
}

// readWinner returns the payment written by the concurrent release that won.
func (s *service) readWinner(ctx context.Context, milestoneID uuid.UUID) (*ReleaseResult, error) {
	row, err := s.repo.FindPaymentByMilestone(ctx, milestoneID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load milestone payment")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "milestone payment vanished after conflict")
	}
	project, err := s.projects.FindByID(ctx, row.ProjectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load project")
	}
	return &ReleaseResult{Transaction: FromModel(row), CurrentFunding: project.CurrentFunding}, nil
}

func (s *service) ListByProject(ctx context.Context, actor auth.Actor, projectID uuid.UUID) ([]TransactionDTO, error) {
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
	rows, err := s.repo.ListByProject(ctx, projectID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list escrow transactions")
	}
	out := make([]TransactionDTO, 0, len(rows))
	for i := range rows {
		out = append(out, FromModel(&rows[i]))
	}
	return out, nil
}

func (s *service) ListWallet(ctx context.Context, actor auth.Actor, params pagination.Params) (*WalletPage, error) {
	if !actor.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing actor")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListWallet(ctx, actor.UserID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}
	page := pagination.Trim(rows, params.Limit, func(w models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: w.CreatedAt, ID: w.ID}
	})
	items := make([]WalletTransactionDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, walletFromModel(&page.Items[i]))
	}
	return &WalletPage{Items: items, NextCursor: page.NextCursor}, nil
}

func trimOptional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
