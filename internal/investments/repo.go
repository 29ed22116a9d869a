package investments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

// Repository persists investments and their disbursement phases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, inv *models.Investment) error
	ListByInvestor(ctx context.Context, investorID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Investment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Investment, error)
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
	FindMilestonePayment(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowTransaction, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the investment together with its Phases.
func (r *repository) Create(ctx context.Context, inv *models.Investment) error {
	return r.db.WithContext(ctx).Create(inv).Error
}

func (r *repository) ListByInvestor(ctx context.Context, investorID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Investment, error) {
	return r.list(ctx, "investor_id = ?", investorID, cursor, limit)
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Investment, error) {
	return r.list(ctx, "project_id = ?", projectID, cursor, limit)
}

func (r *repository) list(ctx context.Context, where string, id uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Investment, error) {
	query := r.db.WithContext(ctx).Model(&models.Investment{}).Where(where, id)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Investment
	err := query.
		Preload("Phases").
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var rows []models.Milestone
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("position ASC").Find(&rows).Error
	return rows, err
}

// FindMilestonePayment returns the milestone's payment or nil.
func (r *repository) FindMilestonePayment(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowTransaction, error) {
	var rows []models.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ? AND type = ?", milestoneID, enums.EscrowTypeMilestonePayment).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
