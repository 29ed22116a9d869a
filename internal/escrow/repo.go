package escrow

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

// Repository manages the escrow ledger, wallet credits and disbursement phases.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	FindPaymentByMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowTransaction, error)
	CreateTransaction(ctx context.Context, row *models.EscrowTransaction) error
	ReleasePhases(ctx context.Context, milestoneID, escrowID uuid.UUID, at time.Time) (int64, error)
	CreateWalletTransaction(ctx context.Context, row *models.WalletTransaction) error
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.EscrowTransaction, error)
	ListWallet(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error)
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

func (r *repository) FindMilestone(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var m models.Milestone
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindPaymentByMilestone returns nil, nil when the milestone has not been paid.
func (r *repository) FindPaymentByMilestone(ctx context.Context, milestoneID uuid.UUID) (*models.EscrowTransaction, error) {
	var row models.EscrowTransaction
	err := r.db.WithContext(ctx).
		Where("milestone_id = ? AND type = ?", milestoneID, enums.EscrowTypeMilestonePayment).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) CreateTransaction(ctx context.Context, row *models.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ReleasePhases(ctx context.Context, milestoneID, escrowID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.DisbursementPhase{}).
		Where("milestone_id = ? AND released = ?", milestoneID, false).
		Updates(map[string]any{
			"released":              true,
			"released_at":           at,
			"escrow_transaction_id": escrowID,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) CreateWalletTransaction(ctx context.Context, row *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]models.EscrowTransaction, error) {
	var rows []models.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("released_at DESC").
		Order("id DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListWallet(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).Model(&models.WalletTransaction{}).Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.WalletTransaction
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
