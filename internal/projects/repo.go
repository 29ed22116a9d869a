package projects

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

// Repository manages persistence for projects and the read models built on them.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, project *models.Project) error
	CreateMilestones(ctx context.Context, rows []models.Milestone) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	List(ctx context.Context, q ListQuery) ([]models.Project, error)
	Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error
	ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error)
	ListMilestonePayments(ctx context.Context, projectID uuid.UUID) ([]models.EscrowTransaction, error)
	ListVerifications(ctx context.Context, projectID uuid.UUID) ([]models.Verification, error)
}

// ListQuery filters a project listing. When Viewer is set, only public
// projects and the viewer's own projects are returned.
type ListQuery struct {
	Status  *enums.ProjectStatus
	OwnerID *uuid.UUID
	Viewer  *uuid.UUID
	Cursor  *pagination.Cursor
	Limit   int
}

// PublicStatuses are visible to every authenticated user.
var PublicStatuses = []enums.ProjectStatus{enums.ProjectStatusActive, enums.ProjectStatusCompleted}

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

func (r *repository) Create(ctx context.Context, project *models.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

func (r *repository) CreateMilestones(ctx context.Context, rows []models.Milestone) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

// LockByID reads the project with FOR UPDATE. Call it inside a transaction.
func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	var project models.Project
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&project, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repository) List(ctx context.Context, q ListQuery) ([]models.Project, error) {
	query := r.db.WithContext(ctx).Model(&models.Project{})
	if q.Viewer != nil {
		query = query.Where("(status IN ? OR owner_id = ?)", PublicStatuses, *q.Viewer)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.OwnerID != nil {
		query = query.Where("owner_id = ?", *q.OwnerID)
	}
	if q.Cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", q.Cursor.CreatedAt, q.Cursor.CreatedAt, q.Cursor.ID)
	}

	var rows []models.Project
	if err := query.Order("created_at DESC").Order("id DESC").Limit(q.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) Updates(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListMilestones(ctx context.Context, projectID uuid.UUID) ([]models.Milestone, error) {
	var rows []models.Milestone
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListMilestonePayments(ctx context.Context, projectID uuid.UUID) ([]models.EscrowTransaction, error) {
	var rows []models.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("project_id = ? AND type = ? AND status = ?", projectID, enums.EscrowTypeMilestonePayment, enums.EscrowStatusCompleted).
		Order("released_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListVerifications(ctx context.Context, projectID uuid.UUID) ([]models.Verification, error) {
	var rows []models.Verification
	if err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
