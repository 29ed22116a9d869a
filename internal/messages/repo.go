package messages

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/pagination"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, msg *models.Message) error
	Inbox(ctx context.Context, q inboxQuery) ([]models.Message, error)
	Conversation(ctx context.Context, userID, otherID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (bool, error)
	ProjectExists(ctx context.Context, id uuid.UUID) (bool, error)
}

type inboxQuery struct {
	RecipientID uuid.UUID
	UnreadOnly  bool
	Cursor      *pagination.Cursor
	Limit       int
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

func (r *repository) Create(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *repository) Inbox(ctx context.Context, q inboxQuery) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where("recipient_id = ?", q.RecipientID)
	if q.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	var rows []models.Message
	err := page(query, q.Cursor).Limit(q.Limit).Find(&rows).Error
	return rows, err
}

func (r *repository) Conversation(ctx context.Context, userID, otherID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Message, error) {
	query := r.db.WithContext(ctx).Where(
		"(sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)",
		userID, otherID, otherID, userID,
	)
	var rows []models.Message
	err := page(query, cursor).Limit(limit).Find(&rows).Error
	return rows, err
}

// MarkRead stamps read_at once; it reports whether the message belongs to the recipient.
func (r *repository) MarkRead(ctx context.Context, recipientID, id uuid.UUID, at time.Time) (bool, error) {
	var msg models.Message
	err := r.db.WithContext(ctx).Where("id = ? AND recipient_id = ?", id, recipientID).First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	if msg.ReadAt != nil {
		return true, nil
	}
	err = r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("id = ? AND read_at IS NULL", id).
		UpdateColumn("read_at", at).Error
	return err == nil, err
}

func (r *repository) ProjectExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Project{}).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func page(query *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	return query.Order("created_at DESC, id DESC")
}
