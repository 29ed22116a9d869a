package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/innocapforge/forge-backend/pkg/db/models"
	"github.com/innocapforge/forge-backend/pkg/enums"
)

const (
	maxDLQErrorLen      = 1024
	defaultDLQListLimit = 50
	maxDLQListLimit     = 500
)

// ErrDeadLetterNotFound is returned by Requeue for an unknown event id.
var ErrDeadLetterNotFound = errors.New("dead letter not found")

// DeadLetterFilter narrows List. Zero values match everything.
type DeadLetterFilter struct {
	EventType enums.OutboxEventType
	Reason    enums.OutboxDLQErrorReason
	Limit     int
}

// DLQRepository keeps domain events the publisher gave up on, one row per
// event, so an operator can inspect and requeue them.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// BuryTx records event as dead. Burying the same event twice keeps the first
// row.
func (r *DLQRepository) BuryTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return errors.New("invalid dead letter reason")
	}
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  clipDLQError(cause),
		AttemptCount:  event.AttemptCount,
		FailedAt:      at,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "event_id"}},
		DoNothing: true,
	}).Create(&entry).Error
}

// List returns the newest dead letters first.
func (r *DLQRepository) List(ctx context.Context, filter DeadLetterFilter) ([]models.OutboxDLQ, error) {
	limit := filter.Limit
	switch {
	case limit <= 0:
		limit = defaultDLQListLimit
	case limit > maxDLQListLimit:
		limit = maxDLQListLimit
	}
	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Requeue drops the dead letter for eventID and resets the outbox row so the
// publisher picks it up on its next pass.
func (r *DLQRepository) Requeue(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrDeadLetterNotFound
		}
		return tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil}).Error
	})
}

func clipDLQError(cause error) *string {
	if cause == nil {
		return nil
	}
	msg := cause.Error()
	if len(msg) > maxDLQErrorLen {
		msg = msg[:maxDLQErrorLen]
	}
	return &msg
}
