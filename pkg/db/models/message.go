package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a direct message between two users, optionally about a project.
type Message struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID    uuid.UUID  `gorm:"column:sender_id;type:uuid;not null"`
	RecipientID uuid.UUID  `gorm:"column:recipient_id;type:uuid;not null"`
	ProjectID   *uuid.UUID `gorm:"column:project_id;type:uuid"`
	Body        string     `gorm:"column:body;not null"`
	ReadAt      *time.Time `gorm:"column:read_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
