package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/db/models"
)

type SendRequest struct {
	RecipientID uuid.UUID  `json:"recipient_id" validate:"required"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	Body        string     `json:"body" validate:"required,max=5000"`
}

type Participant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name,omitempty"`
}

type MessageDTO struct {
	ID        uuid.UUID   `json:"id"`
	Sender    Participant `json:"sender"`
	Recipient Participant `json:"recipient"`
	ProjectID *uuid.UUID  `json:"project_id,omitempty"`
	Body      string      `json:"body"`
	Read      bool        `json:"read"`
	ReadAt    *time.Time  `json:"read_at,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

type Page struct {
	Items      []MessageDTO `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

func fromModel(m models.Message, names map[uuid.UUID]models.User) MessageDTO {
	return MessageDTO{
		ID:        m.ID,
		Sender:    Participant{ID: m.SenderID, Name: names[m.SenderID].Name},
		Recipient: Participant{ID: m.RecipientID, Name: names[m.RecipientID].Name},
		ProjectID: m.ProjectID,
		Body:      m.Body,
		Read:      m.ReadAt != nil,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
}
