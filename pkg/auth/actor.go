package auth

import (
	"github.com/google/uuid"

	"github.com/innocapforge/forge-backend/pkg/enums"
)

// Actor is the authenticated caller handed from middleware to services.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

func (a Actor) IsAdmin() bool { return a.Role == enums.UserRoleAdmin }

// Valid reports whether the actor carries a user id and a known role.
func (a Actor) Valid() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}
