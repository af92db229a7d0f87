package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/carrental-backend/pkg/enums"
)

// Actor is the caller identity handed explicitly to every service call.
type Actor struct {
	ID   uuid.UUID
	Role enums.ActorRole
}

// IsStaff reports whether the actor may run operator workflows.
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// Owns reports whether the actor is the given customer.
func (a Actor) Owns(customerID uuid.UUID) bool {
	return a.ID != uuid.Nil && a.ID == customerID
}

// CanView reports whether the actor may read a resource owned by customerID.
func (a Actor) CanView(customerID uuid.UUID) bool {
	return a.IsStaff() || a.Owns(customerID)
}

// Valid reports whether the actor carries an id and a known role.
func (a Actor) Valid() bool {
	return a.ID != uuid.Nil && a.Role.IsValid()
}
