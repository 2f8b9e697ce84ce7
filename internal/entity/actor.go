package entity

import (
	"slices"

	"github.com/google/uuid"
)

// Actor is an already-authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Roles  []string
	Groups []uuid.UUID
}

func (a Actor) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

func (a Actor) HasAnyRole(roles []string) bool {
	for _, r := range roles {
		if a.HasRole(r) {
			return true
		}
	}
	return false
}
