package entity

import (
	"slices"

	"github.com/google/uuid"
)

type ProjectGroup struct {
	Group   uuid.UUID `json:"group"`
	Methods []string  `json:"methods,omitempty"`
}

type ProjectPermissions struct {
	Groups []ProjectGroup `json:"groups"`
}

// Project is owned by the surrounding system; this module only reads it.
type Project struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Permissions ProjectPermissions `json:"permissions"`
}

// AdminGroup is the first permission group of the project.
func (p *Project) AdminGroup() (uuid.UUID, bool) {
	if len(p.Permissions.Groups) == 0 {
		return uuid.Nil, false
	}
	return p.Permissions.Groups[0].Group, true
}

// HasMember reports whether any of the given groups grants access to the project.
func (p *Project) HasMember(groups []uuid.UUID) bool {
	for _, g := range p.Permissions.Groups {
		if slices.Contains(groups, g.Group) {
			return true
		}
	}
	return false
}
