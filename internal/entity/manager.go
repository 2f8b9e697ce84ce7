package entity

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

type Manager struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	URL  string    `json:"url,omitempty"`
	// ServiceAccount is the user the manager authenticates as.
	ServiceAccount uuid.UUID   `json:"service_account"`
	Owner          uuid.UUID   `json:"owner"`
	Projects       []uuid.UUID `json:"projects"`
	// UserGroups mirrors the admin groups of Projects; it is derived, never edited on its own.
	UserGroups []uuid.UUID `json:"user_groups"`
	Version    int64       `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Credentials identify the service account a new manager will run as.
type Credentials struct {
	ServiceAccount uuid.UUID
	Name           string
	URL            string
}

func (m *Manager) AssignedTo(project uuid.UUID) bool {
	return slices.Contains(m.Projects, project)
}

// ManagerAssignmentChange is emitted after a manager's project list changed.
type ManagerAssignmentChange struct {
	ManagerID uuid.UUID
	Project   uuid.UUID
	Assigned  bool
}
