// Package permission decides whether an actor may perform an operation.
// The gate holds no state besides its role configuration; every fact it needs
// about ownership or project membership is passed in by the caller.
package permission

import (
	"flamenco-core/internal/entity"
)

type Operation string

const (
	OpTaskRead      Operation = "task.read"
	OpTaskLogRead   Operation = "task.log.read"
	OpTaskCreate    Operation = "task.create"
	OpTaskDelete    Operation = "task.delete"
	OpTaskEdit      Operation = "task.edit"
	OpJobRead       Operation = "job.read"
	OpJobCreate     Operation = "job.create"
	OpJobDelete     Operation = "job.delete"
	OpJobEdit       Operation = "job.edit"
	OpManagerRead   Operation = "manager.read"
	OpManagerAssign Operation = "manager.assign"
	OpManagerClaim  Operation = "manager.claim"
)

// Context carries the facts a decision depends on.
type Context struct {
	// ActorIsManager is true when the actor authenticates as a manager service account.
	ActorIsManager bool
	// ManagerAssigned is true when that manager is assigned to the project of the target.
	ManagerAssigned bool
	// ActorOwnsManager is true when the actor is the exclusive owner of the target manager.
	ActorOwnsManager bool
	// ActorInProject is true when the actor is a member of the target project.
	ActorInProject bool
}

type Decision bool

const (
	Allow Decision = true
	Deny  Decision = false
)

type Roles struct {
	Admin     string
	ViewItems []string
	ViewLogs  []string
}

func DefaultRoles() Roles {
	return Roles{
		Admin:     "flamenco-admin",
		ViewItems: []string{"subscriber", "demo", "flamenco-user"},
		ViewLogs:  []string{"flamenco-view-logs"},
	}
}

type Gate struct {
	roles Roles
}

func NewGate(roles Roles) *Gate {
	return &Gate{roles: roles}
}

func (g *Gate) IsAdmin(actor entity.Actor) bool {
	return g.roles.Admin != "" && actor.HasRole(g.roles.Admin)
}

// Authorize evaluates the policy in order; the first applicable rule wins.
func (g *Gate) Authorize(actor entity.Actor, op Operation, c Context) Decision {
	if g.IsAdmin(actor) {
		return Allow
	}

	switch op {
	case OpTaskRead, OpJobRead:
		if c.ActorIsManager {
			return Decision(c.ManagerAssigned)
		}
		return Decision(actor.HasAnyRole(g.roles.ViewItems))
	case OpTaskLogRead:
		return Decision(actor.HasAnyRole(g.roles.ViewLogs))
	case OpManagerAssign:
		return Decision(c.ActorOwnsManager && c.ActorInProject)
	case OpManagerRead:
		return Decision(c.ActorOwnsManager)
	case OpManagerClaim:
		return Decision(c.ActorIsManager && c.ManagerAssigned)
	}
	// create, delete and edit of tasks and jobs are admin-only.
	return Deny
}

// Check is Authorize folded into the error taxonomy.
func (g *Gate) Check(actor entity.Actor, op Operation, c Context) error {
	if g.Authorize(actor, op, c) == Deny {
		return entity.ErrForbidden
	}
	return nil
}
