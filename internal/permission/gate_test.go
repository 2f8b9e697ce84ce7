package permission_test

import (
	"errors"
	"testing"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/permission"
)

func actor(roles ...string) entity.Actor {
	return entity.Actor{UserID: uuid.New(), Roles: roles}
}

func TestGate_AdminAllowedEverything(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())
	admin := actor("flamenco-admin")

	for _, op := range []permission.Operation{
		permission.OpTaskRead, permission.OpTaskLogRead, permission.OpTaskCreate,
		permission.OpTaskDelete, permission.OpTaskEdit, permission.OpJobCreate,
		permission.OpJobEdit, permission.OpManagerAssign, permission.OpManagerClaim,
	} {
		if g.Authorize(admin, op, permission.Context{}) != permission.Allow {
			t.Fatalf("expected admin allowed for %s", op)
		}
	}
}

func TestGate_TaskRead(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())

	if g.Authorize(actor("subscriber"), permission.OpTaskRead, permission.Context{}) != permission.Allow {
		t.Fatalf("expected subscriber to read tasks")
	}
	if g.Authorize(actor(), permission.OpTaskRead, permission.Context{}) != permission.Deny {
		t.Fatalf("expected role-less user denied")
	}

	// A manager is judged on its project assignment, not on roles.
	mngr := actor("subscriber")
	if g.Authorize(mngr, permission.OpTaskRead, permission.Context{ActorIsManager: true}) != permission.Deny {
		t.Fatalf("expected unassigned manager denied")
	}
	ctx := permission.Context{ActorIsManager: true, ManagerAssigned: true}
	if g.Authorize(actor(), permission.OpTaskRead, ctx) != permission.Allow {
		t.Fatalf("expected assigned manager allowed")
	}
}

func TestGate_LogReadNeedsDedicatedRole(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())

	if g.Authorize(actor("subscriber"), permission.OpTaskLogRead, permission.Context{}) != permission.Deny {
		t.Fatalf("expected subscriber denied log read")
	}
	if g.Authorize(actor("flamenco-view-logs"), permission.OpTaskLogRead, permission.Context{}) != permission.Allow {
		t.Fatalf("expected log viewer allowed")
	}
}

func TestGate_CreateDeleteEditAdminOnly(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())
	owner := permission.Context{ActorOwnsManager: true, ActorInProject: true, ActorIsManager: true, ManagerAssigned: true}

	for _, op := range []permission.Operation{
		permission.OpTaskCreate, permission.OpTaskDelete, permission.OpTaskEdit,
		permission.OpJobCreate, permission.OpJobDelete, permission.OpJobEdit,
	} {
		if g.Authorize(actor("subscriber", "flamenco-view-logs"), op, owner) != permission.Deny {
			t.Fatalf("expected non-admin denied for %s", op)
		}
	}
}

func TestGate_ManagerAssignNeedsOwnerAndMember(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())
	a := actor("subscriber")

	cases := []struct {
		name string
		ctx  permission.Context
		want permission.Decision
	}{
		{"owner and member", permission.Context{ActorOwnsManager: true, ActorInProject: true}, permission.Allow},
		{"owner only", permission.Context{ActorOwnsManager: true}, permission.Deny},
		{"member only", permission.Context{ActorInProject: true}, permission.Deny},
		{"neither", permission.Context{}, permission.Deny},
	}
	for _, c := range cases {
		if got := g.Authorize(a, permission.OpManagerAssign, c.ctx); got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}
}

func TestGate_CheckReturnsForbidden(t *testing.T) {
	g := permission.NewGate(permission.DefaultRoles())

	err := g.Check(actor(), permission.OpJobCreate, permission.Context{})
	if !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := g.Check(actor("flamenco-admin"), permission.OpJobCreate, permission.Context{}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
