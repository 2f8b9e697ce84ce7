package service_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
	"flamenco-core/internal/service"
)

func (f *fixture) storedManager(t *testing.T) *entity.Manager {
	t.Helper()
	m, err := f.store.GetManager(context.Background(), f.manager.ID)
	if err != nil {
		t.Fatalf("get manager: %v", err)
	}
	return m
}

func (f *fixture) adminGroup(t *testing.T) uuid.UUID {
	t.Helper()
	g, ok := f.project.AdminGroup()
	if !ok {
		t.Fatalf("fixture project has no admin group")
	}
	return g
}

func TestManagerService_AssignAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var events []entity.ManagerAssignmentChange
	f.hooks.OnManagerAssignment(func(ctx context.Context, c entity.ManagerAssignmentChange) error {
		events = append(events, c)
		return nil
	})

	if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, f.owner); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	m := f.storedManager(t)
	if !reflect.DeepEqual(m.Projects, []uuid.UUID{f.project.ID}) {
		t.Fatalf("expected projects [%s], got %v", f.project.ID, m.Projects)
	}
	if !reflect.DeepEqual(m.UserGroups, []uuid.UUID{f.adminGroup(t)}) {
		t.Fatalf("expected user groups [%s], got %v", f.adminGroup(t), m.UserGroups)
	}

	// Assigning twice changes nothing.
	if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, f.owner); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if again := f.storedManager(t); again.Version != m.Version {
		t.Fatalf("expected no write, version %d -> %d", m.Version, again.Version)
	}

	if err := f.managers.RemoveFromProject(ctx, f.manager.ID, f.project.ID, f.owner); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	m = f.storedManager(t)
	if len(m.Projects) != 0 || len(m.UserGroups) != 0 {
		t.Fatalf("expected empty lists, got %v / %v", m.Projects, m.UserGroups)
	}

	if len(events) != 2 || !events[0].Assigned || events[1].Assigned {
		t.Fatalf("expected assign then remove event, got %+v", events)
	}
}

func TestManagerService_AssignNeedsOwnerAndMember(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	memberOnly := entity.Actor{UserID: uuid.New(), Groups: f.owner.Groups}
	ownerOnly := entity.Actor{UserID: f.owner.UserID}

	for name, actor := range map[string]entity.Actor{"member only": memberOnly, "owner only": ownerOnly} {
		if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, actor); !errors.Is(err, entity.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", name, err)
		}
	}
	if m := f.storedManager(t); len(m.Projects) != 0 || len(m.UserGroups) != 0 {
		t.Fatalf("expected manager unchanged, got %v / %v", m.Projects, m.UserGroups)
	}

	// Unknown ids look the same as a denial unless the caller is an admin.
	if err := f.managers.AssignToProject(ctx, uuid.New(), f.project.ID, f.owner); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown manager, got %v", err)
	}
	if err := f.managers.RemoveFromProject(ctx, f.manager.ID, uuid.New(), f.owner); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unknown project, got %v", err)
	}
	if err := f.managers.AssignToProject(ctx, uuid.New(), f.project.ID, f.admin); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for admin, got %v", err)
	}
	if err := f.managers.AssignToProject(ctx, f.manager.ID, uuid.New(), f.admin); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for admin, got %v", err)
	}
	if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, f.admin); err != nil {
		t.Fatalf("expected admin to assign, got %v", err)
	}
}

func TestCoordinator_RepairsDriftedGroups(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stray := uuid.New()

	_, err := f.store.UpdateManager(ctx, f.manager.ID, func(ctx context.Context, m *entity.Manager, _ repository.ProjectLookup) error {
		m.Projects = []uuid.UUID{f.project.ID}
		m.UserGroups = []uuid.UUID{stray}
		return nil
	})
	if err != nil {
		t.Fatalf("seed drift: %v", err)
	}

	changed, err := service.NewCoordinator(f.store).Assign(ctx, f.manager.ID, f.project.ID)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !changed {
		t.Fatalf("expected drifted manager to be rewritten")
	}
	if m := f.storedManager(t); !reflect.DeepEqual(m.UserGroups, []uuid.UUID{f.adminGroup(t)}) {
		t.Fatalf("expected user groups repaired, got %v", m.UserGroups)
	}
}

func TestCoordinator_DropsVanishedProjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	gone := uuid.New()

	_, err := f.store.UpdateManager(ctx, f.manager.ID, func(ctx context.Context, m *entity.Manager, _ repository.ProjectLookup) error {
		m.Projects = []uuid.UUID{gone}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := service.NewCoordinator(f.store).Assign(ctx, f.manager.ID, f.project.ID); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if m := f.storedManager(t); !reflect.DeepEqual(m.Projects, []uuid.UUID{f.project.ID}) {
		t.Fatalf("expected only the live project, got %v", m.Projects)
	}
}

// crashingManagers mutates the manager and then fails, like a process dying
// between writing the two lists.
type crashingManagers struct {
	repository.ManagerRepository
}

func (c crashingManagers) UpdateManager(ctx context.Context, id uuid.UUID, fn repository.ManagerUpdateFunc) (*entity.Manager, error) {
	return c.ManagerRepository.UpdateManager(ctx, id, func(ctx context.Context, m *entity.Manager, lookup repository.ProjectLookup) error {
		if err := fn(ctx, m, lookup); err != nil {
			return err
		}
		return errors.New("crash")
	})
}

func TestCoordinator_FailedUpdateLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := service.NewCoordinator(crashingManagers{f.store}).Assign(ctx, f.manager.ID, f.project.ID)
	if err == nil {
		t.Fatalf("expected error")
	}
	if m := f.storedManager(t); len(m.Projects) != 0 || len(m.UserGroups) != 0 {
		t.Fatalf("expected nothing written, got %v / %v", m.Projects, m.UserGroups)
	}

	// The retry succeeds and leaves both lists consistent.
	if _, err := service.NewCoordinator(f.store).Assign(ctx, f.manager.ID, f.project.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	m := f.storedManager(t)
	if len(m.Projects) != 1 || len(m.UserGroups) != 1 {
		t.Fatalf("expected one project and one group, got %v / %v", m.Projects, m.UserGroups)
	}
}

func TestCoordinator_ProjectWithoutAdminGroup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bare := &entity.Project{ID: uuid.New(), Name: "bare"}
	if err := f.store.PutProject(ctx, bare); err != nil {
		t.Fatalf("put project: %v", err)
	}

	_, err := service.NewCoordinator(f.store).Assign(ctx, f.manager.ID, bare.ID)
	if !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestManagerService_Capabilities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if ok, err := f.managers.UserIsManager(ctx, f.managerActor); err != nil || !ok {
		t.Fatalf("expected service account to be a manager, got %v, err=%v", ok, err)
	}
	if ok, _ := f.managers.UserIsManager(ctx, f.owner); ok {
		t.Fatalf("expected owner not to be a manager")
	}
	if ok, _ := f.managers.UserManages(ctx, f.manager.ID, f.managerActor); !ok {
		t.Fatalf("expected service account to manage its manager")
	}
	if ok, _ := f.managers.UserManages(ctx, uuid.New(), f.managerActor); ok {
		t.Fatalf("expected unknown manager not to be managed")
	}

	if _, err := f.managers.GetManager(ctx, f.manager.ID, f.owner); err != nil {
		t.Fatalf("expected owner to read manager, got %v", err)
	}
	if _, err := f.managers.GetManager(ctx, f.manager.ID, f.managerActor); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	_, err := f.managers.Register(ctx, f.owner.UserID, entity.Credentials{ServiceAccount: f.managerActor.UserID})
	if !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected ErrConflict for reused service account, got %v", err)
	}
}
