package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/permission"
	"flamenco-core/internal/repository"
)

// ManagerService owns managers: registration, capability queries and
// project assignment.
type ManagerService struct {
	repo        repository.ManagerRepository
	projects    repository.ProjectRepository
	gate        *permission.Gate
	coordinator *Coordinator
	hooks       *Hooks
}

func NewManagerService(repo repository.ManagerRepository, projects repository.ProjectRepository, gate *permission.Gate, coordinator *Coordinator, hooks *Hooks) *ManagerService {
	return &ManagerService{
		repo:        repo,
		projects:    projects,
		gate:        gate,
		coordinator: coordinator,
		hooks:       hooks,
	}
}

// Register creates a manager owned by owner and running as creds.ServiceAccount.
func (s *ManagerService) Register(ctx context.Context, owner uuid.UUID, creds entity.Credentials) (*entity.Manager, error) {
	if owner == uuid.Nil || creds.ServiceAccount == uuid.Nil {
		return nil, fmt.Errorf("%w: owner and service account are required", entity.ErrInvalidInput)
	}

	now := time.Now().UTC()
	m := &entity.Manager{
		ID:             uuid.New(),
		Name:           creds.Name,
		URL:            creds.URL,
		ServiceAccount: creds.ServiceAccount,
		Owner:          owner,
		Projects:       []uuid.UUID{},
		UserGroups:     []uuid.UUID{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateManager(ctx, m); err != nil {
		return nil, err
	}

	log.Printf("[manager] manager_id=%s owner=%s service_account=%s registered", m.ID, owner, creds.ServiceAccount)
	return m, nil
}

func (s *ManagerService) GetManager(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Manager, error) {
	m, err := s.repo.GetManager(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(actor, permission.OpManagerRead, permission.Context{ActorOwnsManager: m.Owner == actor.UserID}); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *ManagerService) AssignToProject(ctx context.Context, managerID, projectID uuid.UUID, actor entity.Actor) error {
	if err := s.authorizeAssignment(ctx, managerID, projectID, actor); err != nil {
		return err
	}

	changed, err := s.coordinator.Assign(ctx, managerID, projectID)
	if err != nil {
		return err
	}
	log.Printf("[manager] manager_id=%s project_id=%s op=assign changed=%v", managerID, projectID, changed)
	if changed {
		s.hooks.managerAssignmentChanged(ctx, entity.ManagerAssignmentChange{ManagerID: managerID, Project: projectID, Assigned: true})
	}
	return nil
}

func (s *ManagerService) RemoveFromProject(ctx context.Context, managerID, projectID uuid.UUID, actor entity.Actor) error {
	if err := s.authorizeAssignment(ctx, managerID, projectID, actor); err != nil {
		return err
	}

	changed, err := s.coordinator.Remove(ctx, managerID, projectID)
	if err != nil {
		return err
	}
	log.Printf("[manager] manager_id=%s project_id=%s op=remove changed=%v", managerID, projectID, changed)
	if changed {
		s.hooks.managerAssignmentChanged(ctx, entity.ManagerAssignmentChange{ManagerID: managerID, Project: projectID, Assigned: false})
	}
	return nil
}

// authorizeAssignment requires the actor to own the manager and to be a
// member of the project. Only admins learn that an id does not exist;
// everyone else gets ErrForbidden either way.
func (s *ManagerService) authorizeAssignment(ctx context.Context, managerID, projectID uuid.UUID, actor entity.Actor) error {
	hide := func(err error) error {
		if errors.Is(err, entity.ErrNotFound) && !s.gate.IsAdmin(actor) {
			return entity.ErrForbidden
		}
		return err
	}

	m, err := s.repo.GetManager(ctx, managerID)
	if err != nil {
		return hide(err)
	}
	p, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return hide(err)
	}
	return s.gate.Check(actor, permission.OpManagerAssign, permission.Context{
		ActorOwnsManager: m.Owner == actor.UserID,
		ActorInProject:   p.HasMember(actor.Groups),
	})
}

// ManagerFor returns the manager the actor authenticates as.
func (s *ManagerService) ManagerFor(ctx context.Context, actor entity.Actor) (*entity.Manager, error) {
	return s.repo.FindManagerByServiceAccount(ctx, actor.UserID)
}

// UserIsManager reports whether the actor is a manager's service account.
func (s *ManagerService) UserIsManager(ctx context.Context, actor entity.Actor) (bool, error) {
	_, err := s.ManagerFor(ctx, actor)
	if errors.Is(err, entity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UserManages reports whether the actor is the service account of the given manager.
func (s *ManagerService) UserManages(ctx context.Context, managerID uuid.UUID, actor entity.Actor) (bool, error) {
	m, err := s.repo.GetManager(ctx, managerID)
	if errors.Is(err, entity.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.ServiceAccount == actor.UserID, nil
}

// readContext describes the actor as a reader of items in project.
func (s *ManagerService) readContext(ctx context.Context, actor entity.Actor, project uuid.UUID) (permission.Context, error) {
	m, err := s.ManagerFor(ctx, actor)
	if errors.Is(err, entity.ErrNotFound) {
		return permission.Context{}, nil
	}
	if err != nil {
		return permission.Context{}, err
	}
	return permission.Context{ActorIsManager: true, ManagerAssigned: m.AssignedTo(project)}, nil
}
