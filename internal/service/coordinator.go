package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

// errUnchanged aborts a manager update that would write what is already stored.
var errUnchanged = errors.New("unchanged")

// Coordinator keeps Manager.Projects and Manager.UserGroups in step. Both
// lists are written in one atomic update, and UserGroups is always rebuilt
// from the admin groups of the projects that remain, so a retried call
// repairs a manager whose lists had drifted apart.
type Coordinator struct {
	repo repository.ManagerRepository
}

func NewCoordinator(repo repository.ManagerRepository) *Coordinator {
	return &Coordinator{repo: repo}
}

// Assign adds project to the manager. It reports whether anything was written.
func (c *Coordinator) Assign(ctx context.Context, managerID, projectID uuid.UUID) (bool, error) {
	return c.apply(ctx, managerID, func(ctx context.Context, m *entity.Manager, projects repository.ProjectLookup) ([]uuid.UUID, error) {
		p, err := projects(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", projectID, err)
		}
		if _, ok := p.AdminGroup(); !ok {
			return nil, fmt.Errorf("%w: project %s has no admin group", entity.ErrInvalidInput, projectID)
		}
		if m.AssignedTo(projectID) {
			return slices.Clone(m.Projects), nil
		}
		return append(slices.Clone(m.Projects), projectID), nil
	})
}

// Remove takes project away from the manager. It reports whether anything was written.
func (c *Coordinator) Remove(ctx context.Context, managerID, projectID uuid.UUID) (bool, error) {
	return c.apply(ctx, managerID, func(ctx context.Context, m *entity.Manager, projects repository.ProjectLookup) ([]uuid.UUID, error) {
		return slices.DeleteFunc(slices.Clone(m.Projects), func(id uuid.UUID) bool {
			return id == projectID
		}), nil
	})
}

type projectsFunc func(ctx context.Context, m *entity.Manager, projects repository.ProjectLookup) ([]uuid.UUID, error)

func (c *Coordinator) apply(ctx context.Context, managerID uuid.UUID, next projectsFunc) (bool, error) {
	_, err := c.repo.UpdateManager(ctx, managerID, func(ctx context.Context, m *entity.Manager, lookup repository.ProjectLookup) error {
		assigned, err := next(ctx, m, lookup)
		if err != nil {
			return err
		}
		assigned, groups, err := adminGroups(ctx, m.ID, assigned, lookup)
		if err != nil {
			return err
		}
		if slices.Equal(assigned, m.Projects) && slices.Equal(groups, m.UserGroups) {
			return errUnchanged
		}
		m.Projects = assigned
		m.UserGroups = groups
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// adminGroups returns the projects that still exist and the union of their
// admin groups, both in assignment order. A project that no longer exists or
// lost its admin group cannot be worked for, so it is dropped.
func adminGroups(ctx context.Context, managerID uuid.UUID, projects []uuid.UUID, lookup repository.ProjectLookup) ([]uuid.UUID, []uuid.UUID, error) {
	kept := make([]uuid.UUID, 0, len(projects))
	groups := make([]uuid.UUID, 0, len(projects))

	for _, id := range projects {
		p, err := lookup(ctx, id)
		if errors.Is(err, entity.ErrNotFound) {
			log.Printf("[coordinator] manager_id=%s project_id=%s project gone, dropping", managerID, id)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		g, ok := p.AdminGroup()
		if !ok {
			log.Printf("[coordinator] manager_id=%s project_id=%s no admin group, dropping", managerID, id)
			continue
		}
		kept = append(kept, id)
		if !slices.Contains(groups, g) {
			groups = append(groups, g)
		}
	}
	return kept, groups, nil
}
