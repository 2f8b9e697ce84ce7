package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/permission"
	"flamenco-core/internal/repository"
)

type JobService struct {
	repo       repository.JobRepository
	projects   repository.ProjectRepository
	managers   *ManagerService
	tasks      *TaskService
	gate       *permission.Gate
	compiler   Compiler
	aggregator *Aggregator
	hooks      *Hooks
}

func NewJobService(
	repo repository.JobRepository,
	projects repository.ProjectRepository,
	managers *ManagerService,
	tasks *TaskService,
	gate *permission.Gate,
	compiler Compiler,
	aggregator *Aggregator,
	hooks *Hooks,
) *JobService {
	return &JobService{
		repo:       repo,
		projects:   projects,
		managers:   managers,
		tasks:      tasks,
		gate:       gate,
		compiler:   compiler,
		aggregator: aggregator,
		hooks:      hooks,
	}
}

type CreateJobRequest struct {
	Name        string
	Description string
	Type        string
	Settings    json.RawMessage
	Project     uuid.UUID
	Owner       uuid.UUID // defaults to the creating actor
	Manager     uuid.UUID
	Priority    int
}

// CreateJob compiles the job into tasks and stores job and tasks together.
func (s *JobService) CreateJob(ctx context.Context, actor entity.Actor, req CreateJobRequest) (*entity.Job, error) {
	if err := s.gate.Check(actor, permission.OpJobCreate, permission.Context{}); err != nil {
		return nil, err
	}
	if req.Type == "" {
		return nil, fmt.Errorf("%w: job_type is required", entity.ErrInvalidInput)
	}
	if req.Project == uuid.Nil || req.Manager == uuid.Nil {
		return nil, fmt.Errorf("%w: project and manager are required", entity.ErrInvalidInput)
	}
	if len(req.Settings) == 0 {
		req.Settings = json.RawMessage(`{}`)
	}

	owner := req.Owner
	if owner == uuid.Nil {
		owner = actor.UserID
	}

	priority := req.Priority
	if priority < 0 || priority > 2 {
		priority = 1 // normal
	}

	if _, err := s.projects.GetProject(ctx, req.Project); err != nil {
		return nil, fmt.Errorf("project %s: %w", req.Project, err)
	}
	if _, err := s.managers.repo.GetManager(ctx, req.Manager); err != nil {
		return nil, fmt.Errorf("manager %s: %w", req.Manager, err)
	}

	specs, err := s.compiler.Compile(req.Type, req.Settings)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &entity.Job{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		Type:        req.Type,
		Status:      entity.JobQueued,
		Settings:    req.Settings,
		Project:     req.Project,
		User:        owner,
		Manager:     req.Manager,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tasks := buildTasks(job, specs, now)

	if err := s.repo.CreateJob(ctx, job, tasks); err != nil {
		return nil, err
	}

	log.Printf("[job] job_id=%s type=%s project=%s tasks=%d created", job.ID, job.Type, job.Project, len(tasks))
	s.hooks.jobCreatedDone(ctx, job, tasks)
	return job, nil
}

func (s *JobService) GetJob(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Job, error) {
	job, err := s.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.gate.IsAdmin(actor) {
		pc, err := s.managers.readContext(ctx, actor, job.Project)
		if err != nil {
			return nil, err
		}
		if err := s.gate.Check(actor, permission.OpJobRead, pc); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// CancelJob requests cancellation and cancels every task that has not
// finished yet. The job becomes canceled once all its tasks are terminal.
func (s *JobService) CancelJob(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Job, error) {
	if err := s.gate.Check(actor, permission.OpJobEdit, permission.Context{}); err != nil {
		return nil, err
	}

	var from entity.JobStatus
	job, err := s.repo.UpdateJob(ctx, id, func(j *entity.Job) error {
		if j.Status == entity.JobCancelRequested {
			from = j.Status
			return nil
		}
		if !j.Status.CanTransitionTo(entity.JobCancelRequested) {
			return fmt.Errorf("%w: job %s is %s", entity.ErrIllegalTransition, j.ID, j.Status)
		}
		from = j.Status
		j.Status = entity.JobCancelRequested
		return nil
	})
	if err != nil {
		return nil, err
	}

	change := entity.JobStatusChange{JobID: job.ID, Project: job.Project, From: from, To: job.Status}
	if change.Changed() {
		log.Printf("[job] job_id=%s status %s -> %s", job.ID, from, job.Status)
		s.hooks.jobStatusChanged(ctx, change)
	}

	var errs []error
	for _, taskID := range job.TaskIDs {
		if err := s.tasks.cancel(ctx, taskID, "Task canceled with its job"); err != nil {
			errs = append(errs, fmt.Errorf("cancel task %s: %w", taskID, err))
		}
	}

	// A job without tasks, or whose tasks were all terminal already, is not
	// recomputed by any task transition above.
	if _, err := s.aggregator.Recompute(ctx, job.ID); err != nil {
		errs = append(errs, &RecomputeError{JobID: job.ID, Err: err})
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s.repo.GetJob(ctx, job.ID)
}

// RecomputeJob re-derives the job status from its tasks. It is safe to call
// at any time and is the way to recover from a failed recomputation.
func (s *JobService) RecomputeJob(ctx context.Context, id uuid.UUID, actor entity.Actor) (entity.JobStatusChange, error) {
	if err := s.gate.Check(actor, permission.OpJobEdit, permission.Context{}); err != nil {
		return entity.JobStatusChange{}, err
	}
	return s.aggregator.Recompute(ctx, id)
}
