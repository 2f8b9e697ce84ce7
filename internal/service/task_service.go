package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/permission"
	"flamenco-core/internal/repository"
)

// RecomputeError reports a task transition that was committed while the
// recomputation of its job failed. Retrying the transition would be illegal;
// retry the recomputation instead.
type RecomputeError struct {
	JobID uuid.UUID
	Err   error
}

func (e *RecomputeError) Error() string {
	return fmt.Sprintf("recompute job %s: %v", e.JobID, e.Err)
}

func (e *RecomputeError) Unwrap() error { return e.Err }

// TaskService owns tasks: status transitions, logs and dispatch to managers.
type TaskService struct {
	tasks        repository.TaskRepository
	jobs         repository.JobRepository
	managers     *ManagerService
	gate         *permission.Gate
	aggregator   *Aggregator
	hooks        *Hooks
	queue        TaskQueue
	claimTimeout time.Duration
}

// NewTaskService wires the task store; queue may be nil when tasks are not
// dispatched through Redis, in which case ClaimTask is unavailable.
func NewTaskService(
	tasks repository.TaskRepository,
	jobs repository.JobRepository,
	managers *ManagerService,
	gate *permission.Gate,
	aggregator *Aggregator,
	hooks *Hooks,
	queue TaskQueue,
) *TaskService {
	return &TaskService{
		tasks:        tasks,
		jobs:         jobs,
		managers:     managers,
		gate:         gate,
		aggregator:   aggregator,
		hooks:        hooks,
		queue:        queue,
		claimTimeout: 2 * time.Second,
	}
}

// buildTasks creates the queued tasks of a new job, in spec order.
func buildTasks(job *entity.Job, specs []entity.TaskSpec, now time.Time) []*entity.Task {
	tasks := make([]*entity.Task, len(specs))
	job.TaskIDs = make([]uuid.UUID, len(specs))
	for i, spec := range specs {
		tasks[i] = &entity.Task{
			ID:        uuid.New(),
			Job:       job.ID,
			Name:      spec.Name,
			Status:    entity.TaskQueued,
			Commands:  spec.Commands,
			Position:  i,
			Etag:      uuid.NewString(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		job.TaskIDs[i] = tasks[i].ID
	}
	return tasks
}

// CreateTasks adds tasks to an existing job. Tasks are only ever created
// together with their job, so this always fails once the job exists.
func (s *TaskService) CreateTasks(ctx context.Context, jobID uuid.UUID, specs []entity.TaskSpec, actor entity.Actor) error {
	if err := s.gate.Check(actor, permission.OpTaskCreate, permission.Context{}); err != nil {
		return err
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: job %s is %s and does not accept %d new tasks", entity.ErrInvalidJobState, job.ID, job.Status, len(specs))
}

func (s *TaskService) GetTask(ctx context.Context, id uuid.UUID, actor entity.Actor) (*entity.Task, error) {
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, task.Job, actor); err != nil {
		return nil, err
	}
	public := task.Public()
	return &public, nil
}

func (s *TaskService) ListTasks(ctx context.Context, jobID uuid.UUID, actor entity.Actor) ([]*entity.Task, error) {
	if err := s.authorizeRead(ctx, jobID, actor); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.ListTasks(ctx, jobID)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Task, len(tasks))
	for i, t := range tasks {
		public := t.Public()
		out[i] = &public
	}
	return out, nil
}

func (s *TaskService) authorizeRead(ctx context.Context, jobID uuid.UUID, actor entity.Actor) error {
	if s.gate.IsAdmin(actor) {
		return nil
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	pc, err := s.managers.readContext(ctx, actor, job.Project)
	if err != nil {
		return err
	}
	return s.gate.Check(actor, permission.OpTaskRead, pc)
}

// TransitionTask moves a task to a new status on behalf of actor. On success
// the job status is recomputed exactly once, after the task write committed.
func (s *TaskService) TransitionTask(ctx context.Context, id uuid.UUID, actor entity.Actor, to entity.TaskStatus, logMessage string) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown task status %q", entity.ErrInvalidInput, to)
	}
	if err := s.gate.Check(actor, permission.OpTaskEdit, permission.Context{}); err != nil {
		return err
	}

	var manager *uuid.UUID
	if to == entity.TaskClaimed {
		var err error
		if manager, err = s.claimingManager(ctx, id, actor); err != nil {
			return err
		}
	}

	_, err := s.transition(ctx, id, to, manager, logMessage)
	return err
}

// claimingManager is the actor itself when it is a manager, otherwise the
// manager the task's job was submitted to.
func (s *TaskService) claimingManager(ctx context.Context, taskID uuid.UUID, actor entity.Actor) (*uuid.UUID, error) {
	m, err := s.managers.ManagerFor(ctx, actor)
	if err == nil {
		return &m.ID, nil
	}
	if !errors.Is(err, entity.ErrNotFound) {
		return nil, err
	}

	task, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJob(ctx, task.Job)
	if err != nil {
		return nil, err
	}
	return &job.Manager, nil
}

func (s *TaskService) transition(ctx context.Context, id uuid.UUID, to entity.TaskStatus, manager *uuid.UUID, logMessage string) (*entity.Task, error) {
	var (
		from   entity.TaskStatus
		holder *uuid.UUID
	)
	task, err := s.tasks.UpdateTask(ctx, id, func(t *entity.Task) ([]string, error) {
		if !t.Status.CanTransitionTo(to) {
			return nil, fmt.Errorf("%w: task %s %s -> %s", entity.ErrIllegalTransition, t.ID, t.Status, to)
		}
		from, holder = t.Status, t.Manager

		t.Status = to
		switch {
		case to == entity.TaskClaimed:
			if manager == nil {
				return nil, fmt.Errorf("%w: claiming task %s needs a manager", entity.ErrInvalidInput, t.ID)
			}
			t.Manager = manager
			holder = manager
		case to.IsTerminal():
			t.Manager = nil
		}

		if logMessage == "" {
			return nil, nil
		}
		return []string{logMessage}, nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[task] task_id=%s job_id=%s from=%s to=%s", id, task.Job, from, to)
	s.hooks.taskStatusChanged(ctx, entity.TaskStatusChange{
		TaskID:  id,
		JobID:   task.Job,
		From:    from,
		To:      to,
		Manager: holder,
	})

	if _, err := s.aggregator.Recompute(ctx, task.Job); err != nil {
		return task, &RecomputeError{JobID: task.Job, Err: err}
	}
	return task, nil
}

// AppendTaskLog appends lines to the task log in the given order.
func (s *TaskService) AppendTaskLog(ctx context.Context, id uuid.UUID, lines []string) error {
	return s.tasks.AppendTaskLog(ctx, id, lines)
}

// AppendTaskLogAs is AppendTaskLog for callers outside the process: besides
// admins only the manager currently holding the task may write to it.
func (s *TaskService) AppendTaskLogAs(ctx context.Context, id uuid.UUID, actor entity.Actor, lines []string) error {
	if !s.gate.IsAdmin(actor) {
		m, err := s.managers.ManagerFor(ctx, actor)
		if errors.Is(err, entity.ErrNotFound) {
			return entity.ErrForbidden
		}
		if err != nil {
			return err
		}
		task, err := s.tasks.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if task.Manager == nil || *task.Manager != m.ID {
			return entity.ErrForbidden
		}
	}
	return s.AppendTaskLog(ctx, id, lines)
}

// GetTaskLogs returns up to limit log lines after sequence number after.
func (s *TaskService) GetTaskLogs(ctx context.Context, id uuid.UUID, actor entity.Actor, after int64, limit int) ([]entity.TaskLogLine, error) {
	if err := s.gate.Check(actor, permission.OpTaskLogRead, permission.Context{}); err != nil {
		return nil, err
	}
	lines, err := s.tasks.TaskLogs(ctx, id, after, limit)
	if err != nil {
		return nil, err
	}
	for i := range lines {
		lines[i] = lines[i].Public()
	}
	return lines, nil
}

// ClaimTask gives the calling manager the next queued task of its projects,
// or nil when none arrived in time. A returned RecomputeError comes with the
// claimed task: the claim itself is committed.
func (s *TaskService) ClaimTask(ctx context.Context, actor entity.Actor) (*entity.Task, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("%w: task dispatch is not configured", entity.ErrStoreUnavailable)
	}

	m, err := s.managers.ManagerFor(ctx, actor)
	if errors.Is(err, entity.ErrNotFound) {
		return nil, entity.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	pc := permission.Context{ActorIsManager: true, ManagerAssigned: len(m.Projects) > 0}
	if err := s.gate.Check(actor, permission.OpManagerClaim, pc); err != nil {
		return nil, err
	}

	for {
		queued, err := s.queue.ClaimBlocking(ctx, m.Projects, s.claimTimeout)
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: claim: %v", entity.ErrStoreUnavailable, err)
		}

		taskID, perr := uuid.Parse(queued)
		if perr != nil {
			log.Printf("[task] dropping malformed queue entry %q", queued)
			s.ack(ctx, queued)
			continue
		}

		task, err := s.transition(ctx, taskID, entity.TaskClaimed, &m.ID, "claimed by manager "+m.ID.String())
		var re *RecomputeError
		switch {
		case err == nil, errors.As(err, &re):
			s.ack(ctx, queued)
			public := task.Public()
			return &public, err
		case errors.Is(err, entity.ErrIllegalTransition), errors.Is(err, entity.ErrNotFound):
			// Canceled or otherwise handled since it was queued.
			s.ack(ctx, queued)
			continue
		default:
			// Left in processing; the reaper puts it back.
			return nil, err
		}
	}
}

func (s *TaskService) ack(ctx context.Context, taskID string) {
	if err := s.queue.Ack(ctx, taskID); err != nil {
		log.Printf("[task] task_id=%s ack error=%v", taskID, err)
	}
}

// cancel moves a non-terminal task to canceled; a task that got to a terminal
// status first is left alone.
func (s *TaskService) cancel(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.transition(ctx, id, entity.TaskCanceled, nil, reason)
	if errors.Is(err, entity.ErrIllegalTransition) {
		return nil
	}
	return err
}

// EnqueueCreatedTasks is a JobCreatedHook that pushes new tasks onto the dispatch queue.
func EnqueueCreatedTasks(q TaskQueue) JobCreatedHook {
	return func(ctx context.Context, job *entity.Job, tasks []*entity.Task) error {
		for _, t := range tasks {
			if err := q.Enqueue(ctx, job.Project, t.ID.String(), job.Priority); err != nil {
				return fmt.Errorf("enqueue task %s: %w", t.ID, err)
			}
		}
		return nil
	}
}
