// Package repository declares the persistence ports implemented by the
// postgresql and badgerdb stores.
//
// Every Update*/Recompute* method is an atomic read-modify-write: the callback
// sees the committed state of the entity and its writes are applied together
// or not at all. Errors returned by a callback abort the write; domain errors
// come back unchanged and any other error stays reachable through errors.Is.
package repository

import (
	"context"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
)

// TaskUpdateFunc mutates a task and returns log lines to append with the change.
type TaskUpdateFunc func(task *entity.Task) (logLines []string, err error)

// JobStatusFunc derives a job status from the job and the statuses of its tasks,
// in task creation order.
type JobStatusFunc func(job *entity.Job, tasks []entity.TaskStatus) (entity.JobStatus, error)

type JobUpdateFunc func(job *entity.Job) error

// ProjectLookup reads a project inside the enclosing transaction.
type ProjectLookup func(ctx context.Context, id uuid.UUID) (*entity.Project, error)

type ManagerUpdateFunc func(ctx context.Context, m *entity.Manager, projects ProjectLookup) error

type JobRepository interface {
	// CreateJob stores the job and its tasks; job.TaskIDs follows the order of tasks.
	CreateJob(ctx context.Context, job *entity.Job, tasks []*entity.Task) error
	GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, fn JobUpdateFunc) (*entity.Job, error)
	// RecomputeJobStatus writes the status returned by fn only when it differs
	// from the stored one, and reports what happened.
	RecomputeJobStatus(ctx context.Context, id uuid.UUID, fn JobStatusFunc) (entity.JobStatusChange, error)
}

type TaskRepository interface {
	GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error)
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]*entity.Task, error)
	UpdateTask(ctx context.Context, id uuid.UUID, fn TaskUpdateFunc) (*entity.Task, error)
	AppendTaskLog(ctx context.Context, id uuid.UUID, lines []string) error
	// TaskLogs returns up to limit lines with a sequence number above after; limit <= 0 means all.
	TaskLogs(ctx context.Context, id uuid.UUID, after int64, limit int) ([]entity.TaskLogLine, error)
}

type ManagerRepository interface {
	CreateManager(ctx context.Context, m *entity.Manager) error
	GetManager(ctx context.Context, id uuid.UUID) (*entity.Manager, error)
	FindManagerByServiceAccount(ctx context.Context, userID uuid.UUID) (*entity.Manager, error)
	UpdateManager(ctx context.Context, id uuid.UUID, fn ManagerUpdateFunc) (*entity.Manager, error)
}

type ProjectRepository interface {
	GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error)
}

type Store interface {
	JobRepository
	TaskRepository
	ManagerRepository
	ProjectRepository
	Close()
}
