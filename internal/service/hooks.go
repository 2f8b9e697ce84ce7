package service

import (
	"context"
	"log"
	"sync"

	"flamenco-core/internal/entity"
)

type (
	TaskStatusHook        func(ctx context.Context, change entity.TaskStatusChange) error
	JobStatusHook         func(ctx context.Context, change entity.JobStatusChange) error
	JobCreatedHook        func(ctx context.Context, job *entity.Job, tasks []*entity.Task) error
	ManagerAssignmentHook func(ctx context.Context, change entity.ManagerAssignmentChange) error
)

// Hooks holds callbacks that run after a write has been committed. They run
// synchronously in registration order; an error is logged and does not undo
// the write.
type Hooks struct {
	mu                sync.RWMutex
	taskStatus        []TaskStatusHook
	jobStatus         []JobStatusHook
	jobCreated        []JobCreatedHook
	managerAssignment []ManagerAssignmentHook
}

func NewHooks() *Hooks {
	return &Hooks{}
}

func (h *Hooks) OnTaskStatus(fn TaskStatusHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taskStatus = append(h.taskStatus, fn)
}

func (h *Hooks) OnJobStatus(fn JobStatusHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobStatus = append(h.jobStatus, fn)
}

func (h *Hooks) OnJobCreated(fn JobCreatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.jobCreated = append(h.jobCreated, fn)
}

func (h *Hooks) OnManagerAssignment(fn ManagerAssignmentHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.managerAssignment = append(h.managerAssignment, fn)
}

func (h *Hooks) taskStatusChanged(ctx context.Context, change entity.TaskStatusChange) {
	h.mu.RLock()
	hooks := h.taskStatus
	h.mu.RUnlock()

	for i, fn := range hooks {
		if err := fn(ctx, change); err != nil {
			log.Printf("[hooks] event=task_status hook=%d task_id=%s error=%v", i, change.TaskID, err)
		}
	}
}

func (h *Hooks) jobStatusChanged(ctx context.Context, change entity.JobStatusChange) {
	h.mu.RLock()
	hooks := h.jobStatus
	h.mu.RUnlock()

	for i, fn := range hooks {
		if err := fn(ctx, change); err != nil {
			log.Printf("[hooks] event=job_status hook=%d job_id=%s error=%v", i, change.JobID, err)
		}
	}
}

func (h *Hooks) jobCreatedDone(ctx context.Context, job *entity.Job, tasks []*entity.Task) {
	h.mu.RLock()
	hooks := h.jobCreated
	h.mu.RUnlock()

	for i, fn := range hooks {
		if err := fn(ctx, job, tasks); err != nil {
			log.Printf("[hooks] event=job_created hook=%d job_id=%s error=%v", i, job.ID, err)
		}
	}
}

func (h *Hooks) managerAssignmentChanged(ctx context.Context, change entity.ManagerAssignmentChange) {
	h.mu.RLock()
	hooks := h.managerAssignment
	h.mu.RUnlock()

	for i, fn := range hooks {
		if err := fn(ctx, change); err != nil {
			log.Printf("[hooks] event=manager_assignment hook=%d manager_id=%s error=%v", i, change.ManagerID, err)
		}
	}
}
