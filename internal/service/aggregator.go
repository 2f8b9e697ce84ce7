package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

// FailurePolicy is implemented by config.FailurePolicy.
type FailurePolicy interface {
	ToleratesPartialFailure(jobType string) bool
}

// StrictFailurePolicy fails a job on its first failed task.
type StrictFailurePolicy struct{}

func (StrictFailurePolicy) ToleratesPartialFailure(string) bool { return false }

// AggregateJobStatus derives a job status from the statuses of its tasks.
// Rules are tried in order and the first match wins:
//
//  1. a cancel-requested job becomes canceled once every task is terminal,
//     and stays cancel-requested until then;
//  2. any failed task fails the job unless failures are tolerated; a task
//     canceled outside a job cancellation counts as failed;
//  3. all tasks completed: completed;
//  4. any task claimed or active: active;
//  5. all tasks queued: queued.
//
// States the rules leave open: queued tasks next to terminal ones keep the
// job active; all tasks terminal with tolerated failures is completed when at
// least one task completed and failed otherwise. Terminal jobs never change.
func AggregateJobStatus(current entity.JobStatus, tasks []entity.TaskStatus, tolerateFailures bool) entity.JobStatus {
	if current.IsTerminal() {
		return current
	}

	var queued, running, completed, failed, terminal int
	for _, s := range tasks {
		switch s {
		case entity.TaskQueued:
			queued++
		case entity.TaskClaimed, entity.TaskActive:
			running++
		case entity.TaskCompleted:
			completed++
		case entity.TaskFailed, entity.TaskCanceled:
			failed++
		}
		if s.IsTerminal() {
			terminal++
		}
	}
	total := len(tasks)

	switch {
	case current == entity.JobCancelRequested:
		if terminal == total {
			return entity.JobCanceled
		}
		return entity.JobCancelRequested
	case failed > 0 && !tolerateFailures:
		return entity.JobFailed
	case total > 0 && completed == total:
		return entity.JobCompleted
	case running > 0:
		return entity.JobActive
	case queued == total:
		return entity.JobQueued
	case queued > 0:
		return entity.JobActive
	case completed > 0:
		return entity.JobCompleted
	}
	return entity.JobFailed
}

// Aggregator keeps job status in line with task status.
type Aggregator struct {
	repo       repository.JobRepository
	policy     FailurePolicy
	hooks      *Hooks
	maxRetries int
	retryDelay time.Duration
	deferred   RecomputeQueue
}

func NewAggregator(repo repository.JobRepository, policy FailurePolicy, hooks *Hooks, maxRetries int) *Aggregator {
	if policy == nil {
		policy = StrictFailurePolicy{}
	}
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Aggregator{
		repo:       repo,
		policy:     policy,
		hooks:      hooks,
		maxRetries: maxRetries,
		retryDelay: 10 * time.Millisecond,
	}
}

// WithRetryQueue makes the aggregator hand jobs it could not recompute
// because of conflicts or an unavailable store to q for a later retry.
func (a *Aggregator) WithRetryQueue(q RecomputeQueue) *Aggregator {
	a.deferred = q
	return a
}

// Recompute re-derives the job status from the current task statuses and
// stores it if it changed. Calling it again without task changes is a no-op.
// Conflicts are retried here; any other failure is returned to the caller,
// and handed to the retry queue when it is transient.
func (a *Aggregator) Recompute(ctx context.Context, jobID uuid.UUID) (entity.JobStatusChange, error) {
	var (
		change entity.JobStatusChange
		err    error
	)
	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		change, err = a.repo.RecomputeJobStatus(ctx, jobID, a.derive)
		if !errors.Is(err, entity.ErrConflict) || attempt == a.maxRetries {
			break
		}
		log.Printf("[aggregator] job_id=%s attempt=%d conflict, retrying", jobID, attempt)

		select {
		case <-ctx.Done():
			a.deferRetry(ctx, jobID, err)
			return entity.JobStatusChange{}, ctx.Err()
		case <-time.After(a.retryDelay * time.Duration(attempt)):
		}
	}
	if err != nil {
		log.Printf("[aggregator] job_id=%s recompute error=%v", jobID, err)
		a.deferRetry(ctx, jobID, err)
		return entity.JobStatusChange{}, err
	}

	if change.Changed() {
		log.Printf("[aggregator] job_id=%s status %s -> %s", jobID, change.From, change.To)
		a.hooks.jobStatusChanged(ctx, change)
	}
	return change, nil
}

func (a *Aggregator) derive(job *entity.Job, tasks []entity.TaskStatus) (entity.JobStatus, error) {
	next := AggregateJobStatus(job.Status, tasks, a.policy.ToleratesPartialFailure(job.Type))
	if next != job.Status && !job.Status.CanTransitionTo(next) {
		return job.Status, fmt.Errorf("%w: job %s %s -> %s", entity.ErrIllegalTransition, job.ID, job.Status, next)
	}
	return next, nil
}

func (a *Aggregator) deferRetry(ctx context.Context, jobID uuid.UUID, cause error) {
	if a.deferred == nil {
		return
	}
	if !errors.Is(cause, entity.ErrConflict) && !errors.Is(cause, entity.ErrStoreUnavailable) {
		return
	}
	if err := a.deferred.Push(context.WithoutCancel(ctx), jobID.String()); err != nil {
		log.Printf("[aggregator] job_id=%s defer retry error=%v", jobID, err)
		return
	}
	log.Printf("[aggregator] job_id=%s deferred for retry", jobID)
}
