package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/service"
)

func TestTaskService_JobFollowsTasks(t *testing.T) {
	f := newFixture(t)
	job, tasks := f.createSleepJob(t, "1-3")

	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	if got := f.jobStatus(t, job.ID); got != entity.JobQueued {
		t.Fatalf("expected queued, got %s", got)
	}

	f.transition(t, tasks[0].ID, cl)
	if got := f.jobStatus(t, job.ID); got != entity.JobActive {
		t.Fatalf("expected active after claim, got %s", got)
	}

	for _, task := range tasks {
		if task.ID != tasks[0].ID {
			f.transition(t, task.ID, cl)
		}
		f.transition(t, task.ID, ac)
		f.transition(t, task.ID, co)
	}
	if got := f.jobStatus(t, job.ID); got != entity.JobCompleted {
		t.Fatalf("expected completed, got %s", got)
	}
}

func TestTaskService_FailedTaskFailsJob(t *testing.T) {
	f := newFixture(t)
	job, tasks := f.createSleepJob(t, "1-2")

	f.transition(t, tasks[0].ID, cl)
	f.transition(t, tasks[0].ID, ac)
	f.transition(t, tasks[0].ID, fa)

	if got := f.jobStatus(t, job.ID); got != entity.JobFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	// Later task progress does not resurrect a failed job.
	f.transition(t, tasks[1].ID, cl)
	if got := f.jobStatus(t, job.ID); got != entity.JobFailed {
		t.Fatalf("expected failed to stick, got %s", got)
	}
}

func TestTaskService_IllegalTransition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tasks := f.createSleepJob(t, "1")

	err := f.tasks.TransitionTask(ctx, tasks[0].ID, f.admin, co, "")
	if !errors.Is(err, entity.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if got := f.taskStatus(t, tasks[0].ID); got != q {
		t.Fatalf("expected task to stay queued, got %s", got)
	}

	err = f.tasks.TransitionTask(ctx, tasks[0].ID, f.admin, entity.TaskStatus("paused"), "")
	if !errors.Is(err, entity.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestTaskService_TransitionNeedsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tasks := f.createSleepJob(t, "1")

	viewer := entity.Actor{UserID: uuid.New(), Roles: []string{"subscriber"}}
	err := f.tasks.TransitionTask(ctx, tasks[0].ID, viewer, cl, "")
	if !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if got := f.taskStatus(t, tasks[0].ID); got != q {
		t.Fatalf("expected task unchanged, got %s", got)
	}
}

func TestTaskService_CancelNeedsAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, tasks := f.createSleepJob(t, "1-2")

	f.transition(t, tasks[0].ID, cl)
	before, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if before.Status != entity.JobActive {
		t.Fatalf("expected active job, got %s", before.Status)
	}

	// The job owner is not an admin either.
	for _, actor := range []entity.Actor{f.owner, {UserID: uuid.New()}} {
		err := f.tasks.TransitionTask(ctx, tasks[0].ID, actor, ca, "")
		if !errors.Is(err, entity.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	}

	if got := f.taskStatus(t, tasks[0].ID); got != cl {
		t.Fatalf("expected task to stay claimed, got %s", got)
	}
	after, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if after.Status != entity.JobActive || after.Version != before.Version {
		t.Fatalf("expected job unchanged (active v%d), got %s v%d", before.Version, after.Status, after.Version)
	}
}

func TestTaskService_ClaimSetsManager(t *testing.T) {
	f := newFixture(t)
	_, tasks := f.createSleepJob(t, "1")

	f.transition(t, tasks[0].ID, cl)
	task, err := f.store.GetTask(context.Background(), tasks[0].ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Manager == nil || *task.Manager != f.manager.ID {
		t.Fatalf("expected manager %s, got %v", f.manager.ID, task.Manager)
	}

	f.transition(t, tasks[0].ID, ca)
	task, _ = f.store.GetTask(context.Background(), tasks[0].ID)
	if task.Manager != nil {
		t.Fatalf("expected manager cleared on terminal status, got %v", task.Manager)
	}
}

func TestTaskService_CreateTasksOnExistingJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, _ := f.createSleepJob(t, "1")

	err := f.tasks.CreateTasks(ctx, job.ID, []entity.TaskSpec{{Name: "late"}}, f.admin)
	if !errors.Is(err, entity.ErrInvalidJobState) {
		t.Fatalf("expected ErrInvalidJobState, got %v", err)
	}
	err = f.tasks.CreateTasks(ctx, uuid.New(), nil, f.admin)
	if !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskService_CreateTasksOnCompletedJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, tasks := f.createSleepJob(t, "1-2")

	for _, task := range tasks {
		f.transition(t, task.ID, cl)
		f.transition(t, task.ID, ac)
		f.transition(t, task.ID, co)
	}
	if got := f.jobStatus(t, job.ID); got != entity.JobCompleted {
		t.Fatalf("expected completed, got %s", got)
	}

	err := f.tasks.CreateTasks(ctx, job.ID, []entity.TaskSpec{{Name: "sleep-3"}}, f.admin)
	if !errors.Is(err, entity.ErrInvalidJobState) {
		t.Fatalf("expected ErrInvalidJobState, got %v", err)
	}

	stored, err := f.store.ListTasks(ctx, job.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(stored))
	}
	if got := f.jobStatus(t, job.ID); got != entity.JobCompleted {
		t.Fatalf("expected job to stay completed, got %s", got)
	}
}

func TestTaskService_ReadPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tasks := f.createSleepJob(t, "1")

	viewer := entity.Actor{UserID: uuid.New(), Roles: []string{"flamenco-user"}}
	got, err := f.tasks.GetTask(ctx, tasks[0].ID, viewer)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got.Etag != "" || !got.CreatedAt.IsZero() {
		t.Fatalf("expected bookkeeping fields stripped, got %+v", got)
	}

	stranger := entity.Actor{UserID: uuid.New()}
	if _, err := f.tasks.GetTask(ctx, tasks[0].ID, stranger); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	// A manager reads only what belongs to its projects.
	if _, err := f.tasks.GetTask(ctx, tasks[0].ID, f.managerActor); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unassigned manager, got %v", err)
	}
	if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, f.owner); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := f.tasks.GetTask(ctx, tasks[0].ID, f.managerActor); err != nil {
		t.Fatalf("expected assigned manager to read task, got %v", err)
	}
}

func TestTaskService_Logs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, tasks := f.createSleepJob(t, "1")
	id := tasks[0].ID

	if err := f.tasks.TransitionTask(ctx, id, f.admin, cl, "claimed for testing"); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := f.tasks.AppendTaskLogAs(ctx, id, f.managerActor, []string{"frame 1 rendered", "done"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := f.tasks.AppendTaskLogAs(ctx, id, f.owner, []string{"not yours"}); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := f.tasks.AppendTaskLog(ctx, id, nil); err != nil {
		t.Fatalf("expected empty append to succeed, got %v", err)
	}
	if err := f.tasks.AppendTaskLog(ctx, uuid.New(), []string{"orphan"}); !errors.Is(err, entity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	logReader := entity.Actor{UserID: uuid.New(), Roles: []string{"flamenco-view-logs"}}
	lines, err := f.tasks.GetTaskLogs(ctx, id, logReader, 0, 0)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := []string{"claimed for testing", "frame 1 rendered", "done"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(lines))
	}
	for i, l := range lines {
		if l.Line != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], l.Line)
		}
		if !l.CreatedAt.IsZero() {
			t.Fatalf("expected timestamp stripped")
		}
	}

	page, err := f.tasks.GetTaskLogs(ctx, id, logReader, lines[0].Seq, 1)
	if err != nil || len(page) != 1 || page[0].Line != "frame 1 rendered" {
		t.Fatalf("expected second line only, got %+v, err=%v", page, err)
	}

	viewer := entity.Actor{UserID: uuid.New(), Roles: []string{"subscriber"}}
	if _, err := f.tasks.GetTaskLogs(ctx, id, viewer, 0, 0); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTaskService_ClaimTask(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job, tasks := f.createSleepJob(t, "1-2")

	if _, err := f.tasks.ClaimTask(ctx, f.managerActor); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for unassigned manager, got %v", err)
	}
	if err := f.managers.AssignToProject(ctx, f.manager.ID, f.project.ID, f.owner); err != nil {
		t.Fatalf("assign: %v", err)
	}

	got, err := f.tasks.ClaimTask(ctx, f.managerActor)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if got == nil || got.ID != tasks[0].ID || got.Status != cl {
		t.Fatalf("expected first task claimed, got %+v", got)
	}
	if got := f.jobStatus(t, job.ID); got != entity.JobActive {
		t.Fatalf("expected job active, got %s", got)
	}

	// A task canceled while queued is skipped.
	f.transition(t, tasks[1].ID, ca)
	got, err = f.tasks.ClaimTask(ctx, f.managerActor)
	if err != nil || got != nil {
		t.Fatalf("expected nothing to claim, got %+v, err=%v", got, err)
	}
	if len(f.queue.acked) != 2 {
		t.Fatalf("expected both queue entries acked, got %v", f.queue.acked)
	}

	if _, err := f.tasks.ClaimTask(ctx, f.admin); !errors.Is(err, entity.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-manager, got %v", err)
	}
}

func TestTaskService_RecomputeErrorUnwraps(t *testing.T) {
	err := error(&service.RecomputeError{JobID: uuid.New(), Err: entity.ErrConflict})
	if !errors.Is(err, entity.ErrConflict) {
		t.Fatalf("expected wrapped ErrConflict, got %v", err)
	}
}
