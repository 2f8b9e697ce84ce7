package service_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/permission"
	"flamenco-core/internal/repository/badgerdb"
	"flamenco-core/internal/service"
)

type fixture struct {
	store      *badgerdb.Store
	hooks      *service.Hooks
	queue      *fakeQueue
	aggregator *service.Aggregator
	managers   *service.ManagerService
	tasks      *service.TaskService
	jobs       *service.JobService

	admin        entity.Actor
	owner        entity.Actor
	project      *entity.Project
	manager      *entity.Manager
	managerActor entity.Actor
}

type tolerantPolicy struct{}

func (tolerantPolicy) ToleratesPartialFailure(string) bool { return true }

func newFixture(t *testing.T) *fixture {
	return newFixtureWithPolicy(t, service.StrictFailurePolicy{})
}

func newFixtureWithPolicy(t *testing.T, policy service.FailurePolicy) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := badgerdb.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)

	f := &fixture{
		store: store,
		hooks: service.NewHooks(),
		queue: newFakeQueue(),
		admin: entity.Actor{UserID: uuid.New(), Roles: []string{"flamenco-admin"}},
	}
	gate := permission.NewGate(permission.DefaultRoles())
	f.aggregator = service.NewAggregator(store, policy, f.hooks, 5)
	f.managers = service.NewManagerService(store, store, gate, service.NewCoordinator(store), f.hooks)
	f.tasks = service.NewTaskService(store, store, f.managers, gate, f.aggregator, f.hooks, f.queue)
	f.jobs = service.NewJobService(store, store, f.managers, f.tasks, gate, service.FrameCompiler{}, f.aggregator, f.hooks)
	f.hooks.OnJobCreated(service.EnqueueCreatedTasks(f.queue))

	group := uuid.New()
	f.project = &entity.Project{
		ID:          uuid.New(),
		Name:        "spring",
		Permissions: entity.ProjectPermissions{Groups: []entity.ProjectGroup{{Group: group}}},
	}
	if err := store.PutProject(ctx, f.project); err != nil {
		t.Fatalf("put project: %v", err)
	}

	f.owner = entity.Actor{UserID: uuid.New(), Groups: []uuid.UUID{group}}
	f.managerActor = entity.Actor{UserID: uuid.New()}
	f.manager, err = f.managers.Register(ctx, f.owner.UserID, entity.Credentials{
		ServiceAccount: f.managerActor.UserID,
		Name:           "render-01",
	})
	if err != nil {
		t.Fatalf("register manager: %v", err)
	}
	return f
}

// createSleepJob creates a sleep job with one task per frame.
func (f *fixture) createSleepJob(t *testing.T, frames string) (*entity.Job, []*entity.Task) {
	t.Helper()
	ctx := context.Background()

	settings, _ := json.Marshal(map[string]any{"frames": frames, "chunk_size": 1, "time_in_seconds": 1})
	job, err := f.jobs.CreateJob(ctx, f.admin, service.CreateJobRequest{
		Name:     "sleepy",
		Type:     service.JobTypeSleep,
		Settings: settings,
		Project:  f.project.ID,
		Manager:  f.manager.ID,
		Priority: 1,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	tasks, err := f.tasks.ListTasks(ctx, job.ID, f.admin)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	return job, tasks
}

func (f *fixture) transition(t *testing.T, taskID uuid.UUID, to entity.TaskStatus) {
	t.Helper()
	if err := f.tasks.TransitionTask(context.Background(), taskID, f.admin, to, ""); err != nil {
		t.Fatalf("transition %s -> %s: %v", taskID, to, err)
	}
}

func (f *fixture) jobStatus(t *testing.T, id uuid.UUID) entity.JobStatus {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	return job.Status
}

func (f *fixture) taskStatus(t *testing.T, id uuid.UUID) entity.TaskStatus {
	t.Helper()
	task, err := f.store.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	return task.Status
}

// fakeQueue keeps one FIFO per project and ignores priority.
type fakeQueue struct {
	mu         sync.Mutex
	queued     map[uuid.UUID][]string
	processing map[string]bool
	acked      []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{queued: map[uuid.UUID][]string{}, processing: map[string]bool{}}
}

func (q *fakeQueue) Enqueue(ctx context.Context, project uuid.UUID, taskID string, priority int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued[project] = append(q.queued[project], taskID)
	return nil
}

func (q *fakeQueue) ClaimBlocking(ctx context.Context, projects []uuid.UUID, timeout time.Duration) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range projects {
		if ids := q.queued[p]; len(ids) > 0 {
			q.queued[p] = ids[1:]
			q.processing[ids[0]] = true
			return ids[0], nil
		}
	}
	return "", redis.Nil
}

func (q *fakeQueue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.processing, taskID)
	q.acked = append(q.acked, taskID)
	return nil
}

func (q *fakeQueue) RequeueStale(ctx context.Context, maxPerLane int64) (int64, error) {
	return 0, nil
}
