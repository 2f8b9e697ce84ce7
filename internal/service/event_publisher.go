package service

import (
	"context"

	"github.com/redis/go-redis/v9"

	"flamenco-core/internal/entity"
)

// streamWriter is the part of *redis.Client the publisher needs.
type streamWriter interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// EventPublisher appends status-change events to a Redis stream for
// consumers outside this service.
type EventPublisher struct {
	rdb    streamWriter
	stream string
	maxLen int64
}

func NewEventPublisher(rdb streamWriter, stream string) *EventPublisher {
	return &EventPublisher{rdb: rdb, stream: stream, maxLen: 100000}
}

// Register subscribes the publisher to every hook it knows how to publish.
func (p *EventPublisher) Register(h *Hooks) {
	h.OnTaskStatus(p.PublishTaskStatus)
	h.OnJobStatus(p.PublishJobStatus)
	h.OnManagerAssignment(p.PublishManagerAssignment)
}

func (p *EventPublisher) PublishTaskStatus(ctx context.Context, c entity.TaskStatusChange) error {
	values := map[string]any{
		"type":    "task_status",
		"task_id": c.TaskID.String(),
		"job_id":  c.JobID.String(),
		"from":    string(c.From),
		"to":      string(c.To),
	}
	if c.Manager != nil {
		values["manager_id"] = c.Manager.String()
	}
	return p.add(ctx, values)
}

func (p *EventPublisher) PublishJobStatus(ctx context.Context, c entity.JobStatusChange) error {
	return p.add(ctx, map[string]any{
		"type":       "job_status",
		"job_id":     c.JobID.String(),
		"project_id": c.Project.String(),
		"from":       string(c.From),
		"to":         string(c.To),
	})
}

func (p *EventPublisher) PublishManagerAssignment(ctx context.Context, c entity.ManagerAssignmentChange) error {
	op := "removed"
	if c.Assigned {
		op = "assigned"
	}
	return p.add(ctx, map[string]any{
		"type":       "manager_assignment",
		"manager_id": c.ManagerID.String(),
		"project_id": c.Project.String(),
		"op":         op,
	})
}

func (p *EventPublisher) add(ctx context.Context, values map[string]any) error {
	return p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: values,
	}).Err()
}
