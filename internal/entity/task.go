package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskClaimed   TaskStatus = "claimed"
	TaskActive    TaskStatus = "active"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCanceled  TaskStatus = "canceled"
)

type Task struct {
	ID       uuid.UUID       `json:"id"`
	Job      uuid.UUID       `json:"job"`
	Name     string          `json:"name"`
	Status   TaskStatus      `json:"status"`
	Commands json.RawMessage `json:"commands,omitempty"`
	// Manager is set while the task is claimed or active.
	Manager   *uuid.UUID `json:"manager,omitempty"`
	Position  int        `json:"position"`
	Etag      string     `json:"_etag,omitempty"`
	CreatedAt time.Time  `json:"_created,omitzero"`
	UpdatedAt time.Time  `json:"_updated,omitzero"`
}

// TaskSpec describes a task to be created for a job.
type TaskSpec struct {
	Name     string
	Commands json.RawMessage
}

// Public returns a copy without the store bookkeeping fields.
func (t Task) Public() Task {
	t.Etag = ""
	t.CreatedAt = time.Time{}
	t.UpdatedAt = time.Time{}
	return t
}

type TaskLogLine struct {
	Seq       int64     `json:"seq"`
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"_created,omitzero"`
}

// Public strips the storage timestamp from a log line.
func (l TaskLogLine) Public() TaskLogLine {
	l.CreatedAt = time.Time{}
	return l
}

// TaskStatusChange is emitted after a task transition has been committed.
type TaskStatusChange struct {
	TaskID  uuid.UUID
	JobID   uuid.UUID
	From    TaskStatus
	To      TaskStatus
	Manager *uuid.UUID
}
