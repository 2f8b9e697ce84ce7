package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobQueued          JobStatus = "queued"
	JobActive          JobStatus = "active"
	JobCompleted       JobStatus = "completed"
	JobFailed          JobStatus = "failed"
	JobCancelRequested JobStatus = "cancel-requested"
	JobCanceled        JobStatus = "canceled"
)

type Job struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Type        string          `json:"job_type"`
	Status      JobStatus       `json:"status"`
	Settings    json.RawMessage `json:"settings"`
	Project     uuid.UUID       `json:"project"`
	User        uuid.UUID       `json:"user"`
	Manager     uuid.UUID       `json:"manager"`
	Priority    int             `json:"priority"`
	TaskIDs     []uuid.UUID     `json:"task_ids"`
	Version     int64           `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// JobStatusChange is the outcome of one aggregation pass over a job.
type JobStatusChange struct {
	JobID   uuid.UUID
	Project uuid.UUID
	From    JobStatus
	To      JobStatus
}

func (c JobStatusChange) Changed() bool { return c.From != c.To }
