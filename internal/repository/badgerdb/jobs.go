package badgerdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

const (
	prefixJob        = "job"
	prefixTask       = "task"
	prefixTaskLog    = "tasklog"
	prefixTaskLogSeq = "tasklogseq"
)

// Version is not part of the JSON form of the entities, so records carry it.
type jobRecord struct {
	entity.Job
	StoredVersion int64 `json:"version"`
}

func getJob(txn *badger.Txn, id uuid.UUID) (*entity.Job, error) {
	var rec jobRecord
	if err := getJSON(txn, key(prefixJob, id), &rec); err != nil {
		return nil, err
	}
	rec.Job.Version = rec.StoredVersion
	return &rec.Job, nil
}

func putJob(txn *badger.Txn, job *entity.Job) error {
	return setJSON(txn, key(prefixJob, job.ID), jobRecord{Job: *job, StoredVersion: job.Version})
}

func getTask(txn *badger.Txn, id uuid.UUID) (*entity.Task, error) {
	var task entity.Task
	if err := getJSON(txn, key(prefixTask, id), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Store) CreateJob(ctx context.Context, job *entity.Job, tasks []*entity.Task) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		taken, err := exists(txn, key(prefixJob, job.ID))
		if err != nil {
			return err
		}
		if taken {
			return entity.ErrConflict
		}

		job.Version = 1
		job.TaskIDs = make([]uuid.UUID, 0, len(tasks))
		for _, t := range tasks {
			if err := setJSON(txn, key(prefixTask, t.ID), t); err != nil {
				return err
			}
			job.TaskIDs = append(job.TaskIDs, t.ID)
		}
		return putJob(txn, job)
	})
}

func (s *Store) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	var job *entity.Job
	err := s.view(func(txn *badger.Txn) error {
		var err error
		job, err = getJob(txn, id)
		return err
	})
	return job, err
}

func (s *Store) UpdateJob(ctx context.Context, id uuid.UUID, fn repository.JobUpdateFunc) (*entity.Job, error) {
	var out *entity.Job
	err := s.update(ctx, func(txn *badger.Txn) error {
		job, err := getJob(txn, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		job.Version++
		job.UpdatedAt = time.Now().UTC()
		if err := putJob(txn, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	return out, err
}

// RecomputeJobStatus reads every task of the job in the transaction, so a task
// write committed after the read makes the status write conflict and retry.
func (s *Store) RecomputeJobStatus(ctx context.Context, id uuid.UUID, fn repository.JobStatusFunc) (entity.JobStatusChange, error) {
	var change entity.JobStatusChange
	err := s.update(ctx, func(txn *badger.Txn) error {
		job, err := getJob(txn, id)
		if err != nil {
			return err
		}
		statuses := make([]entity.TaskStatus, 0, len(job.TaskIDs))
		for _, taskID := range job.TaskIDs {
			task, err := getTask(txn, taskID)
			if err != nil {
				return err
			}
			statuses = append(statuses, task.Status)
		}

		next, err := fn(job, statuses)
		if err != nil {
			return err
		}
		change = entity.JobStatusChange{JobID: id, Project: job.Project, From: job.Status, To: next}
		if !change.Changed() {
			return nil
		}
		job.Status = next
		job.Version++
		job.UpdatedAt = time.Now().UTC()
		return putJob(txn, job)
	})
	if err != nil {
		return entity.JobStatusChange{}, err
	}
	return change, nil
}

func (s *Store) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	var task *entity.Task
	err := s.view(func(txn *badger.Txn) error {
		var err error
		task, err = getTask(txn, id)
		return err
	})
	return task, err
}

func (s *Store) ListTasks(ctx context.Context, jobID uuid.UUID) ([]*entity.Task, error) {
	var tasks []*entity.Task
	err := s.view(func(txn *badger.Txn) error {
		job, err := getJob(txn, jobID)
		if err != nil {
			return err
		}
		tasks = make([]*entity.Task, 0, len(job.TaskIDs))
		for _, taskID := range job.TaskIDs {
			task, err := getTask(txn, taskID)
			if err != nil {
				return err
			}
			tasks = append(tasks, task)
		}
		return nil
	})
	return tasks, err
}

func (s *Store) UpdateTask(ctx context.Context, id uuid.UUID, fn repository.TaskUpdateFunc) (*entity.Task, error) {
	var out *entity.Task
	err := s.update(ctx, func(txn *badger.Txn) error {
		task, err := getTask(txn, id)
		if err != nil {
			return err
		}
		lines, err := fn(task)
		if err != nil {
			return err
		}
		task.Etag = uuid.NewString()
		task.UpdatedAt = time.Now().UTC()
		if err := setJSON(txn, key(prefixTask, id), task); err != nil {
			return err
		}
		if err := appendLogLines(txn, id, lines, task.UpdatedAt); err != nil {
			return err
		}
		out = task
		return nil
	})
	return out, err
}

func (s *Store) AppendTaskLog(ctx context.Context, id uuid.UUID, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		found, err := exists(txn, key(prefixTask, id))
		if err != nil {
			return err
		}
		if !found {
			return entity.ErrNotFound
		}
		return appendLogLines(txn, id, lines, time.Now().UTC())
	})
}

type logRecord struct {
	Line      string    `json:"line"`
	CreatedAt time.Time `json:"created_at"`
}

func logKey(taskID uuid.UUID, seq int64) []byte {
	k := key(prefixTaskLog, taskID)
	k = append(k, '/')
	return binary.BigEndian.AppendUint64(k, uint64(seq))
}

// appendLogLines bumps the per-task sequence key; concurrent appends to the
// same task conflict on it and are retried in order.
func appendLogLines(txn *badger.Txn, taskID uuid.UUID, lines []string, at time.Time) error {
	if len(lines) == 0 {
		return nil
	}
	seqKey := key(prefixTaskLogSeq, taskID)

	var last int64
	item, err := txn.Get(seqKey)
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			last = int64(binary.BigEndian.Uint64(val))
			return nil
		}); err != nil {
			return err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return err
	}

	for _, line := range lines {
		last++
		if err := setJSON(txn, logKey(taskID, last), logRecord{Line: line, CreatedAt: at}); err != nil {
			return err
		}
	}
	return txn.Set(seqKey, binary.BigEndian.AppendUint64(nil, uint64(last)))
}

func (s *Store) TaskLogs(ctx context.Context, id uuid.UUID, after int64, limit int) ([]entity.TaskLogLine, error) {
	var lines []entity.TaskLogLine
	err := s.view(func(txn *badger.Txn) error {
		found, err := exists(txn, key(prefixTask, id))
		if err != nil {
			return err
		}
		if !found {
			return entity.ErrNotFound
		}

		prefix := append(key(prefixTaskLog, id), '/')
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(logKey(id, after+1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(lines) >= limit {
				break
			}
			item := it.Item()
			seq := int64(binary.BigEndian.Uint64(item.Key()[len(prefix):]))

			var rec logRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			lines = append(lines, entity.TaskLogLine{Seq: seq, Line: rec.Line, CreatedAt: rec.CreatedAt})
		}
		return nil
	})
	return lines, err
}
