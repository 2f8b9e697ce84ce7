package postgresql

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) CreateJob(ctx context.Context, job *entity.Job, tasks []*entity.Task) error {
	if len(job.Settings) == 0 {
		job.Settings = json.RawMessage(`{}`)
	}

	const insertJob = `
INSERT INTO jobs (id, name, description, job_type, status, settings, project, user_id, manager, priority, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, $11, $11);
`
	const insertTask = `
INSERT INTO tasks (id, job_id, position, name, status, commands, etag, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8);
`
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertJob,
			job.ID, job.Name, job.Description, job.Type, string(job.Status), job.Settings,
			job.Project, job.User, job.Manager, job.Priority, job.CreatedAt,
		); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, t := range tasks {
			commands := t.Commands
			if len(commands) == 0 {
				commands = json.RawMessage(`[]`)
			}
			batch.Queue(insertTask, t.ID, t.Job, t.Position, t.Name, string(t.Status), commands, t.Etag, t.CreatedAt)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return mapErr(err)
	}
	job.Version = 1
	return nil
}

const selectJob = `
SELECT id, name, description, job_type, status, settings, project, user_id, manager, priority, version, created_at, updated_at
FROM jobs
WHERE id = $1
`

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		job           entity.Job
		statusText    string
		settingsBytes []byte
	)
	if err := row.Scan(
		&job.ID,
		&job.Name,
		&job.Description,
		&job.Type,
		&statusText,
		&settingsBytes,
		&job.Project,
		&job.User,
		&job.Manager,
		&job.Priority,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = entity.JobStatus(statusText)
	job.Settings = json.RawMessage(settingsBytes)
	return &job, nil
}

func loadTaskIDs(ctx context.Context, q pgxQuerier, jobID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `SELECT id FROM tasks WHERE job_id = $1 ORDER BY position;`, jobID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

// pgxQuerier is satisfied by both the pool and a transaction.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *JobRepository) GetJob(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	job, err := scanJob(r.pool.QueryRow(ctx, selectJob+";", id))
	if err != nil {
		return nil, mapErr(err)
	}
	if job.TaskIDs, err = loadTaskIDs(ctx, r.pool, id); err != nil {
		return nil, mapErr(err)
	}
	return job, nil
}

func (r *JobRepository) UpdateJob(ctx context.Context, id uuid.UUID, fn repository.JobUpdateFunc) (*entity.Job, error) {
	var out *entity.Job
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		job, err := scanJob(tx.QueryRow(ctx, selectJob+" FOR UPDATE;", id))
		if err != nil {
			return err
		}
		if job.TaskIDs, err = loadTaskIDs(ctx, tx, id); err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}

		job.UpdatedAt = time.Now().UTC()
		const q = `
UPDATE jobs SET name=$2, description=$3, status=$4, priority=$5, version=version+1, updated_at=$6
WHERE id=$1
RETURNING version;
`
		if err := tx.QueryRow(ctx, q, id, job.Name, job.Description, string(job.Status), job.Priority, job.UpdatedAt).
			Scan(&job.Version); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// RecomputeJobStatus locks the job row before reading task statuses, so two
// recomputations of the same job run one after the other and the later one
// sees every task write committed before it started.
func (r *JobRepository) RecomputeJobStatus(ctx context.Context, id uuid.UUID, fn repository.JobStatusFunc) (entity.JobStatusChange, error) {
	var change entity.JobStatusChange
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		job, err := scanJob(tx.QueryRow(ctx, selectJob+" FOR UPDATE;", id))
		if err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `SELECT status FROM tasks WHERE job_id = $1 ORDER BY position;`, id)
		if err != nil {
			return err
		}
		texts, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}
		statuses := make([]entity.TaskStatus, len(texts))
		for i, s := range texts {
			statuses[i] = entity.TaskStatus(s)
		}

		next, err := fn(job, statuses)
		if err != nil {
			return err
		}
		change = entity.JobStatusChange{JobID: id, Project: job.Project, From: job.Status, To: next}
		if !change.Changed() {
			return nil
		}

		const q = `UPDATE jobs SET status=$2, version=version+1, updated_at=$3 WHERE id=$1;`
		_, err = tx.Exec(ctx, q, id, string(next), time.Now().UTC())
		return err
	})
	if err != nil {
		return entity.JobStatusChange{}, mapErr(err)
	}
	return change, nil
}
