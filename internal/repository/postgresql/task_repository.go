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

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const selectTask = `
SELECT id, job_id, position, name, status, commands, manager, etag, created_at, updated_at
FROM tasks
`

func scanTask(row pgx.Row) (*entity.Task, error) {
	var (
		task          entity.Task
		statusText    string
		commandsBytes []byte
	)
	if err := row.Scan(
		&task.ID,
		&task.Job,
		&task.Position,
		&task.Name,
		&statusText,
		&commandsBytes,
		&task.Manager, // NULL => nil
		&task.Etag,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		return nil, err
	}
	task.Status = entity.TaskStatus(statusText)
	task.Commands = json.RawMessage(commandsBytes)
	return &task, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id uuid.UUID) (*entity.Task, error) {
	task, err := scanTask(r.pool.QueryRow(ctx, selectTask+"WHERE id = $1;", id))
	if err != nil {
		return nil, mapErr(err)
	}
	return task, nil
}

func (r *TaskRepository) ListTasks(ctx context.Context, jobID uuid.UUID) ([]*entity.Task, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1);`, jobID).Scan(&exists); err != nil {
		return nil, mapErr(err)
	}
	if !exists {
		return nil, entity.ErrNotFound
	}

	rows, err := r.pool.Query(ctx, selectTask+"WHERE job_id = $1 ORDER BY position;", jobID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, mapErr(err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return tasks, nil
}

// UpdateTask holds the task row lock for the whole read-modify-write, so a
// second transition on the same task waits for the first to commit.
func (r *TaskRepository) UpdateTask(ctx context.Context, id uuid.UUID, fn repository.TaskUpdateFunc) (*entity.Task, error) {
	var out *entity.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		task, err := scanTask(tx.QueryRow(ctx, selectTask+"WHERE id = $1 FOR UPDATE;", id))
		if err != nil {
			return err
		}
		lines, err := fn(task)
		if err != nil {
			return err
		}

		task.Etag = uuid.NewString()
		task.UpdatedAt = time.Now().UTC()
		const q = `UPDATE tasks SET status=$2, manager=$3, etag=$4, updated_at=$5 WHERE id=$1;`
		if _, err := tx.Exec(ctx, q, id, string(task.Status), task.Manager, task.Etag, task.UpdatedAt); err != nil {
			return err
		}
		if err := insertLogLines(ctx, tx, id, lines, task.UpdatedAt); err != nil {
			return err
		}
		out = task
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *TaskRepository) AppendTaskLog(ctx context.Context, id uuid.UUID, lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		// The row lock keeps sequence numbers of concurrent appends apart.
		var locked uuid.UUID
		if err := tx.QueryRow(ctx, `SELECT id FROM tasks WHERE id = $1 FOR UPDATE;`, id).Scan(&locked); err != nil {
			return err
		}
		return insertLogLines(ctx, tx, id, lines, time.Now().UTC())
	})
	return mapErr(err)
}

// insertLogLines must run while the task row is locked.
func insertLogLines(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, lines []string, at time.Time) error {
	if len(lines) == 0 {
		return nil
	}
	var last int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM task_logs WHERE task_id = $1;`, taskID).Scan(&last); err != nil {
		return err
	}

	rows := make([][]any, len(lines))
	for i, line := range lines {
		rows[i] = []any{taskID, last + int64(i) + 1, line, at}
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"task_logs"},
		[]string{"task_id", "seq", "line", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (r *TaskRepository) TaskLogs(ctx context.Context, id uuid.UUID, after int64, limit int) ([]entity.TaskLogLine, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1);`, id).Scan(&exists); err != nil {
		return nil, mapErr(err)
	}
	if !exists {
		return nil, entity.ErrNotFound
	}

	q := `SELECT seq, line, created_at FROM task_logs WHERE task_id = $1 AND seq > $2 ORDER BY seq`
	args := []any{id, after}
	if limit > 0 {
		q += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q+";", args...)
	if err != nil {
		return nil, mapErr(err)
	}
	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (entity.TaskLogLine, error) {
		var l entity.TaskLogLine
		err := row.Scan(&l.Seq, &l.Line, &l.CreatedAt)
		return l, err
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return lines, nil
}
