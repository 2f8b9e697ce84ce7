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

type ManagerRepository struct {
	pool *pgxpool.Pool
}

func NewManagerRepository(pool *pgxpool.Pool) *ManagerRepository {
	return &ManagerRepository{pool: pool}
}

func (r *ManagerRepository) CreateManager(ctx context.Context, m *entity.Manager) error {
	const q = `
INSERT INTO managers (id, name, url, service_account, owner, projects, user_groups, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $8);
`
	if _, err := r.pool.Exec(ctx, q,
		m.ID, m.Name, m.URL, m.ServiceAccount, m.Owner,
		nonNil(m.Projects), nonNil(m.UserGroups), m.CreatedAt,
	); err != nil {
		return mapErr(err)
	}
	m.Version = 1
	return nil
}

const selectManager = `
SELECT id, name, url, service_account, owner, projects, user_groups, version, created_at, updated_at
FROM managers
`

func scanManager(row pgx.Row) (*entity.Manager, error) {
	var m entity.Manager
	if err := row.Scan(
		&m.ID,
		&m.Name,
		&m.URL,
		&m.ServiceAccount,
		&m.Owner,
		&m.Projects,
		&m.UserGroups,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *ManagerRepository) GetManager(ctx context.Context, id uuid.UUID) (*entity.Manager, error) {
	m, err := scanManager(r.pool.QueryRow(ctx, selectManager+"WHERE id = $1;", id))
	if err != nil {
		return nil, mapErr(err)
	}
	return m, nil
}

func (r *ManagerRepository) FindManagerByServiceAccount(ctx context.Context, userID uuid.UUID) (*entity.Manager, error) {
	m, err := scanManager(r.pool.QueryRow(ctx, selectManager+"WHERE service_account = $1;", userID))
	if err != nil {
		return nil, mapErr(err)
	}
	return m, nil
}

// UpdateManager writes projects and user_groups in the same statement, under
// the manager row lock; projects read through the lookup share the transaction.
func (r *ManagerRepository) UpdateManager(ctx context.Context, id uuid.UUID, fn repository.ManagerUpdateFunc) (*entity.Manager, error) {
	var out *entity.Manager
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		m, err := scanManager(tx.QueryRow(ctx, selectManager+"WHERE id = $1 FOR UPDATE;", id))
		if err != nil {
			return err
		}
		lookup := func(ctx context.Context, projectID uuid.UUID) (*entity.Project, error) {
			p, err := getProject(ctx, tx, projectID)
			return p, mapErr(err)
		}
		if err := fn(ctx, m, lookup); err != nil {
			return err
		}

		m.UpdatedAt = time.Now().UTC()
		const q = `
UPDATE managers SET name=$2, url=$3, projects=$4, user_groups=$5, version=version+1, updated_at=$6
WHERE id=$1
RETURNING version;
`
		if err := tx.QueryRow(ctx, q, id, m.Name, m.URL, nonNil(m.Projects), nonNil(m.UserGroups), m.UpdatedAt).
			Scan(&m.Version); err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *ManagerRepository) GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	p, err := getProject(ctx, r.pool, id)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

func getProject(ctx context.Context, q pgxQuerier, id uuid.UUID) (*entity.Project, error) {
	var (
		p     entity.Project
		perms []byte
	)
	if err := q.QueryRow(ctx, `SELECT id, name, permissions FROM projects WHERE id = $1;`, id).
		Scan(&p.ID, &p.Name, &perms); err != nil {
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &p.Permissions); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
