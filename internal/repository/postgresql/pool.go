package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Store bundles the repositories sharing one pool.
type Store struct {
	*JobRepository
	*TaskRepository
	*ManagerRepository

	pool *pgxpool.Pool
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		JobRepository:     NewJobRepository(pool),
		TaskRepository:    NewTaskRepository(pool),
		ManagerRepository: NewManagerRepository(pool),
		pool:              pool,
	}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Postgres error codes that mean another transaction got in the way.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

var domainErrors = []error{
	entity.ErrNotFound,
	entity.ErrIllegalTransition,
	entity.ErrForbidden,
	entity.ErrConflict,
	entity.ErrInvalidJobState,
	entity.ErrInvalidInput,
	entity.ErrStoreUnavailable,
}

// mapErr translates driver errors into the entity taxonomy.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return entity.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %s", entity.ErrConflict, pgErr.Message)
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", entity.ErrConflict, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}
