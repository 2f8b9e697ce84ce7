// Package badgerdb is an embedded store on BadgerDB. Badger transactions are
// optimistic: a transaction that read a key written by another transaction
// after it started fails with badger.ErrConflict on commit, and the update is
// retried from a fresh read.
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"flamenco-core/internal/entity"
)

const (
	defaultMaxRetries = 50
	defaultRetryDelay = time.Millisecond
)

type Store struct {
	db         *badger.DB
	maxRetries int
	retryDelay time.Duration
}

// Open opens (or creates) a store in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db, maxRetries: defaultMaxRetries, retryDelay: defaultRetryDelay}, nil
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("[badger] close error=%v", err)
	}
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}

		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return mapErr(err)
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %v after %d attempts", entity.ErrConflict, lastErr, s.maxRetries)
}

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return mapErr(s.db.View(fn))
}

var domainErrors = []error{
	entity.ErrNotFound,
	entity.ErrIllegalTransition,
	entity.ErrForbidden,
	entity.ErrConflict,
	entity.ErrInvalidJobState,
	entity.ErrInvalidInput,
	entity.ErrStoreUnavailable,
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return err
		}
	}
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		return entity.ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %v", entity.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("%w: %w", entity.ErrStoreUnavailable, err)
}

func key(prefix string, id uuid.UUID) []byte {
	return []byte(prefix + "/" + id.String())
}

func getJSON(txn *badger.Txn, k []byte, v any) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(txn *badger.Txn, k []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return txn.Set(k, data)
}

func exists(txn *badger.Txn, k []byte) (bool, error) {
	_, err := txn.Get(k)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
