package badgerdb

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"flamenco-core/internal/entity"
	"flamenco-core/internal/repository"
)

const (
	prefixManager        = "manager"
	prefixManagerAccount = "manager-sa"
	prefixProject        = "project"
)

type managerRecord struct {
	entity.Manager
	StoredVersion int64 `json:"version"`
}

func getManager(txn *badger.Txn, id uuid.UUID) (*entity.Manager, error) {
	var rec managerRecord
	if err := getJSON(txn, key(prefixManager, id), &rec); err != nil {
		return nil, err
	}
	rec.Manager.Version = rec.StoredVersion
	return &rec.Manager, nil
}

func putManager(txn *badger.Txn, m *entity.Manager) error {
	return setJSON(txn, key(prefixManager, m.ID), managerRecord{Manager: *m, StoredVersion: m.Version})
}

func (s *Store) CreateManager(ctx context.Context, m *entity.Manager) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		accountKey := key(prefixManagerAccount, m.ServiceAccount)
		taken, err := exists(txn, accountKey)
		if err != nil {
			return err
		}
		if taken {
			return entity.ErrConflict
		}

		m.Version = 1
		if err := putManager(txn, m); err != nil {
			return err
		}
		return txn.Set(accountKey, m.ID[:])
	})
}

func (s *Store) GetManager(ctx context.Context, id uuid.UUID) (*entity.Manager, error) {
	var m *entity.Manager
	err := s.view(func(txn *badger.Txn) error {
		var err error
		m, err = getManager(txn, id)
		return err
	})
	return m, err
}

func (s *Store) FindManagerByServiceAccount(ctx context.Context, userID uuid.UUID) (*entity.Manager, error) {
	var m *entity.Manager
	err := s.view(func(txn *badger.Txn) error {
		item, err := txn.Get(key(prefixManagerAccount, userID))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return err
		}
		m, err = getManager(txn, id)
		return err
	})
	return m, err
}

// UpdateManager stores the manager document as one value, so projects and
// user_groups can only ever be written together.
func (s *Store) UpdateManager(ctx context.Context, id uuid.UUID, fn repository.ManagerUpdateFunc) (*entity.Manager, error) {
	var out *entity.Manager
	err := s.update(ctx, func(txn *badger.Txn) error {
		m, err := getManager(txn, id)
		if err != nil {
			return err
		}
		lookup := func(ctx context.Context, projectID uuid.UUID) (*entity.Project, error) {
			p, err := getProject(txn, projectID)
			return p, mapErr(err)
		}
		if err := fn(ctx, m, lookup); err != nil {
			return err
		}
		m.Version++
		m.UpdatedAt = time.Now().UTC()
		if err := putManager(txn, m); err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

func getProject(txn *badger.Txn, id uuid.UUID) (*entity.Project, error) {
	var p entity.Project
	if err := getJSON(txn, key(prefixProject, id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) GetProject(ctx context.Context, id uuid.UUID) (*entity.Project, error) {
	var p *entity.Project
	err := s.view(func(txn *badger.Txn) error {
		var err error
		p, err = getProject(txn, id)
		return err
	})
	return p, err
}

// PutProject stores a project document. Projects are owned by the surrounding
// system; this is how it (or a dev seed) hands them to the embedded store.
func (s *Store) PutProject(ctx context.Context, p *entity.Project) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		return setJSON(txn, key(prefixProject, p.ID), p)
	})
}
