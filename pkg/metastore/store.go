// Package metastore persists project records in an embedded badger
// database. Records are JSON values under "project:<id>" keys.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"civicrelay/pkg/errs"
	"civicrelay/pkg/types"

	"github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

const keyPrefix = "project:"

var (
	// ErrExists is returned by Create when the id is already taken.
	ErrExists = errors.New("project already exists")
	// ErrContentIDReassigned guards the one-time assignment of a record's content id.
	ErrContentIDReassigned = errors.New("content id cannot be reassigned")
	// ErrDeletionRevoked guards the one-way deletion request flag.
	ErrDeletionRevoked = errors.New("deletion request cannot be withdrawn")
)

type Options struct {
	Dir      string
	InMemory bool
}

// Filter narrows List. A nil field matches everything.
type Filter struct {
	DeletionRequested *bool
}

type Store struct {
	db     *badger.DB
	logger *zap.Logger
	now    func() time.Time
}

func Open(opts Options, logger *zap.Logger) (*Store, error) {
	var dbOpts badger.Options
	if opts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create metadata directory: %w", err)
		}
		dbOpts = badger.DefaultOptions(opts.Dir)
	}
	dbOpts = dbOpts.
		WithLogger(newBadgerLogger(logger)).
		WithMemTableSize(16 << 20)

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	logger.Info("Metadata store opened",
		zap.String("dir", opts.Dir),
		zap.Bool("in_memory", opts.InMemory))

	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func projectKey(id types.ProjectID) []byte {
	return []byte(keyPrefix + string(id))
}

// Create inserts a new record. It never overwrites.
func (s *Store) Create(ctx context.Context, rec *types.ProjectRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return errs.New(errs.KindValidation, "project id is required")
	}
	if !rec.Status.Valid() {
		return errs.Validationf("unknown project status %q", rec.Status)
	}

	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode project: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		key := projectKey(rec.ID)
		if _, err := txn.Get(key); err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, value)
	})
	if err != nil {
		return fmt.Errorf("failed to create project %s: %w", rec.ID, err)
	}

	s.logger.Debug("Project created",
		zap.String("project_id", string(rec.ID)),
		zap.String("content_id", string(rec.ContentID)))
	return nil
}

func (s *Store) Get(ctx context.Context, id types.ProjectID) (*types.ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var rec *types.ProjectRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the records matching f, newest first.
func (s *Store) List(ctx context.Context, f Filter) ([]types.ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := []types.ProjectRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var rec types.ProjectRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			if f.DeletionRequested != nil && rec.DeletionRequested != *f.DeletionRequested {
				continue
			}
			records = append(records, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

// Update applies fn to the stored record inside one transaction. The
// content id and the deletion flag can only move forward.
func (s *Store) Update(ctx context.Context, id types.ProjectID, fn func(*types.ProjectRecord) error) (*types.ProjectRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var updated *types.ProjectRecord
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, id)
		if err != nil {
			return err
		}
		before := *rec

		if err := fn(rec); err != nil {
			return err
		}
		rec.ID = before.ID
		if before.ContentID != "" && rec.ContentID != before.ContentID {
			return ErrContentIDReassigned
		}
		if before.DeletionRequested && !rec.DeletionRequested {
			return ErrDeletionRevoked
		}
		rec.UpdatedAt = s.now().UTC()

		value, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode project: %w", err)
		}
		if err := txn.Set(projectKey(id), value); err != nil {
			return err
		}
		updated = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RequestDeletion flags the record for administrative removal. Flagging
// an already flagged record is a no-op.
func (s *Store) RequestDeletion(ctx context.Context, id types.ProjectID) (*types.ProjectRecord, error) {
	rec, err := s.Update(ctx, id, func(rec *types.ProjectRecord) error {
		rec.DeletionRequested = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Project deletion requested", zap.String("project_id", string(id)))
	return rec, nil
}

// Delete removes the record. Stored documents are left in the cluster.
func (s *Store) Delete(ctx context.Context, id types.ProjectID) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := getRecord(txn, id); err != nil {
			return err
		}
		return txn.Delete(projectKey(id))
	})
	if err != nil {
		return err
	}
	s.logger.Info("Project deleted", zap.String("project_id", string(id)))
	return nil
}

func getRecord(txn *badger.Txn, id types.ProjectID) (*types.ProjectRecord, error) {
	item, err := txn.Get(projectKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errs.New(errs.KindNotFound, "Project not found")
		}
		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	rec := new(types.ProjectRecord)
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, rec)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	return rec, nil
}
