// Package badger backs the storage.Store interface with an embedded Badger
// database, giving baseline records durability across sessions.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// Store is a storage.Store backed by a Badger database directory.
type Store struct {
	db  *badgerdb.DB
	log *zap.Logger
}

// NewStore opens (or creates) the database at path.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	opts := badgerdb.DefaultOptions(path).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	log.Info("Badger store opened", zap.String("path", path))

	return &Store{db: db, log: log}, nil
}

// Get returns the value for key and whether it exists.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return value, true, nil
}

// Put writes the value for key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	err := s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
