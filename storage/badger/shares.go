// Package badger implements the share store on a local badger database.
// It serves as the embedded KMS backend for deployments without an external
// vault; values are stored as given, so callers are expected to hand it
// ciphertext.
package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v2"

	"github.com/quorumkey/quorumkey/storage"
)

// keyPrefix namespaces share entries within the database.
var keyPrefix = []byte("shares/")

type ShareStore struct {
	db *badger.DB
}

var _ storage.ShareStore = (*ShareStore)(nil)

func NewShareStore(db *badger.DB) *ShareStore {
	return &ShareStore{db: db}
}

func (s *ShareStore) StoreShare(ctx context.Context, path string, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(makeKey(path), data)
	})
	if err != nil {
		return fmt.Errorf("could not store share at %s: %w", path, err)
	}
	return nil
}

func (s *ShareStore) GetShare(ctx context.Context, path string) ([]byte, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(path))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not get share at %s: %w", path, err)
	}
	return data, nil
}

func (s *ShareStore) DeleteShare(ctx context.Context, path string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(makeKey(path))
	})
	if err != nil {
		return fmt.Errorf("could not delete share at %s: %w", path, err)
	}
	return nil
}

func (s *ShareStore) HealthCheck(ctx context.Context) bool {
	if s.db.IsClosed() {
		return false
	}
	// a no-op read transaction exercises the value log
	err := s.db.View(func(txn *badger.Txn) error {
		return nil
	})
	return err == nil
}

func makeKey(path string) []byte {
	return append(append([]byte{}, keyPrefix...), path...)
}
