package storage

import (
	"errors"
)

var (
	// ErrNotFound is returned when a share path does not exist in the
	// backend. Note: badger returns its own badger.ErrKeyNotFound; the
	// storage/badger implementation converts it to ErrNotFound so callers
	// only ever match against this sentinel.
	ErrNotFound = errors.New("share not found")

	// ErrAlreadyExists is returned when storing to a path that is already
	// occupied and the backend refuses overwrites.
	ErrAlreadyExists = errors.New("share already exists")
)
