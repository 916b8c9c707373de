package storage

import (
	"errors"
)

var ErrKeyNotFound error = errors.New("key not found")
var ErrNoSavepoint error = errors.New("no open savepoint")

// KV is the key-value world state contracts execute against. Writes made
// after Begin are undone by Rollback or kept by Commit; savepoints nest.
type KV interface {
	// methods as a basic key-value mapping
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Del(key string) error
	Hash() (string, error)

	// savepoints
	Begin() error
	Commit() error
	Rollback() error
	Depth() int

	Close() error
}

type KVFactory func() KV

func CreateSimpleKV() KV {
	return NewSimpleKV()
}
