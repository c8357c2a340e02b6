// Package rawdb holds the persistent key-value backends of the ledger and
// the low level accessors that lay out accounts, code and storage in them.
package rawdb

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("rawdb: store closed")

// KeyValueReader wraps the read methods of a backing store.
type KeyValueReader interface {
	// Has reports whether key is present.
	Has(key []byte) (bool, error)

	// Get returns the value stored under key, or nil when it is missing.
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the write methods of a backing store.
type KeyValueWriter interface {
	Put(key, value []byte) error
	Delete(key []byte) error
}

// KeyValueStore is the persistent store behind the ledger.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter

	// NewBatch creates a write-only batch that buffers changes until
	// Write is called.
	NewBatch() Batch

	Close() error
}

// Batch is a write-only buffer committed atomically by Write.
type Batch interface {
	KeyValueWriter

	// ValueSize is the number of bytes queued for writing.
	ValueSize() int

	Write() error
	Reset()
}

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBadger  = "badger"
)

// Open opens the named backend at path. The memory backend ignores path.
func Open(backend, path string) (KeyValueStore, error) {
	switch backend {
	case BackendMemory, "":
		return NewMemoryDatabase(), nil
	case BackendLevelDB:
		return NewLevelDB(path)
	case BackendBadger:
		return NewBadgerDB(path)
	}
	return nil, fmt.Errorf("rawdb: unknown backend %q", backend)
}
