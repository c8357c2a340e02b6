package rawdb

import (
	"errors"
	"fadingrose/rosy-ledger/log"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerDB is a KeyValueStore on top of badger.
type BadgerDB struct {
	db *badger.DB
}

// NewBadgerDB opens (or creates) a badger store in the directory path.
func NewBadgerDB(path string) (*BadgerDB, error) {
	opts := badger.DefaultOptions(path).WithLogger(badgerLogger{})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &BadgerDB{db: db}, nil
}

func (b *BadgerDB) Has(key []byte) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, b.convert(err)
}

func (b *BadgerDB) Get(key []byte) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	return data, b.convert(err)
}

func (b *BadgerDB) Put(key, value []byte) error {
	return b.convert(b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}))
}

func (b *BadgerDB) Delete(key []byte) error {
	return b.convert(b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}))
}

func (b *BadgerDB) NewBatch() Batch {
	return &badgerBatch{db: b.db}
}

func (b *BadgerDB) Close() error {
	return b.db.Close()
}

func (b *BadgerDB) convert(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return ErrClosed
	}
	return err
}

// badgerBatch buffers operations and replays them into a WriteBatch on
// Write, so that Reset can discard them without touching the store.
type badgerBatch struct {
	db   *badger.DB
	ops  []batchOp
	size int
}

type batchOp struct {
	key, value []byte
	del        bool
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte{}, key...), value: append([]byte{}, value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *badgerBatch) Delete(key []byte) error {
	b.ops = append(b.ops, batchOp{key: append([]byte{}, key...), del: true})
	b.size += len(key)
	return nil
}

func (b *badgerBatch) ValueSize() int { return b.size }

func (b *badgerBatch) Write() error {
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, op := range b.ops {
		var err error
		if op.del {
			err = wb.Delete(op.key)
		} else {
			err = wb.Set(op.key, op.value)
		}
		if err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (b *badgerBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// badgerLogger routes badger's internal logging into the process logger.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { log.Error(fmt.Sprintf(f, v...), "db", "badger") }
func (badgerLogger) Warningf(f string, v ...interface{}) { log.Warn(fmt.Sprintf(f, v...), "db", "badger") }
func (badgerLogger) Infof(f string, v ...interface{})    { log.Debug(fmt.Sprintf(f, v...), "db", "badger") }
func (badgerLogger) Debugf(f string, v ...interface{})   {}
