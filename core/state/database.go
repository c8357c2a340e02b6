package state

import (
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/types"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Database is the committed view the StateDB loads from.
type Database interface {
	// Account returns the committed account at addr, or nil if it was never
	// written.
	Account(addr common.Address) (*types.StateAccount, error)

	// ContractCode retrieves a particular contract's code.
	ContractCode(addr common.Address, codeHash common.Hash) ([]byte, error)

	// Storage returns the committed value of a storage slot.
	Storage(addr common.Address, slot common.Hash) (common.Hash, error)

	// DiskDB returns the underlying key-value store.
	DiskDB() rawdb.KeyValueStore
}

type cachingDB struct {
	disk rawdb.KeyValueStore
}

// NewDatabase creates a Database reading from disk.
func NewDatabase(disk rawdb.KeyValueStore) Database {
	return &cachingDB{disk: disk}
}

func (db *cachingDB) Account(addr common.Address) (*types.StateAccount, error) {
	enc, err := rawdb.ReadAccountRLP(db.disk, addr)
	if err != nil || enc == nil {
		return nil, err
	}
	acct, err := types.DecodeAccount(enc)
	if err != nil {
		return nil, fmt.Errorf("decode account %s: %w", addr, err)
	}
	return acct, nil
}

func (db *cachingDB) ContractCode(addr common.Address, codeHash common.Hash) ([]byte, error) {
	code, err := rawdb.ReadCode(db.disk, codeHash)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("code %x of %s not found", codeHash, addr)
	}
	return code, nil
}

func (db *cachingDB) Storage(addr common.Address, slot common.Hash) (common.Hash, error) {
	return rawdb.ReadStorage(db.disk, addr, slot)
}

func (db *cachingDB) DiskDB() rawdb.KeyValueStore { return db.disk }
