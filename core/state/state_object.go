package state

import (
	"bytes"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"
	"fmt"
	"maps"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type Storage map[common.Hash]common.Hash

func (s Storage) Copy() Storage {
	return maps.Clone(s)
}

type stateObject struct {
	db      *StateDB
	address common.Address
	origin  *types.StateAccount // Account original data without any change applied, nil means it was not existent
	data    types.StateAccount

	code []byte // contract code, which gets set when code is loaded

	originStorage Storage // Committed storage entries that have been accessed
	dirtyStorage  Storage // Storage entries modified since the last commit

	// Cache flags.
	dirtyCode bool // true if the code was updated
}

func newObject(db *StateDB, addr common.Address, acct *types.StateAccount) *stateObject {
	origin := acct
	if acct == nil {
		acct = types.NewEmptyStateAccount()
	}
	return &stateObject{
		db:            db,
		address:       addr,
		origin:        origin,
		data:          *acct.Copy(),
		originStorage: make(Storage),
		dirtyStorage:  make(Storage),
	}
}

// Code returns the contract code associated with this object, if any.
func (s *stateObject) Code() []byte {
	if len(s.code) != 0 {
		return s.code
	}
	if bytes.Equal(s.CodeHash(), types.EmptyCodeHash.Bytes()) {
		return nil
	}
	code, err := s.db.db.ContractCode(s.address, common.BytesToHash(s.data.CodeHash))
	if err != nil {
		s.db.setError(fmt.Errorf("can't load code hash %x for %s: %w", s.data.CodeHash, s.address, err))
		return nil
	}
	s.code = code
	return code
}

// GetState retrieves a value associated with the given storage key.
func (s *stateObject) GetState(key common.Hash) common.Hash {
	value, _ := s.getState(key)
	return value
}

// getState retrieves a value associated with the given storage key, along with
// its original value.
func (s *stateObject) getState(key common.Hash) (common.Hash, common.Hash) {
	origin := s.GetCommittedState(key)
	value, dirty := s.dirtyStorage[key]
	if dirty {
		return value, origin
	}
	return origin, origin
}

// GetCommittedState retrieves the value associated with the specific key
// without any mutations caused in the current execution.
func (s *stateObject) GetCommittedState(key common.Hash) common.Hash {
	if value, cached := s.originStorage[key]; cached {
		return value
	}
	// Accounts created since the last commit have no committed storage.
	if s.origin == nil {
		s.originStorage[key] = common.Hash{}
		return common.Hash{}
	}
	value, err := s.db.db.Storage(s.address, key)
	if err != nil {
		s.db.setError(fmt.Errorf("can't load storage %x of %s: %w", key, s.address, err))
		return common.Hash{}
	}
	s.originStorage[key] = value
	return value
}

// Getters
func (s *stateObject) Address() common.Address {
	return s.address
}

func (s *stateObject) Nonce() uint64 {
	return s.data.Nonce
}

func (s *stateObject) Balance() *uint256.Int {
	return s.data.Balance
}

func (s *stateObject) CodeHash() []byte {
	return s.data.CodeHash
}

// AddBalance adds amount to s's balance.
// It is used to add funds to the destination account of a transfer.
func (s *stateObject) AddBalance(amount *uint256.Int, reason tracing.BalanceChangeReason) {
	if amount.IsZero() {
		return
	}
	s.SetBalance(new(uint256.Int).Add(s.Balance(), amount), reason)
}

// SubBalance removes amount from s's balance.
// It is used to remove funds from the origin account of a transfer.
func (s *stateObject) SubBalance(amount *uint256.Int, reason tracing.BalanceChangeReason) {
	if amount.IsZero() {
		return
	}
	s.SetBalance(new(uint256.Int).Sub(s.Balance(), amount), reason)
}

func (s *stateObject) SetBalance(amount *uint256.Int, reason tracing.BalanceChangeReason) {
	s.db.journal.append(balanceChange{
		account: &s.address,
		prev:    new(uint256.Int).Set(s.data.Balance),
	})
	if s.db.logger != nil && s.db.logger.OnBalanceChange != nil {
		s.db.logger.OnBalanceChange(s.address, s.Balance(), amount, reason)
	}
	s.setBalance(amount)
}

func (s *stateObject) setBalance(amount *uint256.Int) {
	s.data.Balance = amount
}

// empty returns whether the account is considered empty.
func (s *stateObject) empty() bool {
	return s.data.Nonce == 0 && s.data.Balance.IsZero() && bytes.Equal(s.data.CodeHash, types.EmptyCodeHash.Bytes())
}

func (s *stateObject) SetCode(codeHash common.Hash, code []byte) {
	prevcode := s.Code()
	s.db.journal.append(codeChange{
		account:  &s.address,
		prevhash: s.CodeHash(),
		prevcode: prevcode,
	})
	s.setCode(codeHash, code)
}

func (s *stateObject) setCode(codeHash common.Hash, code []byte) {
	s.code = code
	s.data.CodeHash = codeHash[:]
	s.dirtyCode = true
}

func (s *stateObject) SetNonce(nonce uint64) {
	s.db.journal.append(nonceChange{
		account: &s.address,
		prev:    s.data.Nonce,
	})
	s.setNonce(nonce)
}

func (s *stateObject) setNonce(nonce uint64) {
	s.data.Nonce = nonce
}

// SetState updates a value in account storage.
func (s *stateObject) SetState(key, value common.Hash) {
	// If the new value is the same as old, don't set. Otherwise, track only the
	// dirty changes, supporting reverting all of it back to no change.
	prev, origin := s.getState(key)
	if prev == value {
		return
	}
	// New value is different, update and journal the change
	s.db.journal.append(storageChange{
		account:   &s.address,
		key:       key,
		prevvalue: prev,
		origvalue: origin,
	})
	if s.db.logger != nil && s.db.logger.OnStorageChange != nil {
		s.db.logger.OnStorageChange(s.address, key, prev, value)
	}
	s.setState(key, value, origin)
}

// setState updates a value in account dirty storage. The dirtiness will be
// removed if the value being set equals to the original value.
func (s *stateObject) setState(key common.Hash, value common.Hash, origin common.Hash) {
	// Storage slot is set back to its original value, undo the dirty marker
	if value == origin {
		delete(s.dirtyStorage, key)
		return
	}
	s.dirtyStorage[key] = value
}

// commit writes the account, any new code and the dirty storage into batch.
func (s *stateObject) commit(batch rawdb.Batch) error {
	enc, err := types.EncodeAccount(&s.data)
	if err != nil {
		return err
	}
	if err := rawdb.WriteAccountRLP(batch, s.address, enc); err != nil {
		return err
	}
	if s.dirtyCode && len(s.code) > 0 {
		if err := rawdb.WriteCode(batch, common.BytesToHash(s.data.CodeHash), s.code); err != nil {
			return err
		}
	}
	for key, value := range s.dirtyStorage {
		if err := rawdb.WriteStorage(batch, s.address, key, value); err != nil {
			return err
		}
	}
	return nil
}

// finalise marks the current data as committed.
func (s *stateObject) finalise() {
	for key, value := range s.dirtyStorage {
		s.originStorage[key] = value
	}
	s.dirtyStorage = make(Storage)
	s.origin = s.data.Copy()
	s.dirtyCode = false
}
