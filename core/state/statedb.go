// Package state implements the ledger: accounts, balances and contract
// storage with a journal that makes every mutation revertible until the
// enclosing top-level call commits.
package state

import (
	"errors"
	"fadingrose/rosy-ledger/core/arith"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// ErrInsufficientBalance is returned when a debit exceeds the balance.
var ErrInsufficientBalance = errors.New("insufficient balance for transfer")

type revision struct {
	id           int
	journalIndex int
}

// StateDB holds the working set of accounts on top of a Database. Changes
// stay in memory until Commit.
type StateDB struct {
	db Database

	// state objects
	stateObjects map[common.Address]*stateObject

	// Journal of state modifications. This is the backbone of
	// Snapshot and RevertToSnapshot.
	journal        *journal
	validRevisions []revision
	nextRevisionId int

	// Notifications emitted since the last commit.
	notifications []*types.Notification

	logger *tracing.Hooks

	// DB error.
	// State objects are used by the dispatcher which is unable to deal
	// with database-level errors. Any error that occurs during a database
	// read is memoized here and will eventually be returned by
	// StateDB.Commit.
	dbErr error
}

// New creates a StateDB over db.
func New(db Database) *StateDB {
	return &StateDB{
		db:           db,
		stateObjects: make(map[common.Address]*stateObject),
		journal:      newJournal(),
	}
}

// SetLogger sets the logger for account update hooks.
func (s *StateDB) SetLogger(l *tracing.Hooks) {
	s.logger = l
}

// Database returns the committed view behind the state.
func (s *StateDB) Database() Database {
	return s.db
}

// Error returns the memorized database failure occurred earlier.
func (s *StateDB) Error() error {
	return s.dbErr
}

// setError remembers the first non-nil error it is called with.
func (s *StateDB) setError(err error) {
	if s.dbErr == nil {
		s.dbErr = err
	}
}

// CreateAccount explicitly creates a new, empty account. An existing
// account is left untouched.
func (s *StateDB) CreateAccount(addr common.Address) {
	if s.getStateObject(addr) == nil {
		s.createObject(addr)
	}
}

// Exist reports whether the given account exists in state.
func (s *StateDB) Exist(addr common.Address) bool {
	return s.getStateObject(addr) != nil
}

// Empty returns whether the state object is either non-existent
// or empty (balance = nonce = code = 0)
func (s *StateDB) Empty(addr common.Address) bool {
	so := s.getStateObject(addr)
	return so == nil || so.empty()
}

// GetBalance retrieves the balance from the given address or 0 if object not found
func (s *StateDB) GetBalance(addr common.Address) *uint256.Int {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return new(uint256.Int).Set(stateObject.Balance())
	}
	return new(uint256.Int)
}

// AddBalance adds amount to the account associated with addr. Use Transfer
// when the credit can overflow.
func (s *StateDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) {
	stateObject := s.getOrNewStateObject(addr)
	if stateObject != nil {
		stateObject.AddBalance(amount, reason)
	}
}

// SubBalance subtracts amount from the account associated with addr.
func (s *StateDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) {
	stateObject := s.getOrNewStateObject(addr)
	if stateObject != nil {
		stateObject.SubBalance(amount, reason)
	}
}

// CanTransfer checks whether there are enough funds in the address' account to make a transfer.
func (s *StateDB) CanTransfer(addr common.Address, amount *uint256.Int) bool {
	return s.GetBalance(addr).Cmp(amount) >= 0
}

// Transfer moves amount from sender to recipient as one journaled pair.
// Nothing changes when it fails.
func (s *StateDB) Transfer(sender, recipient common.Address, amount *uint256.Int) error {
	if !s.CanTransfer(sender, amount) {
		return fmt.Errorf("%w: address %v have %v want %v", ErrInsufficientBalance, sender, s.GetBalance(sender), amount)
	}
	if sender != recipient {
		if _, overflow := new(uint256.Int).AddOverflow(s.GetBalance(recipient), amount); overflow {
			return fmt.Errorf("credit %v to %v: %w", amount, recipient, arith.ErrOverflow)
		}
	}
	s.SubBalance(sender, amount, tracing.BalanceChangeTransfer)
	s.AddBalance(recipient, amount, tracing.BalanceChangeTransfer)
	return nil
}

// GetNonce retrieves the nonce from the given address or 0 if object not found
func (s *StateDB) GetNonce(addr common.Address) uint64 {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return stateObject.Nonce()
	}
	return 0
}

func (s *StateDB) SetNonce(addr common.Address, nonce uint64) {
	stateObject := s.getOrNewStateObject(addr)
	if stateObject != nil {
		stateObject.SetNonce(nonce)
	}
}

func (s *StateDB) GetCode(addr common.Address) []byte {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return stateObject.Code()
	}
	return nil
}

func (s *StateDB) GetCodeHash(addr common.Address) common.Hash {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return common.BytesToHash(stateObject.CodeHash())
	}
	return common.Hash{}
}

func (s *StateDB) SetCode(addr common.Address, code []byte) {
	stateObject := s.getOrNewStateObject(addr)
	if stateObject != nil {
		stateObject.SetCode(crypto.Keccak256Hash(code), code)
	}
}

// GetState retrieves the value associated with the specific key, including
// uncommitted changes. Missing slots read as zero.
func (s *StateDB) GetState(addr common.Address, hash common.Hash) common.Hash {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return stateObject.GetState(hash)
	}
	return common.Hash{}
}

// GetCommittedState retrieves the value associated with the specific key
// without any mutations caused in the current execution.
func (s *StateDB) GetCommittedState(addr common.Address, hash common.Hash) common.Hash {
	stateObject := s.getStateObject(addr)
	if stateObject != nil {
		return stateObject.GetCommittedState(hash)
	}
	return common.Hash{}
}

func (s *StateDB) SetState(addr common.Address, key, value common.Hash) {
	stateObject := s.getOrNewStateObject(addr)
	if stateObject != nil {
		stateObject.SetState(key, value)
	}
}

// AddNotification records n for the current call. Reverting past this point
// drops it again.
func (s *StateDB) AddNotification(n *types.Notification) {
	s.journal.append(addNotificationChange{})
	n.Index = uint(len(s.notifications))
	s.notifications = append(s.notifications, n)
}

// Notifications returns the notifications recorded since the last commit.
func (s *StateDB) Notifications() []*types.Notification {
	return append([]*types.Notification(nil), s.notifications...)
}

func (s *StateDB) setStateObject(object *stateObject) {
	s.stateObjects[object.Address()] = object
}

// createObject creates a new state object. The assumption is held there is no
// existing account with the given address, otherwise it will be silently overwritten.
func (s *StateDB) createObject(addr common.Address) *stateObject {
	obj := newObject(s, addr, nil)
	s.journal.append(createObjectChange{account: &addr})
	s.setStateObject(obj)
	return obj
}

// getOrNewStateObject retrieves a state object or create a new state object if nil.
func (s *StateDB) getOrNewStateObject(addr common.Address) *stateObject {
	obj := s.getStateObject(addr)
	if obj == nil {
		obj = s.createObject(addr)
	}
	return obj
}

// getStateObject retrieves a state object given by the address, returning nil if
// the object is not found.
func (s *StateDB) getStateObject(addr common.Address) *stateObject {
	// Prefer live objects if any is available
	if obj := s.stateObjects[addr]; obj != nil {
		return obj
	}
	acct, err := s.db.Account(addr)
	if err != nil {
		s.setError(fmt.Errorf("load account %v: %w", addr, err))
		return nil
	}
	if acct == nil {
		return nil
	}
	// Insert into the live set
	obj := newObject(s, addr, acct)
	s.setStateObject(obj)
	return obj
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionId
	s.nextRevisionId++
	s.validRevisions = append(s.validRevisions, revision{id, s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	// Find the snapshot in the stack of valid snapshots.
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	// Replay the journal to undo changes and remove invalidated snapshots
	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Rollback discards every change made since the last commit.
func (s *StateDB) Rollback() {
	s.journal.revert(s, 0)
	s.journal.reset()
	s.validRevisions = s.validRevisions[:0]
	s.notifications = nil
	s.dbErr = nil
}

// Commit writes all changes since the last commit into batch and clears the
// journal. The batch is not written; the caller decides when to flush it.
func (s *StateDB) Commit(batch rawdb.Batch) error {
	if s.dbErr != nil {
		return fmt.Errorf("commit aborted due to earlier error: %v", s.dbErr)
	}
	dirty := make([]common.Address, 0, len(s.journal.dirties))
	for addr := range s.journal.dirties {
		dirty = append(dirty, addr)
	}
	sort.Slice(dirty, func(i, j int) bool {
		return dirty[i].Cmp(dirty[j]) < 0
	})
	for _, addr := range dirty {
		obj := s.stateObjects[addr]
		if obj == nil {
			continue
		}
		if err := obj.commit(batch); err != nil {
			return fmt.Errorf("commit account %v: %w", addr, err)
		}
	}
	for _, addr := range dirty {
		if obj := s.stateObjects[addr]; obj != nil {
			obj.finalise()
		}
	}
	s.journal.reset()
	s.validRevisions = s.validRevisions[:0]
	s.notifications = nil
	return nil
}
