package vm

import (
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// StateDB is the ledger access the dispatcher needs.
type StateDB interface {
	// creations
	CreateAccount(addr common.Address)
	Exist(addr common.Address) bool

	// world state for an Address
	GetNonce(addr common.Address) uint64
	SetNonce(addr common.Address, nonce uint64)

	SubBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason)
	AddBalance(common.Address, *uint256.Int, tracing.BalanceChangeReason)
	GetBalance(addr common.Address) *uint256.Int
	CanTransfer(addr common.Address, amount *uint256.Int) bool
	Transfer(sender, recipient common.Address, amount *uint256.Int) error

	GetCodeHash(addr common.Address) common.Hash
	GetCode(addr common.Address) []byte
	SetCode(addr common.Address, code []byte)

	GetCommittedState(addr common.Address, key common.Hash) common.Hash
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)

	AddNotification(n *types.Notification)

	Snapshot() int
	RevertToSnapshot(revid int)
}
