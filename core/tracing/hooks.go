package tracing

import (
	"fadingrose/rosy-ledger/core/types"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

type (
	// EnterHook is invoked when the processing of a call frame starts.
	// An empty method on a creation frame means the constructor runs.
	EnterHook = func(depth int, create bool, from common.Address, to common.Address, method string, input []byte, gas uint64, value *uint256.Int)
	// ExitHook is invoked when the processing of a call frame ends.
	// `reverted` is true when the frame's mutations were discarded.
	ExitHook = func(depth int, output []byte, gasUsed uint64, err error, reverted bool)
	// NotificationHook is invoked when a contract emits a notification.
	// Notifications of reverted frames are reported as well.
	NotificationHook = func(n *types.Notification)
	// BalanceChangeHook is invoked when the balance of an account changes.
	BalanceChangeHook = func(addr common.Address, prev, new *uint256.Int, reason BalanceChangeReason)
	// StorageChangeHook is invoked when a storage slot changes.
	StorageChangeHook = func(addr common.Address, slot, prev, new common.Hash)
)

// GasChangeHook is invoked when the gas changes.
type GasChangeHook = func(old, new uint64, reason GasChangeReason)

type Hooks struct {
	OnGasChange GasChangeHook

	OnEnter        EnterHook
	OnExit         ExitHook
	OnNotification NotificationHook

	OnBalanceChange BalanceChangeHook
	OnStorageChange StorageChangeHook
}

// BalanceChangeReason is used to indicate the reason for a balance change, useful
// for tracing and reporting.
type BalanceChangeReason byte

const (
	BalanceChangeUnspecified BalanceChangeReason = 0

	// BalanceIncreaseGenesisBalance is value allocated by the genesis.
	BalanceIncreaseGenesisBalance BalanceChangeReason = 1
	// BalanceChangeTransfer is value transferred via a call.
	// it is a decrease for the sender and an increase for the recipient.
	BalanceChangeTransfer BalanceChangeReason = 2
	// BalanceChangeRevert is a balance restored by a journal revert.
	BalanceChangeRevert BalanceChangeReason = 3
)

func (r BalanceChangeReason) String() string {
	switch r {
	case BalanceIncreaseGenesisBalance:
		return "genesis"
	case BalanceChangeTransfer:
		return "transfer"
	case BalanceChangeRevert:
		return "revert"
	}
	return "unspecified"
}

// GasChangeReason is used to indicate the reason for a gas change, useful
// for tracing and reporting.
type GasChangeReason byte

const (
	GasChangeUnspecified GasChangeReason = 0

	// GasChangeCallInitialBalance is the initial balance for the call which will be equal to the gasLimit of the call. There is only
	// one such gas change per call.
	GasChangeCallInitialBalance GasChangeReason = 1
	// GasChangeCallLeftOverRefunded is the amount of gas that will be refunded to the call after the child call execution it
	// executed completed.
	GasChangeCallLeftOverRefunded GasChangeReason = 2
	// GasChangeCallStorageRead is charged for loading a storage slot.
	GasChangeCallStorageRead GasChangeReason = 3
	// GasChangeCallStorageWrite is charged for writing a storage slot.
	GasChangeCallStorageWrite GasChangeReason = 4
	// GasChangeCallBalanceRead is charged for reading an account balance.
	GasChangeCallBalanceRead GasChangeReason = 5
	// GasChangeCallNotification is charged for emitting a notification.
	GasChangeCallNotification GasChangeReason = 6
	// GasChangeCallHash is charged for hashing.
	GasChangeCallHash GasChangeReason = 7
	// GasChangeCallRecover is charged for signature recovery.
	GasChangeCallRecover GasChangeReason = 8
	// GasChangeCallNested is the cost of issuing a nested call, including
	// the gas forwarded to it.
	GasChangeCallNested GasChangeReason = 9
	// GasChangeCallFailedExecution is the burning of the remaining gas when the execution failed without a revert.
	GasChangeCallFailedExecution GasChangeReason = 10

	// GasChangeIgnored is a special value that can be used to indicate that the gas change should be ignored as
	// it will be "manually" tracked by a direct emit of the gas change event.
	GasChangeIgnored GasChangeReason = 0xFF
)
