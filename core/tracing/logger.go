package tracing

import (
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NewLogger returns hooks that write every frame, notification and state
// change to the debug log.
func NewLogger() *Hooks {
	return &Hooks{
		OnEnter: func(depth int, create bool, from common.Address, to common.Address, method string, input []byte, gas uint64, value *uint256.Int) {
			log.Debug("Enter frame", "depth", depth, "create", create, "from", from, "to", to, "method", method, "gas", gas, "value", value)
		},
		OnExit: func(depth int, output []byte, gasUsed uint64, err error, reverted bool) {
			log.Debug("Exit frame", "depth", depth, "gasUsed", gasUsed, "reverted", reverted, "err", err)
		},
		OnNotification: func(n *types.Notification) {
			log.Debug("Notification", "address", n.Address, "name", n.Name, "topics", len(n.Topics))
		},
		OnBalanceChange: func(addr common.Address, prev, new *uint256.Int, reason BalanceChangeReason) {
			log.Debug("Balance change", "address", addr, "prev", prev, "new", new, "reason", reason)
		},
		OnStorageChange: func(addr common.Address, slot, prev, new common.Hash) {
			log.Debug("Storage change", "address", addr, "slot", slot, "prev", prev, "new", new)
		},
	}
}
