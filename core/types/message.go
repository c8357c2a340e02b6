package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Message is one top-level call submitted to the runtime.
type Message struct {
	From common.Address
	// To is nil for contract creation.
	To *common.Address
	// Contract names the definition to deploy when To is nil.
	Contract string
	// Method is the entry point. Empty means a plain value transfer.
	Method string
	// Input is the typed encoding of the entry point arguments.
	Input []byte
	Value *uint256.Int
	// Gas is the computational budget; zero selects the configured limit.
	Gas uint64
	// Time is the external clock value, strictly increasing across
	// committed calls.
	Time uint64
	// AutoTime runs the message one tick after the last committed call,
	// ignoring Time.
	AutoTime bool
}

// IsCreate reports whether the message deploys a contract.
func (m *Message) IsCreate() bool { return m.To == nil }

// CallValue returns the attached value, never nil.
func (m *Message) CallValue() *uint256.Int {
	if m.Value == nil {
		return new(uint256.Int)
	}
	return m.Value
}
