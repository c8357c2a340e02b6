package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	ReceiptStatusFailed     = uint64(0)
	ReceiptStatusSuccessful = uint64(1)
)

// Receipt is the outcome of one top-level call.
type Receipt struct {
	Status          uint64          `json:"status"`
	ContractAddress *common.Address `json:"contractAddress,omitempty"`
	Return          hexutil.Bytes   `json:"return"`
	GasUsed         uint64          `json:"gasUsed"`
	Time            uint64          `json:"time"`
	Notifications   []*Notification `json:"notifications"`

	// Kind classifies a failure; Reason carries the diagnostic message.
	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
	// Err is the execution error behind Kind and Reason.
	Err error `json:"-"`
}

func (r *Receipt) Failed() bool { return r.Status == ReceiptStatusFailed }

// Notification is a structured record emitted by a contract for external
// observers. Topics hold the event id followed by the indexed fields; Data
// is the typed encoding of the remaining fields.
type Notification struct {
	Address common.Address `json:"address"`
	Name    string         `json:"name"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
	// Index is the position within the emitting call.
	Index uint `json:"index"`
	// Time is the clock value of the call that emitted it.
	Time uint64 `json:"time"`
}
