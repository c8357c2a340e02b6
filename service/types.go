package service

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallArgs describes a deployment or a call. Arguments are given either
// encoded in Input or as text in Params, which the server encodes against
// the method signature.
type CallArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Contract string          `json:"contract,omitempty"`
	Method   string          `json:"method,omitempty"`
	Input    hexutil.Bytes   `json:"input,omitempty"`
	Params   []string        `json:"params,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Gas      hexutil.Uint64  `json:"gas,omitempty"`
	// Time zero means one past the last committed call.
	Time hexutil.Uint64 `json:"time,omitempty"`
}

// Result is a receipt with the decoded return values.
type Result struct {
	*types.Receipt
	Outputs []string `json:"outputs,omitempty"`
}

type Account struct {
	Address  common.Address `json:"address"`
	Balance  *hexutil.Big   `json:"balance"`
	Nonce    hexutil.Uint64 `json:"nonce"`
	Contract string         `json:"contract,omitempty"`
}

type MethodInfo struct {
	Name      string   `json:"name"`
	Signature string   `json:"signature"`
	Inputs    []string `json:"inputs,omitempty"`
	Outputs   []string `json:"outputs,omitempty"`
	Payable   bool     `json:"payable,omitempty"`
	ReadOnly  bool     `json:"readOnly,omitempty"`
}

type ContractInfo struct {
	Name        string       `json:"name"`
	Constructor []string     `json:"constructor,omitempty"`
	Receive     bool         `json:"receive,omitempty"`
	Methods     []MethodInfo `json:"methods"`
	Events      []string     `json:"events,omitempty"`
}

// NotificationMessage is one frame of the notification stream.
type NotificationMessage struct {
	Subscription string              `json:"subscription"`
	Notification *types.Notification `json:"notification"`
}

func declarations(args abi.Arguments) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		out = append(out, arg.Type.String()+" "+arg.Name)
	}
	return out
}

func describe(def *vm.Definition) ContractInfo {
	info := ContractInfo{Name: def.Name, Receive: def.Receive != nil}
	if def.Constructor != nil {
		info.Constructor = declarations(def.Constructor.Inputs)
	}
	for _, m := range def.Methods {
		if m.Visibility == vm.Internal {
			continue
		}
		info.Methods = append(info.Methods, MethodInfo{
			Name:      m.Name,
			Signature: m.Signature(),
			Inputs:    declarations(m.Inputs),
			Outputs:   declarations(m.Outputs),
			Payable:   m.Payable,
			ReadOnly:  m.ReadOnly,
		})
	}
	for _, ev := range def.Events {
		info.Events = append(info.Events, ev.Sig)
	}
	return info
}
