// Package receiverpays holds funds that the owner releases by signing
// cheques off-chain. The recipient submits the cheque and is paid.
package receiverpays

import (
	"crypto/ecdsa"
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/ethsig"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const Name = "receiverpays"

const (
	Active fsm.State = iota
	Shutdown
)

var (
	ownerSlot      = vm.Slot(0)
	usedNoncesSlot = vm.Slot(1) // mapping(uint256 => bool)
	stateSlot      = vm.Slot(2)

	machine = fsm.New(stateSlot, "Active", "Shutdown")

	chequeArgs = abi.MustArguments("address recipient", "uint256 amount", "uint256 nonce", "address contract")
)

// ChequeHash is the message the owner signs to pay amount to recipient.
func ChequeHash(recipient common.Address, amount, nonce *big.Int, contract common.Address) (common.Hash, error) {
	return abi.PackedHash(chequeArgs, recipient, amount, nonce, contract)
}

// SignCheque signs a cheque for recipient with the owner's key.
func SignCheque(key *ecdsa.PrivateKey, recipient common.Address, amount, nonce *big.Int, contract common.Address) ([]byte, error) {
	h, err := ChequeHash(recipient, amount, nonce, contract)
	if err != nil {
		return nil, err
	}
	return ethsig.Sign(key, h)
}

func nonceKey(nonce *big.Int) common.Hash {
	return vm.MapKey(usedNoncesSlot, vm.WordKey(uint256.MustFromBig(nonce)))
}

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	ctx.StoreAddress(ownerSlot, ctx.Caller())
	return nil, nil
}

func claimPayment(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	amount, nonce, sig := args[0].(*big.Int), args[1].(*big.Int), args[2].([]byte)
	key := nonceKey(nonce)
	if ctx.LoadBool(key) {
		return nil, vm.Revert(vm.ErrInvalidSignatureOrHash, "nonce %s already used", nonce)
	}
	ctx.StoreBool(key, true)

	h := ctx.PackedHash(chequeArgs, ctx.Caller(), amount, nonce, ctx.Self())
	if !ethsig.Verify(ctx, h, sig, ctx.LoadAddress(ownerSlot)) {
		return nil, vm.Revert(vm.ErrInvalidSignatureOrHash, "cheque not signed by owner")
	}
	v, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, vm.ErrOverflow
	}
	return nil, ctx.Transfer(ctx.Caller(), v)
}

func shutdown(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	balance := ctx.Balance(ctx.Self())
	if balance.IsZero() {
		return nil, nil
	}
	return nil, ctx.Transfer(ctx.Caller(), balance)
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Payable: true,
			Handler: construct,
		},
		Receive: machine.Handler(fsm.Transition{From: []fsm.State{Active}, To: fsm.Stay}),
		Methods: []*vm.Method{
			{
				Name:   "claimPayment",
				Inputs: abi.MustArguments("uint256 amount", "uint256 nonce", "bytes signature"),
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Active},
					To:     fsm.Stay,
					Effect: claimPayment,
				}),
			},
			{
				Name: "shutdown",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Active},
					Guard:  fsm.OnlyRole(ownerSlot, "owner"),
					To:     Shutdown,
					Effect: shutdown,
				}),
			},
			{
				Name:     "owner",
				Outputs:  abi.MustArguments("address"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadAddress(ownerSlot)}, nil
				},
			},
			{
				Name:     "usedNonce",
				Inputs:   abi.MustArguments("uint256 nonce"),
				Outputs:  abi.MustArguments("bool"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadBool(nonceKey(args[0].(*big.Int)))}, nil
				},
			},
		},
	}
}
