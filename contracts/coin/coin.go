// Package coin is a minimal token: the creator mints, holders send.
package coin

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const Name = "coin"

var (
	minterSlot   = vm.Slot(0)
	balancesSlot = vm.Slot(1) // mapping(address => uint256)

	sent = abi.MustEvent("Sent", "address from", "address to", "uint256 amount")
)

func balanceKey(addr common.Address) common.Hash {
	return vm.MapKey(balancesSlot, vm.AddressKey(addr))
}

func amountArg(v interface{}) (*uint256.Int, error) {
	amount, overflow := uint256.FromBig(v.(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	return amount, nil
}

func mint(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, err
	}
	key := balanceKey(args[0].(common.Address))
	total, err := vm.Add(ctx.LoadWord(key), amount)
	if err != nil {
		return nil, err
	}
	ctx.StoreWord(key, total)
	return nil, nil
}

func send(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	receiver := args[0].(common.Address)
	amount, err := amountArg(args[1])
	if err != nil {
		return nil, err
	}
	from := balanceKey(ctx.Caller())
	available := ctx.LoadWord(from)
	if available.Lt(amount) {
		return nil, vm.Revert(vm.ErrInsufficientBalance, "requested %s, available %s", amount, available)
	}
	ctx.StoreWord(from, new(uint256.Int).Sub(available, amount))
	to := balanceKey(receiver)
	total, err := vm.Add(ctx.LoadWord(to), amount)
	if err != nil {
		return nil, err
	}
	ctx.StoreWord(to, total)
	ctx.Emit(sent.Name, ctx.Caller(), receiver, amount.ToBig())
	return nil, nil
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
				ctx.StoreAddress(minterSlot, ctx.Caller())
				return nil, nil
			},
		},
		Methods: []*vm.Method{
			{
				Name:   "mint",
				Inputs: abi.MustArguments("address receiver", "uint256 amount"),
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					if err := fsm.OnlyRole(minterSlot, "minter")(ctx, args); err != nil {
						return nil, err
					}
					return mint(ctx, args)
				},
			},
			{
				Name:    "send",
				Inputs:  abi.MustArguments("address receiver", "uint256 amount"),
				Handler: send,
			},
			{
				Name:     "minter",
				Outputs:  abi.MustArguments("address"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadAddress(minterSlot)}, nil
				},
			},
			{
				Name:     "balances",
				Inputs:   abi.MustArguments("address account"),
				Outputs:  abi.MustArguments("uint256"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadWord(balanceKey(args[0].(common.Address))).ToBig()}, nil
				},
			},
		},
		Events: []abi.Event{sent},
	}
}
