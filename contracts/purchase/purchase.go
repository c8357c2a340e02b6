// Package purchase implements a two-party escrow for a single item. Both
// seller and buyer lock twice the price, so each of them loses money if
// the trade does not complete.
package purchase

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const Name = "purchase"

const (
	Created fsm.State = iota
	Locked
	Released
	Inactive
)

var (
	stateSlot  = vm.Slot(0)
	priceSlot  = vm.Slot(1)
	sellerSlot = vm.Slot(2)
	buyerSlot  = vm.Slot(3)

	machine = fsm.New(stateSlot, "Created", "Locked", "Released", "Inactive")

	onlySeller = fsm.OnlyRole(sellerSlot, "seller")
	onlyBuyer  = fsm.OnlyRole(buyerSlot, "buyer")
)

var (
	aborted           = abi.MustEvent("Aborted")
	purchaseConfirmed = abi.MustEvent("PurchaseConfirmed")
	itemReceived      = abi.MustEvent("ItemReceived")
	sellerRefunded    = abi.MustEvent("SellerRefunded")
)

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	value := ctx.Value()
	if value.Uint64()&1 == 1 {
		return nil, vm.Revert(vm.ErrInvalidValue, "value %s is not even", value)
	}
	ctx.StoreWord(priceSlot, value.Rsh(value, 1))
	ctx.StoreAddress(sellerSlot, ctx.Caller())
	return nil, nil
}

func price(ctx *vm.Context) *uint256.Int {
	return ctx.LoadWord(priceSlot)
}

// times returns n·price. The deposits already held bound the result.
func times(ctx *vm.Context, n uint64) *uint256.Int {
	return new(uint256.Int).Mul(price(ctx), uint256.NewInt(n))
}

func exactDeposit(ctx *vm.Context, args []interface{}) error {
	if want := times(ctx, 2); !ctx.Value().Eq(want) {
		return vm.Revert(vm.ErrInvalidValue, "deposit must be %s, have %s", want, ctx.Value())
	}
	return nil
}

func abort(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	ctx.Emit(aborted.Name)
	return nil, ctx.Transfer(ctx.LoadAddress(sellerSlot), ctx.Balance(ctx.Self()))
}

func confirmPurchase(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	ctx.Emit(purchaseConfirmed.Name)
	ctx.StoreAddress(buyerSlot, ctx.Caller())
	return nil, nil
}

func confirmReceived(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	ctx.Emit(itemReceived.Name)
	return nil, ctx.Transfer(ctx.LoadAddress(buyerSlot), price(ctx))
}

func refundSeller(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	ctx.Emit(sellerRefunded.Name)
	return nil, ctx.Transfer(ctx.LoadAddress(sellerSlot), times(ctx, 3))
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Payable: true,
			Handler: construct,
		},
		Methods: []*vm.Method{
			{
				Name: "abort",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Created},
					Guard:  onlySeller,
					To:     Inactive,
					Effect: abort,
				}),
			},
			{
				Name:    "confirmPurchase",
				Payable: true,
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Created},
					Guard:  exactDeposit,
					To:     Locked,
					Effect: confirmPurchase,
				}),
			},
			{
				Name: "confirmReceived",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Locked},
					Guard:  onlyBuyer,
					To:     Released,
					Effect: confirmReceived,
				}),
			},
			{
				Name: "refundSeller",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Released},
					Guard:  onlySeller,
					To:     Inactive,
					Effect: refundSeller,
				}),
			},
			{
				Name:     "state",
				Outputs:  abi.MustArguments("string"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{machine.Name(machine.Current(ctx))}, nil
				},
			},
			{
				Name:     "value",
				Outputs:  abi.MustArguments("uint256"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{price(ctx).ToBig()}, nil
				},
			},
			{Name: "seller", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: party(sellerSlot)},
			{Name: "buyer", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: party(buyerSlot)},
		},
		Events: []abi.Event{aborted, purchaseConfirmed, itemReceived, sellerRefunded},
	}
}

func party(slot common.Hash) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.LoadAddress(slot)}, nil
	}
}
