// Package channel implements a unidirectional payment channel. The sender
// locks funds and hands the recipient signed, ever larger cumulative
// amounts off-chain; the recipient closes the channel with the best one.
package channel

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

const Name = "channel"

const (
	Open fsm.State = iota
	Closed
)

var (
	senderSlot     = vm.Slot(0)
	recipientSlot  = vm.Slot(1)
	expirationSlot = vm.Slot(2)
	stateSlot      = vm.Slot(3)

	machine = fsm.New(stateSlot, "Open", "Closed")

	paymentArgs = abi.MustArguments("address channel", "uint256 amount")

	channelClosed = abi.MustEvent("ChannelClosed", "uint256 paid", "uint256 refunded")
)

// PaymentHash is the message the sender signs to owe amount in total.
func PaymentHash(channel common.Address, amount *big.Int) (common.Hash, error) {
	return abi.PackedHash(paymentArgs, channel, amount)
}

// SignPayment authorises the recipient of channel to claim amount.
func SignPayment(key *ecdsa.PrivateKey, channel common.Address, amount *big.Int) ([]byte, error) {
	h, err := PaymentHash(channel, amount)
	if err != nil {
		return nil, err
	}
	return ethsig.Sign(key, h)
}

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	duration, overflow := uint256.FromBig(args[1].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	expiration, err := vm.Add(uint256.NewInt(ctx.Time()), duration)
	if err != nil {
		return nil, err
	}
	ctx.StoreAddress(senderSlot, ctx.Caller())
	ctx.StoreAddress(recipientSlot, args[0].(common.Address))
	ctx.StoreWord(expirationSlot, expiration)
	return nil, nil
}

func validSignature(ctx *vm.Context, args []interface{}) error {
	amount, sig := args[0].(*big.Int), args[1].([]byte)
	h := ctx.PackedHash(paymentArgs, ctx.Self(), amount)
	if !ethsig.Verify(ctx, h, sig, ctx.LoadAddress(senderSlot)) {
		return vm.Revert(vm.ErrInvalidSignatureOrHash, "payment of %s not signed by sender", amount)
	}
	return nil
}

// settle pays amount to the recipient and the remainder back to the sender.
func settle(ctx *vm.Context, amount *uint256.Int) error {
	balance := ctx.Balance(ctx.Self())
	if balance.Lt(amount) {
		return vm.Revert(vm.ErrInsufficientBalance, "channel holds %s, claimed %s", balance, amount)
	}
	rest := new(uint256.Int).Sub(balance, amount)
	ctx.Emit(channelClosed.Name, amount.ToBig(), rest.ToBig())
	if !amount.IsZero() {
		if err := ctx.Transfer(ctx.LoadAddress(recipientSlot), amount); err != nil {
			return err
		}
	}
	if !rest.IsZero() {
		return ctx.Transfer(ctx.LoadAddress(senderSlot), rest)
	}
	return nil
}

func closeChannel(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	amount, overflow := uint256.FromBig(args[0].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	return nil, settle(ctx, amount)
}

func extend(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	next, overflow := uint256.FromBig(args[0].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	if cur := ctx.LoadWord(expirationSlot); !next.Gt(cur) {
		return nil, vm.Revert(vm.ErrInvalidValue, "expiration %s does not extend %s", next, cur)
	}
	ctx.StoreWord(expirationSlot, next)
	return nil, nil
}

func expired(ctx *vm.Context, args []interface{}) error {
	if exp := ctx.LoadWord(expirationSlot); uint256.NewInt(ctx.Time()).Lt(exp) {
		return vm.Revert(vm.ErrInvalidState, "channel open until %s", exp)
	}
	return nil
}

func claimTimeout(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return nil, settle(ctx, new(uint256.Int))
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Inputs:  abi.MustArguments("address recipient", "uint256 duration"),
			Payable: true,
			Handler: construct,
		},
		Methods: []*vm.Method{
			{
				Name:   "close",
				Inputs: abi.MustArguments("uint256 amount", "bytes signature"),
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  fsm.All(fsm.OnlyRole(recipientSlot, "recipient"), validSignature),
					To:     Closed,
					Effect: closeChannel,
				}),
			},
			{
				Name:   "extend",
				Inputs: abi.MustArguments("uint256 newExpiration"),
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  fsm.OnlyRole(senderSlot, "sender"),
					To:     fsm.Stay,
					Effect: extend,
				}),
			},
			{
				Name: "claimTimeout",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  expired,
					To:     Closed,
					Effect: claimTimeout,
				}),
			},
			{
				Name:     "isValidSignature",
				Inputs:   abi.MustArguments("uint256 amount", "bytes signature"),
				Outputs:  abi.MustArguments("bool"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{validSignature(ctx, args) == nil}, nil
				},
			},
			{Name: "sender", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: addressGetter(senderSlot)},
			{Name: "recipient", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: addressGetter(recipientSlot)},
			{
				Name:     "expiration",
				Outputs:  abi.MustArguments("uint256"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadWord(expirationSlot).ToBig()}, nil
				},
			},
			{
				Name:     "closed",
				Outputs:  abi.MustArguments("bool"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{machine.Current(ctx) == Closed}, nil
				},
			},
		},
		Events: []abi.Event{channelClosed},
	}
}

func addressGetter(slot common.Hash) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.LoadAddress(slot)}, nil
	}
}
