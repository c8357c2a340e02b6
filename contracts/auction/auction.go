// Package auction implements an open auction. Outbid bidders are not paid
// back directly; their bids become withdrawable balances.
package auction

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const Name = "auction"

const (
	Open fsm.State = iota
	Ended
)

var (
	beneficiarySlot    = vm.Slot(0)
	endTimeSlot        = vm.Slot(1)
	highestBidderSlot  = vm.Slot(2)
	highestBidSlot     = vm.Slot(3)
	pendingReturnsSlot = vm.Slot(4) // mapping(address => uint256)
	stateSlot          = vm.Slot(5)

	machine = fsm.New(stateSlot, "Open", "Ended")
)

var (
	highestBidIncreased = abi.MustEvent("HighestBidIncreased", "address bidder", "uint256 amount")
	auctionEnded        = abi.MustEvent("AuctionEnded", "address winner", "uint256 amount")
)

func pendingKey(addr common.Address) common.Hash {
	return vm.MapKey(pendingReturnsSlot, vm.AddressKey(addr))
}

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	biddingTime, overflow := uint256.FromBig(args[0].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	end, err := vm.Add(uint256.NewInt(ctx.Time()), biddingTime)
	if err != nil {
		return nil, err
	}
	ctx.StoreAddress(beneficiarySlot, args[1].(common.Address))
	ctx.StoreWord(endTimeSlot, end)
	return nil, nil
}

// beforeEnd rejects calls after the bidding period.
func beforeEnd(ctx *vm.Context, args []interface{}) error {
	if uint256.NewInt(ctx.Time()).Gt(ctx.LoadWord(endTimeSlot)) {
		return vm.Revert(vm.ErrInvalidState, "auction already ended")
	}
	return nil
}

func afterEnd(ctx *vm.Context, args []interface{}) error {
	if uint256.NewInt(ctx.Time()).Lt(ctx.LoadWord(endTimeSlot)) {
		return vm.Revert(vm.ErrInvalidState, "auction not yet ended")
	}
	return nil
}

func highEnough(ctx *vm.Context, args []interface{}) error {
	if highest := ctx.LoadWord(highestBidSlot); !ctx.Value().Gt(highest) {
		return vm.Revert(vm.ErrInvalidValue, "there already is a higher or equal bid of %s", highest)
	}
	return nil
}

func bid(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	highest := ctx.LoadWord(highestBidSlot)
	if !highest.IsZero() {
		// The outbid amount becomes withdrawable.
		prev := pendingKey(ctx.LoadAddress(highestBidderSlot))
		total, err := vm.Add(ctx.LoadWord(prev), highest)
		if err != nil {
			return nil, err
		}
		ctx.StoreWord(prev, total)
	}
	ctx.StoreAddress(highestBidderSlot, ctx.Caller())
	ctx.StoreWord(highestBidSlot, ctx.Value())
	ctx.Emit(highestBidIncreased.Name, ctx.Caller(), ctx.Value().ToBig())
	return nil, nil
}

// withdraw pays out an overbid amount. The balance is cleared before the
// payment so that a re-entering recipient finds nothing left.
func withdraw(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	key := pendingKey(ctx.Caller())
	amount := ctx.LoadWord(key)
	if amount.IsZero() {
		return []interface{}{true}, nil
	}
	ctx.StoreWord(key, new(uint256.Int))
	if !ctx.Send(ctx.Caller(), amount) {
		ctx.StoreWord(key, amount)
		return []interface{}{false}, nil
	}
	return []interface{}{true}, nil
}

func end(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	highest := ctx.LoadWord(highestBidSlot)
	ctx.Emit(auctionEnded.Name, ctx.LoadAddress(highestBidderSlot), highest.ToBig())
	return nil, ctx.Transfer(ctx.LoadAddress(beneficiarySlot), highest)
}

func addressGetter(slot common.Hash) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.LoadAddress(slot)}, nil
	}
}

func wordGetter(slot common.Hash) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		return []interface{}{ctx.LoadWord(slot).ToBig()}, nil
	}
}

func pendingReturns(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.LoadWord(pendingKey(args[0].(common.Address))).ToBig()}, nil
}

func ended(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return []interface{}{machine.Current(ctx) == Ended}, nil
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Inputs:  abi.MustArguments("uint256 biddingTime", "address beneficiary"),
			Handler: construct,
		},
		Methods: []*vm.Method{
			{
				Name:    "bid",
				Payable: true,
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  fsm.All(beforeEnd, highEnough),
					To:     fsm.Stay,
					Effect: bid,
				}),
			},
			{Name: "withdraw", Outputs: abi.MustArguments("bool"), Handler: withdraw},
			{
				Name: "auctionEnd",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  afterEnd,
					To:     Ended,
					Effect: end,
				}),
			},
			{Name: "beneficiary", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: addressGetter(beneficiarySlot)},
			{Name: "auctionEndTime", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: wordGetter(endTimeSlot)},
			{Name: "highestBidder", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: addressGetter(highestBidderSlot)},
			{Name: "highestBid", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: wordGetter(highestBidSlot)},
			{Name: "pendingReturns", Inputs: abi.MustArguments("address bidder"), Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: pendingReturns},
			{Name: "ended", Outputs: abi.MustArguments("bool"), ReadOnly: true, Handler: ended},
		},
		Events: []abi.Event{highestBidIncreased, auctionEnded},
	}
}
