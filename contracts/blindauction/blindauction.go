// Package blindauction implements a sealed-bid auction. During bidding only
// commitments keccak256(value, fake, secret) are submitted together with a
// deposit; bids are opened in the reveal window that follows.
package blindauction

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const Name = "blindauction"

const (
	Open fsm.State = iota
	Ended
)

var (
	beneficiarySlot    = vm.Slot(0)
	biddingEndSlot     = vm.Slot(1)
	revealEndSlot      = vm.Slot(2)
	stateSlot          = vm.Slot(3)
	bidsSlot           = vm.Slot(4) // mapping(address => bid[])
	highestBidderSlot  = vm.Slot(5)
	highestBidSlot     = vm.Slot(6)
	pendingReturnsSlot = vm.Slot(7) // mapping(address => uint256)

	machine = fsm.New(stateSlot, "Open", "Ended")
)

// bid field offsets
const (
	blindedField = iota
	depositField
	bidSize
)

var (
	commitArgs   = abi.MustArguments("uint256 value", "bool fake", "bytes32 secret")
	auctionEnded = abi.MustEvent("AuctionEnded", "address winner", "uint256 highestBid")
)

// Commitment returns the blinded bid for value, fake and secret.
func Commitment(value *big.Int, fake bool, secret [32]byte) (common.Hash, error) {
	return abi.PackedHash(commitArgs, value, fake, secret)
}

func bidsKey(addr common.Address) common.Hash {
	return vm.MapKey(bidsSlot, vm.AddressKey(addr))
}

func pendingKey(addr common.Address) common.Hash {
	return vm.MapKey(pendingReturnsSlot, vm.AddressKey(addr))
}

func onlyBefore(slot common.Hash) fsm.Guard {
	return func(ctx *vm.Context, args []interface{}) error {
		if t := ctx.LoadWord(slot); !uint256.NewInt(ctx.Time()).Lt(t) {
			return vm.Revert(vm.ErrInvalidState, "too late, deadline was %s", t)
		}
		return nil
	}
}

func onlyAfter(slot common.Hash) fsm.Guard {
	return func(ctx *vm.Context, args []interface{}) error {
		if t := ctx.LoadWord(slot); !uint256.NewInt(ctx.Time()).Gt(t) {
			return vm.Revert(vm.ErrInvalidState, "too early, wait until after %s", t)
		}
		return nil
	}
}

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	biddingTime, overflow := uint256.FromBig(args[0].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	revealTime, overflow := uint256.FromBig(args[1].(*big.Int))
	if overflow {
		return nil, vm.ErrOverflow
	}
	biddingEnd, err := vm.Add(uint256.NewInt(ctx.Time()), biddingTime)
	if err != nil {
		return nil, err
	}
	revealEnd, err := vm.Add(biddingEnd, revealTime)
	if err != nil {
		return nil, err
	}
	ctx.StoreAddress(beneficiarySlot, args[2].(common.Address))
	ctx.StoreWord(biddingEndSlot, biddingEnd)
	ctx.StoreWord(revealEndSlot, revealEnd)
	return nil, nil
}

// placeBlindBid records a commitment with its deposit. The zero hash marks
// an opened commitment, so it cannot be committed.
func placeBlindBid(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	blinded := common.Hash(args[0].([32]byte))
	if blinded == (common.Hash{}) {
		return nil, vm.Revert(vm.ErrInvalidSignatureOrHash, "empty commitment")
	}
	key := bidsKey(ctx.Caller())
	n := ctx.LoadUint64(key)
	elem := vm.ArrayElem(key, n, bidSize)
	ctx.Store(vm.Field(elem, blindedField), blinded)
	ctx.StoreWord(vm.Field(elem, depositField), ctx.Value())
	ctx.StoreUint64(key, n+1)
	return nil, nil
}

// reveal opens every commitment of the caller. A valid, non-fake bid whose
// deposit covers its value competes for the highest bid; everything else is
// refunded. A reveal that does not match its commitment never counts, but
// its deposit is returned. Each commitment is cleared once opened.
func reveal(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	var (
		values  = args[0].([]*big.Int)
		fakes   = args[1].([]bool)
		secrets = args[2].([][32]byte)
		key     = bidsKey(ctx.Caller())
		length  = ctx.LoadUint64(key)
	)
	if uint64(len(values)) != length || uint64(len(fakes)) != length || uint64(len(secrets)) != length {
		return nil, vm.Revert(vm.ErrBoundsViolation, "have %d bids, revealed %d/%d/%d", length, len(values), len(fakes), len(secrets))
	}
	refund := new(uint256.Int)
	for i := uint64(0); i < length; i++ {
		elem := vm.ArrayElem(key, i, bidSize)
		blinded := ctx.Load(vm.Field(elem, blindedField))
		if blinded == (common.Hash{}) {
			// Already opened.
			continue
		}
		deposit := ctx.LoadWord(vm.Field(elem, depositField))
		var err error
		if refund, err = vm.Add(refund, deposit); err != nil {
			return nil, err
		}
		value, fake, secret := values[i], fakes[i], secrets[i]
		if blinded == ctx.PackedHash(commitArgs, value, fake, secret) && !fake {
			v, overflow := uint256.FromBig(value)
			if !overflow && !deposit.Lt(v) && placeBid(ctx, ctx.Caller(), v) {
				refund.Sub(refund, v)
			}
		}
		ctx.Store(vm.Field(elem, blindedField), common.Hash{})
	}
	if refund.IsZero() {
		return nil, nil
	}
	return nil, ctx.Transfer(ctx.Caller(), refund)
}

// placeBid makes value the highest bid if it beats the current one. The
// previous highest bid becomes withdrawable.
func placeBid(ctx *vm.Context, bidder common.Address, value *uint256.Int) bool {
	highest := ctx.LoadWord(highestBidSlot)
	if !value.Gt(highest) {
		return false
	}
	if prev := ctx.LoadAddress(highestBidderSlot); prev != (common.Address{}) {
		key := pendingKey(prev)
		// Bounded by the total deposits held, which fit in 256 bits.
		ctx.StoreWord(key, new(uint256.Int).Add(ctx.LoadWord(key), highest))
	}
	ctx.StoreWord(highestBidSlot, value)
	ctx.StoreAddress(highestBidderSlot, bidder)
	return true
}

func withdraw(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	key := pendingKey(ctx.Caller())
	amount := ctx.LoadWord(key)
	if amount.IsZero() {
		return nil, nil
	}
	ctx.StoreWord(key, new(uint256.Int))
	return nil, ctx.Transfer(ctx.Caller(), amount)
}

func end(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	highest := ctx.LoadWord(highestBidSlot)
	ctx.Emit(auctionEnded.Name, ctx.LoadAddress(highestBidderSlot), highest.ToBig())
	if highest.IsZero() {
		return nil, nil
	}
	return nil, ctx.Transfer(ctx.LoadAddress(beneficiarySlot), highest)
}

func getter(slot common.Hash, address bool) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		if address {
			return []interface{}{ctx.LoadAddress(slot)}, nil
		}
		return []interface{}{ctx.LoadWord(slot).ToBig()}, nil
	}
}

func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Inputs:  abi.MustArguments("uint256 biddingTime", "uint256 revealTime", "address beneficiary"),
			Handler: construct,
		},
		Methods: []*vm.Method{
			{
				Name:    "bid",
				Inputs:  abi.MustArguments("bytes32 blindedBid"),
				Payable: true,
				Handler: machine.Handler(fsm.Transition{
					Guard:  onlyBefore(biddingEndSlot),
					To:     fsm.Stay,
					Effect: placeBlindBid,
				}),
			},
			{
				Name:   "reveal",
				Inputs: abi.MustArguments("uint256[] values", "bool[] fakes", "bytes32[] secrets"),
				Handler: machine.Handler(fsm.Transition{
					Guard:  fsm.All(onlyAfter(biddingEndSlot), onlyBefore(revealEndSlot)),
					To:     fsm.Stay,
					Effect: reveal,
				}),
			},
			{Name: "withdraw", Handler: withdraw},
			{
				Name: "auctionEnd",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{Open},
					Guard:  onlyAfter(revealEndSlot),
					To:     Ended,
					Effect: end,
				}),
			},
			{Name: "beneficiary", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: getter(beneficiarySlot, true)},
			{Name: "biddingEnd", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: getter(biddingEndSlot, false)},
			{Name: "revealEnd", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: getter(revealEndSlot, false)},
			{Name: "highestBidder", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: getter(highestBidderSlot, true)},
			{Name: "highestBid", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: getter(highestBidSlot, false)},
			{
				Name:     "pendingReturns",
				Inputs:   abi.MustArguments("address bidder"),
				Outputs:  abi.MustArguments("uint256"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadWord(pendingKey(args[0].(common.Address))).ToBig()}, nil
				},
			},
			{
				Name:     "bidCount",
				Inputs:   abi.MustArguments("address bidder"),
				Outputs:  abi.MustArguments("uint256"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{new(big.Int).SetUint64(ctx.LoadUint64(bidsKey(args[0].(common.Address))))}, nil
				},
			},
		},
		Events: []abi.Event{auctionEnded},
	}
}
