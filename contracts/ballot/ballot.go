// Package ballot implements voting with delegation. The chairperson grants
// the right to vote; voters either vote for a proposal or delegate their
// weight along a chain of other voters.
package ballot

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Name is the definition name used to deploy ballots.
const Name = "ballot"

// Storage layout.
var (
	chairpersonSlot = vm.Slot(0)
	votersSlot      = vm.Slot(1) // mapping(address => voter)
	proposalsSlot   = vm.Slot(2) // proposal[]
	voterCountSlot  = vm.Slot(3)
)

// voter field offsets
const (
	weightField = iota
	votedField
	delegateField
	voteField
)

// proposal field offsets
const (
	nameField = iota
	countField
	proposalSize
)

type voter struct {
	base     common.Hash
	weight   *uint256.Int
	voted    bool
	delegate common.Address
	vote     *uint256.Int
}

func loadVoter(ctx *vm.Context, addr common.Address) *voter {
	base := vm.MapKey(votersSlot, vm.AddressKey(addr))
	return &voter{
		base:     base,
		weight:   ctx.LoadWord(vm.Field(base, weightField)),
		voted:    ctx.LoadBool(vm.Field(base, votedField)),
		delegate: ctx.LoadAddress(vm.Field(base, delegateField)),
		vote:     ctx.LoadWord(vm.Field(base, voteField)),
	}
}

func (v *voter) store(ctx *vm.Context) {
	ctx.StoreWord(vm.Field(v.base, weightField), v.weight)
	ctx.StoreBool(vm.Field(v.base, votedField), v.voted)
	ctx.StoreAddress(vm.Field(v.base, delegateField), v.delegate)
	ctx.StoreWord(vm.Field(v.base, voteField), v.vote)
}

func proposalBase(i uint64) common.Hash {
	return vm.ArrayElem(proposalsSlot, i, proposalSize)
}

// proposalIndex validates a proposal index against the stored length.
func proposalIndex(ctx *vm.Context, idx *big.Int) (uint64, error) {
	count := ctx.LoadUint64(proposalsSlot)
	if !idx.IsUint64() || idx.Uint64() >= count {
		return 0, vm.Revert(vm.ErrBoundsViolation, "proposal %s of %d", idx, count)
	}
	return idx.Uint64(), nil
}

func addVotes(ctx *vm.Context, proposal uint64, weight *uint256.Int) error {
	slot := vm.Field(proposalBase(proposal), countField)
	count, err := vm.Add(ctx.LoadWord(slot), weight)
	if err != nil {
		return err
	}
	ctx.StoreWord(slot, count)
	return nil
}

func construct(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	names := args[0].([][32]byte)
	chair := ctx.Caller()
	ctx.StoreAddress(chairpersonSlot, chair)

	v := loadVoter(ctx, chair)
	v.weight = uint256.NewInt(1)
	v.store(ctx)
	ctx.StoreUint64(voterCountSlot, 1)

	ctx.StoreUint64(proposalsSlot, uint64(len(names)))
	for i, name := range names {
		ctx.Store(vm.Field(proposalBase(uint64(i)), nameField), common.Hash(name))
	}
	return nil, nil
}

func giveRightToVote(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	addr := args[0].(common.Address)
	if ctx.Caller() != ctx.LoadAddress(chairpersonSlot) {
		return nil, vm.Revert(vm.ErrUnauthorized, "only chairperson can give right to vote")
	}
	v := loadVoter(ctx, addr)
	if v.voted {
		return nil, vm.Revert(vm.ErrInvalidState, "the voter already voted")
	}
	if !v.weight.IsZero() {
		return nil, vm.Revert(vm.ErrInvalidState, "the voter already has the right to vote")
	}
	v.weight = uint256.NewInt(1)
	v.store(ctx)
	ctx.StoreUint64(voterCountSlot, ctx.LoadUint64(voterCountSlot)+1)
	return nil, nil
}

func delegate(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	to := args[0].(common.Address)
	self := ctx.Caller()
	sender := loadVoter(ctx, self)
	if sender.weight.IsZero() {
		return nil, vm.Revert(vm.ErrUnauthorized, "you have no right to vote")
	}
	if sender.voted {
		return nil, vm.Revert(vm.ErrInvalidState, "you already voted")
	}
	if to == self {
		return nil, vm.Revert(vm.ErrDelegationCycle, "self-delegation is disallowed")
	}

	// Follow the chain to its end. No chain can be longer than the number
	// of voters without revisiting someone.
	limit := ctx.LoadUint64(voterCountSlot)
	for steps := uint64(0); ; steps++ {
		next := ctx.LoadAddress(vm.Field(vm.MapKey(votersSlot, vm.AddressKey(to)), delegateField))
		if next == (common.Address{}) {
			break
		}
		to = next
		if to == self {
			return nil, vm.Revert(vm.ErrDelegationCycle, "found loop in delegation")
		}
		if steps >= limit {
			return nil, vm.Revert(vm.ErrDelegationCycle, "delegation chain longer than %d voters", limit)
		}
	}

	target := loadVoter(ctx, to)
	if target.weight.IsZero() {
		return nil, vm.Revert(vm.ErrInvalidState, "cannot delegate to %v without the right to vote", to)
	}
	sender.voted = true
	sender.delegate = to
	sender.store(ctx)

	if target.voted {
		// The delegate already voted: add to the tally directly.
		return nil, addVotes(ctx, target.vote.Uint64(), sender.weight)
	}
	weight, err := vm.Add(target.weight, sender.weight)
	if err != nil {
		return nil, err
	}
	target.weight = weight
	target.store(ctx)
	return nil, nil
}

func vote(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	sender := loadVoter(ctx, ctx.Caller())
	if sender.weight.IsZero() {
		return nil, vm.Revert(vm.ErrUnauthorized, "has no right to vote")
	}
	if sender.voted {
		return nil, vm.Revert(vm.ErrInvalidState, "already voted")
	}
	idx, err := proposalIndex(ctx, args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	sender.voted = true
	sender.vote = uint256.NewInt(idx)
	sender.store(ctx)
	return nil, addVotes(ctx, idx, sender.weight)
}

// winning scans all proposals; a later proposal wins only with strictly more
// votes, so ties go to the lowest index.
func winning(ctx *vm.Context) uint64 {
	var (
		winner uint64
		best   = new(uint256.Int)
	)
	count := ctx.LoadUint64(proposalsSlot)
	for i := uint64(0); i < count; i++ {
		votes := ctx.LoadWord(vm.Field(proposalBase(i), countField))
		if votes.Gt(best) {
			best = votes
			winner = i
		}
	}
	return winner
}

func winningProposal(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return []interface{}{new(big.Int).SetUint64(winning(ctx))}, nil
}

func winnerName(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	idx, err := proposalIndex(ctx, new(big.Int).SetUint64(winning(ctx)))
	if err != nil {
		return nil, err
	}
	return []interface{}{[32]byte(ctx.Load(vm.Field(proposalBase(idx), nameField)))}, nil
}

func chairperson(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return []interface{}{ctx.LoadAddress(chairpersonSlot)}, nil
}

func proposalCount(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	return []interface{}{new(big.Int).SetUint64(ctx.LoadUint64(proposalsSlot))}, nil
}

func proposal(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	idx, err := proposalIndex(ctx, args[0].(*big.Int))
	if err != nil {
		return nil, err
	}
	base := proposalBase(idx)
	return []interface{}{
		[32]byte(ctx.Load(vm.Field(base, nameField))),
		ctx.LoadWord(vm.Field(base, countField)).ToBig(),
	}, nil
}

func voterInfo(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
	v := loadVoter(ctx, args[0].(common.Address))
	return []interface{}{v.weight.ToBig(), v.voted, v.delegate, v.vote.ToBig()}, nil
}

// Definition returns the ballot contract.
func Definition() *vm.Definition {
	return &vm.Definition{
		Name: Name,
		Constructor: &vm.Method{
			Inputs:  abi.MustArguments("bytes32[] proposalNames"),
			Handler: construct,
		},
		Methods: []*vm.Method{
			{Name: "giveRightToVote", Inputs: abi.MustArguments("address voter"), Handler: giveRightToVote},
			{Name: "delegate", Inputs: abi.MustArguments("address to"), Handler: delegate},
			{Name: "vote", Inputs: abi.MustArguments("uint256 proposal"), Handler: vote},
			{
				Name:       "winningProposal",
				Outputs:    abi.MustArguments("uint256 winningProposal"),
				Visibility: vm.Public,
				ReadOnly:   true,
				Handler:    winningProposal,
			},
			{Name: "winnerName", Outputs: abi.MustArguments("bytes32 winnerName"), ReadOnly: true, Handler: winnerName},
			{Name: "chairperson", Outputs: abi.MustArguments("address"), ReadOnly: true, Handler: chairperson},
			{Name: "proposalCount", Outputs: abi.MustArguments("uint256"), ReadOnly: true, Handler: proposalCount},
			{
				Name:     "proposals",
				Inputs:   abi.MustArguments("uint256 index"),
				Outputs:  abi.MustArguments("bytes32 name", "uint256 voteCount"),
				ReadOnly: true,
				Handler:  proposal,
			},
			{
				Name:     "voters",
				Inputs:   abi.MustArguments("address voter"),
				Outputs:  abi.MustArguments("uint256 weight", "bool voted", "address delegate", "uint256 vote"),
				ReadOnly: true,
				Handler:  voterInfo,
			},
		},
	}
}
