package ballot_test

import (
	"fadingrose/rosy-ledger/contracts/ballot"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/core/vm"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	chair = common.HexToAddress("0xc0")
	a     = common.HexToAddress("0xa1")
	b     = common.HexToAddress("0xb2")
	c     = common.HexToAddress("0xc3")
	d     = common.HexToAddress("0xd4")
)

func names(ns ...string) [][32]byte {
	out := make([][32]byte, len(ns))
	for i, n := range ns {
		copy(out[i][:], n)
	}
	return out
}

func setup(t *testing.T, proposals ...string) (*contracttest.Env, common.Address) {
	env := contracttest.New(t, nil, chair, a, b, c, d)
	addr := env.Deploy(chair, ballot.Name, nil, names(proposals...))
	for _, v := range []common.Address{a, b, c} {
		env.MustInvoke(chair, addr, "giveRightToVote", nil, v)
	}
	return env, addr
}

func TestDelegationChainAccumulatesWeight(t *testing.T) {
	env, addr := setup(t, "zero", "one", "two")

	env.MustInvoke(a, addr, "delegate", nil, b)
	env.MustInvoke(b, addr, "delegate", nil, c)
	env.MustInvoke(c, addr, "vote", nil, contracttest.Big(1))

	outs := env.View(addr, "proposals", contracttest.Big(1))
	require.Equal(t, names("one")[0], outs[0])
	contracttest.RequireBig(t, 3, outs[1])

	contracttest.RequireBig(t, 1, env.View(addr, "winningProposal")[0])
	require.Equal(t, names("one")[0], env.View(addr, "winnerName")[0])

	// a's entry records where its weight went.
	outs = env.View(addr, "voters", a)
	require.Equal(t, true, outs[1])
	require.Equal(t, c, outs[2])
}

func TestDelegateToVoterWhoVoted(t *testing.T) {
	env, addr := setup(t, "zero", "one")

	env.MustInvoke(b, addr, "vote", nil, contracttest.Big(0))
	env.MustInvoke(a, addr, "delegate", nil, b)
	contracttest.RequireBig(t, 2, env.View(addr, "proposals", contracttest.Big(0))[1])
}

func TestDelegationCycle(t *testing.T) {
	env, addr := setup(t, "zero")

	env.RequireFailure(vm.ErrDelegationCycle, a, addr, "delegate", nil, a)

	env.MustInvoke(b, addr, "delegate", nil, a)
	receipt := env.RequireFailure(vm.ErrDelegationCycle, a, addr, "delegate", nil, b)
	require.Equal(t, "DelegationCycle", receipt.Kind)

	// Nothing was recorded for the failed delegation.
	outs := env.View(addr, "voters", a)
	contracttest.RequireBig(t, 2, outs[0])
	require.Equal(t, false, outs[1])
}

func TestTieGoesToLowestIndex(t *testing.T) {
	env, addr := setup(t, "zero", "one", "two")

	env.MustInvoke(a, addr, "vote", nil, contracttest.Big(2))
	env.MustInvoke(b, addr, "vote", nil, contracttest.Big(1))
	contracttest.RequireBig(t, 1, env.View(addr, "winningProposal")[0])

	env.MustInvoke(c, addr, "vote", nil, contracttest.Big(2))
	contracttest.RequireBig(t, 2, env.View(addr, "winningProposal")[0])
}

func TestGuards(t *testing.T) {
	env, addr := setup(t, "zero", "one")

	env.RequireFailure(vm.ErrUnauthorized, a, addr, "giveRightToVote", nil, d)
	env.RequireFailure(vm.ErrInvalidState, chair, addr, "giveRightToVote", nil, a)
	env.RequireFailure(vm.ErrUnauthorized, d, addr, "vote", nil, contracttest.Big(0))
	env.RequireFailure(vm.ErrBoundsViolation, a, addr, "vote", nil, contracttest.Big(2))
	env.RequireFailure(vm.ErrInvalidState, a, addr, "delegate", nil, d)

	env.MustInvoke(a, addr, "vote", nil, contracttest.Big(0))
	env.RequireFailure(vm.ErrInvalidState, a, addr, "vote", nil, contracttest.Big(1))
	env.RequireFailure(vm.ErrInvalidState, chair, addr, "giveRightToVote", nil, a)
	env.RequireFailure(vm.ErrInvalidState, a, addr, "delegate", nil, b)
}

func TestGetters(t *testing.T) {
	env, addr := setup(t, "zero", "one")

	require.Equal(t, chair, env.View(addr, "chairperson")[0])
	contracttest.RequireBig(t, 2, env.View(addr, "proposalCount")[0])
	contracttest.RequireBig(t, 1, env.View(addr, "voters", chair)[0])
	env.RequireFailure(vm.ErrBoundsViolation, a, addr, "proposals", nil, contracttest.Big(5))
}

func TestEmptyBallotHasNoWinnerName(t *testing.T) {
	env := contracttest.New(t, nil, chair)
	addr := env.Deploy(chair, ballot.Name, nil, names())
	contracttest.RequireBig(t, 0, env.View(addr, "winningProposal")[0])
	env.RequireFailure(vm.ErrBoundsViolation, chair, addr, "winnerName", nil)
}
