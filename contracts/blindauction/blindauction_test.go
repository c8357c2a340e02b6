package blindauction_test

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/blindauction"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	beneficiary = common.HexToAddress("0xbe")
	bidder1     = common.HexToAddress("0xb1")
	bidder2     = common.HexToAddress("0xb2")
)

type sealed struct {
	value  uint64
	fake   bool
	secret [32]byte
}

func secret(s string) [32]byte {
	return crypto.Keccak256Hash([]byte(s))
}

func (s sealed) commitment(t *testing.T) [32]byte {
	h, err := blindauction.Commitment(contracttest.Big(s.value), s.fake, s.secret)
	require.NoError(t, err)
	return h
}

func openings(bids ...sealed) ([]*big.Int, []bool, [][32]byte) {
	var (
		values  []*big.Int
		fakes   []bool
		secrets [][32]byte
	)
	for _, b := range bids {
		values = append(values, contracttest.Big(b.value))
		fakes = append(fakes, b.fake)
		secrets = append(secrets, b.secret)
	}
	return values, fakes, secrets
}

// setup deploys at time 1, so bidding ends at 11 and reveal at 21.
func setup(t *testing.T) (*contracttest.Env, common.Address) {
	env := contracttest.New(t, nil, beneficiary, bidder1, bidder2)
	addr := env.Deploy(beneficiary, blindauction.Name, nil, contracttest.Big(10), contracttest.Big(10), beneficiary)
	return env, addr
}

func TestCommitmentIsPackedKeccak(t *testing.T) {
	s := secret("s")
	h, err := blindauction.Commitment(big.NewInt(7), true, s)
	require.NoError(t, err)

	var packed []byte
	packed = append(packed, common.LeftPadBytes([]byte{7}, 32)...)
	packed = append(packed, 1)
	packed = append(packed, s[:]...)
	require.Equal(t, crypto.Keccak256Hash(packed), h)
}

func TestFullAuction(t *testing.T) {
	env, addr := setup(t)
	var (
		b1real = sealed{value: 100, secret: secret("b1-real")}
		b1fake = sealed{value: 50, fake: true, secret: secret("b1-fake")}
		b2low  = sealed{value: 200, secret: secret("b2-underfunded")}
		b2real = sealed{value: 120, secret: secret("b2-real")}
	)
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(100), b1real.commitment(t))
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(50), b1fake.commitment(t))
	env.MustInvoke(bidder2, addr, "bid", contracttest.Wei(150), b2low.commitment(t))
	env.MustInvoke(bidder2, addr, "bid", contracttest.Wei(130), b2real.commitment(t))
	contracttest.RequireBig(t, 2, env.View(addr, "bidCount", bidder1)[0])
	require.EqualValues(t, 430, env.Balance(addr))

	values, fakes, secrets := openings(b1real, b1fake)
	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "reveal", nil, values, fakes, secrets)

	env.AdvanceTo(12)
	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "bid", contracttest.Wei(1), b1real.commitment(t))

	env.MustInvoke(bidder1, addr, "reveal", nil, values, fakes, secrets)
	require.EqualValues(t, contracttest.InitialBalance-100, env.Balance(bidder1))
	require.Equal(t, bidder1, env.View(addr, "highestBidder")[0])

	values, fakes, secrets = openings(b2low, b2real)
	env.MustInvoke(bidder2, addr, "reveal", nil, values, fakes, secrets)
	require.EqualValues(t, contracttest.InitialBalance-120, env.Balance(bidder2))
	require.Equal(t, bidder2, env.View(addr, "highestBidder")[0])
	contracttest.RequireBig(t, 120, env.View(addr, "highestBid")[0])
	contracttest.RequireBig(t, 100, env.View(addr, "pendingReturns", bidder1)[0])

	// Opened commitments cannot be refunded twice.
	env.MustInvoke(bidder2, addr, "reveal", nil, values, fakes, secrets)
	require.EqualValues(t, contracttest.InitialBalance-120, env.Balance(bidder2))

	env.RequireFailure(vm.ErrBoundsViolation, bidder2, addr, "reveal", nil, values[:1], fakes[:1], secrets[:1])
	env.RequireFailure(vm.ErrInvalidState, beneficiary, addr, "auctionEnd", nil)

	env.AdvanceTo(22)
	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "reveal", nil, values, fakes, secrets)

	receipt := env.Invoke(bidder1, addr, "auctionEnd", nil)
	require.False(t, receipt.Failed())
	require.Len(t, receipt.Notifications, 1)
	ev, _ := blindauction.Definition().Event("AuctionEnded")
	fields, err := abi.DecodeEvent(ev, receipt.Notifications[0].Topics, receipt.Notifications[0].Data)
	require.NoError(t, err)
	require.Equal(t, bidder2, fields["winner"])
	contracttest.RequireBig(t, 120, fields["highestBid"])
	require.EqualValues(t, contracttest.InitialBalance+120, env.Balance(beneficiary))

	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "auctionEnd", nil)

	env.MustInvoke(bidder1, addr, "withdraw", nil)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(bidder1))
	env.MustInvoke(bidder1, addr, "withdraw", nil)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(bidder1))
	require.Zero(t, env.Balance(addr))
}

func TestMismatchedRevealIsRefundedButNotCounted(t *testing.T) {
	env, addr := setup(t)
	bid := sealed{value: 100, secret: secret("right")}
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(100), bid.commitment(t))

	env.AdvanceTo(15)
	wrong := bid
	wrong.secret = secret("wrong")
	values, fakes, secrets := openings(wrong)
	env.MustInvoke(bidder1, addr, "reveal", nil, values, fakes, secrets)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(bidder1))
	contracttest.RequireBig(t, 0, env.View(addr, "highestBid")[0])
	require.Equal(t, common.Address{}, env.View(addr, "highestBidder")[0])

	// The right opening comes too late: the commitment is gone.
	values, fakes, secrets = openings(bid)
	env.MustInvoke(bidder1, addr, "reveal", nil, values, fakes, secrets)
	contracttest.RequireBig(t, 0, env.View(addr, "highestBid")[0])
	require.Zero(t, env.Balance(addr))
}

func TestEmptyCommitmentIsRejected(t *testing.T) {
	env, addr := setup(t)
	receipt := env.RequireFailure(vm.ErrInvalidSignatureOrHash, bidder1, addr, "bid", contracttest.Wei(70), [32]byte{})
	require.Equal(t, "InvalidSignatureOrHash", receipt.Kind)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(bidder1))
	require.Zero(t, env.Balance(addr))
	contracttest.RequireBig(t, 0, env.View(addr, "bidCount", bidder1)[0])
}

func TestEqualRevealDoesNotOutbid(t *testing.T) {
	env, addr := setup(t)
	first := sealed{value: 80, secret: secret("first")}
	second := sealed{value: 80, secret: secret("second")}
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(80), first.commitment(t))
	env.MustInvoke(bidder2, addr, "bid", contracttest.Wei(80), second.commitment(t))

	env.AdvanceTo(12)
	values, fakes, secrets := openings(first)
	env.MustInvoke(bidder1, addr, "reveal", nil, values, fakes, secrets)
	values, fakes, secrets = openings(second)
	env.MustInvoke(bidder2, addr, "reveal", nil, values, fakes, secrets)

	require.Equal(t, bidder1, env.View(addr, "highestBidder")[0])
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(bidder2))
}

func TestNoBidsEndsWithoutPayment(t *testing.T) {
	env, addr := setup(t)
	env.AdvanceTo(30)
	env.MustInvoke(bidder1, addr, "auctionEnd", nil)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(beneficiary))
}
