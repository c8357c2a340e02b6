package auction_test

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/auction"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/core/vm"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	beneficiary = common.HexToAddress("0xbe")
	bidder1     = common.HexToAddress("0xb1")
	bidder2     = common.HexToAddress("0xb2")
	attacker    = common.HexToAddress("0xa7")
)

// bidderContract bids through a contract. With a receive hook it tries to
// withdraw again while being paid and records how the nested call went;
// without one it rejects payments.
type bidderContract struct {
	name      string
	reentries int
	target    common.Address

	nestedOK  bool
	nestedRet interface{}
}

func (b *bidderContract) definition(withReceive bool) *vm.Definition {
	def := &vm.Definition{
		Name: b.name,
		Methods: []*vm.Method{
			{
				Name:    "attack",
				Inputs:  abi.MustArguments("address auction"),
				Payable: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					b.target = args[0].(common.Address)
					_, err := ctx.Call(b.target, "bid", ctx.Value())
					return nil, err
				},
			},
			{
				Name:    "collect",
				Outputs: abi.MustArguments("bool"),
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return ctx.Call(b.target, "withdraw", nil)
				},
			},
		},
	}
	if withReceive {
		def.Receive = func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
			b.reentries++
			outs, ok := ctx.TryCall(b.target, "withdraw", nil)
			b.nestedOK = ok
			if ok {
				b.nestedRet = outs[0]
			}
			return nil, nil
		}
	}
	return def
}

func setup(t *testing.T, extra ...*vm.Definition) (*contracttest.Env, common.Address) {
	env := contracttest.New(t, extra, beneficiary, bidder1, bidder2, attacker)
	addr := env.Deploy(beneficiary, auction.Name, nil, contracttest.Big(100), beneficiary)
	return env, addr
}

func TestBiddingAndEnd(t *testing.T) {
	env, addr := setup(t)
	ev, ok := auction.Definition().Event("HighestBidIncreased")
	require.True(t, ok)

	receipt := env.Invoke(bidder1, addr, "bid", contracttest.Wei(100))
	require.False(t, receipt.Failed())
	require.Len(t, receipt.Notifications, 1)
	fields, err := abi.DecodeEvent(ev, receipt.Notifications[0].Topics, receipt.Notifications[0].Data)
	require.NoError(t, err)
	require.Equal(t, bidder1, fields["bidder"])
	contracttest.RequireBig(t, 100, fields["amount"])

	env.RequireFailure(vm.ErrInvalidValue, bidder2, addr, "bid", contracttest.Wei(100))
	require.Equal(t, uint64(contracttest.InitialBalance), env.Balance(bidder2))

	env.MustInvoke(bidder2, addr, "bid", contracttest.Wei(150))
	contracttest.RequireBig(t, 100, env.View(addr, "pendingReturns", bidder1)[0])
	require.Equal(t, bidder2, env.View(addr, "highestBidder")[0])

	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "auctionEnd", nil)

	env.AdvanceTo(200)
	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "bid", contracttest.Wei(500))
	receipt = env.Invoke(bidder1, addr, "auctionEnd", nil)
	require.False(t, receipt.Failed())
	require.Equal(t, "AuctionEnded", receipt.Notifications[0].Name)
	require.Equal(t, uint64(contracttest.InitialBalance+150), env.Balance(beneficiary))
	require.Equal(t, true, env.View(addr, "ended")[0])
	env.RequireFailure(vm.ErrInvalidState, bidder1, addr, "auctionEnd", nil)

	require.Equal(t, true, env.MustInvoke(bidder1, addr, "withdraw", nil)[0])
	require.Equal(t, uint64(contracttest.InitialBalance), env.Balance(bidder1))
	require.Zero(t, env.Balance(addr))
}

func TestReentrantWithdrawPaysOnce(t *testing.T) {
	hostile := &bidderContract{name: "hostile-bidder"}
	env, addr := setup(t, hostile.definition(true))
	h := env.Deploy(attacker, hostile.name, nil)

	env.MustInvoke(attacker, h, "attack", contracttest.Wei(100), addr)
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(200))
	contracttest.RequireBig(t, 100, env.View(addr, "pendingReturns", h)[0])

	require.Equal(t, true, env.MustInvoke(attacker, h, "collect", nil)[0])
	require.Equal(t, 1, hostile.reentries)
	// The nested withdraw runs on the payment stipend. It only fits if the
	// balance was cleared before paying, leaving nothing to store.
	require.True(t, hostile.nestedOK, "nested withdraw failed")
	require.Equal(t, true, hostile.nestedRet)
	require.Equal(t, uint64(100), env.Balance(h))
	require.Equal(t, uint64(200), env.Balance(addr))
	contracttest.RequireBig(t, 0, env.View(addr, "pendingReturns", h)[0])
}

func TestRejectedPaymentStaysWithdrawable(t *testing.T) {
	rejecter := &bidderContract{name: "rejecting-bidder"}
	env, addr := setup(t, rejecter.definition(false))
	r := env.Deploy(attacker, rejecter.name, nil)

	env.MustInvoke(attacker, r, "attack", contracttest.Wei(100), addr)
	env.MustInvoke(bidder1, addr, "bid", contracttest.Wei(200))

	require.Equal(t, false, env.MustInvoke(attacker, r, "collect", nil)[0])
	contracttest.RequireBig(t, 100, env.View(addr, "pendingReturns", r)[0])
	require.Equal(t, uint64(300), env.Balance(addr))

	// The failed payment did not block the auction.
	env.AdvanceTo(500)
	env.MustInvoke(bidder2, addr, "auctionEnd", nil)
	require.Equal(t, uint64(contracttest.InitialBalance+200), env.Balance(beneficiary))
}
