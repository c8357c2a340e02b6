package coin_test

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/coin"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/require"
)

var (
	minter = common.HexToAddress("0x1")
	alice  = common.HexToAddress("0xa")
	bob    = common.HexToAddress("0xb")
)

func TestMintAndSend(t *testing.T) {
	env := contracttest.New(t, nil, minter, alice, bob)
	addr := env.Deploy(minter, coin.Name, nil)
	require.Equal(t, minter, env.View(addr, "minter")[0])

	env.RequireFailure(vm.ErrUnauthorized, alice, addr, "mint", nil, alice, contracttest.Big(10))
	env.MustInvoke(minter, addr, "mint", nil, alice, contracttest.Big(10))
	contracttest.RequireBig(t, 10, env.View(addr, "balances", alice)[0])

	receipt := env.RequireFailure(vm.ErrInsufficientBalance, alice, addr, "send", nil, bob, contracttest.Big(11))
	require.Equal(t, "InsufficientBalance", receipt.Kind)

	receipt = env.Invoke(alice, addr, "send", nil, bob, contracttest.Big(4))
	require.False(t, receipt.Failed())
	require.Len(t, receipt.Notifications, 1)
	ev, _ := coin.Definition().Event("Sent")
	fields, err := abi.DecodeEvent(ev, receipt.Notifications[0].Topics, receipt.Notifications[0].Data)
	require.NoError(t, err)
	require.Equal(t, alice, fields["from"])
	require.Equal(t, bob, fields["to"])
	contracttest.RequireBig(t, 4, fields["amount"])

	contracttest.RequireBig(t, 6, env.View(addr, "balances", alice)[0])
	contracttest.RequireBig(t, 4, env.View(addr, "balances", bob)[0])
}

func TestMintOverflow(t *testing.T) {
	env := contracttest.New(t, nil, minter)
	addr := env.Deploy(minter, coin.Name, nil)
	env.MustInvoke(minter, addr, "mint", nil, alice, new(big.Int).Set(math.MaxBig256))
	env.RequireFailure(vm.ErrOverflow, minter, addr, "mint", nil, alice, contracttest.Big(1))
	require.Zero(t, env.View(addr, "balances", alice)[0].(*big.Int).Cmp(math.MaxBig256))
}
