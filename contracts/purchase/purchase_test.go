package purchase_test

import (
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/contracts/purchase"
	"fadingrose/rosy-ledger/core/vm"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

var (
	seller   = common.HexToAddress("0x5e")
	buyer    = common.HexToAddress("0xb0")
	stranger = common.HexToAddress("0x57")
)

func setup(t *testing.T) (*contracttest.Env, common.Address) {
	env := contracttest.New(t, nil, seller, buyer, stranger)
	addr := env.Deploy(seller, purchase.Name, contracttest.Wei(20))
	return env, addr
}

func requireState(t *testing.T, env *contracttest.Env, addr common.Address, want string) {
	t.Helper()
	require.Equal(t, want, env.View(addr, "state")[0])
}

func notificationNames(t *testing.T, env *contracttest.Env, from, to common.Address, method string) []string {
	t.Helper()
	receipt := env.Invoke(from, to, method, nil)
	require.False(t, receipt.Failed(), "%s: %v", method, receipt.Err)
	var names []string
	for _, n := range receipt.Notifications {
		names = append(names, n.Name)
	}
	return names
}

func TestOddValueLeavesNoTrace(t *testing.T) {
	env := contracttest.New(t, nil, seller)
	before := env.Processor.Account(seller)
	predicted := crypto.CreateAddress(seller, before.Nonce)

	receipt := env.TryDeploy(seller, purchase.Name, contracttest.Wei(21))
	require.True(t, receipt.Failed())
	require.ErrorIs(t, receipt.Err, vm.ErrInvalidValue)
	require.Equal(t, "InvalidValue", receipt.Kind)

	require.False(t, env.Processor.Account(predicted).Exists)
	after := env.Processor.Account(seller)
	require.Equal(t, before.Nonce, after.Nonce)
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(seller))
}

func TestHappyPath(t *testing.T) {
	env, addr := setup(t)
	contracttest.RequireBig(t, 10, env.View(addr, "value")[0])
	require.Equal(t, seller, env.View(addr, "seller")[0])
	requireState(t, env, addr, "Created")

	env.RequireFailure(vm.ErrInvalidValue, buyer, addr, "confirmPurchase", contracttest.Wei(19))
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(buyer))

	receipt := env.Invoke(buyer, addr, "confirmPurchase", contracttest.Wei(20))
	require.False(t, receipt.Failed())
	require.Equal(t, "PurchaseConfirmed", receipt.Notifications[0].Name)
	require.Equal(t, buyer, env.View(addr, "buyer")[0])
	requireState(t, env, addr, "Locked")
	require.EqualValues(t, 40, env.Balance(addr))

	env.RequireFailure(vm.ErrInvalidState, seller, addr, "abort", nil)
	env.RequireFailure(vm.ErrUnauthorized, seller, addr, "confirmReceived", nil)
	env.RequireFailure(vm.ErrInvalidState, seller, addr, "refundSeller", nil)

	require.Equal(t, []string{"ItemReceived"}, notificationNames(t, env, buyer, addr, "confirmReceived"))
	requireState(t, env, addr, "Released")
	require.EqualValues(t, contracttest.InitialBalance-10, env.Balance(buyer))

	env.RequireFailure(vm.ErrUnauthorized, buyer, addr, "refundSeller", nil)
	require.Equal(t, []string{"SellerRefunded"}, notificationNames(t, env, seller, addr, "refundSeller"))
	requireState(t, env, addr, "Inactive")
	require.EqualValues(t, contracttest.InitialBalance+10, env.Balance(seller))
	require.Zero(t, env.Balance(addr))

	env.RequireFailure(vm.ErrInvalidState, seller, addr, "refundSeller", nil)
}

func TestAbort(t *testing.T) {
	env, addr := setup(t)
	env.RequireFailure(vm.ErrUnauthorized, stranger, addr, "abort", nil)

	require.Equal(t, []string{"Aborted"}, notificationNames(t, env, seller, addr, "abort"))
	requireState(t, env, addr, "Inactive")
	require.EqualValues(t, contracttest.InitialBalance, env.Balance(seller))

	env.RequireFailure(vm.ErrInvalidState, buyer, addr, "confirmPurchase", contracttest.Wei(20))
	env.RequireFailure(vm.ErrInvalidState, seller, addr, "abort", nil)
}
