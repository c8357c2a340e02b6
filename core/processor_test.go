package core_test

import (
	"context"
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts"
	"fadingrose/rosy-ledger/contracts/coin"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa11ce")
	bob   = common.HexToAddress("0xb0b")
)

func newProcessor(t *testing.T, disk rawdb.KeyValueStore) *core.Processor {
	t.Helper()
	p, err := core.NewProcessor(disk, contracts.NewRegistry(), core.Config{})
	require.NoError(t, err)
	require.NoError(t, p.Genesis(map[common.Address]*uint256.Int{
		alice: uint256.NewInt(1000),
		bob:   uint256.NewInt(1000),
	}))
	return p
}

func pay(from, to common.Address, amount, time uint64) *types.Message {
	return &types.Message{From: from, To: &to, Value: uint256.NewInt(amount), Time: time}
}

func invoke(t *testing.T, from, to common.Address, method string, time uint64, args ...interface{}) *types.Message {
	t.Helper()
	m, ok := coin.Definition().Method(method)
	require.True(t, ok)
	input, err := abi.Encode(m.Inputs, args...)
	require.NoError(t, err)
	return &types.Message{From: from, To: &to, Method: method, Input: input, Time: time}
}

func deployCoin(t *testing.T, p *core.Processor, time uint64) common.Address {
	t.Helper()
	receipt, err := p.Apply(context.Background(), &types.Message{From: alice, Contract: coin.Name, Time: time})
	require.NoError(t, err)
	require.False(t, receipt.Failed(), "%v", receipt.Err)
	return *receipt.ContractAddress
}

func TestClockMustAdvance(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	ctx := context.Background()

	_, err := p.Apply(ctx, pay(alice, bob, 1, 5))
	require.NoError(t, err)
	require.EqualValues(t, 5, p.LastTime())

	_, err = p.Apply(ctx, pay(alice, bob, 1, 5))
	require.ErrorIs(t, err, core.ErrStaleTimestamp)
	_, err = p.Apply(ctx, pay(alice, bob, 1, 4))
	require.ErrorIs(t, err, core.ErrStaleTimestamp)

	// A failed call does not move the clock.
	receipt, err := p.Apply(ctx, pay(alice, bob, 5000, 6))
	require.NoError(t, err)
	require.True(t, receipt.Failed())
	require.EqualValues(t, 5, p.LastTime())
	_, err = p.Apply(ctx, pay(alice, bob, 1, 6))
	require.NoError(t, err)
}

func TestRejectedMessages(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Apply(ctx, pay(alice, bob, 1, 1))
	require.ErrorIs(t, err, context.Canceled)

	_, err = p.Apply(context.Background(), &types.Message{From: alice, Contract: "nope", Time: 1})
	require.ErrorIs(t, err, vm.ErrUnknownContract)

	msg := pay(alice, bob, 1, 1)
	msg.Gas = core.DefaultGasLimit + 1
	_, err = p.Apply(context.Background(), msg)
	require.ErrorIs(t, err, core.ErrGasLimitReached)

	require.Zero(t, p.LastTime())
	require.EqualValues(t, 1000, p.Account(bob).Balance.Uint64())
}

func TestFailedCallRollsBack(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	addr := deployCoin(t, p, 1)

	receipt, err := p.Apply(context.Background(), invoke(t, alice, addr, "mint", 2, bob, uint256.NewInt(5).ToBig()))
	require.NoError(t, err)
	require.False(t, receipt.Failed())

	receipt, err = p.Apply(context.Background(), invoke(t, bob, addr, "send", 3, alice, uint256.NewInt(6).ToBig()))
	require.NoError(t, err)
	require.True(t, receipt.Failed())
	require.Equal(t, "InsufficientBalance", receipt.Kind)
	require.NotEmpty(t, receipt.Reason)
	require.Empty(t, receipt.Notifications)

	receipt, err = p.Apply(context.Background(), &types.Message{From: alice, To: &addr, Method: "mint", Input: []byte{1}, Time: 4})
	require.NoError(t, err)
	require.Equal(t, "InvalidInput", receipt.Kind)

	info := p.Account(addr)
	require.True(t, info.Exists)
	require.Equal(t, coin.Name, info.Contract)
}

func TestNotificationsAfterCommit(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	ch := make(chan *types.Notification, 8)
	sub := p.SubscribeNotifications(ch)
	defer sub.Unsubscribe()

	addr := deployCoin(t, p, 1)
	_, err := p.Apply(context.Background(), invoke(t, alice, addr, "mint", 2, alice, uint256.NewInt(5).ToBig()))
	require.NoError(t, err)
	_, err = p.Apply(context.Background(), invoke(t, alice, addr, "send", 3, bob, uint256.NewInt(9).ToBig()))
	require.NoError(t, err)
	require.Empty(t, ch)

	_, err = p.Apply(context.Background(), invoke(t, alice, addr, "send", 4, bob, uint256.NewInt(2).ToBig()))
	require.NoError(t, err)
	require.Len(t, ch, 1)
	n := <-ch
	require.Equal(t, "Sent", n.Name)
	require.Equal(t, addr, n.Address)
	require.EqualValues(t, 4, n.Time)
}

func TestViewNeverCommits(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	addr := deployCoin(t, p, 1)
	_, err := p.Apply(context.Background(), invoke(t, alice, addr, "mint", 2, alice, uint256.NewInt(5).ToBig()))
	require.NoError(t, err)

	receipt, err := p.View(context.Background(), invoke(t, alice, addr, "send", 0, bob, uint256.NewInt(1).ToBig()))
	require.NoError(t, err)
	require.Equal(t, "WriteProtection", receipt.Kind)

	receipt, err = p.View(context.Background(), invoke(t, alice, addr, "balances", 0, alice))
	require.NoError(t, err)
	require.False(t, receipt.Failed())
	m, _ := coin.Definition().Method("balances")
	outs, err := abi.Decode(m.Outputs, receipt.Return)
	require.NoError(t, err)
	contracttest.RequireBig(t, 5, outs[0])
	require.EqualValues(t, 2, p.LastTime())

	_, err = p.View(context.Background(), &types.Message{From: alice, Contract: coin.Name})
	require.Error(t, err)
}

func TestConcurrentApplyIsSerialized(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	const n = 32

	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := p.Apply(context.Background(), pay(alice, bob, 1, uint64(i+1)))
			if err == nil && receipt.Failed() {
				err = receipt.Err
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		require.ErrorIs(t, err, core.ErrStaleTimestamp)
	}
	require.Positive(t, committed)
	a, b := p.Account(alice).Balance.Uint64(), p.Account(bob).Balance.Uint64()
	require.EqualValues(t, 2000, a+b)
	require.EqualValues(t, 1000+committed, b)
}

func TestConcurrentAutoTimeAllCommit(t *testing.T) {
	p := newProcessor(t, rawdb.NewMemoryDatabase())
	const n = 64

	var (
		wg    sync.WaitGroup
		errs  = make([]error, n)
		times = make([]uint64, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := pay(alice, bob, 1, 0)
			msg.AutoTime = true
			receipt, err := p.Apply(context.Background(), msg)
			if err == nil && receipt.Failed() {
				err = receipt.Err
			}
			if err == nil {
				times[i] = receipt.Time
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool, n)
	for i, err := range errs {
		require.NoError(t, err)
		require.False(t, seen[times[i]], "time %d used twice", times[i])
		seen[times[i]] = true
	}
	require.EqualValues(t, n, p.LastTime())
	require.EqualValues(t, 1000+n, p.Account(bob).Balance.Uint64())

	// An explicit time behind the clock is still rejected.
	_, err := p.Apply(context.Background(), pay(alice, bob, 1, n))
	require.ErrorIs(t, err, core.ErrStaleTimestamp)
}

func TestStateSurvivesReopen(t *testing.T) {
	for _, backend := range []string{rawdb.BackendLevelDB, rawdb.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			dir := t.TempDir()
			disk, err := rawdb.Open(backend, dir)
			require.NoError(t, err)
			p := newProcessor(t, disk)
			addr := deployCoin(t, p, 1)
			_, err = p.Apply(context.Background(), pay(alice, bob, 10, 7))
			require.NoError(t, err)
			require.NoError(t, p.Close())

			disk, err = rawdb.Open(backend, dir)
			require.NoError(t, err)
			p = newProcessor(t, disk)
			defer p.Close()

			require.EqualValues(t, 7, p.LastTime())
			require.EqualValues(t, 1010, p.Account(bob).Balance.Uint64())
			require.EqualValues(t, 990, p.Account(alice).Balance.Uint64())
			require.Equal(t, coin.Name, p.Account(addr).Contract)
			require.EqualValues(t, 1, p.Account(alice).Nonce)

			_, err = p.Apply(context.Background(), pay(alice, bob, 1, 7))
			require.ErrorIs(t, err, core.ErrStaleTimestamp)
		})
	}
}
