package state

import (
	"fadingrose/rosy-ledger/core/arith"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestState(t *testing.T) (*StateDB, rawdb.KeyValueStore) {
	disk := rawdb.NewMemoryDatabase()
	t.Cleanup(func() { disk.Close() })
	return New(NewDatabase(disk)), disk
}

func commit(t *testing.T, s *StateDB, disk rawdb.KeyValueStore) {
	batch := disk.NewBatch()
	require.NoError(t, s.Commit(batch))
	require.NoError(t, batch.Write())
}

func TestMissingSlotReadsZero(t *testing.T) {
	s, _ := newTestState(t)
	addr := common.HexToAddress("0x01")
	require.Equal(t, common.Hash{}, s.GetState(addr, common.HexToHash("0x05")))
	require.False(t, s.Exist(addr))
}

func TestTransferInsufficientBalance(t *testing.T) {
	s, _ := newTestState(t)
	a, b := common.HexToAddress("0xa"), common.HexToAddress("0xb")
	s.AddBalance(a, uint256.NewInt(5), tracing.BalanceIncreaseGenesisBalance)

	err := s.Transfer(a, b, uint256.NewInt(6))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, uint64(5), s.GetBalance(a).Uint64())
	require.False(t, s.Exist(b))

	require.NoError(t, s.Transfer(a, b, uint256.NewInt(5)))
	require.True(t, s.GetBalance(a).IsZero())
	require.Equal(t, uint64(5), s.GetBalance(b).Uint64())
}

func TestTransferCreditOverflow(t *testing.T) {
	s, _ := newTestState(t)
	a, b := common.HexToAddress("0xa"), common.HexToAddress("0xb")
	max := new(uint256.Int).SetAllOne()
	s.AddBalance(a, uint256.NewInt(1), tracing.BalanceIncreaseGenesisBalance)
	s.AddBalance(b, max, tracing.BalanceIncreaseGenesisBalance)

	require.ErrorIs(t, s.Transfer(a, b, uint256.NewInt(1)), arith.ErrOverflow)
	require.Equal(t, uint64(1), s.GetBalance(a).Uint64())
	require.Equal(t, max, s.GetBalance(b))
}

func TestRevertToSnapshot(t *testing.T) {
	s, _ := newTestState(t)
	var (
		a    = common.HexToAddress("0xa")
		b    = common.HexToAddress("0xb")
		slot = common.HexToHash("0x01")
	)
	s.AddBalance(a, uint256.NewInt(100), tracing.BalanceIncreaseGenesisBalance)
	s.SetState(a, slot, common.HexToHash("0x01"))

	outer := s.Snapshot()
	s.SetState(a, slot, common.HexToHash("0x02"))
	require.NoError(t, s.Transfer(a, b, uint256.NewInt(30)))
	s.AddNotification(&types.Notification{Name: "Outer"})

	inner := s.Snapshot()
	s.SetState(a, slot, common.HexToHash("0x03"))
	s.SetNonce(b, 7)
	s.AddNotification(&types.Notification{Name: "Inner"})
	require.Len(t, s.Notifications(), 2)

	s.RevertToSnapshot(inner)
	require.Equal(t, common.HexToHash("0x02"), s.GetState(a, slot))
	require.Zero(t, s.GetNonce(b))
	require.Len(t, s.Notifications(), 1)

	s.RevertToSnapshot(outer)
	require.Equal(t, common.HexToHash("0x01"), s.GetState(a, slot))
	require.Equal(t, uint64(100), s.GetBalance(a).Uint64())
	require.False(t, s.Exist(b))
	require.Empty(t, s.Notifications())

	require.Panics(t, func() { s.RevertToSnapshot(inner) })
}

func TestCommitPersists(t *testing.T) {
	for _, backend := range []string{rawdb.BackendLevelDB, rawdb.BackendBadger} {
		t.Run(backend, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "db")
			disk, err := rawdb.Open(backend, path)
			require.NoError(t, err)

			var (
				a    = common.HexToAddress("0xa")
				slot = common.HexToHash("0x09")
			)
			s := New(NewDatabase(disk))
			s.AddBalance(a, uint256.NewInt(42), tracing.BalanceIncreaseGenesisBalance)
			s.SetNonce(a, 3)
			s.SetCode(a, []byte("coin"))
			s.SetState(a, slot, common.HexToHash("0xff"))
			commit(t, s, disk)
			require.NoError(t, disk.Close())

			disk, err = rawdb.Open(backend, path)
			require.NoError(t, err)
			defer disk.Close()

			s = New(NewDatabase(disk))
			require.True(t, s.Exist(a))
			require.Equal(t, uint64(42), s.GetBalance(a).Uint64())
			require.Equal(t, uint64(3), s.GetNonce(a))
			require.Equal(t, []byte("coin"), s.GetCode(a))
			require.Equal(t, common.HexToHash("0xff"), s.GetState(a, slot))
			require.NoError(t, s.Error())
		})
	}
}

func TestUncommittedChangesStayInMemory(t *testing.T) {
	s, disk := newTestState(t)
	a := common.HexToAddress("0xa")
	s.SetState(a, common.HexToHash("0x01"), common.HexToHash("0x01"))

	fresh := New(NewDatabase(disk))
	require.False(t, fresh.Exist(a))

	commit(t, s, disk)
	fresh = New(NewDatabase(disk))
	require.Equal(t, common.HexToHash("0x01"), fresh.GetState(a, common.HexToHash("0x01")))

	// Clearing a slot removes it from the store.
	s.SetState(a, common.HexToHash("0x01"), common.Hash{})
	commit(t, s, disk)
	require.Equal(t, common.Hash{}, s.GetCommittedState(a, common.HexToHash("0x01")))
	fresh = New(NewDatabase(disk))
	require.Equal(t, common.Hash{}, fresh.GetState(a, common.HexToHash("0x01")))
}

func TestRollback(t *testing.T) {
	s, disk := newTestState(t)
	a := common.HexToAddress("0xa")
	s.AddBalance(a, uint256.NewInt(10), tracing.BalanceIncreaseGenesisBalance)
	commit(t, s, disk)

	s.SubBalance(a, uint256.NewInt(4), tracing.BalanceChangeTransfer)
	s.SetState(a, common.HexToHash("0x01"), common.HexToHash("0x01"))
	s.Rollback()
	require.Equal(t, uint64(10), s.GetBalance(a).Uint64())
	require.Equal(t, common.Hash{}, s.GetState(a, common.HexToHash("0x01")))
}

// Random transfer sequences, some of them reverted, never create or destroy
// value.
func TestTransferConservation(t *testing.T) {
	s, disk := newTestState(t)
	rng := rand.New(rand.NewSource(7))

	accounts := make([]common.Address, 8)
	total := uint256.NewInt(0)
	for i := range accounts {
		accounts[i] = common.BigToAddress(uint256.NewInt(uint64(i + 1)).ToBig())
		amount := uint256.NewInt(rng.Uint64() % 1000)
		s.AddBalance(accounts[i], amount, tracing.BalanceIncreaseGenesisBalance)
		total.Add(total, amount)
	}
	sum := func() *uint256.Int {
		out := new(uint256.Int)
		for _, a := range accounts {
			out.Add(out, s.GetBalance(a))
		}
		return out
	}

	for round := 0; round < 500; round++ {
		snap := s.Snapshot()
		for i := 0; i < 1+rng.Intn(4); i++ {
			from := accounts[rng.Intn(len(accounts))]
			to := accounts[rng.Intn(len(accounts))]
			_ = s.Transfer(from, to, uint256.NewInt(rng.Uint64()%600))
		}
		if rng.Intn(3) == 0 {
			s.RevertToSnapshot(snap)
		}
		if rng.Intn(10) == 0 {
			commit(t, s, disk)
		}
		require.Equal(t, total, sum(), "round %d", round)
	}
}

func TestTracingHooks(t *testing.T) {
	s, _ := newTestState(t)
	var (
		balances []tracing.BalanceChangeReason
		slots    int
	)
	s.SetLogger(&tracing.Hooks{
		OnBalanceChange: func(addr common.Address, prev, new *uint256.Int, reason tracing.BalanceChangeReason) {
			balances = append(balances, reason)
		},
		OnStorageChange: func(addr common.Address, slot, prev, new common.Hash) {
			slots++
		},
	})
	a := common.HexToAddress("0xa")
	snap := s.Snapshot()
	s.AddBalance(a, uint256.NewInt(1), tracing.BalanceIncreaseGenesisBalance)
	s.SetState(a, common.Hash{}, common.HexToHash("0x01"))
	s.RevertToSnapshot(snap)

	require.Equal(t, []tracing.BalanceChangeReason{tracing.BalanceIncreaseGenesisBalance, tracing.BalanceChangeRevert}, balances)
	require.Equal(t, 1, slots)
}
