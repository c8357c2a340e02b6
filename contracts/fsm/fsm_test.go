package fsm_test

import (
	"testing"
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts/contracttest"
	"fadingrose/rosy-ledger/contracts/fsm"
	"fadingrose/rosy-ledger/core/vm"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

const (
	idle fsm.State = iota
	running
	done
)

var (
	owner = common.HexToAddress("0x0e")
	other = common.HexToAddress("0x07")

	ownerSlot = vm.Slot(0)
	effects   = vm.Slot(1)
	machine   = fsm.New(vm.Slot(2), "idle", "running", "done")
)

// switchDefinition counts guard evaluations in guards.
func switchDefinition(guards *int) *vm.Definition {
	counted := func(ctx *vm.Context, args []interface{}) error {
		*guards++
		return nil
	}
	effect := func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		ctx.StoreUint64(effects, ctx.LoadUint64(effects)+1)
		return nil, nil
	}
	return &vm.Definition{
		Name: "switch",
		Constructor: &vm.Method{Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
			ctx.StoreAddress(ownerSlot, ctx.Caller())
			return nil, nil
		}},
		Methods: []*vm.Method{
			{
				Name: "start",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{idle},
					Guard:  fsm.All(counted, fsm.OnlyRole(ownerSlot, "owner")),
					To:     running,
					Effect: effect,
				}),
			},
			{
				Name: "poke",
				Handler: machine.Handler(fsm.Transition{
					From:   []fsm.State{running},
					To:     fsm.Stay,
					Effect: effect,
				}),
			},
			{
				Name: "finish",
				Handler: machine.Handler(fsm.Transition{
					From: []fsm.State{idle, running},
					To:   done,
				}),
			},
			{
				Name:     "state",
				Outputs:  abi.MustArguments("string"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{machine.Name(machine.Current(ctx))}, nil
				},
			},
			{
				Name:     "effects",
				Outputs:  abi.MustArguments("uint64"),
				ReadOnly: true,
				Handler: func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
					return []interface{}{ctx.LoadUint64(effects)}, nil
				},
			},
		},
	}
}

func TestTransitions(t *testing.T) {
	var guards int
	env := contracttest.New(t, []*vm.Definition{switchDefinition(&guards)}, owner, other)
	addr := env.Deploy(owner, "switch", nil)
	require.Equal(t, "idle", env.View(addr, "state")[0])

	env.RequireFailure(vm.ErrInvalidState, owner, addr, "poke", nil)

	env.RequireFailure(vm.ErrUnauthorized, other, addr, "start", nil)
	require.Equal(t, 1, guards)
	require.Equal(t, "idle", env.View(addr, "state")[0])

	env.MustInvoke(owner, addr, "start", nil)
	require.Equal(t, "running", env.View(addr, "state")[0])
	require.Equal(t, uint64(1), env.View(addr, "effects")[0])

	env.MustInvoke(other, addr, "poke", nil)
	require.Equal(t, "running", env.View(addr, "state")[0])
	require.Equal(t, uint64(2), env.View(addr, "effects")[0])

	// The source state is checked before any guard runs.
	env.RequireFailure(vm.ErrInvalidState, owner, addr, "start", nil)
	require.Equal(t, 2, guards)

	env.MustInvoke(other, addr, "finish", nil)
	require.Equal(t, "done", env.View(addr, "state")[0])
	env.RequireFailure(vm.ErrInvalidState, other, addr, "finish", nil)
}

func TestStateNames(t *testing.T) {
	require.Equal(t, "running", machine.Name(running))
	require.Equal(t, "state(7)", machine.Name(7))
}
