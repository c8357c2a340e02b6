// Package fsm drives contracts whose entry points are guarded transitions
// over a state stored in a single slot.
package fsm

import (
	"fadingrose/rosy-ledger/core/vm"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// State is an enumerated contract state. The zero value is the initial
// state.
type State uint8

// Stay keeps the current state when a transition completes.
const Stay State = 0xff

// Guard checks the preconditions of a transition besides its source state.
type Guard func(ctx *vm.Context, args []interface{}) error

// Transition is one row of the transition table.
type Transition struct {
	From  []State
	Guard Guard
	To    State
	// Effect runs after the new state has been stored.
	Effect vm.Handler
}

// Machine binds a state slot to state names.
type Machine struct {
	Slot  common.Hash
	Names []string
}

// New returns a machine storing its state at slot.
func New(slot common.Hash, names ...string) *Machine {
	return &Machine{Slot: slot, Names: names}
}

// Name returns the display name of s.
func (m *Machine) Name(s State) string {
	if int(s) < len(m.Names) {
		return m.Names[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// Current loads the stored state.
func (m *Machine) Current(ctx *vm.Context) State {
	return State(ctx.LoadUint64(m.Slot))
}

// Set stores s.
func (m *Machine) Set(ctx *vm.Context, s State) {
	ctx.StoreUint64(m.Slot, uint64(s))
}

// Require fails with ErrInvalidState unless the stored state is one of
// states.
func (m *Machine) Require(ctx *vm.Context, states ...State) error {
	cur := m.Current(ctx)
	for _, s := range states {
		if cur == s {
			return nil
		}
	}
	return vm.Revert(vm.ErrInvalidState, "in state %s", m.Name(cur))
}

// Handler turns t into an entry point: the source state is checked, then
// the guard, then the target state is stored and finally the effect runs.
// Nothing is written unless the state and guard checks pass.
func (m *Machine) Handler(t Transition) vm.Handler {
	return func(ctx *vm.Context, args []interface{}) ([]interface{}, error) {
		if len(t.From) > 0 {
			if err := m.Require(ctx, t.From...); err != nil {
				return nil, err
			}
		}
		if t.Guard != nil {
			if err := t.Guard(ctx, args); err != nil {
				return nil, err
			}
		}
		if t.To != Stay {
			m.Set(ctx, t.To)
		}
		if t.Effect == nil {
			return nil, nil
		}
		return t.Effect(ctx, args)
	}
}

// OnlyRole is a guard letting through only the address stored at slot.
func OnlyRole(slot common.Hash, role string) Guard {
	return func(ctx *vm.Context, args []interface{}) error {
		if ctx.Caller() != ctx.LoadAddress(slot) {
			return vm.Revert(vm.ErrUnauthorized, "only %s", role)
		}
		return nil
	}
}

// All combines guards, stopping at the first failure.
func All(guards ...Guard) Guard {
	return func(ctx *vm.Context, args []interface{}) error {
		for _, g := range guards {
			if err := g(ctx, args); err != nil {
				return err
			}
		}
		return nil
	}
}
