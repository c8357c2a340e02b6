// Package vm resolves and executes contract entry points. Contract logic is
// plain Go registered through Definitions; the dispatcher supplies call
// frames, gas accounting, value transfer and rollback of failed frames.
package vm

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/core/tracing"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// TxContext provides the dispatcher with information about the top-level
// call. All fields can change between calls.
type TxContext struct {
	Origin common.Address // Sender of the top-level message
	Time   uint64         // External clock value of the call
}

// Config are the configuration options for the Dispatcher
type Config struct {
	Tracer *tracing.Hooks
	// MaxDepth bounds nested calls; zero selects params.CallCreateDepth.
	MaxDepth int
}

// Dispatcher routes calls to contract definitions. It is not safe for
// concurrent use; one top-level call runs at a time.
type Dispatcher struct {
	StateDB
	TxContext
	Config Config

	registry *Registry
	depth    int
}

// NewDispatcher returns a dispatcher over statedb resolving code through
// registry.
func NewDispatcher(txCtx TxContext, statedb StateDB, registry *Registry, config Config) *Dispatcher {
	if config.MaxDepth == 0 {
		config.MaxDepth = int(params.CallCreateDepth)
	}
	return &Dispatcher{
		StateDB:   statedb,
		TxContext: txCtx,
		Config:    config,
		registry:  registry,
	}
}

// Reset resets the dispatcher with a new call context.
func (d *Dispatcher) Reset(txCtx TxContext, statedb StateDB) {
	d.TxContext = txCtx
	d.StateDB = statedb
	d.depth = 0
}

// Registry returns the definitions the dispatcher resolves against.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Depth returns the current call depth.
func (d *Dispatcher) Depth() int { return d.depth }

// Call executes the entry point method of the contract at addr with the
// given typed-encoded input. It also handles any necessary value transfer
// and reverts the state in case of an execution error or failed value
// transfer.
func (d *Dispatcher) Call(caller ContractRef, addr common.Address, method string, input []byte, gas uint64, value *uint256.Int) (ret []byte, leftOverGas uint64, err error) {
	return d.call(caller, addr, method, input, gas, value, false)
}

// StaticCall executes a call that may not modify state. Any attempt to
// store, emit or move value fails with ErrWriteProtection.
func (d *Dispatcher) StaticCall(caller ContractRef, addr common.Address, method string, input []byte, gas uint64) (ret []byte, leftOverGas uint64, err error) {
	return d.call(caller, addr, method, input, gas, new(uint256.Int), true)
}

func (d *Dispatcher) call(caller ContractRef, addr common.Address, method string, input []byte, gas uint64, value *uint256.Int, readOnly bool) (ret []byte, leftOverGas uint64, err error) {
	if value == nil {
		value = new(uint256.Int)
	}
	if d.Config.Tracer != nil {
		d.captureBegin(false, caller.Address(), addr, method, input, gas, value)
		defer func(startGas uint64) {
			d.captureEnd(ret, startGas, leftOverGas, err)
		}(gas)
	}
	// Fail if we're trying to execute above the call depth limit
	if d.depth > d.Config.MaxDepth {
		return nil, 0, ErrDepth
	}
	if readOnly && !value.IsZero() {
		return nil, gas, ErrWriteProtection
	}
	// Fail if we're trying to transfer more than the available balance
	if !value.IsZero() && !d.StateDB.CanTransfer(caller.Address(), value) {
		return nil, gas, fmt.Errorf("%w: %v has %v, needs %v", ErrInsufficientBalance, caller.Address(), d.StateDB.GetBalance(caller.Address()), value)
	}
	snapshot := d.StateDB.Snapshot()
	if !value.IsZero() {
		if err := d.StateDB.Transfer(caller.Address(), addr, value); err != nil {
			d.StateDB.RevertToSnapshot(snapshot)
			return nil, gas, err
		}
	}

	contract := NewContract(caller, AccountRef(addr), value, gas)
	contract.Method = method
	contract.Input = input

	codeHash := d.StateDB.GetCodeHash(addr)
	if len(d.StateDB.GetCode(addr)) == 0 {
		// Plain accounts only accept value.
		if method != "" {
			err = fmt.Errorf("%w: %v has no code", ErrNoEntryPoint, addr)
		}
	} else if def, ok := d.registry.Lookup(codeHash); !ok {
		err = fmt.Errorf("%w: code %x at %v", ErrUnknownContract, codeHash, addr)
	} else {
		contract.Definition = def
		ret, err = d.dispatch(contract, readOnly)
	}

	if err != nil {
		d.StateDB.RevertToSnapshot(snapshot)
		if consumesAllGas(err) {
			contract.UseGas(contract.Gas, d.Config.Tracer, tracing.GasChangeCallFailedExecution)
		}
		return nil, contract.Gas, err
	}
	return ret, contract.Gas, nil
}

// dispatch resolves the entry point of contract and runs it.
func (d *Dispatcher) dispatch(contract *Contract, readOnly bool) ([]byte, error) {
	def, value := contract.Definition, contract.Value()
	if contract.Method == "" {
		if def.Receive == nil {
			if value.IsZero() {
				return nil, fmt.Errorf("%w: %s has no receive hook", ErrNoEntryPoint, def.Name)
			}
			return nil, fmt.Errorf("%w: %s does not accept value", ErrNotPayable, def.Name)
		}
		return d.run(contract, &Method{Payable: true, Handler: def.Receive}, readOnly)
	}
	m, ok := def.Method(contract.Method)
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoEntryPoint, def.Name, contract.Method)
	}
	if m.Visibility == Internal {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotExternal, def.Name, m.Name)
	}
	if !m.Payable && !value.IsZero() {
		return nil, fmt.Errorf("%w: %s.%s", ErrNotPayable, def.Name, m.Name)
	}
	return d.run(contract, m, readOnly || m.ReadOnly)
}

// run decodes the input, executes the handler and encodes its outputs.
func (d *Dispatcher) run(contract *Contract, m *Method, readOnly bool) ([]byte, error) {
	args, err := abi.Decode(m.Inputs, contract.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, m.Signature(), err)
	}
	ctx := newContext(d, contract, readOnly)

	d.depth++
	outs, err := m.Handler(ctx, args)
	d.depth--

	// A host failure wins over whatever the handler made of it.
	if ctx.err != nil {
		return nil, ctx.err
	}
	if err != nil {
		return nil, err
	}
	ret, err := abi.Encode(m.Outputs, outs...)
	if err != nil {
		return nil, fmt.Errorf("encode %s outputs: %w", m.Signature(), err)
	}
	return ret, nil
}

// Create deploys a new instance of the named definition. The address is
// derived from the caller and its nonce. Every change, including the nonce
// bump, is reverted when the constructor fails.
func (d *Dispatcher) Create(caller ContractRef, definition string, input []byte, gas uint64, value *uint256.Int) (ret []byte, contractAddr common.Address, leftOverGas uint64, err error) {
	if value == nil {
		value = new(uint256.Int)
	}
	contractAddr = crypto.CreateAddress(caller.Address(), d.StateDB.GetNonce(caller.Address()))
	if d.Config.Tracer != nil {
		d.captureBegin(true, caller.Address(), contractAddr, "", input, gas, value)
		defer func(startGas uint64) {
			d.captureEnd(nil, startGas, leftOverGas, err)
		}(gas)
	}
	// Depth check execution. Fail if we're trying to execute above the
	// limit.
	if d.depth > d.Config.MaxDepth {
		return nil, common.Address{}, 0, ErrDepth
	}
	def, ok := d.registry.ByName(definition)
	if !ok {
		return nil, common.Address{}, gas, fmt.Errorf("%w: %q", ErrUnknownContract, definition)
	}
	if !value.IsZero() && !d.StateDB.CanTransfer(caller.Address(), value) {
		return nil, common.Address{}, gas, fmt.Errorf("%w: %v has %v, needs %v", ErrInsufficientBalance, caller.Address(), d.StateDB.GetBalance(caller.Address()), value)
	}
	nonce := d.StateDB.GetNonce(caller.Address())
	if nonce+1 < nonce {
		return nil, common.Address{}, gas, fmt.Errorf("nonce of %v overflows", caller.Address())
	}
	// Ensure there's no existing contract already at the designated address.
	if d.StateDB.GetNonce(contractAddr) != 0 || len(d.StateDB.GetCode(contractAddr)) != 0 {
		if d.Config.Tracer != nil && d.Config.Tracer.OnGasChange != nil {
			d.Config.Tracer.OnGasChange(gas, 0, tracing.GasChangeCallFailedExecution)
		}
		return nil, common.Address{}, 0, ErrContractAddressCollision
	}

	snapshot := d.StateDB.Snapshot()
	d.StateDB.SetNonce(caller.Address(), nonce+1)
	d.StateDB.CreateAccount(contractAddr)
	d.StateDB.SetCode(contractAddr, def.Code())
	if !value.IsZero() {
		if err := d.StateDB.Transfer(caller.Address(), contractAddr, value); err != nil {
			d.StateDB.RevertToSnapshot(snapshot)
			return nil, common.Address{}, gas, err
		}
	}

	contract := NewContract(caller, AccountRef(contractAddr), value, gas)
	contract.Definition = def
	contract.Input = input
	contract.IsDeployment = true

	if err = d.construct(contract); err != nil {
		d.StateDB.RevertToSnapshot(snapshot)
		if consumesAllGas(err) {
			contract.UseGas(contract.Gas, d.Config.Tracer, tracing.GasChangeCallFailedExecution)
		}
		return nil, common.Address{}, contract.Gas, err
	}
	return nil, contractAddr, contract.Gas, nil
}

// construct runs the constructor of a fresh contract frame.
func (d *Dispatcher) construct(contract *Contract) error {
	ctor := contract.Definition.Constructor
	if ctor == nil {
		if len(contract.Input) != 0 {
			return fmt.Errorf("%w: %s takes no constructor arguments", ErrInvalidInput, contract.Definition.Name)
		}
		if !contract.Value().IsZero() {
			return fmt.Errorf("%w: %s constructor", ErrNotPayable, contract.Definition.Name)
		}
		return nil
	}
	if !ctor.Payable && !contract.Value().IsZero() {
		return fmt.Errorf("%w: %s constructor", ErrNotPayable, contract.Definition.Name)
	}
	_, err := d.run(contract, ctor, false)
	return err
}

func (d *Dispatcher) captureBegin(create bool, from, to common.Address, method string, input []byte, gas uint64, value *uint256.Int) {
	tracer := d.Config.Tracer
	if tracer.OnEnter != nil {
		tracer.OnEnter(d.depth, create, from, to, method, input, gas, value)
	}
	if d.depth == 0 && tracer.OnGasChange != nil {
		tracer.OnGasChange(0, gas, tracing.GasChangeCallInitialBalance)
	}
}

func (d *Dispatcher) captureEnd(ret []byte, startGas, leftOverGas uint64, err error) {
	tracer := d.Config.Tracer
	if d.depth == 0 && leftOverGas != 0 && tracer.OnGasChange != nil {
		tracer.OnGasChange(leftOverGas, 0, tracing.GasChangeCallLeftOverRefunded)
	}
	if tracer.OnExit != nil {
		tracer.OnExit(d.depth, ret, startGas-leftOverGas, err, err != nil)
	}
}
