// Package core serializes top-level calls into the ledger. Each message runs
// to completion and either commits atomically or leaves no trace.
package core

import (
	"context"
	"errors"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/state"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"
	"fadingrose/rosy-ledger/log"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// DefaultGasLimit is the gas granted to a message that does not ask for a
// specific amount.
const DefaultGasLimit = 10_000_000

// ErrStaleTimestamp is returned for a message whose time does not advance
// past the last committed call.
var ErrStaleTimestamp = errors.New("stale timestamp")

// Config tunes the processor.
type Config struct {
	GasLimit uint64
	MaxDepth int
	Tracer   *tracing.Hooks
}

// AccountInfo is a read-only snapshot of an account.
type AccountInfo struct {
	Address  common.Address
	Balance  *uint256.Int
	Nonce    uint64
	Contract string // Definition name, empty for plain accounts
	Exists   bool
}

// Processor applies messages to the ledger one at a time.
type Processor struct {
	mu         sync.Mutex
	disk       rawdb.KeyValueStore
	statedb    *state.StateDB
	registry   *vm.Registry
	dispatcher *vm.Dispatcher
	config     Config
	lastTime   uint64

	feed event.Feed
}

// NewProcessor opens a processor over disk. The clock resumes from the
// last committed call.
func NewProcessor(disk rawdb.KeyValueStore, registry *vm.Registry, config Config) (*Processor, error) {
	if config.GasLimit == 0 {
		config.GasLimit = DefaultGasLimit
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = int(params.CallCreateDepth)
	}
	last, err := rawdb.ReadLastTime(disk)
	if err != nil {
		return nil, fmt.Errorf("read clock: %w", err)
	}
	p := &Processor{
		disk:     disk,
		registry: registry,
		config:   config,
		lastTime: last,
	}
	p.resetState()
	return p, nil
}

func (p *Processor) resetState() {
	p.statedb = state.New(state.NewDatabase(p.disk))
	p.statedb.SetLogger(p.config.Tracer)
	p.dispatcher = vm.NewDispatcher(vm.TxContext{}, p.statedb, p.registry, vm.Config{
		Tracer:   p.config.Tracer,
		MaxDepth: p.config.MaxDepth,
	})
}

// Registry returns the contract definitions known to the processor.
func (p *Processor) Registry() *vm.Registry { return p.registry }

// LastTime returns the clock value of the last committed call.
func (p *Processor) LastTime() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastTime
}

// Genesis credits the allocated balances to accounts that do not exist yet
// and commits them. Reopening a store with the same allocation is a no-op.
func (p *Processor) Genesis(alloc map[common.Address]*uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var credited int
	for addr, amount := range alloc {
		if p.statedb.Exist(addr) {
			continue
		}
		p.statedb.AddBalance(addr, amount, tracing.BalanceIncreaseGenesisBalance)
		credited++
	}
	if credited == 0 {
		return p.statedb.Error()
	}
	batch := p.disk.NewBatch()
	if err := p.statedb.Commit(batch); err != nil {
		p.statedb.Rollback()
		return err
	}
	if err := batch.Write(); err != nil {
		p.resetState()
		return err
	}
	log.Info("Genesis allocated", "accounts", credited)
	return nil
}

// SubscribeNotifications delivers the notifications of every committed call,
// in emission order, after the call's changes are durable.
func (p *Processor) SubscribeNotifications(ch chan<- *types.Notification) event.Subscription {
	return p.feed.Subscribe(ch)
}

// Apply executes msg. Execution failures are reported in the receipt and
// leave the ledger untouched; the error is reserved for messages that are
// rejected outright.
func (p *Processor) Apply(ctx context.Context, msg *types.Message) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	receipt, err := p.apply(msg)
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, n := range receipt.Notifications {
		p.feed.Send(n)
	}
	return receipt, nil
}

func (p *Processor) apply(msg *types.Message) (*types.Receipt, error) {
	if msg.AutoTime {
		m := *msg
		m.Time = p.lastTime + 1
		msg = &m
	}
	if msg.Time <= p.lastTime {
		return nil, fmt.Errorf("%w: time %d, last committed %d", ErrStaleTimestamp, msg.Time, p.lastTime)
	}
	if msg.IsCreate() {
		if _, ok := p.registry.ByName(msg.Contract); !ok {
			return nil, fmt.Errorf("%w: %q", vm.ErrUnknownContract, msg.Contract)
		}
	}
	gas, err := p.buyGas(msg)
	if err != nil {
		return nil, err
	}

	receipt, execErr := p.execute(msg, gas, false)
	if err := p.statedb.Error(); err != nil {
		p.statedb.Rollback()
		return nil, fmt.Errorf("storage failure: %w", err)
	}
	if execErr != nil {
		p.statedb.Rollback()
		log.Debug("Message failed", "from", msg.From, "method", msg.Method, "kind", receipt.Kind, "reason", receipt.Reason)
		return receipt, nil
	}

	receipt.Notifications = p.statedb.Notifications()
	batch := p.disk.NewBatch()
	if err := p.statedb.Commit(batch); err != nil {
		p.statedb.Rollback()
		return nil, err
	}
	if err := rawdb.WriteLastTime(batch, msg.Time); err != nil {
		p.resetState()
		return nil, err
	}
	if err := batch.Write(); err != nil {
		// The in-memory state already moved on; reload from disk.
		p.resetState()
		return nil, fmt.Errorf("write batch: %w", err)
	}
	p.lastTime = msg.Time
	log.Debug("Message committed", "from", msg.From, "method", msg.Method, "gasUsed", receipt.GasUsed, "notifications", len(receipt.Notifications))
	return receipt, nil
}

func (p *Processor) buyGas(msg *types.Message) (uint64, error) {
	gas := msg.Gas
	if gas == 0 {
		gas = p.config.GasLimit
	}
	gp := new(GasPool).AddGas(p.config.GasLimit)
	if err := gp.SubGas(gas); err != nil {
		return 0, err
	}
	return gas, nil
}

// execute runs msg on the dispatcher and fills a receipt. The state is left
// as the execution left it.
func (p *Processor) execute(msg *types.Message, gas uint64, readOnly bool) (*types.Receipt, error) {
	p.dispatcher.Reset(vm.TxContext{Origin: msg.From, Time: msg.Time}, p.statedb)

	var (
		caller   = vm.AccountRef(msg.From)
		receipt  = &types.Receipt{Time: msg.Time}
		ret      []byte
		leftOver uint64
		err      error
	)
	switch {
	case msg.IsCreate():
		var addr common.Address
		ret, addr, leftOver, err = p.dispatcher.Create(caller, msg.Contract, msg.Input, gas, msg.CallValue())
		if err == nil {
			receipt.ContractAddress = &addr
		}
	case readOnly:
		ret, leftOver, err = p.dispatcher.StaticCall(caller, *msg.To, msg.Method, msg.Input, gas)
	default:
		ret, leftOver, err = p.dispatcher.Call(caller, *msg.To, msg.Method, msg.Input, gas, msg.CallValue())
	}
	receipt.GasUsed = gas - leftOver
	receipt.Return = ret
	if err != nil {
		receipt.Status = types.ReceiptStatusFailed
		receipt.Err = err
		receipt.Kind = vm.Classify(err)
		receipt.Reason = err.Error()
		var rev *vm.RevertError
		if errors.As(err, &rev) {
			receipt.Reason = rev.Reason()
		}
		return receipt, err
	}
	receipt.Status = types.ReceiptStatusSuccessful
	return receipt, nil
}

// View runs a read-only call against the committed state. Its changes are
// always discarded and it does not advance the clock. A zero msg.Time reads
// at the last committed time.
func (p *Processor) View(ctx context.Context, msg *types.Message) (*types.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.IsCreate() {
		return nil, fmt.Errorf("view of a contract creation")
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	view := *msg
	if view.Time == 0 {
		view.Time = p.lastTime
	}
	gas, err := p.buyGas(&view)
	if err != nil {
		return nil, err
	}
	receipt, _ := p.execute(&view, gas, true)
	p.statedb.Rollback()
	return receipt, nil
}

// Account returns the committed state of addr.
func (p *Processor) Account(addr common.Address) AccountInfo {
	p.mu.Lock()
	defer p.mu.Unlock()

	info := AccountInfo{
		Address: addr,
		Balance: p.statedb.GetBalance(addr),
		Nonce:   p.statedb.GetNonce(addr),
		Exists:  p.statedb.Exist(addr),
	}
	if def, ok := p.registry.Lookup(p.statedb.GetCodeHash(addr)); ok {
		info.Contract = def.Name
	}
	return info
}

// Storage returns the committed value of a storage slot.
func (p *Processor) Storage(addr common.Address, slot common.Hash) common.Hash {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statedb.GetState(addr, slot)
}

// Close closes the backing store.
func (p *Processor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disk.Close()
}
