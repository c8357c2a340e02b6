package vm

import (
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/core/tracing"
	"fadingrose/rosy-ledger/core/types"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"
)

// Context is the host interface handed to an entry point. Every operation
// is charged against the frame's gas.
//
// The first host failure (running out of gas, writing under protection, an
// aborting nested call) is remembered. After that every operation is a
// no-op and the frame fails with that error, whatever the handler returns.
type Context struct {
	d        *Dispatcher
	contract *Contract
	readOnly bool
	err      error
}

func newContext(d *Dispatcher, contract *Contract, readOnly bool) *Context {
	return &Context{d: d, contract: contract, readOnly: readOnly}
}

// Caller returns the immediate caller of the frame.
func (c *Context) Caller() common.Address { return c.contract.Caller() }

// Self returns the address of the executing contract.
func (c *Context) Self() common.Address { return c.contract.Address() }

// Value returns the value attached to the call.
func (c *Context) Value() *uint256.Int { return new(uint256.Int).Set(c.contract.Value()) }

// Time returns the clock value of the top-level call.
func (c *Context) Time() uint64 { return c.d.Time }

// Origin returns the sender of the top-level call.
func (c *Context) Origin() common.Address { return c.d.Origin }

// Gas returns the gas left to the frame.
func (c *Context) Gas() uint64 { return c.contract.Gas }

// ReadOnly reports whether the frame runs under write protection.
func (c *Context) ReadOnly() bool { return c.readOnly }

// Err returns the remembered host failure, if any.
func (c *Context) Err() error { return c.err }

func (c *Context) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *Context) useGas(gas uint64, reason tracing.GasChangeReason) bool {
	if c.err != nil {
		return false
	}
	if !c.contract.UseGas(gas, c.d.Config.Tracer, reason) {
		c.fail(ErrOutOfGas)
		return false
	}
	return true
}

func (c *Context) writable(what string) bool {
	if c.err != nil {
		return false
	}
	if c.readOnly {
		c.fail(fmt.Errorf("%w: %s", ErrWriteProtection, what))
		return false
	}
	return true
}

// Load reads a storage slot of the executing contract.
func (c *Context) Load(slot common.Hash) common.Hash {
	if !c.useGas(params.SloadGasEIP2200, tracing.GasChangeCallStorageRead) {
		return common.Hash{}
	}
	return c.d.StateDB.GetState(c.Self(), slot)
}

// Store writes a storage slot of the executing contract.
func (c *Context) Store(slot, value common.Hash) {
	if !c.writable("store") {
		return
	}
	cost := params.SstoreResetGasEIP2200
	if c.d.StateDB.GetState(c.Self(), slot) == (common.Hash{}) && value != (common.Hash{}) {
		cost = params.SstoreSetGasEIP2200
	}
	if !c.useGas(cost, tracing.GasChangeCallStorageWrite) {
		return
	}
	c.d.StateDB.SetState(c.Self(), slot, value)
}

func (c *Context) LoadWord(slot common.Hash) *uint256.Int {
	h := c.Load(slot)
	return new(uint256.Int).SetBytes32(h[:])
}

func (c *Context) StoreWord(slot common.Hash, v *uint256.Int) {
	c.Store(slot, common.Hash(v.Bytes32()))
}

func (c *Context) LoadUint64(slot common.Hash) uint64 {
	return c.LoadWord(slot).Uint64()
}

func (c *Context) StoreUint64(slot common.Hash, v uint64) {
	c.StoreWord(slot, uint256.NewInt(v))
}

func (c *Context) LoadAddress(slot common.Hash) common.Address {
	return common.BytesToAddress(c.Load(slot).Bytes())
}

func (c *Context) StoreAddress(slot common.Hash, addr common.Address) {
	c.Store(slot, AddressKey(addr))
}

func (c *Context) LoadBool(slot common.Hash) bool {
	return c.Load(slot) != (common.Hash{})
}

func (c *Context) StoreBool(slot common.Hash, b bool) {
	var h common.Hash
	if b {
		h[common.HashLength-1] = 1
	}
	c.Store(slot, h)
}

// Balance returns the balance of addr.
func (c *Context) Balance(addr common.Address) *uint256.Int {
	if !c.useGas(params.BalanceGasEIP1884, tracing.GasChangeCallBalanceRead) {
		return new(uint256.Int)
	}
	return c.d.StateDB.GetBalance(addr)
}

// Emit records the notification name declared by the contract definition.
// values follow the declared fields in order.
func (c *Context) Emit(name string, values ...interface{}) {
	if !c.writable("emit " + name) {
		return
	}
	def := c.contract.Definition
	ev, ok := def.Event(name)
	if !ok {
		c.fail(fmt.Errorf("%s emits undeclared notification %s", def.Name, name))
		return
	}
	if len(values) != len(ev.Inputs) {
		c.fail(fmt.Errorf("notification %s: want %d fields, have %d", ev.Sig, len(ev.Inputs), len(values)))
		return
	}
	var indexed, plain []interface{}
	for i, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, values[i])
		} else {
			plain = append(plain, values[i])
		}
	}
	topics, err := abi.MakeTopics(indexed...)
	if err != nil {
		c.fail(fmt.Errorf("notification %s: %w", ev.Sig, err))
		return
	}
	topics = append([]common.Hash{ev.ID}, topics...)
	data, err := abi.Encode(ev.Inputs.NonIndexed(), plain...)
	if err != nil {
		c.fail(fmt.Errorf("notification %s: %w", ev.Sig, err))
		return
	}
	cost := params.LogGas + params.LogTopicGas*uint64(len(topics)) + params.LogDataGas*uint64(len(data))
	if !c.useGas(cost, tracing.GasChangeCallNotification) {
		return
	}
	n := &types.Notification{
		Address: c.Self(),
		Name:    name,
		Topics:  topics,
		Data:    data,
		Time:    c.d.Time,
	}
	c.d.StateDB.AddNotification(n)
	if tracer := c.d.Config.Tracer; tracer != nil && tracer.OnNotification != nil {
		tracer.OnNotification(n)
	}
}

func hashGas(size int) uint64 {
	words := (uint64(size) + 31) / 32
	return params.Keccak256Gas + params.Keccak256WordGas*words
}

// Keccak hashes the concatenation of data.
func (c *Context) Keccak(data ...[]byte) common.Hash {
	size := 0
	for _, b := range data {
		size += len(b)
	}
	if !c.useGas(hashGas(size), tracing.GasChangeCallHash) {
		return common.Hash{}
	}
	return abi.Keccak(data...)
}

// PackedHash hashes the packed encoding of values. Values that do not fit
// their declared type fail the frame.
func (c *Context) PackedHash(args abi.Arguments, values ...interface{}) common.Hash {
	if c.err != nil {
		return common.Hash{}
	}
	packed, err := abi.EncodePacked(args, values...)
	if err != nil {
		c.fail(err)
		return common.Hash{}
	}
	return c.Keccak(packed)
}

// Ecrecover returns the signer of hash, or false if sig is malformed.
func (c *Context) Ecrecover(hash common.Hash, sig []byte) (common.Address, bool) {
	if !c.useGas(params.EcrecoverGas, tracing.GasChangeCallRecover) {
		return common.Address{}, false
	}
	return Ecrecover(hash, sig)
}

// Ecrecover recovers the signer of a 65 byte [R || S || V] signature. V may
// be 0/1 or 27/28.
func Ecrecover(hash common.Hash, sig []byte) (common.Address, bool) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, false
	}
	s := common.CopyBytes(sig)
	if s[64] >= 27 {
		s[64] -= 27
	}
	r, sv := new(big.Int).SetBytes(s[:32]), new(big.Int).SetBytes(s[32:64])
	if !crypto.ValidateSignatureValues(s[64], r, sv, true) {
		return common.Address{}, false
	}
	pub, err := crypto.SigToPub(hash[:], s)
	if err != nil {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(*pub), true
}

// Call invokes method on the contract at to. A failure of the callee aborts
// the current frame as well.
func (c *Context) Call(to common.Address, method string, value *uint256.Int, args ...interface{}) ([]interface{}, error) {
	outs, err := c.call(to, method, value, 0, args)
	if err != nil {
		c.fail(err)
	}
	return outs, err
}

// TryCall is Call that tolerates the callee failing. The callee's changes
// are still rolled back.
func (c *Context) TryCall(to common.Address, method string, value *uint256.Int, args ...interface{}) ([]interface{}, bool) {
	outs, err := c.call(to, method, value, 0, args)
	return outs, err == nil
}

// Send moves amount to `to` with a fixed gas stipend and reports whether
// the recipient accepted it.
func (c *Context) Send(to common.Address, amount *uint256.Int) bool {
	_, err := c.call(to, "", amount, params.CallStipend, nil)
	return err == nil
}

// Transfer is Send that aborts the current frame on failure.
func (c *Context) Transfer(to common.Address, amount *uint256.Int) error {
	_, err := c.call(to, "", amount, params.CallStipend, nil)
	if err != nil {
		c.fail(err)
	}
	return err
}

// call runs a nested call. A non-zero stipend fixes the forwarded gas;
// otherwise all but one 64th of the remaining gas is forwarded.
func (c *Context) call(to common.Address, method string, value *uint256.Int, stipend uint64, args []interface{}) ([]interface{}, error) {
	if value == nil {
		value = new(uint256.Int)
	}
	if c.err != nil {
		return nil, c.err
	}
	if !value.IsZero() && !c.writable("value transfer") {
		return nil, c.err
	}
	cost := params.CallGasEIP150
	if !value.IsZero() {
		cost += params.CallValueTransferGas
	}
	if !c.useGas(cost, tracing.GasChangeCallNested) {
		return nil, c.err
	}

	var (
		input   []byte
		outputs abi.Arguments
	)
	if method != "" {
		if def, ok := c.d.registry.Lookup(c.d.StateDB.GetCodeHash(to)); ok {
			if m, ok := def.Method(method); ok {
				enc, err := abi.Encode(m.Inputs, args...)
				if err != nil {
					err = fmt.Errorf("%w: %s: %v", ErrInvalidInput, m.Signature(), err)
					c.fail(err)
					return nil, err
				}
				input, outputs = enc, m.Outputs
			}
		}
	}

	gas := stipend
	if gas == 0 {
		gas = c.contract.Gas - c.contract.Gas/64
		c.contract.UseGas(gas, c.d.Config.Tracer, tracing.GasChangeIgnored)
		if !value.IsZero() {
			gas += params.CallStipend
		}
	}
	var (
		ret      []byte
		leftOver uint64
		err      error
	)
	if c.readOnly {
		ret, leftOver, err = c.d.StaticCall(c.contract, to, method, input, gas)
	} else {
		ret, leftOver, err = c.d.Call(c.contract, to, method, input, gas, value)
	}
	c.contract.RefundGas(leftOver, c.d.Config.Tracer, tracing.GasChangeCallLeftOverRefunded)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, nil
	}
	outs, err := abi.Decode(outputs, ret)
	if err != nil {
		return nil, fmt.Errorf("%w: return of %s: %v", ErrInvalidInput, method, err)
	}
	return outs, nil
}
