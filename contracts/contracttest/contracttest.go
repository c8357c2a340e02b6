// Package contracttest runs contracts on an in-memory processor for tests.
package contracttest

import (
	"context"
	"crypto/ecdsa"
	"fadingrose/rosy-ledger/abi"
	"fadingrose/rosy-ledger/contracts"
	"fadingrose/rosy-ledger/core"
	"fadingrose/rosy-ledger/core/rawdb"
	"fadingrose/rosy-ledger/core/types"
	"fadingrose/rosy-ledger/core/vm"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

// InitialBalance is the genesis balance of every funded account.
const InitialBalance = 1_000_000_000

// Env is a processor over a fresh memory store with all contracts
// registered.
type Env struct {
	t         testing.TB
	Processor *core.Processor
	Registry  *vm.Registry

	// Time is the clock value of the last message sent.
	Time uint64
}

// New creates an Env. Extra definitions are registered next to the
// built-in contracts; funded accounts receive InitialBalance.
func New(t testing.TB, extra []*vm.Definition, funded ...common.Address) *Env {
	t.Helper()
	registry := contracts.NewRegistry()
	registry.MustRegister(extra...)

	p, err := core.NewProcessor(rawdb.NewMemoryDatabase(), registry, core.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	alloc := make(map[common.Address]*uint256.Int, len(funded))
	for _, addr := range funded {
		alloc[addr] = uint256.NewInt(InitialBalance)
	}
	require.NoError(t, p.Genesis(alloc))
	return &Env{t: t, Processor: p, Registry: registry}
}

// Account returns a fresh key and its address.
func Account(t testing.TB) (common.Address, *ecdsa.PrivateKey) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.PubkeyToAddress(key.PublicKey), key
}

// Wei converts n to a value.
func Wei(n uint64) *uint256.Int { return uint256.NewInt(n) }

// Big converts n to a *big.Int argument.
func Big(n uint64) *big.Int { return new(big.Int).SetUint64(n) }

// AdvanceTo moves the clock so that the next message runs at time t.
func (e *Env) AdvanceTo(t uint64) {
	require.Greater(e.t, t, e.Time, "clock must move forward")
	e.Time = t - 1
}

func (e *Env) send(msg *types.Message) *types.Receipt {
	e.t.Helper()
	e.Time++
	msg.Time = e.Time
	receipt, err := e.Processor.Apply(context.Background(), msg)
	require.NoError(e.t, err)
	return receipt
}

// Deploy creates an instance of name and requires success.
func (e *Env) Deploy(from common.Address, name string, value *uint256.Int, args ...interface{}) common.Address {
	e.t.Helper()
	receipt := e.TryDeploy(from, name, value, args...)
	require.False(e.t, receipt.Failed(), "deploy %s: %v", name, receipt.Err)
	return *receipt.ContractAddress
}

// TryDeploy creates an instance of name and returns the receipt.
func (e *Env) TryDeploy(from common.Address, name string, value *uint256.Int, args ...interface{}) *types.Receipt {
	e.t.Helper()
	def, ok := e.Registry.ByName(name)
	require.True(e.t, ok, "unknown contract %s", name)
	var input []byte
	if def.Constructor != nil {
		var err error
		input, err = abi.Encode(def.Constructor.Inputs, args...)
		require.NoError(e.t, err)
	}
	return e.send(&types.Message{From: from, Contract: name, Input: input, Value: value})
}

func (e *Env) method(to common.Address, name string) *vm.Method {
	e.t.Helper()
	info := e.Processor.Account(to)
	def, ok := e.Registry.ByName(info.Contract)
	require.True(e.t, ok, "no contract at %v", to)
	m, ok := def.Method(name)
	require.True(e.t, ok, "%s has no method %s", def.Name, name)
	return m
}

// Invoke calls method on to and returns the receipt, successful or not.
func (e *Env) Invoke(from, to common.Address, method string, value *uint256.Int, args ...interface{}) *types.Receipt {
	e.t.Helper()
	var input []byte
	if method != "" {
		var err error
		input, err = abi.Encode(e.method(to, method).Inputs, args...)
		require.NoError(e.t, err)
	}
	return e.send(&types.Message{From: from, To: &to, Method: method, Input: input, Value: value})
}

// MustInvoke calls method, requires success and decodes the outputs.
func (e *Env) MustInvoke(from, to common.Address, method string, value *uint256.Int, args ...interface{}) []interface{} {
	e.t.Helper()
	receipt := e.Invoke(from, to, method, value, args...)
	require.False(e.t, receipt.Failed(), "%s: %v", method, receipt.Err)
	if method == "" {
		return nil
	}
	outs, err := abi.Decode(e.method(to, method).Outputs, receipt.Return)
	require.NoError(e.t, err)
	return outs
}

// RequireFailure calls method and requires it to fail with kind.
func (e *Env) RequireFailure(kind error, from, to common.Address, method string, value *uint256.Int, args ...interface{}) *types.Receipt {
	e.t.Helper()
	receipt := e.Invoke(from, to, method, value, args...)
	require.True(e.t, receipt.Failed(), "%s unexpectedly succeeded", method)
	require.ErrorIs(e.t, receipt.Err, kind)
	return receipt
}

// View runs a read-only call at the current time and decodes its outputs.
func (e *Env) View(to common.Address, method string, args ...interface{}) []interface{} {
	e.t.Helper()
	m := e.method(to, method)
	input, err := abi.Encode(m.Inputs, args...)
	require.NoError(e.t, err)
	receipt, err := e.Processor.View(context.Background(), &types.Message{To: &to, Method: method, Input: input})
	require.NoError(e.t, err)
	require.False(e.t, receipt.Failed(), "view %s: %v", method, receipt.Err)
	outs, err := abi.Decode(m.Outputs, receipt.Return)
	require.NoError(e.t, err)
	return outs
}

// Balance returns the committed balance of addr.
func (e *Env) Balance(addr common.Address) uint64 {
	return e.Processor.Account(addr).Balance.Uint64()
}

// RequireBig asserts that v is a *big.Int equal to want.
func RequireBig(t testing.TB, want uint64, v interface{}) {
	t.Helper()
	b, ok := v.(*big.Int)
	require.True(t, ok, "want *big.Int, have %T", v)
	require.Zero(t, b.Cmp(new(big.Int).SetUint64(want)), "want %d, have %s", want, b)
}
