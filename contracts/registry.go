// Package contracts collects the built-in contract definitions.
package contracts

import (
	"fadingrose/rosy-ledger/contracts/auction"
	"fadingrose/rosy-ledger/contracts/ballot"
	"fadingrose/rosy-ledger/contracts/blindauction"
	"fadingrose/rosy-ledger/contracts/channel"
	"fadingrose/rosy-ledger/contracts/coin"
	"fadingrose/rosy-ledger/contracts/purchase"
	"fadingrose/rosy-ledger/contracts/receiverpays"
	"fadingrose/rosy-ledger/core/vm"
)

// Definitions returns fresh copies of every built-in contract.
func Definitions() []*vm.Definition {
	return []*vm.Definition{
		auction.Definition(),
		ballot.Definition(),
		blindauction.Definition(),
		channel.Definition(),
		coin.Definition(),
		purchase.Definition(),
		receiverpays.Definition(),
	}
}

// NewRegistry returns a registry holding every built-in contract.
func NewRegistry() *vm.Registry {
	r := vm.NewRegistry()
	r.MustRegister(Definitions()...)
	return r
}
