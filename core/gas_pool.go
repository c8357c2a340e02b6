package core

import (
	"errors"
	"fmt"
	"math"
)

// ErrGasLimitReached is returned when a message asks for more gas than the
// runtime grants a single call.
var ErrGasLimitReached = errors.New("gas limit reached")

// GasPool tracks the amount of gas available to a top-level call. The zero
// value is a pool with zero gas available.
type GasPool uint64

// SubGas deducts the given amount from the pool if enough gas is
// available and returns an error otherwise.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return fmt.Errorf("%w: have %d, want %d", ErrGasLimitReached, uint64(*gp), amount)
	}
	*(*uint64)(gp) -= amount
	return nil
}

// AddGas makes gas available for execution.
func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > math.MaxUint64-amount {
		panic("gas pool pushed above uint64")
	}
	*(*uint64)(gp) += amount
	return gp
}

// Gas returns the amount of gas remaining in the pool.
func (gp *GasPool) Gas() uint64 {
	return uint64(*gp)
}

func (gp *GasPool) String() string {
	return fmt.Sprintf("%d", *gp)
}
