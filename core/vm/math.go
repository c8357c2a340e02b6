package vm

import (
	"fadingrose/rosy-ledger/core/arith"

	"github.com/holiman/uint256"
)

// Checked uint256 helpers for contract logic.

func Add(x, y *uint256.Int) (*uint256.Int, error) {
	v, err := arith.Checked.Add(arith.U256(x), arith.U256(y))
	if err != nil {
		return nil, err
	}
	return v.Word(), nil
}

func Sub(x, y *uint256.Int) (*uint256.Int, error) {
	v, err := arith.Checked.Sub(arith.U256(x), arith.U256(y))
	if err != nil {
		return nil, err
	}
	return v.Word(), nil
}

func Mul(x, y *uint256.Int) (*uint256.Int, error) {
	v, err := arith.Checked.Mul(arith.U256(x), arith.U256(y))
	if err != nil {
		return nil, err
	}
	return v.Word(), nil
}

func Div(x, y *uint256.Int) (*uint256.Int, error) {
	v, err := arith.Checked.Div(arith.U256(x), arith.U256(y))
	if err != nil {
		return nil, err
	}
	return v.Word(), nil
}

func Mod(x, y *uint256.Int) (*uint256.Int, error) {
	v, err := arith.Checked.Mod(arith.U256(x), arith.U256(y))
	if err != nil {
		return nil, err
	}
	return v.Word(), nil
}
