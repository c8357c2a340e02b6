package arith

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Value is an integer of a fixed Type. Signed values are held as a
// sign-extended two's complement 256-bit word, so the word of any value can
// be written to a storage slot unchanged.
type Value struct {
	typ  Type
	word uint256.Int
}

// U256 wraps a storage word as a uint256 value.
func U256(w *uint256.Int) Value {
	return Value{typ: Uint256, word: *w}
}

func (v Value) Type() Type { return v.typ }

// Word returns a copy of the 256-bit representation.
func (v Value) Word() *uint256.Int {
	return new(uint256.Int).Set(&v.word)
}

// Big returns the mathematical value.
func (v Value) Big() *big.Int {
	if v.typ.signed {
		return signedBig(&v.word)
	}
	return v.word.ToBig()
}

func (v Value) Sign() int {
	if v.typ.signed {
		return v.word.Sign()
	}
	if v.word.IsZero() {
		return 0
	}
	return 1
}

func (v Value) IsZero() bool { return v.word.IsZero() }

// Cmp compares the mathematical values of v and o.
func (v Value) Cmp(o Value) int {
	switch {
	case v.typ.signed != o.typ.signed:
		return v.Big().Cmp(o.Big())
	case !v.typ.signed:
		return v.word.Cmp(&o.word)
	case v.word.Slt(&o.word):
		return -1
	case v.word.Sgt(&o.word):
		return 1
	}
	return 0
}

func (v Value) String() string { return v.Big().String() }
