// Package arith implements fixed-width integer arithmetic for 8 to 256 bit
// signed and unsigned integers, in checked and wrapping modes.
package arith

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrTypeMismatch   = errors.New("operand type mismatch")
	ErrInvalidWidth   = errors.New("invalid integer width")
)

// Type is an integer type such as uint8 or int256.
type Type struct {
	bits   uint16
	signed bool
}

var (
	Uint8   = Type{8, false}
	Uint16  = Type{16, false}
	Uint32  = Type{32, false}
	Uint64  = Type{64, false}
	Uint128 = Type{128, false}
	Uint256 = Type{256, false}
	Int8    = Type{8, true}
	Int16   = Type{16, true}
	Int32   = Type{32, true}
	Int64   = Type{64, true}
	Int128  = Type{128, true}
	Int256  = Type{256, true}
)

// NewType returns the integer type of the given width. The width must be a
// multiple of 8 between 8 and 256.
func NewType(bits uint, signed bool) (Type, error) {
	if bits < 8 || bits > 256 || bits%8 != 0 {
		return Type{}, fmt.Errorf("%w: %d", ErrInvalidWidth, bits)
	}
	return Type{uint16(bits), signed}, nil
}

func (t Type) Bits() uint   { return uint(t.bits) }
func (t Type) Signed() bool { return t.signed }

func (t Type) String() string {
	if t.signed {
		return fmt.Sprintf("int%d", t.bits)
	}
	return fmt.Sprintf("uint%d", t.bits)
}

func (t Type) valid() bool { return t.bits >= 8 && t.bits <= 256 && t.bits%8 == 0 }

// Max returns the largest value representable by t.
func (t Type) Max() *big.Int {
	n := uint(t.bits)
	if t.signed {
		n--
	}
	m := new(big.Int).Lsh(big.NewInt(1), n)
	return m.Sub(m, big.NewInt(1))
}

// Min returns the smallest value representable by t.
func (t Type) Min() *big.Int {
	if !t.signed {
		return new(big.Int)
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(t.bits)-1)
	return m.Neg(m)
}

// FromBig returns x as a value of type t, failing when x is out of range.
func (t Type) FromBig(x *big.Int) (Value, error) {
	if !t.valid() {
		return Value{}, ErrInvalidWidth
	}
	if x.Cmp(t.Max()) > 0 {
		return Value{}, fmt.Errorf("%w: %s does not fit %s", ErrOverflow, x, t)
	}
	if x.Cmp(t.Min()) < 0 {
		return Value{}, fmt.Errorf("%w: %s does not fit %s", ErrUnderflow, x, t)
	}
	v := Value{typ: t}
	v.word.SetFromBig(x)
	return v, nil
}

func (t Type) FromUint64(x uint64) (Value, error) { return t.FromBig(new(big.Int).SetUint64(x)) }
func (t Type) FromInt64(x int64) (Value, error)   { return t.FromBig(big.NewInt(x)) }

// MustFromInt64 is FromInt64 for constants known to fit.
func (t Type) MustFromInt64(x int64) Value {
	v, err := t.FromInt64(x)
	if err != nil {
		panic(err)
	}
	return v
}

// FromWord interprets a 256-bit storage word as a value of type t. Bits above
// the width are discarded, the way a value is cleaned when loaded from a slot.
func (t Type) FromWord(w *uint256.Int) Value {
	v := Value{typ: t}
	t.clean(v.word.Set(w))
	return v
}

// clean truncates w to the width of t in place and sign-extends signed
// types, giving the canonical word of the result.
func (t Type) clean(w *uint256.Int) *uint256.Int {
	if t.bits == 256 {
		return w
	}
	if t.signed {
		return w.ExtendSign(w, uint256.NewInt(uint64(t.bits/8-1)))
	}
	return w.And(w, t.maxWord())
}

// fits reports whether w is already the canonical word of a value of t.
func (t Type) fits(w *uint256.Int) bool {
	return t.clean(new(uint256.Int).Set(w)).Eq(w)
}

// maxWord returns the word of Max.
func (t Type) maxWord() *uint256.Int {
	if t.signed {
		return new(uint256.Int).Sub(t.signBit(), uint256.NewInt(1))
	}
	if t.bits == 256 {
		return new(uint256.Int).SetAllOne()
	}
	m := new(uint256.Int).Lsh(uint256.NewInt(1), uint(t.bits))
	return m.Sub(m, uint256.NewInt(1))
}

// signBit returns 2^(bits-1), the magnitude of Min for signed types.
func (t Type) signBit() *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), uint(t.bits)-1)
}

// isMin reports whether w is the word of the smallest signed value.
func (t Type) isMin(w *uint256.Int) bool {
	return t.signed && w.Eq(new(uint256.Int).Neg(t.signBit()))
}

func signedBig(w *uint256.Int) *big.Int {
	if w.Sign() >= 0 {
		return w.ToBig()
	}
	abs := new(uint256.Int).Neg(w)
	return new(big.Int).Neg(abs.ToBig())
}
