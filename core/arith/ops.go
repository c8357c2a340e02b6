package arith

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Mode selects how out-of-range results are handled.
type Mode uint8

const (
	// Checked fails with ErrOverflow or ErrUnderflow.
	Checked Mode = iota
	// Wrapping truncates the result modulo 2^bits.
	Wrapping
)

func (m Mode) String() string {
	if m == Wrapping {
		return "wrapping"
	}
	return "checked"
}

func sameType(x, y Value) error {
	if x.typ != y.typ {
		return fmt.Errorf("%w: %s and %s", ErrTypeMismatch, x.typ, y.typ)
	}
	if !x.typ.valid() {
		return ErrInvalidWidth
	}
	return nil
}

// outOfRange classifies a result that left the range of its type by the
// sign of the exact result.
func outOfRange(negative bool) error {
	if negative {
		return ErrUnderflow
	}
	return ErrOverflow
}

// result finishes an operation whose 256-bit word z is exact whenever
// lost is false. Wrapping mode truncates z to the width of t.
func (m Mode) result(t Type, z *uint256.Int, lost, negative bool) (Value, error) {
	if m == Wrapping {
		return Value{typ: t, word: *t.clean(z)}, nil
	}
	if lost || !t.fits(z) {
		return Value{}, outOfRange(negative)
	}
	return Value{typ: t, word: *z}, nil
}

func (m Mode) Add(x, y Value) (Value, error) {
	if err := sameType(x, y); err != nil {
		return Value{}, err
	}
	z, carry := new(uint256.Int).AddOverflow(&x.word, &y.word)
	if !x.typ.signed {
		return m.result(x.typ, z, carry, false)
	}
	// Narrower operands cannot leave the 256-bit signed range, so only
	// int256 needs the sign rule.
	xneg, yneg := x.word.Sign() < 0, y.word.Sign() < 0
	lost := x.typ.bits == 256 && xneg == yneg && (z.Sign() < 0) != xneg
	return m.result(x.typ, z, lost, lostSign(lost, xneg, z))
}

func (m Mode) Sub(x, y Value) (Value, error) {
	if err := sameType(x, y); err != nil {
		return Value{}, err
	}
	z, borrow := new(uint256.Int).SubOverflow(&x.word, &y.word)
	if !x.typ.signed {
		return m.result(x.typ, z, borrow, true)
	}
	xneg, yneg := x.word.Sign() < 0, y.word.Sign() < 0
	lost := x.typ.bits == 256 && xneg != yneg && (z.Sign() < 0) != xneg
	return m.result(x.typ, z, lost, lostSign(lost, xneg, z))
}

// lostSign returns the sign of the exact result: the operand sign when the
// 256-bit word overflowed, the word's own sign otherwise.
func lostSign(lost, operandNeg bool, z *uint256.Int) bool {
	if lost {
		return operandNeg
	}
	return z.Sign() < 0
}

func (m Mode) Mul(x, y Value) (Value, error) {
	if err := sameType(x, y); err != nil {
		return Value{}, err
	}
	t := x.typ
	if m == Wrapping {
		return m.result(t, new(uint256.Int).Mul(&x.word, &y.word), false, false)
	}
	if !t.signed {
		z, over := new(uint256.Int).MulOverflow(&x.word, &y.word)
		return m.result(t, z, over, false)
	}
	negative := (x.word.Sign() < 0) != (y.word.Sign() < 0) && !x.IsZero() && !y.IsZero()
	mag, over := new(uint256.Int).MulOverflow(new(uint256.Int).Abs(&x.word), new(uint256.Int).Abs(&y.word))
	if over || !withinMagnitude(t, mag, negative) {
		return Value{}, outOfRange(negative)
	}
	if negative {
		mag.Neg(mag)
	}
	return Value{typ: t, word: *mag}, nil
}

// withinMagnitude reports whether a result of magnitude mag and the given
// sign is representable by t.
func withinMagnitude(t Type, mag *uint256.Int, negative bool) bool {
	if !t.signed {
		return !negative && !mag.Gt(t.maxWord())
	}
	if negative {
		return !mag.Gt(t.signBit())
	}
	return mag.Lt(t.signBit())
}

// Div truncates toward zero. Division by zero fails in both modes.
func (m Mode) Div(x, y Value) (Value, error) {
	if err := sameType(x, y); err != nil {
		return Value{}, err
	}
	if y.IsZero() {
		return Value{}, ErrDivisionByZero
	}
	if !x.typ.signed {
		return Value{typ: x.typ, word: *new(uint256.Int).Div(&x.word, &y.word)}, nil
	}
	// Min / -1 is the one quotient outside the signed range.
	lost := x.typ.isMin(&x.word) && y.word.Eq(new(uint256.Int).SetAllOne())
	return m.result(x.typ, new(uint256.Int).SDiv(&x.word, &y.word), lost, false)
}

// Mod returns the remainder of truncated division; the result carries the
// sign of the dividend.
func (m Mode) Mod(x, y Value) (Value, error) {
	if err := sameType(x, y); err != nil {
		return Value{}, err
	}
	if y.IsZero() {
		return Value{}, ErrDivisionByZero
	}
	z := new(uint256.Int)
	if x.typ.signed {
		z.SMod(&x.word, &y.word)
	} else {
		z.Mod(&x.word, &y.word)
	}
	return Value{typ: x.typ, word: *z}, nil
}

// Neg returns -x.
func (m Mode) Neg(x Value) (Value, error) {
	t := x.typ
	if !t.valid() {
		return Value{}, ErrInvalidWidth
	}
	z := new(uint256.Int).Neg(&x.word)
	if !t.signed {
		return m.result(t, z, !x.IsZero(), true)
	}
	return m.result(t, z, t.isMin(&x.word), false)
}

// Exp returns x**e. The exponent must be unsigned.
func (m Mode) Exp(x, e Value) (Value, error) {
	if e.typ.signed {
		return Value{}, fmt.Errorf("%w: exponent must be unsigned, have %s", ErrTypeMismatch, e.typ)
	}
	t := x.typ
	if !t.valid() {
		return Value{}, ErrInvalidWidth
	}
	if m == Wrapping {
		return m.result(t, new(uint256.Int).Exp(&x.word, &e.word), false, false)
	}
	var (
		base     = new(uint256.Int).Set(&x.word)
		negative = false
	)
	if t.signed && x.word.Sign() < 0 {
		base.Abs(base)
		negative = e.word.Uint64()&1 == 1
	}
	one := uint256.NewInt(1)
	// A magnitude of at most one never leaves the range.
	if !base.Gt(one) {
		z := new(uint256.Int).Exp(&x.word, &e.word)
		return Value{typ: t, word: *z}, nil
	}
	// The magnitude is at least two, so an exponent of 256 or more exceeds
	// every width.
	if !e.word.IsUint64() || e.word.Uint64() >= 256 {
		return Value{}, outOfRange(negative)
	}
	n := e.word.Uint64()
	acc := uint256.NewInt(1)
	for i := 7; i >= 0; i-- {
		var over bool
		if acc, over = acc.MulOverflow(acc, acc); over {
			return Value{}, outOfRange(negative)
		}
		if n>>uint(i)&1 == 1 {
			if acc, over = acc.MulOverflow(acc, base); over {
				return Value{}, outOfRange(negative)
			}
		}
		// Magnitudes only grow, so the final result is out of range too.
		if !withinMagnitude(t, acc, true) && !withinMagnitude(t, acc, false) {
			return Value{}, outOfRange(negative)
		}
	}
	if !withinMagnitude(t, acc, negative) {
		return Value{}, outOfRange(negative)
	}
	if negative {
		acc.Neg(acc)
	}
	return Value{typ: t, word: *acc}, nil
}

// Shl shifts left by n bits. Bits shifted past the width are discarded in
// both modes.
func (m Mode) Shl(x Value, n uint) (Value, error) {
	if !x.typ.valid() {
		return Value{}, ErrInvalidWidth
	}
	z := new(uint256.Int)
	if n < x.typ.Bits() {
		z.Lsh(&x.word, n)
	}
	return Value{typ: x.typ, word: *x.typ.clean(z)}, nil
}

// Shr shifts right by n bits. Signed values shift arithmetically, rounding
// toward negative infinity.
func (m Mode) Shr(x Value, n uint) (Value, error) {
	if !x.typ.valid() {
		return Value{}, ErrInvalidWidth
	}
	z := new(uint256.Int)
	if x.typ.signed {
		z.SRsh(&x.word, n)
	} else {
		z.Rsh(&x.word, n)
	}
	return Value{typ: x.typ, word: *z}, nil
}

// Convert changes the type of x. Checked conversion fails when the value
// does not fit the target; wrapping conversion truncates.
func (m Mode) Convert(x Value, to Type) (Value, error) {
	if !to.valid() {
		return Value{}, ErrInvalidWidth
	}
	negative := x.typ.signed && x.word.Sign() < 0
	z := new(uint256.Int).Set(&x.word)
	if m == Wrapping {
		return Value{typ: to, word: *to.clean(z)}, nil
	}
	switch {
	case negative && !to.signed:
		return Value{}, ErrUnderflow
	case !negative && to.signed && z.Sign() < 0:
		// An unsigned value of 2^255 or more has no signed word.
		return Value{}, ErrOverflow
	case !to.fits(z):
		return Value{}, outOfRange(negative)
	}
	return Value{typ: to, word: *z}, nil
}
