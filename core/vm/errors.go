package vm

import (
	"errors"
	"fadingrose/rosy-ledger/core/arith"
	"fadingrose/rosy-ledger/core/state"
	"fmt"
)

// List contract execution errors
var (
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidState           = errors.New("invalid state")
	ErrInsufficientBalance    = state.ErrInsufficientBalance
	ErrOverflow               = arith.ErrOverflow
	ErrUnderflow              = arith.ErrUnderflow
	ErrDivisionByZero         = arith.ErrDivisionByZero
	ErrDelegationCycle        = errors.New("delegation cycle")
	ErrInvalidSignatureOrHash = errors.New("invalid signature or hash")
	ErrBoundsViolation        = errors.New("index out of bounds")
	ErrInvalidValue           = errors.New("invalid value")

	ErrNoEntryPoint             = errors.New("no such entry point")
	ErrNotExternal              = errors.New("entry point not externally callable")
	ErrNotPayable               = errors.New("entry point not payable")
	ErrInvalidInput             = errors.New("invalid input")
	ErrOutOfGas                 = errors.New("out of gas")
	ErrDepth                    = errors.New("max call depth exceeded")
	ErrWriteProtection          = errors.New("write protection")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrUnknownContract          = errors.New("unknown contract definition")
)

// RevertError is returned by contract logic that rejects a call. It wraps
// one of the sentinel errors above and carries a diagnostic reason.
type RevertError struct {
	kind   error
	reason string
}

// Revert builds a RevertError of the given kind.
func Revert(kind error, format string, args ...interface{}) error {
	return &RevertError{kind: kind, reason: fmt.Sprintf(format, args...)}
}

func (e *RevertError) Error() string {
	if e.reason == "" {
		return e.kind.Error()
	}
	return e.kind.Error() + ": " + e.reason
}

func (e *RevertError) Unwrap() error { return e.kind }

// Reason returns the diagnostic message.
func (e *RevertError) Reason() string { return e.reason }

var classes = []struct {
	err  error
	name string
}{
	{ErrUnauthorized, "Unauthorized"},
	{ErrInvalidState, "InvalidState"},
	{ErrInsufficientBalance, "InsufficientBalance"},
	{ErrOverflow, "Overflow"},
	{ErrUnderflow, "Underflow"},
	{ErrDivisionByZero, "DivisionByZero"},
	{ErrDelegationCycle, "DelegationCycle"},
	{ErrInvalidSignatureOrHash, "InvalidSignatureOrHash"},
	{ErrBoundsViolation, "BoundsViolation"},
	{ErrInvalidValue, "InvalidValue"},
	{ErrNoEntryPoint, "NoEntryPoint"},
	{ErrNotExternal, "NotExternal"},
	{ErrNotPayable, "NotPayable"},
	{ErrInvalidInput, "InvalidInput"},
	{ErrOutOfGas, "OutOfGas"},
	{ErrDepth, "Depth"},
	{ErrWriteProtection, "WriteProtection"},
	{ErrContractAddressCollision, "ContractAddressCollision"},
	{ErrUnknownContract, "UnknownContract"},
}

// Classify names the failure class of err, or returns "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range classes {
		if errors.Is(err, c.err) {
			return c.name
		}
	}
	return "Error"
}

// consumesAllGas reports whether a failure burns the frame's remaining gas
// instead of returning it to the caller.
func consumesAllGas(err error) bool {
	return errors.Is(err, ErrOutOfGas) || errors.Is(err, ErrDepth)
}
