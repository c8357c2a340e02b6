package abi

import (
	"fadingrose/rosy-ledger/core/arith"
	"fmt"
	"math/big"
	"reflect"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// EncodePacked concatenates values using their minimal width: intN and uintN
// take N/8 bytes, address 20, bool 1, bytesN N, and dynamic bytes or strings
// their raw contents. Array elements are padded to 32 bytes each. The result
// is ambiguous when more than one dynamic value is packed.
func EncodePacked(args Arguments, values ...interface{}) ([]byte, error) {
	if len(args) != len(values) {
		return nil, fmt.Errorf("abi: packed argument count mismatch: have %d, want %d", len(values), len(args))
	}
	var out []byte
	for i, arg := range args {
		b, err := packElement(arg.Type, values[i], false)
		if err != nil {
			return nil, fmt.Errorf("abi: packing %s: %w", arg.Name, err)
		}
		out = append(out, b...)
	}
	return out, nil
}

// PackedHash is keccak256 over the packed encoding, the usual way to build a
// commitment.
func PackedHash(args Arguments, values ...interface{}) (common.Hash, error) {
	data, err := EncodePacked(args, values...)
	if err != nil {
		return common.Hash{}, err
	}
	return Keccak(data), nil
}

func packElement(t Type, v interface{}, padded bool) ([]byte, error) {
	switch t.T {
	case ethabi.UintTy, ethabi.IntTy:
		x, err := toBig(v)
		if err != nil {
			return nil, err
		}
		typ, err := arith.NewType(uint(t.Size), t.T == ethabi.IntTy)
		if err != nil {
			return nil, err
		}
		val, err := typ.FromBig(x)
		if err != nil {
			return nil, err
		}
		word := val.Word().Bytes32()
		if padded {
			return word[:], nil
		}
		return word[32-t.Size/8:], nil

	case ethabi.AddressTy:
		addr, ok := v.(common.Address)
		if !ok {
			return nil, fmt.Errorf("address expected, have %T", v)
		}
		if padded {
			return common.LeftPadBytes(addr[:], 32), nil
		}
		return addr.Bytes(), nil

	case ethabi.BoolTy:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("bool expected, have %T", v)
		}
		var out byte
		if b {
			out = 1
		}
		if padded {
			return common.LeftPadBytes([]byte{out}, 32), nil
		}
		return []byte{out}, nil

	case ethabi.FixedBytesTy:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Array || rv.Len() != t.Size || rv.Type().Elem().Kind() != reflect.Uint8 {
			return nil, fmt.Errorf("bytes%d expected, have %T", t.Size, v)
		}
		b := make([]byte, t.Size)
		reflect.Copy(reflect.ValueOf(b), rv)
		if padded {
			return common.RightPadBytes(b, 32), nil
		}
		return b, nil

	case ethabi.BytesTy, ethabi.StringTy:
		if padded {
			return nil, fmt.Errorf("%w: dynamic %s inside an array", ErrUnsupported, t)
		}
		switch b := v.(type) {
		case []byte:
			return common.CopyBytes(b), nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("%s expected, have %T", t, v)

	case ethabi.SliceTy, ethabi.ArrayTy:
		if padded {
			return nil, fmt.Errorf("%w: nested array %s", ErrUnsupported, t)
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, fmt.Errorf("%s expected, have %T", t, v)
		}
		var out []byte
		for i := 0; i < rv.Len(); i++ {
			b, err := packElement(*t.Elem, rv.Index(i).Interface(), true)
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
}

func toBig(v interface{}) (*big.Int, error) {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil, fmt.Errorf("nil integer")
		}
		return x, nil
	case *uint256.Int:
		return x.ToBig(), nil
	case arith.Value:
		return x.Big(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return big.NewInt(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return new(big.Int).SetUint64(rv.Uint()), nil
	}
	return nil, fmt.Errorf("integer expected, have %T", v)
}
