package abi

import (
	"fadingrose/rosy-ledger/core/arith"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseValues converts textual arguments, as typed on a command line or sent
// in a JSON request, into the Go values expected by Encode.
func ParseValues(args Arguments, params []string) ([]interface{}, error) {
	if len(args) != len(params) {
		return nil, fmt.Errorf("abi: want %d arguments, have %d", len(args), len(params))
	}
	out := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := ParseValue(arg.Type, params[i])
		if err != nil {
			return nil, fmt.Errorf("abi: argument %s: %w", arg.Name, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseValue converts s into a value of type t. Integers accept decimal or
// 0x-prefixed hex, fixed bytes accept hex or plain text, and arrays are
// written as [a,b,c].
func ParseValue(t Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t.T {
	case ethabi.UintTy, ethabi.IntTy:
		x, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		typ, err := arith.NewType(uint(t.Size), t.T == ethabi.IntTy)
		if err != nil {
			return nil, err
		}
		if _, err := typ.FromBig(x); err != nil {
			return nil, err
		}
		rt := t.GetType()
		if rt == reflect.TypeOf(x) {
			return x, nil
		}
		rv := reflect.New(rt).Elem()
		if t.T == ethabi.IntTy {
			rv.SetInt(x.Int64())
		} else {
			rv.SetUint(x.Uint64())
		}
		return rv.Interface(), nil

	case ethabi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid address %q", s)
		}
		return common.HexToAddress(s), nil

	case ethabi.BoolTy:
		return strconv.ParseBool(s)

	case ethabi.FixedBytesTy:
		b := []byte(s)
		if strings.HasPrefix(s, "0x") {
			var err error
			if b, err = hexutil.Decode(s); err != nil {
				return nil, err
			}
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%q exceeds %d bytes", s, t.Size)
		}
		rv := reflect.New(t.GetType()).Elem()
		reflect.Copy(rv, reflect.ValueOf(b))
		return rv.Interface(), nil

	case ethabi.BytesTy:
		return hexutil.Decode(s)

	case ethabi.StringTy:
		return s, nil

	case ethabi.SliceTy, ethabi.ArrayTy:
		if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("array %q must be enclosed in brackets", s)
		}
		inner := strings.TrimSpace(s[1 : len(s)-1])
		var items []string
		if inner != "" {
			items = strings.Split(inner, ",")
		}
		if t.T == ethabi.ArrayTy && len(items) != t.Size {
			return nil, fmt.Errorf("array needs %d elements, have %d", t.Size, len(items))
		}
		rt := t.GetType()
		var rv reflect.Value
		if t.T == ethabi.SliceTy {
			rv = reflect.MakeSlice(rt, len(items), len(items))
		} else {
			rv = reflect.New(rt).Elem()
		}
		for i, item := range items {
			v, err := ParseValue(*t.Elem, item)
			if err != nil {
				return nil, err
			}
			rv.Index(i).Set(reflect.ValueOf(v))
		}
		return rv.Interface(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, t)
}

// FormatValue renders a decoded value for display.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case string:
		return strconv.Quote(x)
	case bool:
		return strconv.FormatBool(x)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		fallthrough
	case reflect.Slice:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = FormatValue(rv.Index(i).Interface())
		}
		return "[" + strings.Join(parts, ",") + "]"
	}
	return fmt.Sprint(v)
}
