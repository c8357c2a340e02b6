package terminal

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type Flag interface {
	Names() []string
	Parse(string) (name string, val any, err error)
}

// FlagBase is a command flag holding a T. Supported types are uint64,
// string, bool, common.Address and *big.Int.
type FlagBase[T any] struct {
	Name  string
	Alias []string
}

func (f FlagBase[T]) Names() []string {
	return append([]string{"--" + f.Name}, f.Alias...)
}

func (f FlagBase[T]) Parse(s string) (name string, val any, err error) {
	var zero T
	switch any(zero).(type) {
	case uint64:
		var v uint64
		if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
			v, err = strconv.ParseUint(s[2:], 16, 64)
		} else {
			v, err = strconv.ParseUint(s, 10, 64)
		}
		if err != nil {
			return "", nil, fmt.Errorf("error parsing %s as uint64: %v", s, err)
		}
		val = v
	case string:
		val = s
	case bool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return "", nil, fmt.Errorf("error parsing %s as bool: %v", s, err)
		}
		val = v
	case common.Address:
		if !common.IsHexAddress(s) {
			return "", nil, fmt.Errorf("error parsing %s as address", s)
		}
		val = common.HexToAddress(s)
	case *big.Int:
		v, ok := new(big.Int).SetString(s, 0)
		if !ok || v.Sign() < 0 {
			return "", nil, fmt.Errorf("error parsing %s as amount", s)
		}
		val = v
	default:
		panic(fmt.Sprintf("unsupported flag type %T", zero))
	}
	return f.Name, val, nil
}

// parseArgs splits argstr into flag values and positional arguments. Every
// flag takes exactly one value.
func parseArgs(flags []Flag, argstr string) (map[string]any, []string, error) {
	var (
		values = make(map[string]any)
		pos    []string
		tokens = strings.Fields(argstr)
	)
	for i := 0; i < len(tokens); i++ {
		flag := findFlag(flags, tokens[i])
		if flag == nil {
			pos = append(pos, tokens[i])
			continue
		}
		if i+1 == len(tokens) {
			return nil, nil, fmt.Errorf("flag %s needs a value", tokens[i])
		}
		i++
		name, val, err := flag.Parse(tokens[i])
		if err != nil {
			return nil, nil, err
		}
		values[name] = val
	}
	return values, pos, nil
}

func findFlag(flags []Flag, token string) Flag {
	for _, f := range flags {
		for _, n := range f.Names() {
			if n == token {
				return f
			}
		}
	}
	return nil
}
