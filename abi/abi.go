// Package abi implements the two encodings used by the runtime: the typed
// encoding, where every value occupies whole 32-byte words and decoding is
// unambiguous, and the packed encoding, which concatenates values without
// padding and is only used to build hash commitments.
package abi

import (
	"errors"
	"fmt"
	"strings"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

type (
	Type      = ethabi.Type
	Argument  = ethabi.Argument
	Arguments = ethabi.Arguments
	Event     = ethabi.Event
)

var (
	ErrNonCanonical = errors.New("abi: non-canonical encoding")
	ErrUnsupported  = errors.New("abi: unsupported type")
)

// NewArguments builds an argument list from declarations of the form
// "<type> [indexed] [name]", e.g. "uint256 amount" or "address indexed bidder".
func NewArguments(decls ...string) (Arguments, error) {
	args := make(Arguments, 0, len(decls))
	for i, decl := range decls {
		fields := strings.Fields(decl)
		if len(fields) == 0 || len(fields) > 3 {
			return nil, fmt.Errorf("abi: malformed declaration %q", decl)
		}
		typ, err := ethabi.NewType(fields[0], "", nil)
		if err != nil {
			return nil, fmt.Errorf("abi: declaration %q: %w", decl, err)
		}
		arg := Argument{Type: typ}
		rest := fields[1:]
		if len(rest) > 0 && rest[0] == "indexed" {
			arg.Indexed = true
			rest = rest[1:]
		}
		switch len(rest) {
		case 0:
			arg.Name = fmt.Sprintf("arg%d", i)
		case 1:
			arg.Name = rest[0]
		default:
			return nil, fmt.Errorf("abi: malformed declaration %q", decl)
		}
		args = append(args, arg)
	}
	return args, nil
}

// MustArguments is NewArguments for package-level declarations.
func MustArguments(decls ...string) Arguments {
	args, err := NewArguments(decls...)
	if err != nil {
		panic(err)
	}
	return args
}

// NewEvent declares a notification with the given fields.
func NewEvent(name string, decls ...string) (Event, error) {
	args, err := NewArguments(decls...)
	if err != nil {
		return Event{}, err
	}
	return ethabi.NewEvent(name, name, false, args), nil
}

func MustEvent(name string, decls ...string) Event {
	ev, err := NewEvent(name, decls...)
	if err != nil {
		panic(err)
	}
	return ev
}

// Signature renders name(type,...) for the argument list.
func Signature(name string, args Arguments) string {
	types := make([]string, len(args))
	for i, arg := range args {
		types[i] = arg.Type.String()
	}
	return name + "(" + strings.Join(types, ",") + ")"
}

// Keccak hashes the concatenation of data.
func Keccak(data ...[]byte) common.Hash {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	var h common.Hash
	d.Sum(h[:0])
	return h
}

// MakeTopics returns the topic for each indexed value.
func MakeTopics(values ...interface{}) ([]common.Hash, error) {
	query := make([][]interface{}, len(values))
	for i, v := range values {
		query[i] = []interface{}{v}
	}
	topics, err := ethabi.MakeTopics(query...)
	if err != nil {
		return nil, err
	}
	out := make([]common.Hash, len(topics))
	for i, t := range topics {
		out[i] = t[0]
	}
	return out, nil
}

// DecodeEvent reassembles the fields of an emitted notification.
func DecodeEvent(ev Event, topics []common.Hash, data []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(ev.Inputs))
	if len(topics) == 0 || topics[0] != ev.ID {
		return nil, fmt.Errorf("abi: notification is not %s", ev.Sig)
	}
	var indexed Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if err := ethabi.ParseTopicsIntoMap(out, indexed, topics[1:]); err != nil {
		return nil, err
	}
	if len(ev.Inputs.NonIndexed()) > 0 {
		if err := ev.Inputs.UnpackIntoMap(out, data); err != nil {
			return nil, err
		}
	}
	return out, nil
}
