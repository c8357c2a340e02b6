package abi

import (
	"bytes"
	"fmt"
)

// Encode produces the typed encoding of values.
func Encode(args Arguments, values ...interface{}) ([]byte, error) {
	return args.Pack(values...)
}

// Decode parses typed-encoded data. The input must be exactly the canonical
// encoding of the decoded values: dirty padding, trailing bytes and
// non-standard offsets are rejected.
func Decode(args Arguments, data []byte) ([]interface{}, error) {
	if len(data)%32 != 0 {
		return nil, fmt.Errorf("%w: length %d is not word aligned", ErrNonCanonical, len(data))
	}
	values, err := args.Unpack(data)
	if err != nil {
		return nil, err
	}
	again, err := args.Pack(values...)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(again, data) {
		return nil, ErrNonCanonical
	}
	return values, nil
}
