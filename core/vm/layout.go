package vm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Slot returns the storage key of the n'th declared state variable.
func Slot(n uint64) common.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

// AddressKey left-pads addr into a mapping key.
func AddressKey(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// WordKey converts an integer into a mapping key.
func WordKey(v *uint256.Int) common.Hash {
	return common.Hash(v.Bytes32())
}

// MapKey returns the slot of mapping[key] for a mapping declared at slot:
// keccak256(key . slot).
func MapKey(slot, key common.Hash) common.Hash {
	return crypto.Keccak256Hash(key.Bytes(), slot.Bytes())
}

// Field returns the slot offset words past base, wrapping at 2^256.
func Field(base common.Hash, offset uint64) common.Hash {
	v := new(uint256.Int).SetBytes32(base.Bytes())
	v.Add(v, uint256.NewInt(offset))
	return common.Hash(v.Bytes32())
}

// ArrayElem returns the first slot of element index of a dynamic array
// declared at slot whose elements take size words each. The array length
// lives at slot itself.
func ArrayElem(slot common.Hash, index, size uint64) common.Hash {
	base := new(uint256.Int).SetBytes32(crypto.Keccak256(slot.Bytes()))
	off := new(uint256.Int).Mul(uint256.NewInt(index), uint256.NewInt(size))
	base.Add(base, off)
	return common.Hash(base.Bytes32())
}
