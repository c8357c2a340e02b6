package rawdb

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
)

var (
	accountPrefix = []byte("a") // accountPrefix + address -> RLP account
	codePrefix    = []byte("c") // codePrefix + code hash -> code
	storagePrefix = []byte("s") // storagePrefix + address + slot -> 32 byte value

	lastTimeKey = []byte("m:time")
)

func accountKey(addr common.Address) []byte {
	return append(append([]byte{}, accountPrefix...), addr.Bytes()...)
}

func codeKey(hash common.Hash) []byte {
	return append(append([]byte{}, codePrefix...), hash.Bytes()...)
}

func storageKey(addr common.Address, slot common.Hash) []byte {
	key := make([]byte, 0, len(storagePrefix)+common.AddressLength+common.HashLength)
	key = append(key, storagePrefix...)
	key = append(key, addr.Bytes()...)
	return append(key, slot.Bytes()...)
}

// ReadAccountRLP returns the encoded account stored for addr, or nil.
func ReadAccountRLP(db KeyValueReader, addr common.Address) ([]byte, error) {
	return db.Get(accountKey(addr))
}

func WriteAccountRLP(db KeyValueWriter, addr common.Address, data []byte) error {
	return db.Put(accountKey(addr), data)
}

// ReadCode returns the code stored under hash, or nil.
func ReadCode(db KeyValueReader, hash common.Hash) ([]byte, error) {
	return db.Get(codeKey(hash))
}

func WriteCode(db KeyValueWriter, hash common.Hash, code []byte) error {
	return db.Put(codeKey(hash), code)
}

// ReadStorage returns the committed value of a slot. Missing slots read as
// zero.
func ReadStorage(db KeyValueReader, addr common.Address, slot common.Hash) (common.Hash, error) {
	data, err := db.Get(storageKey(addr, slot))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// WriteStorage persists a slot value. Zero values are deleted so that a
// cleared slot and a never written slot look the same.
func WriteStorage(db KeyValueWriter, addr common.Address, slot, value common.Hash) error {
	if value == (common.Hash{}) {
		return db.Delete(storageKey(addr, slot))
	}
	return db.Put(storageKey(addr, slot), value.Bytes())
}

// ReadLastTime returns the clock value of the last committed call.
func ReadLastTime(db KeyValueReader) (uint64, error) {
	data, err := db.Get(lastTimeKey)
	if err != nil || len(data) != 8 {
		return 0, err
	}
	return binary.BigEndian.Uint64(data), nil
}

func WriteLastTime(db KeyValueWriter, t uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], t)
	return db.Put(lastTimeKey, buf[:])
}
