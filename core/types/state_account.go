package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// EmptyCodeHash is the code hash of an account without a contract.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// StateAccount is the ledger representation of an account. Code is the name
// of a registered contract definition; CodeHash is its keccak256 hash.
type StateAccount struct {
	Nonce    uint64
	Balance  *uint256.Int
	CodeHash []byte
}

// NewEmptyStateAccount constructs an empty state account.
func NewEmptyStateAccount() *StateAccount {
	return &StateAccount{
		Balance:  new(uint256.Int),
		CodeHash: EmptyCodeHash.Bytes(),
	}
}

func (acc *StateAccount) Copy() *StateAccount {
	return &StateAccount{
		Nonce:    acc.Nonce,
		Balance:  new(uint256.Int).Set(acc.Balance),
		CodeHash: common.CopyBytes(acc.CodeHash),
	}
}

// storedAccount is the on-disk form.
type storedAccount struct {
	Nonce    uint64
	Balance  *big.Int
	CodeHash []byte
}

// EncodeAccount serializes acc with RLP.
func EncodeAccount(acc *StateAccount) ([]byte, error) {
	return rlp.EncodeToBytes(&storedAccount{
		Nonce:    acc.Nonce,
		Balance:  acc.Balance.ToBig(),
		CodeHash: acc.CodeHash,
	})
}

// DecodeAccount parses an account written by EncodeAccount.
func DecodeAccount(data []byte) (*StateAccount, error) {
	var sa storedAccount
	if err := rlp.DecodeBytes(data, &sa); err != nil {
		return nil, err
	}
	balance, overflow := uint256.FromBig(sa.Balance)
	if overflow {
		return nil, rlp.ErrValueTooLarge
	}
	return &StateAccount{Nonce: sa.Nonce, Balance: balance, CodeHash: sa.CodeHash}, nil
}
