// Package ethsig signs and checks messages with the Ethereum signed-message
// prefix, the way wallets sign off-chain payment authorisations.
package ethsig

import (
	"crypto/ecdsa"
	"fadingrose/rosy-ledger/core/vm"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Digest returns the hash actually signed for message.
func Digest(message common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(message[:]))
}

// Sign signs message with key. V is returned as 27 or 28.
func Sign(key *ecdsa.PrivateKey, message common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(Digest(message).Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Verify reports whether sig over message was made by signer. Recovery is
// charged to ctx.
func Verify(ctx *vm.Context, message common.Hash, sig []byte, signer common.Address) bool {
	addr, ok := ctx.Ecrecover(Digest(message), sig)
	return ok && addr == signer
}
