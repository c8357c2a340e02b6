package ethsig

import (
	"fadingrose/rosy-ledger/core/vm"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func TestSignRecovers(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	msg := crypto.Keccak256Hash([]byte("pay 10"))

	sig, err := Sign(key, msg)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	require.Contains(t, []byte{27, 28}, sig[64])

	addr, ok := vm.Ecrecover(Digest(msg), sig)
	require.True(t, ok)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	// The raw hash is not what was signed.
	addr, ok = vm.Ecrecover(msg, sig)
	require.True(t, !ok || addr != crypto.PubkeyToAddress(key.PublicKey))
}

func TestDigestPrefix(t *testing.T) {
	msg := common.HexToHash("0x01")
	want := crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), msg[:])
	require.Equal(t, want, Digest(msg))
}
