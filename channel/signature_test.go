package channel

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestRecover_RoundTrip(t *testing.T) {
	digest := Digest(uint256.NewInt(1), uint256.NewInt(1000), uint256.NewInt(1), []byte("body"))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	expected := crypto.PubkeyToAddress(key.PublicKey)

	sigBytes, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)
	var sig [SignatureLength]byte
	copy(sig[:], sigBytes)

	recovered, err := Recover(digest, sig)
	require.NoError(t, err)
	require.Equal(t, expected, recovered)
}

func TestRecover_WrongSignerMismatch(t *testing.T) {
	digest := Digest(uint256.NewInt(1), uint256.NewInt(1000), uint256.NewInt(1), []byte("body"))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	sigBytes, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)
	var sig [SignatureLength]byte
	copy(sig[:], sigBytes)

	recovered, err := Recover(digest, sig)
	require.NoError(t, err)
	require.NotEqual(t, crypto.PubkeyToAddress(other.PublicKey), recovered)
}

func TestRecover_NonCanonicalSRejected(t *testing.T) {
	digest := Digest(uint256.NewInt(1), uint256.NewInt(1000), uint256.NewInt(1), []byte("body"))
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sigBytes, err := crypto.Sign(digest[:], key)
	require.NoError(t, err)

	var sig [SignatureLength]byte
	copy(sig[:], sigBytes)
	// Flip s to the curve's "other" canonical representative by setting it
	// above the half order — force an out-of-range value.
	for i := 32; i < 64; i++ {
		sig[i] = 0xff
	}

	_, err = Recover(digest, sig)
	require.Error(t, err)
}

func TestParseSignatureHex(t *testing.T) {
	raw := make([]byte, SignatureLength)
	for i := range raw {
		raw[i] = byte(i)
	}
	hexStr := "0x"
	for _, b := range raw {
		hexStr += string("0123456789abcdef"[b>>4]) + string("0123456789abcdef"[b&0xf])
	}

	sig, err := ParseSignatureHex(hexStr)
	require.NoError(t, err)
	require.Equal(t, raw, sig[:])

	_, err = ParseSignatureHex("0xdead")
	require.Error(t, err, "wrong-length signature must be rejected")
}
