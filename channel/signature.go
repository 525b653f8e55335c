package channel

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the wire size of an ECDSA secp256k1 signature:
// r (32) || s (32) || v (1).
const SignatureLength = 65

// secp256k1HalfN is the half order of the secp256k1 curve. Signatures with
// s above this value are the "other" canonical representative of the same
// signature and are rejected, matching Ethereum's standard malleability
// rule.
var secp256k1HalfN = new(big.Int).Rsh(crypto.S256().Params().N, 1)

// Recover returns the address that produced sig over digest. digest is
// treated as the already-hashed message — no further prefixing is applied;
// the signed pre-image is exactly Digest's output.
func Recover(digest [32]byte, sig [SignatureLength]byte) (common.Address, error) {
	s := new(big.Int).SetBytes(sig[32:64])
	if s.Cmp(secp256k1HalfN) > 0 {
		return common.Address{}, fmt.Errorf("non-canonical signature: s exceeds secp256k1 half order")
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v != 0 && v != 1 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}

	recoverable := make([]byte, SignatureLength)
	copy(recoverable, sig[:64])
	recoverable[64] = v

	pub, err := crypto.SigToPub(digest[:], recoverable)
	if err != nil {
		return common.Address{}, fmt.Errorf("signature recovery failed: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ParseSignatureHex decodes a hex-encoded signature (optional "0x" prefix)
// into its fixed-size wire form, enforcing the 65-byte r||s||v length.
func ParseSignatureHex(s string) ([SignatureLength]byte, error) {
	var out [SignatureLength]byte
	b, err := decodeHex(s)
	if err != nil {
		return out, err
	}
	if len(b) != SignatureLength {
		return out, fmt.Errorf("signature must be %d bytes, got %d", SignatureLength, len(b))
	}
	copy(out[:], b)
	return out, nil
}

// ParseDigestHex decodes a hex-encoded 32-byte digest (optional "0x"
// prefix).
func ParseDigestHex(s string) ([32]byte, error) {
	var out [32]byte
	b, err := decodeHex(s)
	if err != nil {
		return out, err
	}
	if len(b) != 32 {
		return out, fmt.Errorf("digest must be 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
