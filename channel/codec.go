package channel

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Digest deterministically reconstructs the signed message pre-image from
// (channelID, balance, nonce, body): a packed concatenation of the three
// 256-bit integers in big-endian (32 bytes each) followed by the raw body
// bytes, hashed with Keccak-256. No length prefixes, no domain separator
// beyond field order — this must byte-exactly match the client's signing
// pre-image.
func Digest(channelID, balance, nonce *uint256.Int, body []byte) [32]byte {
	buf := make([]byte, 0, 96+len(body))
	buf = appendU256BE(buf, channelID)
	buf = appendU256BE(buf, balance)
	buf = appendU256BE(buf, nonce)
	buf = append(buf, body...)
	return [32]byte(crypto.Keccak256Hash(buf))
}

func appendU256BE(buf []byte, v *uint256.Int) []byte {
	var b [32]byte
	v.WriteToArray32(&b)
	return append(buf, b[:]...)
}
