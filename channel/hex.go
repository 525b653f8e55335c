package channel

import (
	"encoding/hex"
	"strings"
)

// decodeHex decodes a hex string with an optional "0x"/"0X" prefix.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return hex.DecodeString(s)
}
