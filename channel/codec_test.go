package channel

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func TestDigest_DeterministicAndOrderSensitive(t *testing.T) {
	channelID := uint256.NewInt(1)
	balance := uint256.NewInt(1000)
	nonce := uint256.NewInt(6)
	body := []byte("hello")

	d1 := Digest(channelID, balance, nonce, body)
	d2 := Digest(channelID, balance, nonce, body)
	require.Equal(t, d1, d2, "digest must be a deterministic function of its inputs")

	other := Digest(channelID, balance, uint256.NewInt(7), body)
	require.NotEqual(t, d1, other, "changing nonce must change the digest")

	otherBody := Digest(channelID, balance, nonce, []byte("goodbye"))
	require.NotEqual(t, d1, otherBody, "changing body must change the digest")
}

func TestDigest_EmptyBody(t *testing.T) {
	d := Digest(uint256.NewInt(1), uint256.NewInt(0), uint256.NewInt(0), nil)
	require.NotEqual(t, [32]byte{}, d)
}
