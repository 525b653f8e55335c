package channel

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_AdmitsUpToLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	sender := common.HexToAddress("0x1111111111111111111111111111111111111111")

	for i := 0; i < 3; i++ {
		require.Nil(t, rl.Charge(sender), "request %d within the limit must be admitted", i+1)
	}

	err := rl.Charge(sender)
	require.NotNil(t, err, "the request past the limit must be rejected")
	require.Equal(t, KindRateLimitExceeded, err.Kind)
}

func TestRateLimiter_DistinctSendersHaveSeparateWindows(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	a := common.HexToAddress("0x1111111111111111111111111111111111111111")
	b := common.HexToAddress("0x2222222222222222222222222222222222222222")

	require.Nil(t, rl.Charge(a))
	require.Nil(t, rl.Charge(b), "a different sender's window must not be affected by a's usage")
	require.NotNil(t, rl.Charge(a))
}

func TestRateLimiter_WindowResets(t *testing.T) {
	rl := NewRateLimiter(1, 20*time.Millisecond)
	sender := common.HexToAddress("0x3333333333333333333333333333333333333333")

	require.Nil(t, rl.Charge(sender))
	require.NotNil(t, rl.Charge(sender))

	time.Sleep(30 * time.Millisecond)
	require.Nil(t, rl.Charge(sender), "a new window must reset the sender's count")
}
