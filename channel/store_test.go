package channel

import (
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func testChannel(id, balance, nonce uint64) PaymentChannel {
	return PaymentChannel{
		Address:    common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		Sender:     common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		Recipient:  common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc"),
		Balance:    uint256.NewInt(balance),
		Nonce:      uint256.NewInt(nonce),
		Expiration: uint256.NewInt(9999999999),
		ChannelID:  uint256.NewInt(id),
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	_, ok := s.Get(uint256.NewInt(1))
	require.False(t, ok)
}

func TestStore_UpsertThenGet(t *testing.T) {
	s := NewStore()
	ch := testChannel(1, 1000, 1)
	s.Upsert(ch.ChannelID, ch)

	got, ok := s.Get(ch.ChannelID)
	require.True(t, ok)
	require.Equal(t, ch.Balance.Dec(), got.Balance.Dec())
	require.Equal(t, ch.Nonce.Dec(), got.Nonce.Dec())
}

func TestStore_GetReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	ch := testChannel(1, 1000, 1)
	s.Upsert(ch.ChannelID, ch)

	got, _ := s.Get(ch.ChannelID)
	got.Balance.SetUint64(0)

	again, _ := s.Get(ch.ChannelID)
	require.Equal(t, "1000", again.Balance.Dec(), "mutating a snapshot must not affect the stored value")
}

func TestStore_WithLock_CommitsOnTrue(t *testing.T) {
	s := NewStore()
	id := uint256.NewInt(7)

	err := s.WithLock(id, func(current PaymentChannel, present bool) (PaymentChannel, bool, *AuthError) {
		require.False(t, present)
		return testChannel(7, 500, 0), true, nil
	})
	require.Nil(t, err)

	got, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, "500", got.Balance.Dec())
}

func TestStore_WithLock_SkipsCommitOnFalse(t *testing.T) {
	s := NewStore()
	id := uint256.NewInt(8)

	err := s.WithLock(id, func(current PaymentChannel, present bool) (PaymentChannel, bool, *AuthError) {
		return PaymentChannel{}, false, nil
	})
	require.Nil(t, err)

	_, ok := s.Get(id)
	require.False(t, ok, "commit=false must leave the store untouched")
}

func TestStore_WithLock_PropagatesError(t *testing.T) {
	s := NewStore()
	id := uint256.NewInt(9)

	err := s.WithLock(id, func(current PaymentChannel, present bool) (PaymentChannel, bool, *AuthError) {
		return PaymentChannel{}, false, newErr(KindInvalidNonce, "bad nonce")
	})
	require.NotNil(t, err)
	require.Equal(t, KindInvalidNonce, err.Kind)

	_, ok := s.Get(id)
	require.False(t, ok)
}

func TestStore_DistinctChannelsProgressIndependently(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := uint64(1); i <= 20; i++ {
		wg.Add(1)
		go func(i uint64) {
			defer wg.Done()
			s.Upsert(uint256.NewInt(i), testChannel(i, i*10, 1))
		}(i)
	}
	wg.Wait()

	for i := uint64(1); i <= 20; i++ {
		got, ok := s.Get(uint256.NewInt(i))
		require.True(t, ok)
		require.Equal(t, uint256.NewInt(i * 10).Dec(), got.Balance.Dec())
	}
}
