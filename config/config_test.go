package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "84532", cfg.ChainID.String())
	require.Equal(t, "https://sepolia.base.org", cfg.RPCURL)
	require.Equal(t, uint64(100), cfg.RateLimit)
	require.Equal(t, uint64(60), cfg.RateWindowSeconds)
	require.Equal(t, uint64(300), cfg.FreshnessWindowSeconds)
	require.Equal(t, ":8080", cfg.ListenAddr)
	require.Empty(t, cfg.ReceiptSigningKey)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("CHAIN_ID", "8453")
	t.Setenv("RATE_LIMIT", "5")
	t.Setenv("RATE_WINDOW_SECONDS", "10")
	t.Setenv("LISTEN_ADDR", ":9999")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8453", cfg.ChainID.String())
	require.Equal(t, uint64(5), cfg.RateLimit)
	require.Equal(t, uint64(10), cfg.RateWindowSeconds)
	require.Equal(t, ":9999", cfg.ListenAddr)
}

func TestLoad_InvalidChainID(t *testing.T) {
	t.Setenv("CHAIN_ID", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_RejectsZeroRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT", "0")
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_ReceiptSigningKeyMustBeLongEnoughHex(t *testing.T) {
	t.Setenv("RECEIPT_SIGNING_KEY", "deadbeef")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("RECEIPT_SIGNING_KEY", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, len(cfg.ReceiptSigningKey) >= 32)
}
