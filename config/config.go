// Package config loads the gateway's startup configuration from the
// environment: plain env vars plus an optional .env file via godotenv.
package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all verification-core configuration as a single struct.
type Config struct {
	// RPCURL is the Ethereum JSON-RPC endpoint the Contract Gateway reads
	// channel state from on first use.
	RPCURL string

	// ChainID is the chain the payment-channel contract and (optionally)
	// the close transaction live on.
	ChainID *big.Int

	// RateLimit is requests admitted per sender per RateWindowSeconds.
	RateLimit uint64

	// RateWindowSeconds is the rate limiter's fixed window.
	RateWindowSeconds uint64

	// FreshnessWindowSeconds is how stale X-Timestamp may be before a
	// request is rejected as Expired.
	FreshnessWindowSeconds uint64

	// PaymentAmount is the API-defined charge per accepted request, in the
	// channel's balance unit.
	PaymentAmount string

	// ListenAddr is the address the example HTTP adapter listens on.
	ListenAddr string

	// ReceiptSigningKey is the HMAC-SHA256 secret used to sign audit
	// receipts. Empty disables receipt issuance.
	ReceiptSigningKey []byte

	// CloseSignerKey is the hex-encoded private key of the relayer that
	// pays gas for the off-hot-path channel-closing withdrawal. Empty
	// disables the close path.
	CloseSignerKey string

	// ContractCallTimeout bounds every Contract Gateway RPC call.
	ContractCallTimeout time.Duration
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present (dev convenience; no-op in
// production where real env vars are set directly).
func Load() (*Config, error) {
	_ = godotenv.Load()

	chainIDStr := getEnv("CHAIN_ID", "84532") // Base Sepolia
	chainID := new(big.Int)
	if _, ok := chainID.SetString(chainIDStr, 10); !ok {
		return nil, fmt.Errorf("CHAIN_ID %q is not a valid integer", chainIDStr)
	}

	cfg := &Config{
		RPCURL:                 getEnv("RPC_URL", "https://sepolia.base.org"),
		ChainID:                chainID,
		RateLimit:              uint64(getEnvInt("RATE_LIMIT", 100)),
		RateWindowSeconds:      uint64(getEnvInt("RATE_WINDOW_SECONDS", 60)),
		FreshnessWindowSeconds: uint64(getEnvInt("FRESHNESS_WINDOW_SECONDS", 300)),
		PaymentAmount:          getEnv("PAYMENT_AMOUNT", "100"),
		ListenAddr:             getEnv("LISTEN_ADDR", ":8080"),
		CloseSignerKey:         getEnv("CLOSE_SIGNER_KEY", ""),
		ContractCallTimeout:    time.Duration(getEnvInt("CONTRACT_CALL_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if secretHex := getEnv("RECEIPT_SIGNING_KEY", ""); secretHex != "" {
		secret, err := hex.DecodeString(secretHex)
		if err != nil {
			return nil, fmt.Errorf("RECEIPT_SIGNING_KEY must be valid hex: %w", err)
		}
		if len(secret) < 32 {
			return nil, fmt.Errorf("RECEIPT_SIGNING_KEY must be at least 32 bytes (64 hex chars)")
		}
		cfg.ReceiptSigningKey = secret
	}

	if cfg.RateLimit == 0 {
		return nil, fmt.Errorf("RATE_LIMIT must be positive")
	}
	if cfg.RateWindowSeconds == 0 {
		return nil, fmt.Errorf("RATE_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
