// Command gateway wires the payment-channel verification core to an
// example HTTP adapter and an example downstream API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/holiman/uint256"

	"github.com/umbra-labs/paychannel-gateway/adapter"
	"github.com/umbra-labs/paychannel-gateway/channel"
	"github.com/umbra-labs/paychannel-gateway/config"
	"github.com/umbra-labs/paychannel-gateway/proxy"

	"net/http"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	gateway, err := channel.NewEthContractGateway(ctx, cfg.RPCURL, cfg.ChainID, cfg.ContractCallTimeout)
	if err != nil {
		slog.Error("failed to create contract gateway", "err", err)
		os.Exit(1)
	}
	defer gateway.CloseClient()

	if cfg.CloseSignerKey != "" {
		if _, err := gateway.WithCloseSigner(cfg.CloseSignerKey); err != nil {
			slog.Error("invalid close signer key", "err", err)
			os.Exit(1)
		}
	}

	var receipts *channel.ReceiptIssuer
	if len(cfg.ReceiptSigningKey) > 0 {
		receipts = channel.NewReceiptIssuer(cfg.ReceiptSigningKey)
	}

	pipelineCfg := channel.PipelineConfig{
		RateLimit:       cfg.RateLimit,
		RateWindow:      time.Duration(cfg.RateWindowSeconds) * time.Second,
		FreshnessWindow: time.Duration(cfg.FreshnessWindowSeconds) * time.Second,
	}
	store := channel.NewStore()
	limiter := channel.NewRateLimiter(cfg.RateLimit, pipelineCfg.RateWindow)
	pipeline := channel.NewPipeline(pipelineCfg, store, limiter, gateway, receipts)

	paymentAmount, err := uint256.FromDecimal(cfg.PaymentAmount)
	if err != nil {
		slog.Error("invalid PAYMENT_AMOUNT", "err", err)
		os.Exit(1)
	}

	upstream, err := proxy.NewUpstream(getUpstreamURL())
	if err != nil {
		slog.Error("invalid UPSTREAM_URL", "err", err)
		os.Exit(1)
	}

	httpAdapter := adapter.NewHTTP(adapter.HTTPConfig{
		Pipeline:      pipeline,
		PaymentAmount: paymentAmount,
		Next:          upstream,
	})

	slog.Info("gateway starting",
		"addr", cfg.ListenAddr,
		"rpc_url", cfg.RPCURL,
		"chain_id", cfg.ChainID.String(),
		"rate_limit", cfg.RateLimit,
		"rate_window_seconds", cfg.RateWindowSeconds,
		"payment_amount", paymentAmount.Dec(),
	)

	if err := http.ListenAndServe(cfg.ListenAddr, httpAdapter); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}

func getUpstreamURL() string {
	if v := os.Getenv("UPSTREAM_URL"); v != "" {
		return v
	}
	return fmt.Sprintf("http://localhost:%d", 9090)
}
