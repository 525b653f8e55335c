// Package adapter is the thin, framework-agnostic boundary between an HTTP
// transport and the verification core: it extracts the four headers and
// body, invokes the pipeline, and translates the AuthError taxonomy into
// HTTP status codes. The core itself never imports net/http.
package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/holiman/uint256"

	"github.com/umbra-labs/paychannel-gateway/channel"
)

// HTTPConfig groups the dependencies of the HTTP adapter.
type HTTPConfig struct {
	// Pipeline runs the verification state machine.
	Pipeline *channel.Pipeline
	// PaymentAmount is the API-defined charge for requests this adapter
	// guards.
	PaymentAmount *uint256.Int
	// Next is the downstream handler invoked once a request is authorized
	// — the metered API itself.
	Next http.Handler
}

// HTTP implements http.Handler as the payment-channel authorization gate.
type HTTP struct {
	cfg HTTPConfig
}

// NewHTTP builds an HTTP adapter from cfg.
func NewHTTP(cfg HTTPConfig) *HTTP {
	return &HTTP{cfg: cfg}
}

// ServeHTTP implements http.Handler.
func (h *HTTP) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	bodyBytes, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		writeError(w, channel.KindBadRequest.String(), "failed to read request body", http.StatusBadRequest)
		return
	}

	in := channel.DecodedRequest{
		TimestampHeader: r.Header.Get("X-Timestamp"),
		SignatureHeader: r.Header.Get("X-Signature"),
		MessageHeader:   r.Header.Get("X-Message"),
		PaymentHeader:   r.Header.Get("X-Payment"),
		Body:            bodyBytes,
	}

	result, authErr := h.cfg.Pipeline.Verify(r.Context(), in, h.cfg.PaymentAmount)
	if authErr != nil {
		slog.Warn("payment channel request rejected", "kind", authErr.Kind.String(), "detail", authErr.Detail)
		writeError(w, authErr.Kind.String(), authErr.Error(), authErr.StatusCode())
		return
	}

	updatedJSON, err := json.Marshal(result.Channel)
	if err != nil {
		slog.Error("failed to marshal updated payment channel", "err", err)
		writeError(w, channel.KindInvalidConfig.String(), "internal error", http.StatusInternalServerError)
		return
	}

	// Restore the body for the downstream handler, then forward.
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	slog.Info("payment channel request accepted",
		"channel_id", result.Channel.ChannelID.Dec(),
		"sender", result.Channel.Sender.Hex(),
		"nonce", result.Channel.Nonce.Dec(),
		"balance", result.Channel.Balance.Dec(),
	)

	if h.cfg.Next != nil {
		// Wrap the response writer so we can attach the X-Payment /
		// X-Timestamp / X-Payment-Receipt headers before the downstream
		// handler writes its own status and body.
		hw := &headerInjectingWriter{
			ResponseWriter: w,
			headers: map[string]string{
				"X-Payment":   string(updatedJSON),
				"X-Timestamp": fmt.Sprintf("%d", result.Now),
			},
		}
		if result.Receipt != "" {
			hw.headers["X-Payment-Receipt"] = result.Receipt
		}
		h.cfg.Next.ServeHTTP(hw, r)
		return
	}

	w.Header().Set("X-Payment", string(updatedJSON))
	w.Header().Set("X-Timestamp", fmt.Sprintf("%d", result.Now))
	if result.Receipt != "" {
		w.Header().Set("X-Payment-Receipt", result.Receipt)
	}
	w.WriteHeader(http.StatusOK)
}

// headerInjectingWriter sets a fixed set of response headers exactly once,
// on the first Write or WriteHeader call, so the downstream handler's own
// status/body is left untouched while still carrying the channel update.
type headerInjectingWriter struct {
	http.ResponseWriter
	headers   map[string]string
	committed bool
}

func (w *headerInjectingWriter) inject() {
	if w.committed {
		return
	}
	w.committed = true
	for k, v := range w.headers {
		w.Header().Set(k, v)
	}
}

func (w *headerInjectingWriter) WriteHeader(status int) {
	w.inject()
	w.ResponseWriter.WriteHeader(status)
}

func (w *headerInjectingWriter) Write(b []byte) (int, error) {
	w.inject()
	return w.ResponseWriter.Write(b)
}

type errorBody struct {
	Error  string `json:"error"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func writeError(w http.ResponseWriter, kind, detail string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: "payment channel verification failed", Kind: kind, Detail: detail})
}
