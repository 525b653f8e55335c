// Package channel implements the server-side authorization core for a
// unidirectional payment-channel scheme: request verification, channel
// state, rate limiting, and first-use on-chain reconciliation.
package channel

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// PaymentChannel is the authoritative per-channel record held by the server.
type PaymentChannel struct {
	Address    common.Address `json:"address"`
	Sender     common.Address `json:"sender"`
	Recipient  common.Address `json:"recipient"`
	Balance    *uint256.Int   `json:"balance"`
	Nonce      *uint256.Int   `json:"nonce"`
	Expiration *uint256.Int   `json:"expiration"`
	ChannelID  *uint256.Int   `json:"channel_id"`
}

// Clone returns a deep copy so callers can mutate the result without
// touching a value shared with the store.
func (p PaymentChannel) Clone() PaymentChannel {
	c := p
	c.Balance = new(uint256.Int).Set(p.Balance)
	c.Nonce = new(uint256.Int).Set(p.Nonce)
	c.Expiration = new(uint256.Int).Set(p.Expiration)
	c.ChannelID = new(uint256.Int).Set(p.ChannelID)
	return c
}

// paymentChannelJSON mirrors PaymentChannel but encodes the 256-bit fields
// as decimal strings, so precision survives a round trip through JSON
// numbers.
type paymentChannelJSON struct {
	Address    common.Address `json:"address"`
	Sender     common.Address `json:"sender"`
	Recipient  common.Address `json:"recipient"`
	Balance    string         `json:"balance"`
	Nonce      string         `json:"nonce"`
	Expiration string         `json:"expiration"`
	ChannelID  string         `json:"channel_id"`
}

// MarshalJSON encodes 256-bit fields as decimal strings.
func (p PaymentChannel) MarshalJSON() ([]byte, error) {
	return json.Marshal(paymentChannelJSON{
		Address:    p.Address,
		Sender:     p.Sender,
		Recipient:  p.Recipient,
		Balance:    decStringOrZero(p.Balance),
		Nonce:      decStringOrZero(p.Nonce),
		Expiration: decStringOrZero(p.Expiration),
		ChannelID:  decStringOrZero(p.ChannelID),
	})
}

// UnmarshalJSON decodes 256-bit fields from decimal strings.
func (p *PaymentChannel) UnmarshalJSON(data []byte) error {
	var aux paymentChannelJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	balance, err := parseU256Dec(aux.Balance)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	nonce, err := parseU256Dec(aux.Nonce)
	if err != nil {
		return fmt.Errorf("nonce: %w", err)
	}
	expiration, err := parseU256Dec(aux.Expiration)
	if err != nil {
		return fmt.Errorf("expiration: %w", err)
	}
	channelID, err := parseU256Dec(aux.ChannelID)
	if err != nil {
		return fmt.Errorf("channel_id: %w", err)
	}

	p.Address = aux.Address
	p.Sender = aux.Sender
	p.Recipient = aux.Recipient
	p.Balance = balance
	p.Nonce = nonce
	p.Expiration = expiration
	p.ChannelID = channelID
	return nil
}

func decStringOrZero(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return v.Dec()
}

func parseU256Dec(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty decimal string")
	}
	n, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("value %q: %w", s, err)
	}
	return n, nil
}

// DecodedRequest is the transport-agnostic bundle an Adapter Surface
// produces from the four signed headers and the raw request body. It is
// the input to Pipeline.Verify.
type DecodedRequest struct {
	// TimestampHeader is the raw X-Timestamp header value.
	TimestampHeader string
	// SignatureHeader is the raw X-Signature header value (hex, optional
	// "0x" prefix).
	SignatureHeader string
	// MessageHeader is the raw X-Message header value (hex).
	MessageHeader string
	// PaymentHeader is the raw X-Payment header value (JSON PaymentChannel).
	PaymentHeader string
	// Body is the raw request body bytes the signature was computed over.
	Body []byte
}

// VerifyResult is the pipeline's successful outcome.
type VerifyResult struct {
	// Channel is the updated, already-debited PaymentChannel record.
	Channel PaymentChannel
	// Now is the server timestamp (unix seconds) read when Verify started,
	// the same reading the freshness check used.
	Now int64
	// Receipt is a signed audit receipt for the accepted request, or the
	// empty string if no ReceiptIssuer is configured on the pipeline.
	Receipt string
}
