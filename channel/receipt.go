package channel

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ReceiptClaims is the JWT payload for a signed audit receipt. It is never
// consulted for authorization — every request is authorized entirely by
// its own channel signature — it exists so a billing or reconciliation
// system can verify, independently of the gateway's in-memory store, that a
// given debit actually happened.
type ReceiptClaims struct {
	jwt.RegisteredClaims
	// ReceiptID is a server-generated UUID identifying this receipt.
	ReceiptID string `json:"rid"`
	// ChannelID is the decimal channel_id this receipt debits.
	ChannelID string `json:"channel_id"`
	// Sender is the payer address, 0x-hex.
	Sender string `json:"sender"`
	// Nonce is the accepted request's nonce, decimal.
	Nonce string `json:"nonce"`
	// BalanceAfter is the channel balance after this debit, decimal.
	BalanceAfter string `json:"balance_after"`
	// PaymentAmount is the amount debited by this request, decimal.
	PaymentAmount string `json:"payment_amount"`
}

// ReceiptIssuer signs audit receipts with an HMAC-SHA256 secret. It is a
// pure audit artifact, not an authorization token: every request is
// already authorized by its own channel signature before a receipt is
// ever issued.
type ReceiptIssuer struct {
	secret []byte
}

// NewReceiptIssuer builds a ReceiptIssuer signing with secret.
func NewReceiptIssuer(secret []byte) *ReceiptIssuer {
	return &ReceiptIssuer{secret: secret}
}

// Issue signs a receipt for an accepted request.
func (r *ReceiptIssuer) Issue(channel PaymentChannel, paymentAmount string, now time.Time) (string, error) {
	claims := &ReceiptClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
		ReceiptID:     uuid.New().String(),
		ChannelID:     channel.ChannelID.Dec(),
		Sender:        channel.Sender.Hex(),
		Nonce:         channel.Nonce.Dec(),
		BalanceAfter:  channel.Balance.Dec(),
		PaymentAmount: paymentAmount,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("signing receipt: %w", err)
	}
	return signed, nil
}

// Verify parses and checks the signature of a previously issued receipt.
// Provided for reconciliation tooling outside the hot path; the pipeline
// itself never calls it.
func (r *ReceiptIssuer) Verify(token string) (*ReceiptClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &ReceiptClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*ReceiptClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("invalid receipt claims")
	}
	return claims, nil
}
