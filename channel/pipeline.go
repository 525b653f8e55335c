package channel

import (
	"context"
	"strconv"
	"time"

	"github.com/holiman/uint256"
)

// PipelineConfig groups the pipeline's runtime tunables as a single
// immutable configuration value. Verify reads only FreshnessWindow; rate
// limiting is enforced by the RateLimiter passed to NewPipeline, with the
// limit and window that RateLimiter was built with.
type PipelineConfig struct {
	// RateLimit is requests admitted per sender per RateWindow (default 100).
	RateLimit uint64
	// RateWindow is the rate limiter's fixed window (default 60s).
	RateWindow time.Duration
	// FreshnessWindow is how stale an X-Timestamp may be before the
	// request is rejected as Expired (default 300s).
	FreshnessWindow time.Duration
}

// DefaultPipelineConfig returns the documented production defaults.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		RateLimit:       100,
		RateWindow:      60 * time.Second,
		FreshnessWindow: 300 * time.Second,
	}
}

// Pipeline is the state machine of a single request: timestamp freshness,
// header parsing, message reconstruction, signature verification, rate
// limiting, first-use contract validation, and atomic nonce/balance-
// monotonic channel update.
type Pipeline struct {
	cfg      PipelineConfig
	store    *Store
	limiter  *RateLimiter
	gateway  ContractGateway
	receipts *ReceiptIssuer
	// now lets tests substitute a deterministic clock; defaults to
	// time.Now.
	now func() time.Time
}

// NewPipeline builds a Pipeline. receipts may be nil to disable audit
// receipt issuance.
func NewPipeline(cfg PipelineConfig, store *Store, limiter *RateLimiter, gateway ContractGateway, receipts *ReceiptIssuer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		limiter:  limiter,
		gateway:  gateway,
		receipts: receipts,
		now:      time.Now,
	}
}

// Verify runs the full pipeline against a decoded request. paymentAmount is
// the API-defined charge for the endpoint being accessed.
func (p *Pipeline) Verify(ctx context.Context, in DecodedRequest, paymentAmount *uint256.Int) (*VerifyResult, *AuthError) {
	now := p.now()

	// 1. ParseTimestamp, 2. FreshnessCheck
	ts, authErr := parseTimestamp(in.TimestampHeader)
	if authErr != nil {
		return nil, authErr
	}
	if authErr := checkFreshness(ts, now, p.cfg.FreshnessWindow); authErr != nil {
		return nil, authErr
	}

	// 3. ParseHeaders
	declared, sig, msg, authErr := parseSignedHeaders(in)
	if authErr != nil {
		return nil, authErr
	}

	// 4. ReconstructMessage
	expected := Digest(declared.ChannelID, declared.Balance, declared.Nonce, in.Body)
	if expected != msg {
		return nil, newErr(KindInvalidMessage, "reconstructed digest does not match X-Message")
	}

	// 5. VerifySignature
	recovered, err := Recover(msg, sig)
	if err != nil {
		return nil, wrapErr(KindInvalidSignature, err)
	}
	if recovered != declared.Sender {
		return nil, newErr(KindInvalidSignature, "recovered address %s does not match declared sender %s", recovered.Hex(), declared.Sender.Hex())
	}

	// 6. RateLimit
	if authErr := p.limiter.Charge(declared.Sender); authErr != nil {
		return nil, authErr
	}

	// 7. ChannelLookup — first-use validation, if needed, happens outside
	// the store's per-key guard (an optimistic read collapsed via
	// singleflight in the gateway), then the lookup/validate/commit
	// re-check and the debit happen atomically under the guard.
	if _, present := p.store.Get(declared.ChannelID); !present {
		if authErr := p.validateFirstUse(ctx, declared); authErr != nil {
			return nil, authErr
		}
	}

	var updated PaymentChannel
	commitErr := p.store.WithLock(declared.ChannelID, func(current PaymentChannel, present bool) (PaymentChannel, bool, *AuthError) {
		if present {
			if authErr := checkExistingChannel(declared, current); authErr != nil {
				return PaymentChannel{}, false, authErr
			}
		} else {
			// Someone else may have inserted this channel between our
			// optimistic Get/validate and acquiring the guard. Re-check:
			// if so, fall through to the existing-channel branch.
			if !declared.Nonce.IsZero() {
				return PaymentChannel{}, false, newErr(KindInvalidChannel, "first-use nonce must be 0")
			}
		}

		next := declared.Clone()
		if next.Balance.Lt(paymentAmount) {
			return PaymentChannel{}, false, newErr(KindInsufficientBalance, "declared balance %s less than payment amount %s", next.Balance.Dec(), paymentAmount.Dec())
		}
		next.Balance = new(uint256.Int).Sub(next.Balance, paymentAmount)
		updated = next.Clone()
		return next, true, nil
	})
	if commitErr != nil {
		return nil, commitErr
	}

	result := &VerifyResult{Channel: updated, Now: now.Unix()}
	if p.receipts != nil {
		receipt, err := p.receipts.Issue(updated, paymentAmount.Dec(), now)
		if err == nil {
			result.Receipt = receipt
		}
	}
	return result, nil
}

func (p *Pipeline) validateFirstUse(ctx context.Context, declared PaymentChannel) *AuthError {
	if p.gateway == nil {
		return newErr(KindInvalidConfig, "no contract gateway configured for first-use validation")
	}

	view, err := p.gateway.Read(ctx, declared.Address)
	if err != nil {
		return wrapErr(KindNetworkError, err)
	}

	if view.Balance.Lt(declared.Balance) {
		return newErr(KindInsufficientBalance, "contract balance %s less than declared balance %s", view.Balance.Dec(), declared.Balance.Dec())
	}
	if !view.Expiration.Eq(declared.Expiration) {
		return newErr(KindExpired, "contract expiration %s does not match declared %s", view.Expiration.Dec(), declared.Expiration.Dec())
	}
	if !view.ChannelID.Eq(declared.ChannelID) {
		return newErr(KindInvalidChannel, "contract channel_id %s does not match declared %s", view.ChannelID.Dec(), declared.ChannelID.Dec())
	}
	if view.Sender != declared.Sender {
		return newErr(KindInvalidChannel, "contract sender %s does not match declared %s", view.Sender.Hex(), declared.Sender.Hex())
	}
	if view.Recipient != declared.Recipient {
		return newErr(KindInvalidChannel, "contract recipient %s does not match declared %s", view.Recipient.Hex(), declared.Recipient.Hex())
	}
	if !declared.Nonce.IsZero() {
		return newErr(KindInvalidChannel, "first-use nonce must be 0, got %s", declared.Nonce.Dec())
	}
	return nil
}

func checkExistingChannel(declared, existing PaymentChannel) *AuthError {
	if declared.Nonce.Cmp(existing.Nonce) <= 0 {
		return newErr(KindInvalidNonce, "declared nonce %s not greater than stored nonce %s", declared.Nonce.Dec(), existing.Nonce.Dec())
	}
	if !declared.Balance.Eq(existing.Balance) {
		return newErr(KindInvalidChannel, "declared balance %s does not match stored balance %s", declared.Balance.Dec(), existing.Balance.Dec())
	}
	return nil
}

func parseTimestamp(raw string) (time.Time, *AuthError) {
	if raw == "" {
		return time.Time{}, newErr(KindMissingHeaders, "X-Timestamp is required")
	}
	secs, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return time.Time{}, newErr(KindBadRequest, "X-Timestamp is not a valid unsigned integer")
	}
	return time.Unix(int64(secs), 0), nil
}

func checkFreshness(ts, now time.Time, window time.Duration) *AuthError {
	skew := now.Unix() - ts.Unix()
	limit := int64(window / time.Second)
	if skew > limit {
		return newErr(KindExpired, "timestamp skew %ds exceeds freshness window %ds", skew, limit)
	}
	return nil
}

func parseSignedHeaders(in DecodedRequest) (PaymentChannel, [SignatureLength]byte, [32]byte, *AuthError) {
	var zeroChan PaymentChannel
	var zeroSig [SignatureLength]byte
	var zeroMsg [32]byte

	if in.SignatureHeader == "" {
		return zeroChan, zeroSig, zeroMsg, newErr(KindMissingHeaders, "X-Signature is required")
	}
	if in.MessageHeader == "" {
		return zeroChan, zeroSig, zeroMsg, newErr(KindMissingHeaders, "X-Message is required")
	}
	if in.PaymentHeader == "" {
		return zeroChan, zeroSig, zeroMsg, newErr(KindMissingHeaders, "X-Payment is required")
	}

	sig, err := ParseSignatureHex(in.SignatureHeader)
	if err != nil {
		return zeroChan, zeroSig, zeroMsg, wrapErr(KindBadRequest, err)
	}
	msg, err := ParseDigestHex(in.MessageHeader)
	if err != nil {
		return zeroChan, zeroSig, zeroMsg, wrapErr(KindBadRequest, err)
	}
	var declared PaymentChannel
	if err := declared.UnmarshalJSON([]byte(in.PaymentHeader)); err != nil {
		return zeroChan, zeroSig, zeroMsg, wrapErr(KindBadRequest, err)
	}

	return declared, sig, msg, nil
}
