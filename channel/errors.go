package channel

import "fmt"

// ErrorKind is the closed taxonomy of pipeline failures.
type ErrorKind int

const (
	// KindMissingHeaders means a required header was absent.
	KindMissingHeaders ErrorKind = iota
	// KindInvalidSignature means the signature was malformed or its
	// recovered address did not match the declared sender.
	KindInvalidSignature
	// KindInvalidMessage means the reconstructed digest did not match
	// X-Message.
	KindInvalidMessage
	// KindInvalidNonce means the declared nonce was not strictly greater
	// than the stored nonce.
	KindInvalidNonce
	// KindInsufficientBalance means the declared balance was less than
	// the payment amount, or exceeded the on-chain balance at first use.
	KindInsufficientBalance
	// KindExpired means the declared expiration diverged from the
	// contract, or the request timestamp was stale.
	KindExpired
	// KindInvalidChannel means a contract field mismatched on first use,
	// or an existing channel's declared balance diverged from the store.
	KindInvalidChannel
	// KindChannelNotFound is reserved for future use.
	KindChannelNotFound
	// KindRateLimitExceeded means the sender's window is exhausted.
	KindRateLimitExceeded
	// KindContractError means a contract call itself failed.
	KindContractError
	// KindNetworkError means the RPC transport failed.
	KindNetworkError
	// KindInvalidConfig means startup configuration was invalid.
	KindInvalidConfig
	// KindBadRequest means the request was structurally malformed
	// (unparsable timestamp, header, or JSON) in a way no other kind
	// covers more specifically.
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingHeaders:
		return "MissingHeaders"
	case KindInvalidSignature:
		return "InvalidSignature"
	case KindInvalidMessage:
		return "InvalidMessage"
	case KindInvalidNonce:
		return "InvalidNonce"
	case KindInsufficientBalance:
		return "InsufficientBalance"
	case KindExpired:
		return "Expired"
	case KindInvalidChannel:
		return "InvalidChannel"
	case KindChannelNotFound:
		return "ChannelNotFound"
	case KindRateLimitExceeded:
		return "RateLimitExceeded"
	case KindContractError:
		return "ContractError"
	case KindNetworkError:
		return "NetworkError"
	case KindInvalidConfig:
		return "InvalidConfig"
	case KindBadRequest:
		return "BadRequest"
	default:
		return "Unknown"
	}
}

// AuthError is the pipeline's error type. It is a closed taxonomy rather
// than ad-hoc errors so an Adapter Surface can map it to a transport
// status with AuthError.StatusCode without inspecting message strings.
type AuthError struct {
	Kind ErrorKind
	// Detail carries the wrapped cause for ContractError/NetworkError, or
	// a short human-readable explanation for other kinds.
	Detail string
	// Cause is the wrapped underlying error, if any.
	Cause error
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Unwrap lets errors.Is/As reach the wrapped cause.
func (e *AuthError) Unwrap() error { return e.Cause }

// newErr constructs an AuthError with an optional formatted detail.
func newErr(kind ErrorKind, format string, args ...interface{}) *AuthError {
	detail := ""
	if format != "" {
		detail = fmt.Sprintf(format, args...)
	}
	return &AuthError{Kind: kind, Detail: detail}
}

func wrapErr(kind ErrorKind, cause error) *AuthError {
	return &AuthError{Kind: kind, Detail: cause.Error(), Cause: cause}
}

// HTTP status codes, named independently of net/http so this package does
// not import it — the core does not speak HTTP.
const (
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusPaymentRequired     = 402
	StatusNotFound            = 404
	StatusRequestTimeout      = 408
	StatusTooManyRequests     = 429
	StatusInternalServerError = 500
)

// StatusCode maps the error kind to the transport status an HTTP adapter
// should report.
func (e *AuthError) StatusCode() int {
	switch e.Kind {
	case KindMissingHeaders, KindInvalidMessage, KindInvalidNonce, KindInvalidChannel, KindBadRequest:
		return StatusBadRequest
	case KindInvalidSignature:
		return StatusUnauthorized
	case KindInsufficientBalance:
		return StatusPaymentRequired
	case KindExpired:
		return StatusRequestTimeout
	case KindChannelNotFound:
		return StatusNotFound
	case KindRateLimitExceeded:
		return StatusTooManyRequests
	case KindContractError, KindNetworkError:
		return StatusInternalServerError
	case KindInvalidConfig:
		return StatusBadRequest
	default:
		return StatusInternalServerError
	}
}
