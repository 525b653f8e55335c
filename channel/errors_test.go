package channel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthError_StatusCodeMapping(t *testing.T) {
	cases := []struct {
		kind ErrorKind
		want int
	}{
		{KindMissingHeaders, StatusBadRequest},
		{KindInvalidMessage, StatusBadRequest},
		{KindInvalidNonce, StatusBadRequest},
		{KindInvalidChannel, StatusBadRequest},
		{KindBadRequest, StatusBadRequest},
		{KindInvalidSignature, StatusUnauthorized},
		{KindInsufficientBalance, StatusPaymentRequired},
		{KindExpired, StatusRequestTimeout},
		{KindChannelNotFound, StatusNotFound},
		{KindRateLimitExceeded, StatusTooManyRequests},
		{KindContractError, StatusInternalServerError},
		{KindNetworkError, StatusInternalServerError},
		{KindInvalidConfig, StatusBadRequest},
	}

	for _, tc := range cases {
		err := newErr(tc.kind, "")
		require.Equal(t, tc.want, err.StatusCode(), "kind %s", tc.kind)
	}
}

func TestAuthError_ErrorMessage(t *testing.T) {
	bare := newErr(KindExpired, "")
	require.Equal(t, "Expired", bare.Error())

	detailed := newErr(KindExpired, "skew %ds exceeds window", 400)
	require.Equal(t, "Expired: skew 400s exceeds window", detailed.Error())
}

func TestAuthError_WrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := wrapErr(KindNetworkError, cause)
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "connection refused")
}
