package kvstore

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckQuota(t *testing.T) {
	require.NoError(t, CheckQuota("cart_a", []byte("12345"), 0))
	require.NoError(t, CheckQuota("cart_a", []byte("12345"), 5))

	err := CheckQuota("cart_a", []byte("123456"), 5)
	require.Error(t, err)
	require.True(t, IsQuotaExceeded(err))
	require.True(t, IsQuotaExceeded(fmt.Errorf("save cart: %w", err)))
	require.Contains(t, err.Error(), "quota_exceeded")
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewStoreError(CodeConnection, "user", "get failed", cause)

	require.ErrorIs(t, err, cause)
	require.False(t, IsQuotaExceeded(err))
}
