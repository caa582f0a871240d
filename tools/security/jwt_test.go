package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerifyRoundTrip(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))

	token, hash, expireAt, err := Generate(opts, "U1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expireAt.After(time.Now()))

	claims, err := Verify(opts, token, hash)
	require.NoError(t, err)
	assert.Equal(t, "U1", claims.UserID())
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, _, err := Generate(DefaultOptions([]byte("secret-a")), "U1")
	require.NoError(t, err)

	_, err = Verify(DefaultOptions([]byte("secret-b")), token, "")
	assert.Error(t, err)
}

func TestVerifyHashMismatch(t *testing.T) {
	opts := DefaultOptions([]byte("test-secret"))
	token, _, _, err := Generate(opts, "U1")
	require.NoError(t, err)

	_, err = Verify(opts, token, "sha256:deadbeef")
	assert.Error(t, err)
}

func TestUnsupportedAlg(t *testing.T) {
	_, _, _, err := Generate(Options{Secret: []byte("x"), Alg: "RS256"}, "U1")
	assert.Error(t, err)
}
