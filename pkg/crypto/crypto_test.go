package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	digest, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", digest)
	assert.True(t, VerifyPassword("s3cret!", digest))
	assert.False(t, VerifyPassword("wrong", digest))
}

func TestSealerRoundTrip(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))
	sealer, err := NewSealer(key)
	require.NoError(t, err)

	token, err := sealer.Seal("itax-pin-1234")
	require.NoError(t, err)
	assert.NotContains(t, token, "itax-pin-1234")

	plain, err := sealer.Open(token)
	require.NoError(t, err)
	assert.Equal(t, "itax-pin-1234", plain)
}

func TestSealerRejectsTampering(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	sealer, err := NewSealer(key)
	require.NoError(t, err)

	token, err := sealer.Seal("secret")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	_, err = sealer.Open(base64.StdEncoding.EncodeToString(raw))
	assert.Error(t, err)
}

func TestNewSealerRejectsBadKey(t *testing.T) {
	_, err := NewSealer("not-base64!!!")
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("short"))
	_, err = NewSealer(short)
	assert.Error(t, err)
}

func TestGenerateNumericCode(t *testing.T) {
	code, err := GenerateNumericCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}

	// Out-of-range lengths fall back to six digits.
	code, err = GenerateNumericCode(12)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}
