package balance

import (
	"bytes"
	"crypto/aes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	key := DeriveKey("secret", salt)
	assert.Len(t, key, 32)

	again := DeriveKey("secret", salt)
	assert.Equal(t, key, again, "derivation must be deterministic")

	other := DeriveKey("secret", []byte("fedcba9876543210"))
	assert.False(t, bytes.Equal(key, other), "different salts must derive different keys")

	wrongPassword := DeriveKey("Secret", salt)
	assert.False(t, bytes.Equal(key, wrongPassword))
}

func TestDecryptSessionIDRoundTrip(t *testing.T) {
	key := DeriveKey("secret", []byte("0123456789abcdef"))

	for _, sessionID := range []string{
		"a",
		"4fa2c6bd-8f51-4d32-9c15-0db6a3f0c661",
		"exactly-16-bytes",
	} {
		token := encryptToken(t, key, sessionID)
		got, err := DecryptSessionID(key, token)
		require.NoError(t, err, "session id %q", sessionID)
		assert.Equal(t, sessionID, got)
	}
}

func TestDecryptSessionIDRejectsBadShapes(t *testing.T) {
	key := DeriveKey("secret", []byte("0123456789abcdef"))

	tests := []struct {
		name       string
		key        []byte
		ciphertext []byte
	}{
		{"empty token", key, nil},
		{"unaligned token", key, make([]byte, aes.BlockSize+1)},
		{"short key", key[:16], make([]byte, aes.BlockSize)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecryptSessionID(tt.key, tt.ciphertext)
			require.Error(t, err)
			assert.True(t, IsKind(err, KindAuth), "got: %v", err)
		})
	}
}

func TestStripPadding(t *testing.T) {
	valid := append([]byte("hello"), 3, 3, 3)
	got, ok := stripPadding(valid)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)

	// Full block of padding is legal and yields an empty payload.
	full := bytes.Repeat([]byte{16}, 16)
	got, ok = stripPadding(full)
	require.True(t, ok)
	assert.Empty(t, got)

	_, ok = stripPadding([]byte{'h', 'i', 0})
	assert.False(t, ok, "zero padding length")

	_, ok = stripPadding([]byte{'h', 'i', 17})
	assert.False(t, ok, "padding longer than a block")

	_, ok = stripPadding([]byte{'h', 2, 3})
	assert.False(t, ok, "inconsistent padding bytes")
}
