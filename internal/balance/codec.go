package balance

import (
	"crypto/aes"
	"crypto/sha1"
	"unicode/utf8"

	"golang.org/x/crypto/pbkdf2"
)

// Key derivation parameters dictated by the device firmware. Changing
// any of them breaks session establishment against real hardware.
const (
	keyIterations = 1000
	keyLength     = 32
)

// DeriveKey derives the session token key from the configured password
// and the server-supplied salt (PBKDF2-HMAC-SHA1).
func DeriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, keyIterations, keyLength, sha1.New)
}

// DecryptSessionID decrypts the encrypted session token block by block
// and strips the trailing padding. It fails with an auth error when the
// token shape or the decrypted text is unusable; it never yields a
// silent empty session id.
func DecryptSessionID(key, ciphertext []byte) (string, error) {
	if len(key) != keyLength {
		return "", NewError(KindAuth, "derived key has unexpected length")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", NewError(KindAuth, "encrypted session token is not block aligned")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", WrapError(KindAuth, err, "failed to initialize cipher")
	}

	plain := make([]byte, len(ciphertext))
	for off := 0; off < len(ciphertext); off += aes.BlockSize {
		block.Decrypt(plain[off:off+aes.BlockSize], ciphertext[off:off+aes.BlockSize])
	}

	unpadded, ok := stripPadding(plain)
	if !ok {
		return "", NewError(KindAuth, "session token padding is invalid; wrong password or corrupted token")
	}
	if len(unpadded) == 0 || !utf8.Valid(unpadded) {
		return "", NewError(KindAuth, "decryption produced no usable session id")
	}

	return string(unpadded), nil
}

func stripPadding(plain []byte) ([]byte, bool) {
	n := int(plain[len(plain)-1])
	if n < 1 || n > aes.BlockSize || n > len(plain) {
		return nil, false
	}
	for _, b := range plain[len(plain)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return plain[:len(plain)-n], true
}
