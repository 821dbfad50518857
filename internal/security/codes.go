package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

const restoreCodeDigits = 6

// GenerateRestoreCode returns a 6-digit numeric restoration code (e.g. "123456").
// Uses crypto/rand for randomness.
func GenerateRestoreCode() (string, error) {
	b := make([]byte, restoreCodeDigits)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, restoreCodeDigits)
	for i := 0; i < restoreCodeDigits; i++ {
		s[i] = '0' + (b[i] % 10)
	}
	return string(s), nil
}

// HashRestoreCode returns a SHA-256 hash of the code string, hex-encoded.
func HashRestoreCode(code string) string {
	h := sha256.Sum256([]byte(code))
	return hex.EncodeToString(h[:])
}

// RestoreCodeEqual performs constant-time comparison of the provided code's hash
// with the stored hash.
func RestoreCodeEqual(providedCode, storedHash string) bool {
	providedHash := HashRestoreCode(providedCode)
	return subtle.ConstantTimeCompare([]byte(providedHash), []byte(storedHash)) == 1
}
