// Package utils provides small shared helpers: identifier generation and
// secret hashing for API keys, MFA codes, and security events.
package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// RandomHex returns n random bytes hex-encoded (2n characters).
func RandomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process environment is broken;
		// there is no meaningful recovery.
		panic(fmt.Sprintf("utils: crypto/rand unavailable: %v", err))
	}
	return hex.EncodeToString(buf)
}

// EventID builds a security event identifier from its creation instant plus a
// random suffix, e.g. "evt_1717171717000_9f2c1ab4".
func EventID(ts time.Time) string {
	return fmt.Sprintf("evt_%d_%s", ts.UnixMilli(), RandomHex(4))
}

// KeyID builds an API key identifier of the form "<prefix>_<millis>_<random>".
func KeyID(prefix string, ts time.Time) string {
	return fmt.Sprintf("%s_%d_%s", prefix, ts.UnixMilli(), RandomHex(6))
}

// NewSecret generates a high-entropy API key secret. The plaintext exists
// only at creation time; callers persist HashSecret(secret) instead.
func NewSecret() string {
	return "sentinel_" + RandomHex(32)
}

// HashSecret returns the hex SHA-256 digest of a secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecureCompare compares two strings in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// NumericCode returns a zero-padded numeric code of the given length,
// suitable for SMS/TOTP-style MFA challenges.
func NumericCode(digits int) string {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(fmt.Sprintf("utils: crypto/rand unavailable: %v", err))
	}
	return fmt.Sprintf("%0*d", digits, n)
}
