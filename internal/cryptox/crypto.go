// Package cryptox wraps the hashing primitives APIFarm relies on: bcrypt for
// user passwords and a SHA-256 fingerprint for identifying upstream
// credentials in logs without printing them.
package cryptox

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxLen is the longest input bcrypt accepts.
const bcryptMaxLen = 72

// prehash maps a password of any length to 64 hex characters, which is
// within bcrypt's input limit.
func prehash(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return []byte(hex.EncodeToString(sum[:]))
}

// HashPassword returns the bcrypt hash of SHA-256(password) at the default
// cost. Passwords of any length are accepted.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword(prehash(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// CheckPassword reports whether password matches hash. Hashes of the raw
// password, written before pre-hashing was introduced, are still accepted.
// A malformed hash is reported as a mismatch.
func CheckPassword(hash, password string) bool {
	if bcrypt.CompareHashAndPassword([]byte(hash), prehash(password)) == nil {
		return true
	}
	if len(password) > bcryptMaxLen {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// IsHash reports whether s looks like a bcrypt hash rather than a plaintext
// password carried over from an older users file.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// Fingerprint returns the first 12 hex characters of SHA-256(secret).
func Fingerprint(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:12]
}
