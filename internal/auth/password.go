// Package auth implements account registration, password and OTP login,
// sessions and role checks on top of the document store.
package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashes are stored as hex(salt) + "$" + hex(digest).
const (
	saltLen    = 16
	keyLen     = 32
	pbkdf2Iter = 100000
)

func hashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	digest := pbkdf2.Key([]byte(password), salt, pbkdf2Iter, keyLen, sha256.New)
	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(digest), nil
}

// verifyPassword reports whether password matches the stored hash. Malformed
// hashes never match.
func verifyPassword(stored, password string) bool {
	salt, want, ok := strings.Cut(stored, "$")
	if !ok {
		return false
	}
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	rawWant, err := hex.DecodeString(want)
	if err != nil || len(rawWant) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(password), rawSalt, pbkdf2Iter, len(rawWant), sha256.New)
	return hmac.Equal(got, rawWant)
}
