package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// Password hashing parameters. The iteration count is embedded in every hash
// so it can be raised later without invalidating stored credentials.
const (
	pbkdf2Iterations = 100000
	saltLen          = 16
	keyLen           = 32
)

// HashPassword derives a PBKDF2-HMAC-SHA256 hash of the password with a fresh
// random salt. The result is "{iterations}:{base64(salt)}:{base64(key)}".
// Hashing the same password twice yields different strings.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := pbkdf2.Key([]byte(plain), salt, pbkdf2Iterations, keyLen, sha256.New)
	return fmt.Sprintf("%d:%s:%s",
		pbkdf2Iterations,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key)), nil
}

// VerifyPassword re-derives the key from the candidate password using the
// salt and iteration count stored in the hash and compares in constant time.
// Malformed input of any kind yields false, never an error.
func VerifyPassword(stored, plain string) bool {
	parts := strings.Split(stored, ":")
	if len(parts) != 3 {
		return false
	}
	iterations, err := strconv.Atoi(parts[0])
	if err != nil || iterations <= 0 {
		return false
	}
	salt, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}
	want, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(plain), salt, iterations, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}
