package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MinLength for operator and member passwords
const MinLength = 8

// Cost is the bcrypt cost. Tests lower it to bcrypt.MinCost.
var Cost = 12

var ErrTooShort = errors.New("password must be at least 8 characters")

// Hash hashes a password using bcrypt
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares a password with a hash
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashToken digests a refresh token for storage
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Validate checks the password policy
func Validate(plain string) error {
	if utf8.RuneCountInString(plain) < MinLength {
		return ErrTooShort
	}
	return nil
}
