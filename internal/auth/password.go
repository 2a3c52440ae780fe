package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost balances hashing latency against brute-force resistance.
const DefaultBcryptCost = 12

// GeneratedPasswordLength is the length of one-time passwords issued when an
// account is created without an explicit password.
const GeneratedPasswordLength = 12

// ErrEmptyPassword is returned when an empty password is hashed or checked.
var ErrEmptyPassword = errors.New("password cannot be empty")

// passwordAlphabet excludes easily confused characters (0/O, 1/l/I).
const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// HashPassword hashes a plaintext password with bcrypt at the given cost.
// A cost of 0 uses DefaultBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GeneratePassword produces a random one-time password for new accounts.
// The plaintext is surfaced exactly once, on the account's CREATE history
// record; only the bcrypt hash is stored on the user row.
func GeneratePassword() (string, error) {
	max := big.NewInt(int64(len(passwordAlphabet)))
	buf := make([]byte, GeneratedPasswordLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}
