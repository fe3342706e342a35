// Package credentials provides password hashing/verification and opaque
// random-secret generation. Hashes are treated as opaque strings by the rest
// of the system.
package credentials

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// SecretLength is the symbol count of generated reset secrets.
const SecretLength = 16

// secretAlphabet excludes visually ambiguous symbols.
const secretAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

// Hasher hashes and verifies account passwords.
type Hasher struct {
	cost int
}

// NewHasher creates a hasher with the default bcrypt cost.
func NewHasher() *Hasher {
	return &Hasher{cost: bcrypt.DefaultCost}
}

// NewHasherWithCost creates a hasher with an explicit bcrypt cost. Tests use
// bcrypt.MinCost to keep hashing cheap.
func NewHasherWithCost(cost int) *Hasher {
	return &Hasher{cost: cost}
}

// Hash derives an opaque hash for the given password.
func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether the password matches the stored hash.
func (h *Hasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSecret produces a random secret of exactly n symbols. The plaintext
// is returned once and is never re-derivable from its stored hash.
func GenerateSecret(n int) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("secret length must be positive, got %d", n)
	}

	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	out := make([]byte, n)
	for i, b := range raw {
		out[i] = secretAlphabet[int(b)%len(secretAlphabet)]
	}
	return string(out), nil
}
