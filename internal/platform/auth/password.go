package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost is the bcrypt work factor used when none is configured.
const DefaultHashCost = 12

// PasswordHasher wraps bcrypt with a fixed, process-wide work factor. Each
// HashPassword call salts independently, so two hashes of the same password
// differ.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher with the given work factor. Costs
// outside bcrypt's supported range fall back to DefaultHashCost.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultHashCost
	}
	return &PasswordHasher{cost: cost}
}

// HashPassword returns the bcrypt digest of the password.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// VerifyPassword reports whether the password matches the digest. The
// comparison is constant-time inside bcrypt. A malformed digest (corrupted
// storage) verifies false rather than returning an error; a login attempt
// against garbage should fail closed, not crash.
func (h *PasswordHasher) VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}

// Cost returns the configured work factor.
func (h *PasswordHasher) Cost() int { return h.cost }
