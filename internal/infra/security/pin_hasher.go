package security

import (
	"fmt"

	"dvsafe-service/internal/domain/ports/adapter"

	"golang.org/x/crypto/bcrypt"
)

var _ adapter.PinHasher = (*BcryptPinHasher)(nil)

// BcryptPinHasher salts and hashes chat PINs with bcrypt.
type BcryptPinHasher struct {
	cost int
}

func NewBcryptPinHasher(cost int) *BcryptPinHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPinHasher{cost: cost}
}

func (h *BcryptPinHasher) Hash(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash pin: %w", err)
	}
	return string(b), nil
}

// Verify never errors: a malformed hash simply fails the check.
func (h *BcryptPinHasher) Verify(hash, pin string) bool {
	if hash == "" || pin == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}
