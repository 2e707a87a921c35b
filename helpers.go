package secureauth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// DefaultHashCost matches the work factor the service has always used.
const DefaultHashCost = 10

// maxSecretLen is the longest input bcrypt will hash.
const maxSecretLen = 72

// PasswordHasher produces salted one-way digests and compares secrets against them.
type PasswordHasher interface {
	Hash(secret string) (string, error)
	Compare(secret, digest string) (bool, error)
}

// BcryptHasher is a PasswordHasher with a work factor fixed at construction.
type BcryptHasher struct {
	cost int

	dummyOnce   sync.Once
	dummyDigest string
}

// NewBcryptHasher creates a hasher with the given cost, clamped to the range
// bcrypt accepts.  A cost of 0 selects DefaultHashCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = DefaultHashCost
	}
	cost = max(bcrypt.MinCost, min(cost, bcrypt.MaxCost))
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Cost() int { return h.cost }

// Hash returns a bcrypt digest of secret with a fresh random salt.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	if len(secret) > maxSecretLen {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("%w: failed to hash password: %v", ErrInternal, err)
	}
	return string(digest), nil
}

// Compare reports whether secret matches digest.  A mismatch is not an error.
// The federated sentinel never matches.  A digest that cannot be parsed is an
// internal failure rather than a mismatch.
func (h *BcryptHasher) Compare(secret, digest string) (bool, error) {
	if digest == FederatedCredential || len(secret) > maxSecretLen {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: failed to compare password: %v", ErrInternal, err)
}

// burn runs a comparison against a throwaway digest so that a lookup miss costs
// about as much as a real password check.
func (h *BcryptHasher) burn(secret string) {
	h.dummyOnce.Do(func() {
		d, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), h.cost)
		if err == nil {
			h.dummyDigest = string(d)
		}
	})
	if h.dummyDigest != "" {
		_, _ = h.Compare(secret, h.dummyDigest)
	}
}
