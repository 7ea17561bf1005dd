package auth

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is bcrypt's input limit; longer secrets are rejected
// rather than silently truncated.
const MaxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// PasswordHasher wraps bcrypt. The salt is embedded in the hash; Hash also
// returns it separately because the schema keeps it for audit.
type PasswordHasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewPasswordHasher returns a hasher using cost, or bcrypt.DefaultCost when
// cost is outside bcrypt's accepted range.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash derives a salted hash of plain.
func (h *PasswordHasher) Hash(plain string) (hash, salt string, err error) {
	if len(plain) > MaxPasswordBytes {
		return "", "", ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}
	return string(b), SaltOf(string(b)), nil
}

// Check verifies plain against hash. An empty hash never verifies.
func (h *PasswordHasher) Check(hash, plain string) error {
	if hash == "" {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}

// CheckDummy spends the same work as Check against a throwaway hash. Login
// calls it for unknown emails so response time does not reveal whether the
// account exists.
func (h *PasswordHasher) CheckDummy(plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("eventpass-dummy-password"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}

// SaltOf extracts the 22-character salt from a modular-crypt bcrypt hash
// ("$2a$10$" + salt + checksum). It returns "" for anything else.
func SaltOf(hash string) string {
	const prefixLen, saltLen = 7, 22
	if len(hash) < prefixLen+saltLen || hash[0] != '$' {
		return ""
	}
	return hash[prefixLen : prefixLen+saltLen]
}
