package auth

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/amberops/workspace/internal/domain"
)

// maxPasswordBytes is the bcrypt input ceiling.
const maxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// BcryptHasher implements PasswordHasher with bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a bcrypt hasher; non-positive cost falls back to the default
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare returns domain.ErrBadPassword on mismatch
func (h *BcryptHasher) Compare(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return domain.ErrBadPassword
	}
	if err != nil {
		return fmt.Errorf("compare password: %w", err)
	}
	return nil
}

// PasswordPolicy enforces the minimum length for new passwords
type PasswordPolicy struct {
	MinLength int
}

// Validate counts characters, not bytes, against MinLength
func (p PasswordPolicy) Validate(password string) error {
	if n := utf8.RuneCountInString(password); n < p.MinLength {
		return fmt.Errorf("%w: need at least %d characters, got %d", domain.ErrWeakPassword, p.MinLength, n)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: password longer than %d bytes", domain.ErrInvalidInput, maxPasswordBytes)
	}
	return nil
}
