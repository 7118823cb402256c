package auth

import (
	"errors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// PasswordVault hashes and verifies credentials using bcrypt. Construct one
// explicitly and inject it; there is no package-level encoder.
type PasswordVault struct {
	cost int
}

// NewPasswordVault creates a vault with the default cost for this build.
func NewPasswordVault() *PasswordVault {
	return &PasswordVault{cost: passwordHashCost()}
}

// NewPasswordVaultWithCost creates a vault with an explicit bcrypt cost.
func NewPasswordVaultWithCost(cost int) *PasswordVault {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = passwordHashCost()
	}
	return &PasswordVault{cost: cost}
}

// Hash will generate a password hash. Blank passwords are rejected before
// they ever reach the hasher.
func (v *PasswordVault) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	return string(h), err
}

// Compare will validate the given cleartext password matches the hashed
// password. Timing behavior is whatever bcrypt provides; the caller must not
// add observable shortcuts.
func (v *PasswordVault) Compare(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}

// RandomPasswordHash generates a hash of a throwaway password, useful to keep
// password columns non-null for externally provisioned accounts.
func (v *PasswordVault) RandomPasswordHash() string {
	pwd := uuid.New()

	h, err := v.Hash(pwd.String())
	if err != nil {
		return v.RandomPasswordHash()
	}

	return h
}

var _ PasswordAuthenticator = (*PasswordVault)(nil)
