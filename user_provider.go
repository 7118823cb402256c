package auth

import (
	"context"
	"sync"

	"github.com/goliatone/go-errors"
)

// AccountStore is the slice of the repository layer the provider needs to
// verify credentials and track login outcomes.
type AccountStore interface {
	Users() Users
	ApplyChange(ctx context.Context, user *User, cs *Changeset) (*User, error)
}

// UserProvider resolves identifiers to accounts and verifies passwords.
// A failed comparison and a missing account are indistinguishable to the
// caller so identifiers cannot be probed through the login endpoint.
type UserProvider struct {
	store     AccountStore
	vault     PasswordAuthenticator
	Validator func(*User) error
	logger    Logger

	// MaxFailedAttempts locks out verification once the stored counter
	// reaches it. Zero disables the lockout check entirely, leaving
	// enforcement to the caller.
	MaxFailedAttempts int
}

// NewUserProvider will create a new UserProvider
func NewUserProvider(store AccountStore, vault PasswordAuthenticator) *UserProvider {
	return &UserProvider{
		store:     store,
		vault:     vault,
		logger:    defLogger{},
		Validator: defaultValidator,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	if l != nil {
		u.logger = l
	}
	return u
}

// WithMaxFailedAttempts enables the counter-based lockout.
func (u *UserProvider) WithMaxFailedAttempts(max int) *UserProvider {
	u.MaxFailedAttempts = max
	return u
}

func (u *UserProvider) validate(user *User) error {
	if u.Validator != nil {
		return u.Validator(user)
	}
	return defaultValidator(user)
}

// VerifyIdentity will find the user, compare the password, and return the
// identity view. The password is burned against a throwaway hash when the
// account does not exist, so both paths cost one bcrypt comparison.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.IsNotFound(err) {
			u.burnComparison(password)
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	if err := ensureAuthenticatableUser(user); err != nil {
		return nil, err
	}

	if u.MaxFailedAttempts > 0 && user.FailedAttempts >= u.MaxFailedAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := u.vault.Compare(password, user.PasswordHash); err != nil {
		cs := NewChangeset()
		user.RecordLoginFailure(cs)
		if _, err2 := u.store.ApplyChange(ctx, user, cs); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user.Identity(), nil
}

// FindIdentityByIdentifier resolves an identifier without touching the
// password or the attempt counter.
func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	if err := ensureAuthenticatableUser(user); err != nil {
		return nil, err
	}

	if err := u.validate(user); err != nil {
		return nil, err
	}

	return user.Identity(), nil
}

var burnHashOnce sync.Once
var burnHash string

// burnComparison spends one bcrypt comparison against a throwaway hash so
// the missing-account path takes as long as a real mismatch. The throwaway
// hash is computed once per process.
func (u *UserProvider) burnComparison(password string) {
	burnHashOnce.Do(func() {
		if vault, ok := u.vault.(*PasswordVault); ok {
			burnHash = vault.RandomPasswordHash()
		}
	})
	if burnHash != "" {
		_ = u.vault.Compare(password, burnHash)
	}
}

var _ IdentityProvider = (*UserProvider)(nil)

func defaultValidator(u *User) error {
	if !ValidRoleSet(u.Roles) {
		return errors.New("user has an unknown or invalid role", errors.CategoryAuth).
			WithTextCode("INVALID_ROLE").
			WithMetadata(map[string]any{"roles": u.Roles, "user_id": u.ID.String()})
	}
	return nil
}

func ensureAuthenticatableUser(user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}

	if !user.IsActive {
		return ErrAccountDisabled
	}

	return nil
}
