package auth_test

import (
	"context"
	"testing"
	"time"

	auth "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// fakeUsers stubs the lookup half of the users repository. Anything beyond
// GetByIdentifier panics, which is fine: the provider never calls it.
type fakeUsers struct {
	auth.Users
	user *auth.User
	err  error
}

func (f fakeUsers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*auth.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

// fakeStore records applied changesets and folds them into the record the
// way the real repository manager does.
type fakeStore struct {
	users    fakeUsers
	applied  []*auth.Changeset
	applyErr error
}

func (f *fakeStore) Users() auth.Users { return f.users }

func (f *fakeStore) ApplyChange(ctx context.Context, user *auth.User, cs *auth.Changeset) (*auth.User, error) {
	if f.applyErr != nil {
		return nil, f.applyErr
	}
	f.applied = append(f.applied, cs)
	user.Apply(cs, time.Now())
	return user, nil
}

func newActiveUser(t *testing.T, vault *auth.PasswordVault, password string) *auth.User {
	t.Helper()

	hash, err := vault.Hash(password)
	require.NoError(t, err)

	return &auth.User{
		ID:           uuid.New(),
		Username:     "tester",
		Email:        "tester@example.com",
		PasswordHash: hash,
		Roles:        []string{auth.RoleMember},
		IsActive:     true,
	}
}

func TestVerifyIdentity(t *testing.T) {
	vault := auth.NewPasswordVaultWithCost(bcrypt.MinCost)
	ctx := context.Background()

	t.Run("valid credentials return the identity view", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		identity, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		require.NoError(t, err)

		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Equal(t, "tester", identity.Username())
		assert.Equal(t, []string{auth.RoleMember}, identity.Roles())
		assert.Empty(t, store.applied, "successful verification records nothing")
	})

	t.Run("wrong password tracks the failure", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.VerifyIdentity(ctx, "tester", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)

		require.Len(t, store.applied, 1)
		assert.True(t, store.applied[0].Has(auth.FieldAttemptsIncrement))
		assert.Equal(t, 1, user.FailedAttempts)
	})

	t.Run("unknown account reads as invalid credentials", func(t *testing.T) {
		store := &fakeStore{users: fakeUsers{err: auth.ErrIdentityNotFound}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.VerifyIdentity(ctx, "ghost", "any-password")
		assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
	})

	t.Run("disabled account", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		user.IsActive = false
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		assert.ErrorIs(t, err, auth.ErrAccountDisabled)
	})

	t.Run("lockout threshold", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		user.FailedAttempts = 5
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault).WithMaxFailedAttempts(5)

		// Even the correct password is rejected once locked out.
		_, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		assert.ErrorIs(t, err, auth.ErrTooManyLoginAttempts)
	})

	t.Run("lockout disabled by default", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		user.FailedAttempts = 1000
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		assert.NoError(t, err)
	})

	t.Run("invalid role set rejected", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		user.Roles = []string{"made-up-role"}
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		assert.Error(t, err)
	})

	t.Run("custom validator overrides the default", func(t *testing.T) {
		user := newActiveUser(t, vault, "correct-password")
		user.Roles = []string{"made-up-role"}
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)
		provider.Validator = func(u *auth.User) error { return nil }

		_, err := provider.VerifyIdentity(ctx, "tester", "correct-password")
		assert.NoError(t, err)
	})
}

func TestFindIdentityByIdentifier(t *testing.T) {
	vault := auth.NewPasswordVaultWithCost(bcrypt.MinCost)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		user := newActiveUser(t, vault, "whatever")
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		identity, err := provider.FindIdentityByIdentifier(ctx, "tester")
		require.NoError(t, err)
		assert.Equal(t, user.ID.String(), identity.ID())
		assert.Empty(t, store.applied, "lookups never touch the counter")
	})

	t.Run("lookup errors pass through untranslated", func(t *testing.T) {
		store := &fakeStore{users: fakeUsers{err: auth.ErrIdentityNotFound}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.FindIdentityByIdentifier(ctx, "ghost")
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("disabled account", func(t *testing.T) {
		user := newActiveUser(t, vault, "whatever")
		user.IsActive = false
		store := &fakeStore{users: fakeUsers{user: user}}
		provider := auth.NewUserProvider(store, vault)

		_, err := provider.FindIdentityByIdentifier(ctx, "tester")
		assert.ErrorIs(t, err, auth.ErrAccountDisabled)
	})
}

func TestIdentityRolesDefault(t *testing.T) {
	user := &auth.User{ID: uuid.New(), Username: "tester"}
	identity := user.Identity()

	// Accounts without explicit roles read as plain members.
	assert.Equal(t, []string{auth.RoleMember}, identity.Roles())
}
