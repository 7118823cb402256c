package auth_test

import (
	"testing"

	auth "github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateHelpers(t *testing.T) {
	helpers := auth.TemplateHelpers()

	assert.Contains(t, helpers, "is_authenticated")
	assert.Contains(t, helpers, "has_role")
	assert.Contains(t, helpers, "is_at_least")
	assert.Contains(t, helpers, "csrf_field")
	assert.Contains(t, helpers, "csrf_token")

	roles, ok := helpers["roles"].(map[string]string)
	require.True(t, ok)
	assert.Equal(t, auth.RoleAdmin, roles["admin"])
	assert.Equal(t, auth.RoleGuest, roles["guest"])
}

func TestTemplateHelpersWithUser(t *testing.T) {
	user := &auth.User{ID: uuid.New(), Username: "tester"}

	helpers := auth.TemplateHelpersWithUser(user)
	assert.Equal(t, user, helpers[auth.TemplateUserKey])
}

func TestTemplateHelpersWithRouter(t *testing.T) {
	user := &auth.User{ID: uuid.New(), Username: "tester"}

	ctx := &MockContext{}
	ctx.On("Locals", "current_user").Return(user)
	ctx.On("Locals", "csrf_token").Return("tok-value")
	ctx.On("Locals", "csrf_token_field").Return(nil)
	ctx.On("Locals", "csrf_token_header").Return(nil)

	helpers := auth.TemplateHelpersWithRouter(ctx, "")
	assert.Equal(t, user, helpers[auth.TemplateUserKey])
	assert.Equal(t, "tok-value", helpers["csrf_token"])
}

func TestGetTemplateUser(t *testing.T) {
	user := &auth.User{ID: uuid.New()}

	ctx := &MockContext{}
	ctx.On("Locals", "current_user").Return(user)

	got, ok := auth.GetTemplateUser(ctx, "")
	assert.True(t, ok)
	assert.Equal(t, user, got)

	missing := &MockContext{}
	missing.On("Locals", "session_user").Return(nil)

	_, ok = auth.GetTemplateUser(missing, "session_user")
	assert.False(t, ok)
}

func TestTemplateHelperPredicates(t *testing.T) {
	helpers := auth.TemplateHelpers()

	isAuthenticated := helpers["is_authenticated"].(func(any) bool)
	hasRole := helpers["has_role"].(func(any, string) bool)
	isAtLeast := helpers["is_at_least"].(func(any, string) bool)

	user := &auth.User{ID: uuid.New(), Roles: []string{auth.RoleAdmin}}
	claims := makeClaims(auth.TokenTypeAccess, []string{auth.RoleMember})
	mapUser := map[string]any{"roles": []any{"admin"}}

	t.Run("is_authenticated", func(t *testing.T) {
		assert.True(t, isAuthenticated(user))
		assert.True(t, isAuthenticated(claims))
		assert.True(t, isAuthenticated(mapUser))
		assert.False(t, isAuthenticated(nil))
		assert.False(t, isAuthenticated((*auth.User)(nil)))
		assert.False(t, isAuthenticated("nope"))
	})

	t.Run("has_role", func(t *testing.T) {
		assert.True(t, hasRole(user, auth.RoleAdmin))
		assert.False(t, hasRole(user, auth.RoleOwner))
		assert.True(t, hasRole(claims, auth.RoleMember))
		assert.True(t, hasRole(mapUser, auth.RoleAdmin))
		assert.False(t, hasRole(nil, auth.RoleAdmin))
	})

	t.Run("is_at_least", func(t *testing.T) {
		assert.True(t, isAtLeast(user, auth.RoleMember))
		assert.True(t, isAtLeast(user, auth.RoleAdmin))
		assert.False(t, isAtLeast(user, auth.RoleOwner))
		assert.True(t, isAtLeast(claims, auth.RoleGuest))
		assert.False(t, isAtLeast(claims, auth.RoleAdmin))
		assert.True(t, isAtLeast(mapUser, auth.RoleAdmin))
		assert.False(t, isAtLeast(nil, auth.RoleGuest))
	})
}
