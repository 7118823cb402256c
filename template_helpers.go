package auth

import (
	"maps"

	"github.com/goliatone/go-identity/middleware/csrf"
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns a map of helper functions and data that can be used
// with a renderer's global-data option for authentication-aware templates.
//
// In templates:
//
//	{% if current_user %}
//	{% if current_user|has_role:"admin" %}
//	{{ csrf_field }}
//	{{ csrf_token }}
func TemplateHelpers() map[string]any {
	helpers := map[string]any{
		"is_authenticated": isAuthenticated,
		"has_role":         hasRole,
		"is_at_least":      isAtLeast,

		// Role constants for easy template access
		"roles": map[string]string{
			"guest":  string(RoleGuest),
			"member": string(RoleMember),
			"admin":  string(RoleAdmin),
			"owner":  string(RoleOwner),
		},
	}

	// add CSRF template helpers
	maps.Copy(helpers, csrf.CSRFTemplateHelpers())

	return helpers
}

// TemplateHelpersWithUser returns template helpers with a specific user set
// as current_user.
func TemplateHelpersWithUser(user *User) map[string]any {
	helpers := TemplateHelpers()
	helpers[TemplateUserKey] = user
	return helpers
}

// TemplateHelpersWithRouter returns template helpers with user data extracted
// from router context, plus CSRF token helpers bound to the request.
func TemplateHelpersWithRouter(ctx router.Context, userKey string) map[string]any {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	helpers := TemplateHelpers()

	if user := ctx.Locals(userKey); user != nil {
		helpers[TemplateUserKey] = user
	}

	for key, value := range csrf.CSRFTemplateHelpersWithRouter(ctx, csrf.DefaultContextKey) {
		helpers[key] = value
	}

	return helpers
}

// GetTemplateUser extracts user data from router context for template usage.
func GetTemplateUser(ctx router.Context, userKey string) (any, bool) {
	if userKey == "" {
		userKey = TemplateUserKey
	}

	user := ctx.Locals(userKey)
	return user, user != nil
}

// isAuthenticated checks if the provided user object is not nil
func isAuthenticated(user any) bool {
	switch u := user.(type) {
	case *User:
		return u != nil
	case User:
		return true
	case *TokenClaims:
		return u != nil && u.RegisteredClaims.Subject != ""
	case map[string]any:
		// Handle JSON-converted user objects
		return len(u) > 0
	default:
		return false
	}
}

// hasRole checks if the user carries the specified role
func hasRole(user any, role string) bool {
	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return containsRole(u.Roles, role)
	case User:
		return containsRole(u.Roles, role)
	case *TokenClaims:
		if u == nil {
			return false
		}
		return u.HasRole(role)
	case map[string]any:
		return containsRole(rolesFromMap(u), role)
	default:
		return false
	}
}

// isAtLeast checks if the user's strongest role meets the minimum level
func isAtLeast(user any, minRole string) bool {
	min := UserRole(minRole)

	switch u := user.(type) {
	case *User:
		if u == nil {
			return false
		}
		return RoleIsAtLeast(HighestRole(u.Roles), min)
	case User:
		return RoleIsAtLeast(HighestRole(u.Roles), min)
	case *TokenClaims:
		if u == nil {
			return false
		}
		return u.IsAtLeast(minRole)
	case map[string]any:
		return RoleIsAtLeast(HighestRole(rolesFromMap(u)), min)
	default:
		return false
	}
}

func containsRole(roles []string, role string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// rolesFromMap handles JSON-converted user objects.
func rolesFromMap(u map[string]any) []string {
	raw, ok := u["roles"]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
