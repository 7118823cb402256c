package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType discriminates access from refresh tokens. The two are not
// structurally distinguishable on the wire, so every entry point must check
// the claim explicitly before trusting a token's purpose.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claim names fixed by the wire contract.
const (
	ClaimUsername = "username"
	ClaimEmail    = "email"
	ClaimType     = "type"
	ClaimRoles    = "roles"
)

// TokenClaims is the claim set carried by both token kinds. Roles are only
// populated on access tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Username  string    `json:"username,omitempty"`
	Email     string    `json:"email,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"type,omitempty"`
	Scopes    []string  `json:"scopes,omitempty"`
}

// UserID parses the subject claim as the account id.
func (c *TokenClaims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.RegisteredClaims.Subject)
	if err != nil {
		return uuid.Nil, ErrTokenMalformed
	}
	return id, nil
}

// IsAccess reports whether the type claim marks this as an access token.
func (c *TokenClaims) IsAccess() bool {
	return c.TokenType == TokenTypeAccess
}

// IsRefresh reports whether the type claim marks this as a refresh token.
func (c *TokenClaims) IsRefresh() bool {
	return c.TokenType == TokenTypeRefresh
}

// IssuedTime returns the issued-at instant, zero when absent.
func (c *TokenClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ExpiresTime returns the expiry instant, zero when absent.
func (c *TokenClaims) ExpiresTime() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IsExpired checks the expiry against the given clock.
func (c *TokenClaims) IsExpired(now time.Time) bool {
	exp := c.ExpiresTime()
	return !exp.IsZero() && now.After(exp)
}

// HasRole checks the roles claim. Always false for refresh tokens, which
// carry no roles.
func (c *TokenClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAtLeast reports whether the strongest role in the claims meets the
// minimum level in the role hierarchy.
func (c *TokenClaims) IsAtLeast(minRole string) bool {
	return RoleIsAtLeast(HighestRole(c.Roles), UserRole(minRole))
}

// ClaimsFromBearer strips the Bearer scheme from an Authorization header
// value and decodes the remaining token. Useful for callers that receive the
// raw header outside of the middleware chain.
func ClaimsFromBearer(ts TokenService, header string) (*TokenClaims, error) {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	if raw == "" {
		return nil, ErrTokenMalformed
	}
	return ts.Decode(raw)
}
