package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Roles() []string
}

// TokenPair carries the two credentials returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticator holds methods to deal with authentication
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	ValidateAccess(ctx context.Context, accessToken string) (*TokenClaims, error)
	UpdateSelf(ctx context.Context, accessToken string, patch UpdatePayload) (*User, error)
}

// UpdatePayload carries a partial self-service update. Empty fields are left
// untouched; absence means "no change", never "clear".
type UpdatePayload struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p UpdatePayload) IsEmpty() bool {
	return p.Username == "" && p.Email == "" && p.Password == ""
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetSigningMethod() string
	GetAccessTokenExpiration() time.Duration
	GetRefreshTokenExpiration() time.Duration
	GetIssuer() string
	GetAudience() []string
	GetContextKey() string
	GetRefreshContextKey() string
	GetAuthScheme() string
	GetTokenLookup() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// IdentityProvider ensure we have a store to retrieve auth identity
type IdentityProvider interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error)
	FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	Hash(password string) (string, error)
	Compare(password, hash string) error
}

// LoginPayload is the transport-agnostic login request shape.
type LoginPayload interface {
	GetIdentifier() string
	GetPassword() string
}

// UserID parses an identity's id as UUID.
func UserID(identity Identity) (uuid.UUID, error) {
	if identity == nil {
		return uuid.Nil, ErrIdentityNotFound
	}
	return uuid.Parse(identity.ID())
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
