package auth

import (
	"context"

	"github.com/goliatone/go-router"
)

// WSTokenValidator implements go-router's WSTokenValidator interface using
// the TokenService so WebSocket upgrades share the HTTP auth path.
type WSTokenValidator struct {
	tokenService TokenService
}

// NewWSTokenValidator creates a new WebSocket token validator using the provided TokenService
func NewWSTokenValidator(tokenService TokenService) *WSTokenValidator {
	return &WSTokenValidator{
		tokenService: tokenService,
	}
}

// Validate validates a token string and returns WebSocket-compatible auth claims.
// Refresh tokens are rejected; a socket is an access-credential surface.
func (w *WSTokenValidator) Validate(tokenString string) (router.WSAuthClaims, error) {
	claims, err := w.tokenService.Decode(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.IsAccess() {
		return nil, ErrWrongTokenType
	}
	return &WSAuthClaimsAdapter{claims: claims}, nil
}

// WSAuthClaimsAdapter adapts TokenClaims to go-router's WSAuthClaims interface.
// Resource permissions derive from the role hierarchy: everyone authenticated
// can read, members can create and edit, admins can delete.
type WSAuthClaimsAdapter struct {
	claims *TokenClaims
}

// Subject returns the subject claim
func (w *WSAuthClaimsAdapter) Subject() string {
	return w.claims.RegisteredClaims.Subject
}

// UserID returns the user ID
func (w *WSAuthClaimsAdapter) UserID() string {
	return w.claims.RegisteredClaims.Subject
}

// Role returns the strongest role carried by the token
func (w *WSAuthClaimsAdapter) Role() string {
	return string(HighestRole(w.claims.Roles))
}

// CanRead checks if the user can read a specific resource
func (w *WSAuthClaimsAdapter) CanRead(resource string) bool {
	return w.claims.IsAtLeast(string(RoleGuest))
}

// CanEdit checks if the user can edit a specific resource
func (w *WSAuthClaimsAdapter) CanEdit(resource string) bool {
	return w.claims.IsAtLeast(string(RoleMember))
}

// CanCreate checks if the user can create a specific resource
func (w *WSAuthClaimsAdapter) CanCreate(resource string) bool {
	return w.claims.IsAtLeast(string(RoleMember))
}

// CanDelete checks if the user can delete a specific resource
func (w *WSAuthClaimsAdapter) CanDelete(resource string) bool {
	return w.claims.IsAtLeast(string(RoleAdmin))
}

// HasRole checks if the user has a specific role
func (w *WSAuthClaimsAdapter) HasRole(role string) bool {
	return w.claims.HasRole(role)
}

// IsAtLeast checks if the user's role is at least the minimum required role
func (w *WSAuthClaimsAdapter) IsAtLeast(minRole string) bool {
	return w.claims.IsAtLeast(minRole)
}

// NewWSAuthMiddleware creates a fully configured WebSocket authentication
// middleware backed by this authenticator's token service.
func (s *Auther) NewWSAuthMiddleware(config ...router.WSAuthConfig) router.WebSocketMiddleware {
	validator := NewWSTokenValidator(s.tokenService)

	var cfg router.WSAuthConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	cfg.TokenValidator = validator

	return router.NewWSAuth(cfg)
}

// WSAuthClaimsFromContext retrieves the token claims stored by the WebSocket
// auth middleware, when the connection was validated by this package.
func WSAuthClaimsFromContext(ctx context.Context) (*TokenClaims, bool) {
	wsAuthClaims, ok := router.WSAuthClaimsFromContext(ctx)
	if !ok {
		return nil, false
	}

	if adapter, ok := wsAuthClaims.(*WSAuthClaimsAdapter); ok {
		return adapter.claims, true
	}

	return nil, false
}
