package auth

import "time"

// TokenValidator validates raw tokens and extracts claims without tying
// callers to a specific signing implementation.
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenValidatorFunc adapts a function into a TokenValidator.
type TokenValidatorFunc func(tokenString string) (*TokenClaims, error)

// Validate satisfies the TokenValidator interface.
func (f TokenValidatorFunc) Validate(tokenString string) (*TokenClaims, error) {
	if f == nil {
		return nil, ErrTokenMalformed
	}
	return f(tokenString)
}

// ValidationPolicy states what a call site demands from a presented token.
// The epoch check is the implicit revocation mechanism: a token issued before
// the account's epoch is stale even though its signature and expiry hold.
type ValidationPolicy struct {
	RequireType TokenType
	CheckEpoch  bool
}

// AccessPolicy accepts any unexpired access token regardless of epoch. This
// avoids invalidating concurrently issued tokens from the same login burst.
func AccessPolicy() ValidationPolicy {
	return ValidationPolicy{RequireType: TokenTypeAccess}
}

// StrictAccessPolicy additionally requires the access token to be at least as
// new as the account's token epoch.
func StrictAccessPolicy() ValidationPolicy {
	return ValidationPolicy{RequireType: TokenTypeAccess, CheckEpoch: true}
}

// RefreshPolicy is the policy for the refresh entry point. The epoch check is
// always on: refreshing rotates the epoch forward, so an older refresh token
// must not mint new credentials.
func RefreshPolicy() ValidationPolicy {
	return ValidationPolicy{RequireType: TokenTypeRefresh, CheckEpoch: true}
}

// ValidateForAccount judges decoded claims against the account's current
// state. Decode-level failures (signature, parse) never reach this point.
func ValidateForAccount(claims *TokenClaims, user *User, policy ValidationPolicy) error {
	if claims == nil {
		return ErrTokenMalformed
	}
	if user == nil {
		return ErrIdentityNotFound
	}

	if policy.RequireType != "" && claims.TokenType != policy.RequireType {
		return ErrWrongTokenType
	}

	if claims.IsExpired(time.Now()) {
		return ErrTokenExpired
	}

	// Usernames are normalized on write, so a mismatch means the account's
	// username changed after this token was minted.
	if claims.Username != user.Username {
		return ErrTokenStale
	}

	if policy.CheckEpoch && claims.IssuedTime().Before(user.LastTokenIssuedAt) {
		return ErrTokenStale
	}

	return nil
}
