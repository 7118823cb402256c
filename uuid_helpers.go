package auth

import "github.com/google/uuid"

// HasUserUUID reports whether TokenClaims.UserID will succeed.
func HasUserUUID(claims *TokenClaims) bool {
	if claims == nil {
		return false
	}
	_, err := claims.UserID()
	return err == nil
}

// MustUserUUID returns the subject as a UUID, or uuid.Nil when the claims do
// not carry a parseable account id.
func MustUserUUID(claims *TokenClaims) uuid.UUID {
	if claims == nil {
		return uuid.Nil
	}
	id, err := claims.UserID()
	if err != nil {
		return uuid.Nil
	}
	return id
}
