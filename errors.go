package auth

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Text codes exposed to transports so clients can branch without parsing messages.
const (
	TextCodeInvalidCreds      = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled   = "ACCOUNT_DISABLED"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeDuplicateIdentity = "DUPLICATE_IDENTITY"
	TextCodeTooManyAttempts   = "TOO_MANY_LOGIN_ATTEMPTS"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenSignature    = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenStale        = "TOKEN_STALE"
	TextCodeWrongTokenType    = "WRONG_TOKEN_TYPE"
	TextCodeEmptyPassword     = "EMPTY_PASSWORD"
	TextCodeKeyMaterial       = "KEY_MATERIAL_ERROR"
)

// ErrIdentityNotFound is returned when a token references an account that no
// longer exists.
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMismatchedHashAndPassword is the externally visible credential failure.
// Unknown identifiers and wrong passwords both surface as this error so the
// login endpoint cannot be used to enumerate accounts.
var ErrMismatchedHashAndPassword = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled is returned when the account exists but is inactive.
var ErrAccountDisabled = goerrors.New("account is disabled", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrDuplicateIdentity is returned when username or email uniqueness is violated.
var ErrDuplicateIdentity = goerrors.New("username or email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity).
	WithCode(goerrors.CodeConflict)

// ErrTooManyLoginAttempts is returned when lockout enforcement is enabled and
// the failed attempt counter crossed the configured threshold.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrTokenExpired is returned when a token's expiry is in the past.
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMalformed is returned when a token cannot be parsed at all.
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryBadInput).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenSignature is returned when the signature does not verify under the
// configured key material. Callers should reject outright, never retry.
var ErrTokenSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenStale is returned when a structurally valid token no longer
// represents the account's current authority: either the username embedded in
// the claims diverged from the account, or the token was issued before the
// account's token epoch.
var ErrTokenStale = goerrors.New("token is stale", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenStale).
	WithCode(goerrors.CodeUnauthorized)

// ErrWrongTokenType is returned when a refresh token is presented where an
// access token is required, or vice versa.
var ErrWrongTokenType = goerrors.New("wrong token type", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongTokenType).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when a blank password reaches the vault.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens, including errors coming
// from the underlying JWT library before they are mapped.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for parse failures, including the middleware's
// missing token error.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
