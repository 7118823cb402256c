package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService signs and decodes the claim set to and from the compact JWT
// wire format using the configured key material.
type TokenService interface {
	GenerateAccess(identity Identity) (string, error)
	GenerateRefresh(identity Identity) (string, error)
	GeneratePair(identity Identity) (TokenPair, error)
	SignClaims(claims *TokenClaims) (string, error)
	Decode(tokenString string) (*TokenClaims, error)
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	keys       *KeyMaterial
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance. The refresh TTL is
// expected to be long-lived relative to the access TTL; the service does not
// enforce a ratio.
func NewTokenService(keys *KeyMaterial, accessTTL, refreshTTL time.Duration, issuer string, audience jwt.ClaimStrings, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		keys:       keys,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		audience:   audience,
		logger:     logger,
	}
}

// WithLogger swaps the service logger in place.
func (ts *TokenServiceImpl) WithLogger(logger Logger) *TokenServiceImpl {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// GenerateAccess mints an access token carrying the identity's roles.
func (ts *TokenServiceImpl) GenerateAccess(identity Identity) (string, error) {
	return ts.SignClaims(ts.NewClaims(identity, TokenTypeAccess))
}

// GenerateRefresh mints a refresh token. Refresh tokens carry no roles; their
// only purpose is minting new access tokens.
func (ts *TokenServiceImpl) GenerateRefresh(identity Identity) (string, error) {
	return ts.SignClaims(ts.NewClaims(identity, TokenTypeRefresh))
}

// GeneratePair mints a matching access and refresh token.
func (ts *TokenServiceImpl) GeneratePair(identity Identity) (TokenPair, error) {
	access, err := ts.GenerateAccess(identity)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.GenerateRefresh(identity)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SignClaims signs arbitrary claims using the configured key material.
func (ts *TokenServiceImpl) SignClaims(claims *TokenClaims) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	key, err := ts.keys.SigningKey()
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(ts.keys.JWTMethod(), claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// Decode parses and verifies a token string, returning structured claims.
// Failure modes stay distinct: expired tokens prompt a refresh, invalid
// signatures get rejected outright, anything unparseable is malformed.
func (ts *TokenServiceImpl) Decode(tokenString string) (*TokenClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, ts.keys.Keyfunc(), parserOptions...)
	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
				WithTextCode(ErrTokenMalformed.TextCode)
		}
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService decode could not map claims")
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// NewClaims builds the unsigned claim set for the given token kind. Use it
// with SignClaims when a decorator needs to add extension claims first.
func (ts *TokenServiceImpl) NewClaims(identity Identity, kind TokenType) *TokenClaims {
	ttl := ts.accessTTL
	if kind == TokenTypeRefresh {
		ttl = ts.refreshTTL
	}

	claims := ts.newClaims(identity, kind, ttl)
	if kind == TokenTypeAccess {
		claims.Roles = append([]string(nil), identity.Roles()...)
	}
	return claims
}

func (ts *TokenServiceImpl) newClaims(identity Identity, kind TokenType, ttl time.Duration) *TokenClaims {
	now := time.Now()

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity.ID(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Username:  identity.Username(),
		Email:     identity.Email(),
		TokenType: kind,
	}

	ensureTokenID(&claims.RegisteredClaims)

	return claims
}

func (ts *TokenServiceImpl) tokenDefaults() tokenDefaults {
	return tokenDefaults{
		issuer:   ts.issuer,
		audience: ts.audience,
		ttl:      ts.accessTTL,
	}
}
