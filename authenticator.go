package auth

import (
	"context"
	"reflect"
	"time"

	"github.com/goliatone/go-errors"
)

// Auther orchestrates credential verification, token issuance, and the
// account-state writes that anchor the token epoch.
type Auther struct {
	provider       IdentityProvider
	store          AccountStore
	keys           *KeyMaterial
	logger         Logger
	tokenService    TokenService
	tokenValidator  TokenValidator
	accessPolicy    ValidationPolicy
	activitySink    ActivitySink
	claimsDecorator ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator backed by a symmetric signing
// key taken from opts. Use WithKeyMaterial for RSA or remote JWKS keys.
func NewAuthenticator(provider IdentityProvider, store AccountStore, opts Config) *Auther {
	keys := &KeyMaterial{method: MethodHS256, secret: []byte(opts.GetSigningKey())}

	tokenService := NewTokenService(
		keys,
		opts.GetAccessTokenExpiration(),
		opts.GetRefreshTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		defLogger{},
	)

	return &Auther{
		provider:        provider,
		store:           store,
		keys:            keys,
		logger:          defLogger{},
		tokenService:    tokenService,
		accessPolicy:    AccessPolicy(),
		activitySink:    noopActivitySink{},
		claimsDecorator: noopClaimsDecorator{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = logger
	if svc, ok := s.tokenService.(*TokenServiceImpl); ok {
		svc.WithLogger(logger)
	}
	return s
}

// WithKeyMaterial swaps the signing keys, rebuilding the token service so
// minting and verification stay consistent.
func (s *Auther) WithKeyMaterial(keys *KeyMaterial, opts Config) *Auther {
	s.keys = keys
	s.tokenService = NewTokenService(
		keys,
		opts.GetAccessTokenExpiration(),
		opts.GetRefreshTokenExpiration(),
		opts.GetIssuer(),
		opts.GetAudience(),
		s.logger,
	)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom token validator for externally issued tokens.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

// WithAccessPolicy controls whether access-token validation checks the token
// epoch. The default skips the account read; StrictAccessPolicy enables it.
func (s *Auther) WithAccessPolicy(policy ValidationPolicy) *Auther {
	policy.RequireType = TokenTypeAccess
	s.accessPolicy = policy
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credentials, mints an access/refresh pair, and advances
// the account's token epoch to the pair's issuance instant.
func (s *Auther) Login(ctx context.Context, identifier, password string) (TokenPair, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.logger.Error("Login verify identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return TokenPair{}, err
	}

	if identity == nil || reflect.ValueOf(identity).IsZero() {
		s.logger.Error("Login identity is nil or zero value")
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"identifier": identifier,
			"error":      ErrIdentityNotFound.Error(),
		})
		return TokenPair{}, ErrIdentityNotFound
	}

	pair, err := s.generatePair(ctx, identity)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return TokenPair{}, err
	}

	if err := s.stampIssuance(ctx, identity.ID(), pair.AccessToken, true); err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, s.actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error":      err.Error(),
		})
		return TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, s.actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
	})

	return pair, nil
}

// Refresh exchanges a live refresh token for a fresh access token. The
// presented refresh token is returned unchanged; it stays valid until it
// expires or the epoch moves past it.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokenService.Decode(refreshToken)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, "", map[string]any{
			"error": err.Error(),
		})
		return TokenPair{}, err
	}

	if !claims.IsRefresh() {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, claims.Subject, map[string]any{
			"error": ErrWrongTokenType.Error(),
		})
		return TokenPair{}, ErrWrongTokenType
	}

	user, err := s.store.Users().GetByIdentifier(ctx, claims.Subject)
	if err != nil {
		if errors.IsNotFound(err) {
			err = ErrIdentityNotFound
		}
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ActorRef{Type: "unknown"}, claims.Subject, map[string]any{
			"error": err.Error(),
		})
		return TokenPair{}, err
	}

	if !user.IsActive {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"error": ErrAccountDisabled.Error(),
		})
		return TokenPair{}, ErrAccountDisabled
	}

	if err := ValidateForAccount(claims, user, RefreshPolicy()); err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, s.actorFromUser(user), user.ID.String(), map[string]any{
			"error": err.Error(),
		})
		return TokenPair{}, err
	}

	access, err := s.generateToken(ctx, user.Identity(), TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}

	if err := s.stampIssuance(ctx, user.ID.String(), access, false); err != nil {
		return TokenPair{}, err
	}

	s.emitAuthEvent(ctx, ActivityEventRefreshSuccess, s.actorFromUser(user), user.ID.String(), nil)

	return TokenPair{AccessToken: access, RefreshToken: refreshToken}, nil
}

// ValidateAccess decodes and validates an access token. The default policy
// trusts the signature and expiry alone; a strict policy additionally reads
// the account and rejects tokens older than its epoch.
func (s *Auther) ValidateAccess(ctx context.Context, accessToken string) (*TokenClaims, error) {
	claims, err := s.decode(accessToken)
	if err != nil {
		return nil, err
	}

	if !claims.IsAccess() {
		return nil, ErrWrongTokenType
	}

	if !s.accessPolicy.CheckEpoch {
		return claims, nil
	}

	user, err := s.store.Users().GetByIdentifier(ctx, claims.Subject)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrAccountDisabled
	}

	if err := ValidateForAccount(claims, user, s.accessPolicy); err != nil {
		return nil, err
	}

	return claims, nil
}

// UpdateSelf applies a partial identity update on behalf of the token's
// subject. Username and email changes roll the history lineages; password
// changes rehash through the vault. An empty patch is a no-op.
func (s *Auther) UpdateSelf(ctx context.Context, accessToken string, patch UpdatePayload) (*User, error) {
	claims, err := s.ValidateAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	user, err := s.store.Users().GetByIdentifier(ctx, claims.Subject)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	if patch.IsEmpty() {
		return user, nil
	}

	if err := ValidateUpdate(patch); err != nil {
		return nil, err
	}

	cs := NewChangeset()
	user.SetUsername(patch.Username, cs)
	user.SetEmail(patch.Email, cs)
	if _, err := user.SetPassword(s.vaultOrDefault(), patch.Password, cs); err != nil {
		return nil, err
	}

	updated, err := s.store.ApplyChange(ctx, user, cs)
	if err != nil {
		return nil, err
	}

	if cs.Has(FieldUsername) || cs.Has(FieldEmail) {
		s.emitAuthEvent(ctx, ActivityEventIdentityChanged, s.actorFromUser(updated), updated.ID.String(), map[string]any{
			"fields": cs.Fields(),
		})
	}
	if cs.Has(FieldPassword) {
		s.emitAuthEvent(ctx, ActivityEventPasswordChanged, s.actorFromUser(updated), updated.ID.String(), nil)
	}

	return updated, nil
}

func (s *Auther) generatePair(ctx context.Context, identity Identity) (TokenPair, error) {
	access, err := s.generateToken(ctx, identity, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := s.generateToken(ctx, identity, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// generateToken mints a token, running the claims decorator between claim
// construction and signing. A snapshot guard aborts the signing if the
// decorator touched identity or registered claims.
func (s *Auther) generateToken(ctx context.Context, identity Identity, kind TokenType) (string, error) {
	svc, ok := s.tokenService.(*TokenServiceImpl)
	if !ok {
		if kind == TokenTypeRefresh {
			return s.tokenService.GenerateRefresh(identity)
		}
		return s.tokenService.GenerateAccess(identity)
	}

	claims := svc.NewClaims(identity, kind)
	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed", "error", err)
		return "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated immutable claims", "error", err)
		return "", err
	}

	return svc.SignClaims(claims)
}

// stampIssuance reads the minted token's iat and advances the account epoch
// to it, so comparisons later happen at the token's own second resolution.
func (s *Auther) stampIssuance(ctx context.Context, userID, token string, isLogin bool) error {
	claims, err := s.tokenService.Decode(token)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to read issued token claims")
	}

	user, err := s.store.Users().GetByIdentifier(ctx, userID)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load account for epoch stamp")
	}

	cs := NewChangeset()
	user.StampTokenIssued(claims.IssuedTime(), isLogin, cs)

	if _, err := s.store.ApplyChange(ctx, user, cs); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to persist token epoch")
	}

	return nil
}

func (s *Auther) decode(token string) (*TokenClaims, error) {
	if s.tokenValidator != nil {
		return s.tokenValidator.Validate(token)
	}
	return s.tokenService.Decode(token)
}

func (s *Auther) vaultOrDefault() PasswordAuthenticator {
	if p, ok := s.provider.(*UserProvider); ok && p.vault != nil {
		return p.vault
	}
	return NewPasswordVault()
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Actor:     actor,
		UserID:    userID,
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func (s *Auther) actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

func (s *Auther) actorFromUser(user *User) ActorRef {
	if user == nil {
		return ActorRef{Type: "unknown"}
	}

	return ActorRef{
		ID:   user.ID.String(),
		Type: "user",
	}
}

var _ Authenticator = (*Auther)(nil)
