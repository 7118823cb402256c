package csrf

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch    = errors.New("CSRF token mismatch")
	ErrTokenMissing     = errors.New("CSRF token missing")
	ErrTokenExpired     = errors.New("CSRF token expired")
	ErrSecureKeyMissing = errors.New("CSRF secure key required for stateless mode")
)

// DefaultTokenLength is the nonce length used when generating tokens.
const DefaultTokenLength = 32

// DefaultTemplateHelpersKey is the context key used when merging CSRF template helpers.
const DefaultTemplateHelpersKey = "template_helpers"

// DefaultContextKey is the context key the middleware stores the token under.
const DefaultContextKey = "csrf_token"

// DefaultFormFieldName is the form field checked for the token.
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the header checked for the token.
const DefaultHeaderName = "X-CSRF-Token"

var defaultSafeMethods = []string{"GET", "HEAD", "OPTIONS", "TRACE"}

// Config defines the configuration for the CSRF middleware.
type Config struct {
	// Skip short-circuits the middleware for matching requests.
	Skip func(router.Context) bool

	// TokenLength is the nonce length for generated tokens.
	TokenLength int

	// ContextKey is where the token is stored on the request context.
	ContextKey string

	// FormFieldName is the form field carrying the token.
	FormFieldName string

	// HeaderName is the header carrying the token.
	HeaderName string

	// TokenLookup selects extraction sources, e.g.
	// "form:_token,header:X-CSRF-Token".
	TokenLookup string

	// Storage persists tokens per scope. When nil the middleware runs in
	// stateless mode and tokens are HMAC-signed instead of stored.
	Storage Storage

	// ErrorHandler maps validation failures to responses.
	ErrorHandler router.ErrorHandler

	// SuccessHandler runs after a request passes validation.
	SuccessHandler router.HandlerFunc

	// SafeMethods lists HTTP methods exempt from validation.
	SafeMethods []string

	// Expiration bounds token validity.
	Expiration time.Duration

	// SecureKey signs stateless tokens. Must be at least 32 bytes.
	SecureKey []byte

	// DisableTemplateHelpers skips template helper injection when true.
	DisableTemplateHelpers bool
	// TemplateHelpersKey is the context key used when merging helper maps.
	TemplateHelpersKey string
}

// Storage persists tokens keyed by request scope.
type Storage interface {
	Get(key string) (string, error)
	Set(key string, value string, expiration time.Duration) error
	Delete(key string) error
}

// New creates the CSRF middleware. Safe methods receive a token; unsafe
// methods must echo it back through a form field or header.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)

		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			token, err := issueToken(ctx, cfg)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			ctx.Locals(cfg.ContextKey, token)
			ctx.Locals(cfg.ContextKey+"_field", cfg.FormFieldName)
			ctx.Locals(cfg.ContextKey+"_header", cfg.HeaderName)
			if !cfg.DisableTemplateHelpers {
				helpers := CSRFTemplateHelpersWithRouter(ctx, cfg.ContextKey)
				ctx.LocalsMerge(cfg.TemplateHelpersKey, helpers)
			}

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return cfg.SuccessHandler(ctx)
			}

			if err := checkRequest(ctx, cfg, token); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

// issueToken returns the token for the current request scope, reusing a
// stored one when a Storage backend is configured.
func issueToken(ctx router.Context, cfg Config) (string, error) {
	if cfg.Storage == nil {
		return newSigner(cfg).issue(requestScope(ctx))
	}

	scope := requestScope(ctx)
	if token, err := cfg.Storage.Get(scope); err == nil && token != "" {
		return token, nil
	}

	token, err := randomToken(cfg.TokenLength)
	if err != nil {
		return "", err
	}

	if err := cfg.Storage.Set(scope, token, cfg.Expiration); err != nil {
		return "", err
	}

	return token, nil
}

// checkRequest validates the token presented by an unsafe request.
func checkRequest(ctx router.Context, cfg Config, issued string) error {
	presented, err := extractToken(ctx, cfg)
	if err != nil {
		return err
	}

	if presented == "" {
		return ErrTokenMissing
	}

	if cfg.Storage != nil {
		if issued == "" || !constantTimeEqual(presented, issued) {
			return ErrTokenMismatch
		}
		return nil
	}

	return newSigner(cfg).verify(requestScope(ctx), presented)
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.TokenLength == 0 {
		cfg.TokenLength = DefaultTokenLength
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if cfg.SafeMethods == nil {
		cfg.SafeMethods = defaultSafeMethods
	}

	if cfg.Expiration == 0 {
		cfg.Expiration = 24 * time.Hour
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultErrorHandler(cfg)
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.TemplateHelpersKey == "" {
		cfg.TemplateHelpersKey = DefaultTemplateHelpersKey
	}

	cfg.SecureKey = ensureSecureKey(cfg.SecureKey, cfg.Storage)

	return cfg
}

func defaultErrorHandler(cfg Config) router.ErrorHandler {
	return func(ctx router.Context, err error) error {
		switch err {
		case ErrTokenMissing:
			return ctx.Status(router.StatusBadRequest).SendString("CSRF token missing")
		case ErrTokenMismatch:
			return ctx.Status(router.StatusForbidden).SendString("CSRF token mismatch")
		case ErrTokenExpired:
			return ctx.Status(router.StatusForbidden).SendString("CSRF token expired")
		case ErrSecureKeyMissing:
			return ctx.Status(router.StatusInternalServerError).SendString("CSRF configuration error")
		default:
			return ctx.Status(router.StatusInternalServerError).SendString("CSRF validation error")
		}
	}
}
