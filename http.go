package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-identity/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type RouteAuthenticator struct {
	auth              Authenticator
	cfg               Config
	accessCookieLife  time.Duration
	refreshCookieLife time.Duration
	Logger            Logger
	AuthErrorHandler  func(c router.Context, err error) error
	ErrorHandler      func(c router.Context, err error) error
}

func NewHTTPAuthenticator(auther Authenticator, cfg Config) (*RouteAuthenticator, error) {
	accessLife := 1 * time.Hour
	if cfg.GetAccessTokenExpiration() > 0 {
		accessLife = cfg.GetAccessTokenExpiration()
	}

	refreshLife := 30 * 24 * time.Hour
	if cfg.GetRefreshTokenExpiration() > 0 {
		refreshLife = cfg.GetRefreshTokenExpiration()
	}

	a := &RouteAuthenticator{
		cfg:               cfg,
		auth:              auther,
		Logger:            defLogger{},
		accessCookieLife:  accessLife,
		refreshCookieLife: refreshLife,
	}

	a.ErrorHandler = a.defaultErrHandler
	a.AuthErrorHandler = a.defaultAuthErrHandler

	return a, nil
}

func (a RouteAuthenticator) GetAccessCookieDuration() time.Duration {
	return a.accessCookieLife
}

func (a RouteAuthenticator) GetRefreshCookieDuration() time.Duration {
	return a.refreshCookieLife
}

// ProtectedRoute guards a route with JWT validation. The validator rejects
// refresh tokens presented as access credentials.
func (a *RouteAuthenticator) ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return jwtware.New(jwtware.Config{
			ErrorHandler: errorHandler,
			SigningKey: jwtware.SigningKey{
				Key:    []byte(cfg.GetSigningKey()),
				JWTAlg: cfg.GetSigningMethod(),
			},
			AuthScheme:      cfg.GetAuthScheme(),
			ContextKey:      cfg.GetContextKey(),
			TokenLookup:     cfg.GetTokenLookup(),
			TokenValidator:  accessValidator{auth: a.auth},
			ContextEnricher: ContextEnricherAdapter,
		})
	}
}

// Login verifies the payload and drops both token cookies on the response.
func (a *RouteAuthenticator) Login(ctx router.Context, payload LoginPayload) error {
	pair, err := a.auth.Login(ctx.Context(), payload.GetIdentifier(), payload.GetPassword())
	if err != nil {
		a.Logger.Error("Login error: %s", err)
		return err
	}

	a.setTokenCookies(ctx, pair)
	return nil
}

// Refresh exchanges the refresh cookie for a new access cookie.
func (a *RouteAuthenticator) Refresh(ctx router.Context) error {
	raw := ctx.Cookies(a.cfg.GetRefreshContextKey())
	if raw == "" {
		return ErrTokenMalformed
	}

	pair, err := a.auth.Refresh(ctx.Context(), raw)
	if err != nil {
		a.Logger.Error("Refresh error: %s", err)
		return err
	}

	a.setTokenCookies(ctx, pair)
	return nil
}

func (a *RouteAuthenticator) Logout(ctx router.Context) {
	a.cookieDel(ctx, a.cfg.GetContextKey())
	a.cookieDel(ctx, a.cfg.GetRefreshContextKey())
}

func (a *RouteAuthenticator) MakeClientRouteAuthErrorHandler(optional bool) func(router.Context, error) error {
	return func(ctx router.Context, err error) error {
		var richErr *errors.Error

		if IsTokenExpiredError(err) {
			richErr = ErrTokenExpired
		} else if IsMalformedError(err) {
			richErr = ErrTokenMalformed
		} else {
			richErr = errors.Wrap(err, errors.CategoryAuth, "Invalid authentication token").
				WithCode(errors.CodeUnauthorized)
		}

		if optional {
			a.Logger.Info("Optional auth failed, proceeding", "error", richErr.Message)
			return ctx.Next()
		}

		return a.ErrorHandler(ctx, richErr)
	}
}

func (a *RouteAuthenticator) GetRedirect(ctx router.Context, def ...string) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	r := ctx.Cookies(rejectedRoute)
	if r == "" {
		return def[0]
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) GetRedirectOrDefault(ctx router.Context) string {
	rejectedRoute := a.cfg.GetRejectedRouteKey()
	refererHeader := string(ctx.Referer())

	r := ctx.Cookies(rejectedRoute, refererHeader)
	if r == "" {
		r = a.cfg.GetRejectedRouteDefault()
	}
	a.cookieDel(ctx, rejectedRoute)
	return r
}

func (a *RouteAuthenticator) SetRedirect(ctx router.Context) {
	rejectedRoute := a.cfg.GetRejectedRouteKey()

	a.Logger.Info("Setting redirect cookie", "key", rejectedRoute, "path", ctx.OriginalURL())

	ctx.Cookie(&router.Cookie{
		Name:     rejectedRoute,
		Value:    ctx.OriginalURL(),
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) setTokenCookies(c router.Context, pair TokenPair) {
	a.setCookieToken(c, a.cfg.GetContextKey(), pair.AccessToken, a.accessCookieLife)
	a.setCookieToken(c, a.cfg.GetRefreshContextKey(), pair.RefreshToken, a.refreshCookieLife)
}

func (a *RouteAuthenticator) setCookieToken(c router.Context, name, val string, duration time.Duration) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    val,
		Expires:  time.Now().Add(duration),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultAuthErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryAuth, "An unexpected authentication error").
			WithCode(errors.CodeUnauthorized)
	}

	a.Logger.Info(
		"Authentication error, redirecting to login",
		"error", richErr.Message,
		"text_code", richErr.TextCode,
		"path", c.OriginalURL(),
	)

	a.SetRedirect(c)

	statusCode := http.StatusSeeOther
	if c.Method() == string(router.GET) {
		statusCode = http.StatusFound
	}
	return c.Redirect("/login", statusCode)
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Info(
		"Middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	switch richErr.Category {
	case errors.CategoryAuth, errors.CategoryAuthz:
		return a.AuthErrorHandler(c, richErr)
	default:
		return c.Status(richErr.Code).Render("errors/500", router.ViewContext{
			"error": richErr,
		})
	}
}

// accessValidator bridges the Authenticator into the middleware's validator
// interface, enforcing the access token type on every guarded route.
type accessValidator struct {
	auth Authenticator
}

func (v accessValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	claims, err := v.auth.ValidateAccess(context.Background(), tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
