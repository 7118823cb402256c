package auth

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-identity/middleware/jwtware"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

type Middleware interface {
	ProtectedRoute(cfg Config, errorHandler func(router.Context, error) error) router.MiddlewareFunc
}

// HTTPAuthenticator is the transport-facing surface of the authenticator.
type HTTPAuthenticator interface {
	Middleware
	Login(c router.Context, payload LoginPayload) error
	Refresh(c router.Context) error
	Logout(c router.Context)
	SetRedirect(c router.Context)
	GetRedirect(c router.Context, def ...string) string
	GetRedirectOrDefault(c router.Context) string
	MakeClientRouteAuthErrorHandler(optionalAuth bool) func(c router.Context, err error) error
}

func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {

	controller := NewAuthController(opts...)

	protected := controller.Auther.ProtectedRoute(
		controller.Cfg,
		controller.Auther.MakeClientRouteAuthErrorHandler(false),
	)

	app.
		Post(controller.Routes.Login, controller.LoginPost).
		SetName("sign-in.post")

	app.
		Post(controller.Routes.Refresh, controller.RefreshPost).
		SetName("refresh.post")

	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")

	app.Post(controller.Routes.Register, controller.RegistrationCreate).
		SetName("register.post")

	app.Get(controller.Routes.Me, protected(controller.MeShow)).
		SetName("me.get")
	app.Patch(controller.Routes.Me, protected(controller.MeUpdate)).
		SetName("me.patch")
	app.Get(controller.Routes.MeHistory, protected(controller.MeHistory)).
		SetName("me-history.get")
}

type AuthControllerRoutes struct {
	Login     string
	Refresh   string
	Logout    string
	Register  string
	Me        string
	MeHistory string
}

type AuthController struct {
	Debug        bool
	Logger       Logger
	Repo         RepositoryManager
	Cfg          Config
	Routes       *AuthControllerRoutes
	Auther       HTTPAuthenticator
	Engine       Authenticator
	Registrar    *RegisterUserHandler
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:     "/login",
			Refresh:   "/refresh",
			Logout:    "/logout",
			Register:  "/register",
			Me:        "/me",
			MeHistory: "/me/history",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in auth controller...")
	}

	if c.Engine == nil {
		panic("Missing Authenticator in auth controller...")
	}

	if c.Cfg == nil {
		panic("Missing Config in auth controller...")
	}

	return c
}

// WithAuthControllerRepo sets the repository manager.
func WithAuthControllerRepo(repo RepositoryManager) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Repo = repo
		return c
	}
}

// WithAuthControllerAuther sets the HTTP authenticator.
func WithAuthControllerAuther(auther HTTPAuthenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Auther = auther
		return c
	}
}

// WithAuthControllerEngine sets the core authenticator.
func WithAuthControllerEngine(engine Authenticator) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Engine = engine
		return c
	}
}

// WithAuthControllerConfig sets the auth configuration.
func WithAuthControllerConfig(cfg Config) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Cfg = cfg
		return c
	}
}

// WithAuthControllerRegistrar sets the registration handler.
func WithAuthControllerRegistrar(h *RegisterUserHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Registrar = h
		return c
	}
}

// WithAuthControllerLogger sets the controller logger.
func WithAuthControllerLogger(l Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Logger = l
		return c
	}
}

// LoginRequest payload
type LoginRequest struct {
	Identifier string `form:"identifier" json:"identifier"`
	Password   string `form:"password" json:"password"`
}

// GetIdentifier returns the identifier
func (r LoginRequest) GetIdentifier() string {
	return r.Identifier
}

// GetPassword will return the password
func (r LoginRequest) GetPassword() string {
	return r.Password
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Identifier,
			validation.Required,
			validation.Length(3, 100),
		),
		validation.Field(
			&r.Password,
			validation.Required,
		),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	if err := payload.Validate(); err != nil {
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	if a.Debug {
		a.Logger.Debug("auth login", "payload", print.MaybePrettyJSON(payload))
	}

	if err := a.Auther.Login(ctx, payload); err != nil {
		a.Logger.Error("login error", "error", err)
		return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
			"error": "Authentication Error",
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message": "ok",
	})
}

func (a *AuthController) RefreshPost(ctx router.Context) error {
	if err := a.Auther.Refresh(ctx); err != nil {
		a.Logger.Error("refresh error", "error", err)
		return ctx.JSON(router.StatusUnauthorized, router.ViewContext{
			"error": "Authentication Error",
		})
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"message": "ok",
	})
}

func (a *AuthController) LogOut(ctx router.Context) error {
	a.Auther.Logout(ctx)
	return ctx.Status(http.StatusNoContent).Send(nil)
}

// RegistrationCreatePayload is the registration payload
type RegistrationCreatePayload struct {
	Username        string `form:"username" json:"username"`
	Email           string `form:"email" json:"email"`
	Timezone        string `form:"timezone" json:"timezone"`
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirm_password" json:"confirm_password"`
}

// Validate will validate the payload
func (r RegistrationCreatePayload) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(
			&r.ConfirmPassword,
			validation.Required,
			validation.Length(10, 100),
			validation.By(ValidateStringEquals(r.Password)),
		),
	)
}

func (a *AuthController) RegistrationCreate(ctx router.Context) error {
	payload := new(RegistrationCreatePayload)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "Error parsing body",
		})
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("register user validate payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"validation": FormatValidationErrorToMap(err),
		})
	}

	registrar := a.Registrar
	if registrar == nil {
		registrar = NewRegisterUserHandler(a.Repo, NewPasswordVault())
	}

	user, err := registrar.Execute(ctx.Context(), RegisterUserMessage{
		Username: payload.Username,
		Email:    payload.Email,
		Password: payload.Password,
		Timezone: payload.Timezone,
	})
	if err != nil {
		a.Logger.Error("register user error", "error", err)
		return ctx.JSON(http.StatusConflict, router.ViewContext{
			"error": err.Error(),
		})
	}

	return ctx.JSON(http.StatusCreated, user.Profile())
}

func (a *AuthController) MeShow(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, user.Profile())
}

func (a *AuthController) MeUpdate(ctx router.Context) error {
	patch := UpdatePayload{}
	if err := ctx.Bind(&patch); err != nil {
		a.Logger.Error("me update parse payload", "error", err)
		return ctx.JSON(router.StatusBadRequest, router.ViewContext{
			"error": "Error parsing body",
		})
	}

	raw, err := a.rawToken(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	user, err := a.Engine.UpdateSelf(ctx.Context(), raw, patch)
	if err != nil {
		a.Logger.Error("me update error", "error", err)
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, user.Profile())
}

func (a *AuthController) MeHistory(ctx router.Context) error {
	user, err := a.currentUser(ctx)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	usernames, err := a.Repo.UsernameHistories().ListByUser(ctx.Context(), user.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	emails, err := a.Repo.EmailHistories().ListByUser(ctx.Context(), user.ID)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, router.ViewContext{
		"usernames": usernames,
		"emails":    emails,
	})
}

func (a *AuthController) currentUser(ctx router.Context) (*User, error) {
	claims, ok := GetRouterClaims(ctx, a.Cfg.GetContextKey())
	if !ok {
		return nil, ErrTokenMalformed
	}

	user, err := a.Repo.Users().GetByIdentifier(ctx.Context(), claims.Subject)
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (a *AuthController) rawToken(ctx router.Context) (string, error) {
	extractors := jwtware.GetExtractors(a.Cfg.GetTokenLookup(), a.Cfg.GetAuthScheme())
	return jwtware.ExtractRawTokenFromContext(ctx, extractors)
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return errors.New("values must match")
		}
		return nil
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for transport responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["error"] = err.Error()
	return out
}

func defaultErrHandler(c router.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, router.ViewContext{
		"message": err.Error(),
	})
}
