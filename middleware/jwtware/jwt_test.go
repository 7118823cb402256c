package jwtware_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"

	"github.com/goliatone/go-identity/middleware/jwtware"
)

// stubClaims is a minimal AuthClaims for middleware tests. Rank order is
// guest < member < admin.
type stubClaims struct {
	roles []string
}

func (s stubClaims) HasRole(role string) bool {
	for _, r := range s.roles {
		if r == role {
			return true
		}
	}
	return false
}

func (s stubClaims) IsAtLeast(minRole string) bool {
	rank := map[string]int{"guest": 0, "member": 1, "admin": 2}
	best := 0
	for _, r := range s.roles {
		if v, ok := rank[r]; ok && v > best {
			best = v
		}
	}
	want, ok := rank[minRole]
	if !ok {
		return false
	}
	return best >= want
}

// stubValidator records the raw token it was handed.
type stubValidator struct {
	claims   jwtware.AuthClaims
	err      error
	gotToken string
	calls    int
}

func (v *stubValidator) Validate(tokenString string) (jwtware.AuthClaims, error) {
	v.calls++
	v.gotToken = tokenString
	if v.err != nil {
		return nil, v.err
	}
	return v.claims, nil
}

func baseConfig(validator jwtware.TokenValidator) jwtware.Config {
	return jwtware.Config{
		SigningKey: jwtware.SigningKey{
			Key:    []byte("test-secret"),
			JWTAlg: "HS256",
		},
		TokenValidator: validator,
		ErrorHandler: func(ctx router.Context, err error) error {
			return err
		},
	}
}

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{roles: []string{"member"}}}
	middleware := jwtware.New(baseConfig(validator))(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.HeadersM["Authorization"] = "Bearer tok-123"
	ctx.On("GetString", "Authorization", "").Return("Bearer tok-123")
	ctx.On("Locals", "user", mock.Anything).Return(nil)

	if err := middleware(ctx); err != nil {
		t.Fatalf("unexpected error for valid token: %v", err)
	}
	if validator.gotToken != "tok-123" {
		t.Errorf("expected validator to receive raw token, got %q", validator.gotToken)
	}
	if !ctx.NextCalled {
		t.Error("expected NextCalled to be true")
	}
}

func TestJWTWare_MissingToken(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{}}
	middleware := jwtware.New(baseConfig(validator))(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("")

	err := middleware(ctx)
	if err == nil {
		t.Fatal("expected error for missing token, got nil")
	}
	if !strings.Contains(err.Error(), jwtware.ErrJWTMissingOrMalformed.Error()) {
		t.Errorf("expected missing token error, got: %v", err)
	}
	if validator.calls != 0 {
		t.Error("validator must not run without a token")
	}
}

func TestJWTWare_WrongAuthScheme(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{}}
	middleware := jwtware.New(baseConfig(validator))(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Basic dXNlcjpwYXNz")

	if err := middleware(ctx); err == nil {
		t.Fatal("expected error for non-bearer credentials, got nil")
	}
}

func TestJWTWare_ValidatorRejection(t *testing.T) {
	validator := &stubValidator{err: errors.New("token is expired")}
	middleware := jwtware.New(baseConfig(validator))(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	ctx.On("GetString", "Authorization", "").Return("Bearer expired-token")

	err := middleware(ctx)
	if err == nil {
		t.Fatal("expected validator error, got nil")
	}
	if !strings.Contains(err.Error(), "token is expired") {
		t.Errorf("expected expiry error, got: %v", err)
	}
	if ctx.NextCalled {
		t.Error("middleware must not continue after a rejected token")
	}
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{roles: []string{"member"}}}

	cfg := baseConfig(validator)
	cfg.TokenLookup = "query:token,param:jwt,cookie:jwt_cookie"
	middleware := jwtware.New(cfg)(func(ctx router.Context) error { return nil })

	tests := []struct {
		name      string
		setToken  func(ctx *router.MockContext)
		wantError bool
	}{
		{
			name: "token in query",
			setToken: func(ctx *router.MockContext) {
				ctx.QueriesM["token"] = "query-token"
				ctx.On("GetString", mock.Anything, "").Return("").Maybe()
				ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "token in param",
			setToken: func(ctx *router.MockContext) {
				ctx.ParamsM["jwt"] = "param-token"
				ctx.On("GetString", mock.Anything, "").Return("").Maybe()
				ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "token in cookie",
			setToken: func(ctx *router.MockContext) {
				ctx.CookiesM["jwt_cookie"] = "cookie-token"
				ctx.On("GetString", mock.Anything, "").Return("").Maybe()
				ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()
			},
		},
		{
			name: "no token anywhere",
			setToken: func(ctx *router.MockContext) {
				ctx.On("GetString", mock.Anything, "").Return("").Maybe()
			},
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := router.NewMockContext()
			tc.setToken(ctx)

			err := middleware(ctx)
			if tc.wantError {
				if err == nil {
					t.Error("expected an error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !ctx.NextCalled {
				t.Error("middleware did not call Next() on success")
			}
		})
	}
}

func TestJWTWare_Filter(t *testing.T) {
	validator := &stubValidator{claims: stubClaims{}}

	cfg := baseConfig(validator)
	cfg.Filter = func(router.Context) bool { return true }
	middleware := jwtware.New(cfg)(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()

	if err := middleware(ctx); err != nil {
		t.Fatalf("expected filtered request to pass, got %v", err)
	}
	if !ctx.NextCalled {
		t.Error("filtered request should reach the next handler")
	}
	if validator.calls != 0 {
		t.Error("filtered request must not hit the validator")
	}
}

func TestJWTWare_AuthorizationChecks(t *testing.T) {
	tests := []struct {
		name      string
		roles     []string
		mutate    func(*jwtware.Config)
		wantError bool
	}{
		{
			name:   "required role present",
			roles:  []string{"admin"},
			mutate: func(cfg *jwtware.Config) { cfg.RequiredRole = "admin" },
		},
		{
			name:      "required role missing",
			roles:     []string{"member"},
			mutate:    func(cfg *jwtware.Config) { cfg.RequiredRole = "admin" },
			wantError: true,
		},
		{
			name:   "minimum role met by stronger role",
			roles:  []string{"admin"},
			mutate: func(cfg *jwtware.Config) { cfg.MinimumRole = "member" },
		},
		{
			name:      "minimum role not met",
			roles:     []string{"guest"},
			mutate:    func(cfg *jwtware.Config) { cfg.MinimumRole = "member" },
			wantError: true,
		},
		{
			name:  "custom role checker rejects",
			roles: []string{"admin"},
			mutate: func(cfg *jwtware.Config) {
				cfg.RequiredRole = "admin"
				cfg.RoleChecker = func(jwtware.AuthClaims, string) bool { return false }
			},
			wantError: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			validator := &stubValidator{claims: stubClaims{roles: tc.roles}}
			cfg := baseConfig(validator)
			tc.mutate(&cfg)

			middleware := jwtware.New(cfg)(func(ctx router.Context) error { return nil })

			ctx := router.NewMockContext()
			ctx.On("GetString", "Authorization", "").Return("Bearer some-token")
			ctx.On("Locals", "user", mock.Anything).Return(nil).Maybe()

			err := middleware(ctx)
			if tc.wantError {
				if err == nil {
					t.Error("expected authorization error, got nil")
				}
				if ctx.NextCalled {
					t.Error("unauthorized request must not continue")
				}
				return
			}

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !ctx.NextCalled {
				t.Error("authorized request should continue")
			}
		})
	}
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	t.Run("listeners observe the validated claims", func(t *testing.T) {
		claims := stubClaims{roles: []string{"member"}}
		validator := &stubValidator{claims: claims}

		var seen jwtware.AuthClaims
		cfg := baseConfig(validator)
		cfg.ValidationListeners = []jwtware.ValidationListener{
			func(ctx router.Context, c jwtware.AuthClaims) error {
				seen = c
				return nil
			},
		}

		middleware := jwtware.New(cfg)(func(ctx router.Context) error { return nil })

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer some-token")
		ctx.On("Locals", "user", mock.Anything).Return(nil)

		if err := middleware(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen == nil || !seen.HasRole("member") {
			t.Error("listener did not receive the validated claims")
		}
	})

	t.Run("listener error blocks the request", func(t *testing.T) {
		validator := &stubValidator{claims: stubClaims{}}

		cfg := baseConfig(validator)
		cfg.ValidationListeners = []jwtware.ValidationListener{
			func(ctx router.Context, c jwtware.AuthClaims) error {
				return errors.New("listener rejected")
			},
		}

		middleware := jwtware.New(cfg)(func(ctx router.Context) error { return nil })

		ctx := router.NewMockContext()
		ctx.On("GetString", "Authorization", "").Return("Bearer some-token")

		err := middleware(ctx)
		if err == nil || !strings.Contains(err.Error(), "listener rejected") {
			t.Errorf("expected listener error, got: %v", err)
		}
		if ctx.NextCalled {
			t.Error("request must not continue after a listener rejection")
		}
	})
}

func TestJWTWare_ConfigPanics(t *testing.T) {
	t.Run("missing validator", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for missing TokenValidator")
			}
		}()

		middleware := jwtware.New(jwtware.Config{
			SigningKey: jwtware.SigningKey{Key: []byte("k"), JWTAlg: "HS256"},
		})(func(ctx router.Context) error { return nil })
		_ = middleware(router.NewMockContext())
	})

	t.Run("missing key material", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected panic for missing key material")
			}
		}()

		middleware := jwtware.New(jwtware.Config{
			TokenValidator: &stubValidator{},
		})(func(ctx router.Context) error { return nil })
		_ = middleware(router.NewMockContext())
	})
}

func TestGetExtractors(t *testing.T) {
	extractors := jwtware.GetExtractors("header:Authorization,cookie:jwt,query:auth_token,param:token")
	if len(extractors) != 4 {
		t.Fatalf("expected 4 extractors, got %d", len(extractors))
	}

	extractors = jwtware.GetExtractors("")
	if len(extractors) != 0 {
		t.Fatalf("expected no extractors for empty lookup, got %d", len(extractors))
	}
}
