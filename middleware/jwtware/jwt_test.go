package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/middleware/jwtware"
)

type staticValidator map[string]*auth.Identity

func (v staticValidator) ValidateAccessToken(token string) (*auth.Identity, error) {
	if identity, ok := v[token]; ok {
		return identity, nil
	}
	return nil, auth.ErrInvalidCredentials
}

var validator = staticValidator{
	"good-token": {ID: "u1", Email: "owner@example.com"},
}

type ctxKey struct{}

func setupApp(cfg jwtware.Config) *fiber.App {
	app := fiber.New()
	app.Use(jwtware.New(cfg))
	app.Get("/me", func(c *fiber.Ctx) error {
		identity, ok := jwtware.IdentityFromLocals(c, cfg.ContextKey)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		if enriched, ok := c.UserContext().Value(ctxKey{}).(string); ok {
			return c.SendString(identity.ID + ":" + enriched)
		}
		return c.SendString(identity.ID)
	})
	app.Get("/public", func(c *fiber.Ctx) error {
		return c.SendString("public")
	})
	return app
}

func do(t *testing.T, app *fiber.App, req *http.Request) (int, string) {
	t.Helper()
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHeaderExtraction(t *testing.T) {
	app := setupApp(jwtware.Config{TokenValidator: validator})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{name: "valid", header: "Bearer good-token", status: fiber.StatusOK, body: "u1"},
		{name: "scheme is case insensitive", header: "bearer good-token", status: fiber.StatusOK, body: "u1"},
		{name: "missing", header: "", status: fiber.StatusBadRequest, body: jwtware.ErrJWTMissingOrMalformed.Error()},
		{name: "wrong scheme", header: "Basic good-token", status: fiber.StatusBadRequest},
		{name: "invalid token", header: "Bearer nope", status: fiber.StatusUnauthorized, body: "Invalid or expired token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			status, body := do(t, app, req)
			assert.Equal(t, tt.status, status)
			if tt.body != "" {
				assert.Equal(t, tt.body, body)
			}
		})
	}
}

func TestCookieAndQueryLookup(t *testing.T) {
	app := setupApp(jwtware.Config{
		TokenValidator: validator,
		TokenLookup:    "header:Authorization, cookie:access_token, query:token",
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: "good-token"})
	status, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body)

	status, body = do(t, app, httptest.NewRequest(http.MethodGet, "/me?token=good-token", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1", body)
}

func TestFilterSkipsPublicRoutes(t *testing.T) {
	app := setupApp(jwtware.Config{
		TokenValidator: validator,
		Filter: func(c *fiber.Ctx) bool {
			return c.Path() == "/public"
		},
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/public", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "public", body)
}

func TestValidationListenerAndEnricher(t *testing.T) {
	var seen []string
	app := setupApp(jwtware.Config{
		TokenValidator: validator,
		ContextKey:     "user",
		ValidationListeners: []jwtware.ValidationListener{
			nil,
			func(_ *fiber.Ctx, identity *auth.Identity) error {
				seen = append(seen, identity.ID)
				return nil
			},
		},
		ContextEnricher: func(ctx context.Context, identity *auth.Identity) context.Context {
			return context.WithValue(ctx, ctxKey{}, identity.Email)
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
	status, body := do(t, app, req)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "u1:owner@example.com", body)
	assert.Equal(t, []string{"u1"}, seen)
}

func TestValidationListenerRejects(t *testing.T) {
	app := setupApp(jwtware.Config{
		TokenValidator: validator,
		ValidationListeners: []jwtware.ValidationListener{
			func(*fiber.Ctx, *auth.Identity) error { return errors.New("blocked") },
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusForbidden).SendString(err.Error())
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
	status, body := do(t, app, req)

	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "blocked", body)
}

func TestStoresRawToken(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{TokenValidator: validator}))
	app.Get("/token", func(c *fiber.Ctx) error {
		token, ok := jwtware.TokenFromLocals(c, "")
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(token)
	})

	req := httptest.NewRequest(http.MethodGet, "/token", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
	status, body := do(t, app, req)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "good-token", body)
}

func TestErrorHandlerCanContinueAnonymous(t *testing.T) {
	app := fiber.New()
	app.Use(jwtware.New(jwtware.Config{
		TokenValidator: validator,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return c.Next()
			}
			return c.SendStatus(fiber.StatusUnauthorized)
		},
	}))
	app.Get("/who", func(c *fiber.Ctx) error {
		if identity, ok := jwtware.IdentityFromLocals(c, ""); ok {
			return c.SendString(identity.ID)
		}
		return c.SendString("anonymous")
	})

	status, body := do(t, app, httptest.NewRequest(http.MethodGet, "/who", nil))
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "anonymous", body)

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer bad-token")
	status, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestNewRequiresValidator(t *testing.T) {
	assert.Panics(t, func() { jwtware.New() })
}

func TestGetExtractors(t *testing.T) {
	assert.Len(t, jwtware.GetExtractors("header:Authorization,cookie:jwt,query:t,param:id,bogus"), 4)
	assert.Empty(t, jwtware.GetExtractors(""))
}
