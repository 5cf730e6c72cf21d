package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-dashboard-auth"
	"github.com/goliatone/go-dashboard-auth/internal/config"
	"github.com/goliatone/go-dashboard-auth/internal/migrations"
	"github.com/goliatone/go-dashboard-auth/web"
)

func testConfig(name string) *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{DSN: "file:" + name + "?mode=memory&cache=shared"},
		Auth: config.AuthConfig{
			SigningKey: "test-key",
			TokenTTL:   time.Hour,
		},
		Session: config.SessionConfig{
			Debounce:      200 * time.Millisecond,
			ProvisionWait: 0,
		},
		Provider: config.ProviderConfig{ProvisionDelay: 5 * time.Millisecond},
		Cache:    config.CacheConfig{Kind: config.CacheLRU, Size: 16, TTL: time.Minute},
		Log:      config.LogConfig{Level: "error"},
	}
}

func TestAppSignUpFlow(t *testing.T) {
	ctx := context.Background()

	a, err := newApp(ctx, testConfig("signup_flow"), newLogger("error"))
	require.NoError(t, err)
	defer a.Close()

	_, err = migrations.Apply(ctx, a.db)
	require.NoError(t, err)
	require.NoError(t, a.sessions.Start(ctx))

	initial := a.sessions.Snapshot()
	assert.False(t, initial.Loading)
	assert.Nil(t, initial.Identity)

	session, err := a.client.SignUp(ctx, "owner@example.com", "secret1", map[string]any{
		"full_name":     "Ada Owner",
		"business_name": "Ada Legal",
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		s := a.sessions.Snapshot()
		return !s.Loading && s.Profile != nil
	}, 3*time.Second, 10*time.Millisecond)

	state := a.sessions.Snapshot()
	assert.Equal(t, session.User.ID, state.Profile.ID)
	assert.Equal(t, auth.RoleBusinessOwner, state.Profile.Role)
	assert.Equal(t, "Ada Legal", state.Profile.BusinessName)
	assert.False(t, state.Profile.Fallback)

	decision := a.routes.Decide(state, "/dashboard/clients")
	assert.Equal(t, auth.DecisionRender, decision.Kind)
	assert.Equal(t, auth.SubviewClients, decision.Subview)

	require.NoError(t, a.client.SignOut(ctx))
	signedOut := a.sessions.Snapshot()
	assert.Nil(t, signedOut.Identity)
	assert.Nil(t, signedOut.Profile)
	assert.False(t, signedOut.Loading)
}

func TestAppProvisionTriggerSkipsExisting(t *testing.T) {
	ctx := context.Background()

	a, err := newApp(ctx, testConfig("provision_trigger"), newLogger("error"))
	require.NoError(t, err)
	defer a.Close()

	_, err = migrations.Apply(ctx, a.db)
	require.NoError(t, err)

	identity := &auth.Identity{ID: "u1", Email: "admin@example.com"}
	require.NoError(t, a.store.Upsert(ctx, &auth.Profile{ID: "u1", Role: auth.RoleSuperAdmin}))
	require.NoError(t, a.provisionTrigger(ctx, identity))

	profile, err := a.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleSuperAdmin, profile.Role)
}

func request(t *testing.T, server *fiber.App, method, path, token, body string) (int, web.Envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := server.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	env := web.Envelope{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestServerKeepsSessionsPerCaller(t *testing.T) {
	ctx := context.Background()

	a, err := newApp(ctx, testConfig("server_sessions"), newLogger("error"))
	require.NoError(t, err)
	defer a.Close()

	_, err = migrations.Apply(ctx, a.db)
	require.NoError(t, err)
	require.NoError(t, a.sessions.Start(ctx))

	server := a.httpServer()

	status, env := request(t, server, fiber.MethodPost, "/auth/sign-up", "",
		`{"email":"victim@example.com","password":"secret1","full_name":"Vic Tim"}`)
	require.Equal(t, fiber.StatusOK, status)
	token := env.Data.(map[string]any)["access_token"].(string)
	require.NotEmpty(t, token)

	status, env = request(t, server, fiber.MethodGet, "/auth/session", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	anonymous := env.Data.(map[string]any)
	assert.Nil(t, anonymous["identity"])
	assert.Nil(t, anonymous["profile"])

	status, _ = request(t, server, fiber.MethodPost, "/auth/sign-out", "", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.NotNil(t, a.sessions.Snapshot().Identity)

	status, env = request(t, server, fiber.MethodGet, "/auth/session", token, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "victim@example.com", env.Data.(map[string]any)["identity"].(map[string]any)["email"])

	status, _ = request(t, server, fiber.MethodPost, "/auth/sign-out", token, "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Nil(t, a.sessions.Snapshot().Identity)

	status, _ = request(t, server, fiber.MethodGet, "/auth/session", token, "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}
