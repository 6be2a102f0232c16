package api

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illegalcall/proflow-login/internal/config"
	"github.com/illegalcall/proflow-login/internal/login"
)

func TestDashboardGuard(t *testing.T) {
	tests := []struct {
		name         string
		noSecret     bool
		token        func(t *testing.T) string
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "no token",
			token:        func(*testing.T) string { return "" },
			wantStatus:   fiber.StatusSeeOther,
			wantLocation: "/login",
		},
		{
			name:         "token with a bad signature",
			token:        func(*testing.T) string { return "not-a-jwt" },
			wantStatus:   fiber.StatusSeeOther,
			wantLocation: "/login",
		},
		{
			name:       "verified token",
			token:      func(t *testing.T) string { return signedToken(t, "7") },
			wantStatus: fiber.StatusOK,
		},
		{
			name:       "opaque token without a secret",
			noSecret:   true,
			token:      func(*testing.T) string { return "opaque" },
			wantStatus: fiber.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestServer(t, func(cfg *config.Config) {
				if tt.noSecret {
					cfg.JWT.Secret = ""
				}
			})
			b := env.browser(t)
			b.get("/login")
			if token := tt.token(t); token != "" {
				env.miniRedis.HSet("durable:"+b.clientID(), login.KeyAuthToken, token)
			}

			resp := b.get("/student-dashboard/")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, resp.Header.Get(fiber.HeaderLocation))
			}
		})
	}
}

func TestDashboardRememberedRole(t *testing.T) {
	env := setupTestServer(t)
	b := env.browser(t)
	b.get("/login")

	durable := "durable:" + b.clientID()
	env.miniRedis.HSet(durable, login.KeyAuthToken, signedToken(t, "7"))
	env.miniRedis.HSet(durable, login.KeyUserRole, "teacher")

	resp := b.get("/teacher-dashboard/")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, "Teacher dashboard")
	assert.Contains(t, body, "Signed in as teacher")
}

func sessionCookieSet(resp *http.Response) bool {
	for _, ck := range resp.Cookies() {
		if ck.Name == "pf_session" {
			return true
		}
	}
	return false
}

func TestPageViewsLeaveSessionUntouched(t *testing.T) {
	env := setupTestServer(t)
	b := env.browser(t)

	resp := b.get("/login")
	require.True(t, sessionCookieSet(resp))
	key := "session:" + b.cookies["pf_session"]
	require.True(t, env.miniRedis.Exists(key))
	ttl := env.miniRedis.TTL(key)

	durable := "durable:" + b.clientID()
	env.miniRedis.HSet(durable, login.KeyAuthToken, signedToken(t, "7"))
	env.miniRedis.HSet(durable, login.KeyUserRole, "teacher")

	// views that change nothing must not rewrite the session
	env.miniRedis.FastForward(time.Minute)
	resp = b.get("/login")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, sessionCookieSet(resp))

	resp = b.get("/teacher-dashboard/")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.False(t, sessionCookieSet(resp))
	assert.Equal(t, ttl-time.Minute, env.miniRedis.TTL(key), "session was rewritten")

	resp = b.post("/login", url.Values{
		"action":   {"toggle-password"},
		"password": {"s3cret"},
	})
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, sessionCookieSet(resp))
	assert.Equal(t, ttl, env.miniRedis.TTL(key))
}
