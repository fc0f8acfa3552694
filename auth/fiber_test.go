package auth_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/juanxtache-cmyk/gameorki-backend/auth"
)

func newMiddlewareApp(tokens auth.TokenService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: auth.NewErrorHandler(newCaptureLogger()),
	})

	protected := auth.RequireAuth(tokens, "")

	app.Get("/me", protected, func(c *fiber.Ctx) error {
		claims, ok := auth.ClaimsFromFiber(c, "")
		if !ok {
			return auth.ErrNotAuthenticated
		}

		// the claims also travel on the request's user context
		if _, ok := auth.GetClaims(c.UserContext()); !ok {
			return auth.ErrNotAuthenticated
		}

		return c.JSON(fiber.Map{"username": claims.Username(), "role": claims.Role()})
	})

	app.Get("/admin", protected, auth.RequireRole(auth.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/staff", protected, auth.RequireRole(auth.RoleAdmin, auth.RoleModerator), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	app.Get("/unguarded-role", auth.RequireRole(auth.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target, token string) (*http.Response, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	res, err := app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	payload := map[string]any{}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}

	return res, payload
}

func mintToken(t *testing.T, tokens auth.TokenService, username, role string) string {
	t.Helper()

	token, err := tokens.Generate(TestIdentity{
		id:       "11111111-1111-1111-1111-111111111111",
		username: username,
		role:     role,
	})
	require.NoError(t, err)

	return token
}

func TestRequireAuthMissingHeader(t *testing.T) {
	app := newMiddlewareApp(newTestTokenService())

	res, payload := doRequest(t, app, "GET", "/me", "")
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, auth.TextCodeTokenMissing, payload["code"])
	assert.Equal(t, false, payload["success"])
}

func TestRequireAuthMalformedHeader(t *testing.T) {
	tokens := newTestTokenService()
	app := newMiddlewareApp(tokens)

	valid := mintToken(t, tokens, "alice", "user")

	headers := []string{
		"Token " + valid,
		"Bearer",
		valid,
		"Bearer " + valid + " extra",
	}

	for _, header := range headers {
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(fiber.HeaderAuthorization, header)

		res, err := app.Test(req, -1)
		require.NoError(t, err)

		body, _ := io.ReadAll(res.Body)
		payload := map[string]any{}
		_ = json.Unmarshal(body, &payload)

		assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode, "header %q", header)
		assert.Equal(t, auth.TextCodeTokenMalformed, payload["code"], "header %q", header)
	}
}

func TestRequireAuthInvalidToken(t *testing.T) {
	app := newMiddlewareApp(newTestTokenService())

	res, payload := doRequest(t, app, "GET", "/me", "garbage.token.value")
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, auth.TextCodeTokenMalformed, payload["code"])
}

func TestRequireAuthExpiredToken(t *testing.T) {
	tokens := newTestTokenService()
	app := newMiddlewareApp(tokens)

	expired, err := tokens.SignClaims(&auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "test-issuer",
			Subject:   "u1",
			Audience:  jwt.ClaimStrings{"test:audience"},
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		UID:      "u1",
		Uname:    "alice",
		UserRole: "user",
	})
	require.NoError(t, err)

	res, payload := doRequest(t, app, "GET", "/me", expired)
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, auth.TextCodeTokenExpired, payload["code"])
}

func TestRequireAuthValidToken(t *testing.T) {
	tokens := newTestTokenService()
	app := newMiddlewareApp(tokens)

	token := mintToken(t, tokens, "alice", "user")

	res, payload := doRequest(t, app, "GET", "/me", token)
	assert.Equal(t, fiber.StatusOK, res.StatusCode)
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, "user", payload["role"])
}

func TestRequireRole(t *testing.T) {
	tokens := newTestTokenService()
	app := newMiddlewareApp(tokens)

	userToken := mintToken(t, tokens, "alice", "user")
	modToken := mintToken(t, tokens, "mandy", "moderator")
	adminToken := mintToken(t, tokens, "root", "admin")

	testCases := []struct {
		name   string
		target string
		token  string
		status int
	}{
		{"user on admin route", "/admin", userToken, fiber.StatusForbidden},
		{"moderator on admin route", "/admin", modToken, fiber.StatusForbidden},
		{"admin on admin route", "/admin", adminToken, fiber.StatusOK},
		{"user on staff route", "/staff", userToken, fiber.StatusForbidden},
		{"moderator on staff route", "/staff", modToken, fiber.StatusOK},
		{"admin on staff route", "/staff", adminToken, fiber.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, payload := doRequest(t, app, "GET", tc.target, tc.token)
			assert.Equal(t, tc.status, res.StatusCode)
			if tc.status == fiber.StatusForbidden {
				assert.Equal(t, auth.TextCodeInsufficientRole, payload["code"])
			}
		})
	}
}

func TestRequireRoleWithoutAuthenticator(t *testing.T) {
	app := newMiddlewareApp(newTestTokenService())

	// role guard with no authenticator in front rejects as unauthenticated
	res, _ := doRequest(t, app, "GET", "/unguarded-role", "")
	assert.Equal(t, fiber.StatusUnauthorized, res.StatusCode)
}
