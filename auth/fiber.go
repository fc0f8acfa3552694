package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// BearerScheme is the only accepted Authorization scheme.
const BearerScheme = "Bearer"

// RequireAuth validates the bearer credential on every protected request and
// attaches the decoded claims to the request. Missing and malformed headers
// are distinct 401s; anything past the scheme check is up to the token
// service. On failure the request short-circuits.
func RequireAuth(tokens TokenService, contextKey string) fiber.Handler {
	if contextKey == "" {
		contextKey = DefaultContextKey
	}

	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return ErrTokenMissing
		}

		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != BearerScheme {
			return ErrTokenMalformed
		}

		claims, err := tokens.Validate(parts[1])
		if err != nil {
			return err
		}

		c.Locals(contextKey, claims)
		c.SetUserContext(WithClaimsContext(c.UserContext(), claims))

		return c.Next()
	}
}

// RequireRole admits the request only when the authenticated role is in the
// allowed set. Requests with no attached identity are rejected as
// unauthenticated, not forbidden.
func RequireRole(roles ...UserRole) fiber.Handler {
	allowed := make(map[UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromFiber(c, "")
		if !ok {
			return ErrNotAuthenticated
		}

		if _, ok := allowed[UserRole(claims.Role())]; !ok {
			return ErrInsufficientRole
		}

		return c.Next()
	}
}
