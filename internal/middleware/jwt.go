package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/owasp-nest/nest-api/internal/utils"
)

// Locals keys populated by the JWT middleware.
const (
	LocalUserLogin   = "user_login"
	LocalAccessToken = "access_token"
)

// JWTProtected rejects requests without a valid bearer token.
func JWTProtected(secret string) fiber.Handler {
	return jwtMiddleware(secret, true)
}

// JWTOptional authenticates a bearer token when present and lets anonymous requests through.
func JWTOptional(secret string) fiber.Handler {
	return jwtMiddleware(secret, false)
}

func jwtMiddleware(secret string, required bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			if !required {
				return c.Next()
			}
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), strings.ToLower(bearer)) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		login := extractLoginFromClaims(claims)
		if login == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token has no github login")
		}

		c.Locals(LocalUserLogin, login)
		c.Locals(LocalAccessToken, tokenString)

		return c.Next()
	}
}

// CurrentLogin returns the authenticated GitHub login, if any.
func CurrentLogin(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalUserLogin).(string); ok {
		return value
	}
	return ""
}

// CurrentAccessToken returns the bearer token the request was authenticated with.
func CurrentAccessToken(c *fiber.Ctx) string {
	if value, ok := c.Locals(LocalAccessToken).(string); ok {
		return value
	}
	return ""
}

func extractLoginFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"login", "github_login", "sub"} {
		if value, ok := claims[key].(string); ok {
			if login := strings.TrimSpace(value); login != "" {
				return login
			}
		}
	}
	return ""
}
