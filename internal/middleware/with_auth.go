package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/owasp-nest/nest-api/internal/utils"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	RequireUser bool
	// AllowedLogins restricts access to the listed GitHub logins when non-empty.
	AllowedLogins []string
}

// WithAuth wraps a handler with authentication guards.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	allowed := make(map[string]struct{}, len(opts.AllowedLogins))
	for _, login := range opts.AllowedLogins {
		if login != "" {
			allowed[login] = struct{}{}
		}
	}
	requireUser := opts.RequireUser || len(allowed) > 0

	return func(c *fiber.Ctx) error {
		login := CurrentLogin(c)
		if requireUser && login == "" {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}
		if len(allowed) > 0 {
			if _, ok := allowed[login]; !ok {
				return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", nil)
			}
		}
		return handler(c)
	}
}
