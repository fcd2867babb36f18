package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/utils"
)

// Auth role groups used by the WithAuth helper.
const (
	AuthRoleAny   = "any"
	AuthRoleAdmin = "admin"
	AuthRoleStaff = "staff"
)

// AuthOptions configures the WithAuth helper.
type AuthOptions struct {
	Role        string
	RequireUser bool
}

// WithAuth wraps a handler with basic authentication/authorization guards.
// AuthRoleAdmin admits super and school admins; AuthRoleStaff adds teachers. Any other value
// must match the caller's role exactly.
func WithAuth(handler fiber.Handler, opts AuthOptions) fiber.Handler {
	role := strings.ToLower(strings.TrimSpace(opts.Role))
	if role == "" {
		role = AuthRoleAny
	}

	requireUser := opts.RequireUser
	if !requireUser && role != AuthRoleAny {
		requireUser = true
	}

	return func(c *fiber.Ctx) error {
		userID := c.Locals(LocalUserID)
		if requireUser && userID == nil {
			return utils.Fail(c, fiber.StatusUnauthorized, "authentication required", nil)
		}

		if role == AuthRoleAny {
			return handler(c)
		}

		currentRole := normalizeRoleValue(c.Locals(LocalUserRole))
		allowed := false
		switch role {
		case AuthRoleAdmin:
			allowed = currentRole == models.RoleSuperAdmin || currentRole == models.RoleSchoolAdmin
		case AuthRoleStaff:
			allowed = currentRole == models.RoleSuperAdmin || currentRole == models.RoleSchoolAdmin || currentRole == models.RoleTeacher
		default:
			allowed = currentRole == role
		}
		if !allowed {
			return utils.Fail(c, fiber.StatusForbidden, "insufficient permissions", fiber.Map{"required_role": role})
		}

		return handler(c)
	}
}
