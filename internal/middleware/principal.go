package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/cbt-go-api/internal/policy"
)

// Principal rebuilds the authenticated caller from the Locals set by JWTProtected.
func Principal(c *fiber.Ctx) policy.Principal {
	return policy.Principal{
		UserID:    localUint(c, LocalUserID),
		Role:      normalizeRoleValue(c.Locals(LocalUserRole)),
		SchoolID:  localUint(c, LocalSchoolID),
		StudentID: localUint(c, LocalStudentID),
		TeacherID: localUint(c, LocalTeacherID),
	}
}

func localUint(c *fiber.Ctx, key string) uint {
	switch v := c.Locals(key).(type) {
	case uint:
		return v
	case int:
		if v < 0 {
			return 0
		}
		return uint(v)
	default:
		return 0
	}
}
