package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/middleware"
)

func withIdentity(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, userID)
		c.Locals(middleware.LocalUserRole, role)
		return c.Next()
	}
}

func noContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}

func TestWithAuthExactRole(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(10, "Student"))
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: "student"}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthExactRoleDenied(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(10, "teacher"))
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: "student"}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestWithAuthAdminGroup(t *testing.T) {
	cases := map[string]int{
		"super_admin":  fiber.StatusNoContent,
		"school_admin": fiber.StatusNoContent,
		"teacher":      fiber.StatusForbidden,
	}
	for role, want := range cases {
		app := fiber.New()
		app.Use(withIdentity(1, role))
		app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAdmin}))

		resp := perform(t, app)
		require.Equal(t, want, resp.StatusCode, role)
	}
}

func TestWithAuthStaffAllowsTeacher(t *testing.T) {
	app := fiber.New()
	app.Use(withIdentity(1, "teacher"))
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleStaff}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestWithAuthAnyRequiresUserWhenAsked(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAny, RequireUser: true}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestWithAuthAnyAllowsAnonymousByDefault(t *testing.T) {
	app := fiber.New()
	app.Get("/", middleware.WithAuth(noContent, middleware.AuthOptions{Role: middleware.AuthRoleAny}))

	resp := perform(t, app)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func perform(t *testing.T, app *fiber.App) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}
