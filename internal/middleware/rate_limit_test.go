package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitKeysByUser(t *testing.T) {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-User"); id == "1" {
			c.Locals(LocalUserID, uint(1))
		} else {
			c.Locals(LocalUserID, uint(2))
		}
		return c.Next()
	})
	app.Post("/submit", RateLimit("submit", 1, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	send := func(user string) int {
		req := httptest.NewRequest(http.MethodPost, "/submit", nil)
		req.Header.Set("X-User", user)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusOK, send("1"))
	require.Equal(t, fiber.StatusTooManyRequests, send("1"))
	require.Equal(t, fiber.StatusOK, send("2"), "other users keep their own budget")
}
