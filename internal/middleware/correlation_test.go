package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/observability"
)

func correlationApp(seen *string) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		*seen = observability.CorrelationID(c.UserContext())
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func TestCorrelationIDPropagatesCallerID(t *testing.T) {
	var seen string
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "batch-7")

	resp, err := correlationApp(&seen).Test(req)
	require.NoError(t, err)
	require.Equal(t, "batch-7", resp.Header.Get("X-Correlation-ID"))
	require.Equal(t, "batch-7", seen)
}

func TestCorrelationIDReplacesUnusableHeader(t *testing.T) {
	for name, header := range map[string]string{
		"spaces":   "has spaces inside",
		"oversize": strings.Repeat("x", 200),
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Correlation-ID", header)

			resp, err := correlationApp(&seen).Test(req)
			require.NoError(t, err)
			echoed := resp.Header.Get("X-Correlation-ID")
			require.NotEqual(t, header, echoed)
			require.Len(t, echoed, 36)
			require.Equal(t, echoed, seen)
		})
	}
}
