package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/config"
	"github.com/noah-isme/cbt-go-api/internal/handler"
)

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{AppName: "cbt-api", AppEnv: "test"}
	healthy := func(context.Context) error { return nil }

	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, map[string]handler.HealthCheckFunc{"database": healthy}))

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, resp).Data, &payload))
	require.Equal(t, "ok", payload.Status)
	require.Equal(t, "cbt-api", payload.Service)
	require.Equal(t, "ok", payload.Checks["database"])
}

func TestHealthCheckDegraded(t *testing.T) {
	cfg := config.Config{AppName: "cbt-api", AppEnv: "test"}
	app := fiber.New()
	app.Get("/health", handler.HealthCheck(cfg, map[string]handler.HealthCheckFunc{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}))

	resp := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	out := decodeEnvelope(t, resp)
	require.False(t, out.Success)
	var payload handler.HealthResponse
	require.NoError(t, json.Unmarshal(out.Data, &payload))
	require.Equal(t, "degraded", payload.Status)
	require.Equal(t, "connection refused", payload.Checks["redis"])
	require.Equal(t, "ok", payload.Checks["database"])
}
