package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/policy"
	"github.com/noah-isme/cbt-go-api/internal/service"
	"github.com/noah-isme/cbt-go-api/internal/workflow"
)

func TestHandleErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"unauthenticated", service.ErrInvalidCredentials, fiber.StatusUnauthorized, "invalid email or password"},
		{"forbidden", fmt.Errorf("load exam: %w", policy.ErrForbidden), fiber.StatusForbidden, "load exam: " + policy.ErrForbidden.Error()},
		{"not found", service.ErrLessonPlanNotFound, fiber.StatusNotFound, "lesson plan not found"},
		{"conflict", service.ErrDuplicateAcademicResult, fiber.StatusBadRequest, "a result already exists for this student, subject, term and session"},
		{"input", service.ErrUnknownQuestion, fiber.StatusBadRequest, "answer references a question outside this exam"},
		{"internal", errors.New("pq: connection reset"), fiber.StatusInternalServerError, "failed to do thing"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error { return handleError(c, zerolog.Nop(), tc.err, "do thing") })

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			var out map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &out))
			require.Equal(t, tc.message, out["message"])
		})
	}
}

func TestHandleErrorTransitionDetails(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		err := &workflow.TransitionError{Entity: "academic result", From: "published", Action: "reject"}
		return handleError(c, zerolog.Nop(), err, "reject result")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var out struct {
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, &out))
	require.Equal(t, "cannot reject academic result while it is published", out.Message)
	require.Equal(t, map[string]string{"from": "published", "action": "reject"}, out.Details)
}
