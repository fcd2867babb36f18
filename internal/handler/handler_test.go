package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/cbt-go-api/internal/middleware"
	"github.com/noah-isme/cbt-go-api/internal/models"
	"github.com/noah-isme/cbt-go-api/internal/policy"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Meta    json.RawMessage `json:"meta"`
	Details json.RawMessage `json:"details"`
}

// asPrincipal stands in for the JWT middleware.
func asPrincipal(p policy.Principal) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, p.UserID)
		c.Locals(middleware.LocalUserRole, p.Role)
		if p.SchoolID != 0 {
			c.Locals(middleware.LocalSchoolID, p.SchoolID)
		}
		if p.StudentID != 0 {
			c.Locals(middleware.LocalStudentID, p.StudentID)
		}
		if p.TeacherID != 0 {
			c.Locals(middleware.LocalTeacherID, p.TeacherID)
		}
		return c.Next()
	}
}

func studentPrincipal() policy.Principal {
	return policy.Principal{UserID: 30, Role: models.RoleStudent, SchoolID: 2, StudentID: 9}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return data
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	var out envelope
	require.NoError(t, json.Unmarshal(readBody(t, resp), &out))
	return out
}

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	path, err := filepath.Abs(filepath.Join("testdata", name))
	require.NoError(t, err)
	schema, err := jsonschema.NewCompiler().Compile("file://" + path)
	require.NoError(t, err)
	return schema
}

func requireSchema(t *testing.T, schema *jsonschema.Schema, body []byte) {
	t.Helper()
	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}
