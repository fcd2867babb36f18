package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/noah-isme/cbt-go-api/internal/observability"
)

// LocalCorrelationID is the Locals key holding the request correlation id.
const LocalCorrelationID = "correlation_id"

const maxCorrelationIDLength = 128

// CorrelationID accepts X-Correlation-ID (or X-Request-ID) from the caller, minting a uuid
// when neither is usable, and echoes it back. The id is stored in Locals and in the user
// context so service loggers pick it up.
func CorrelationID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := sanitizeCorrelationID(c.Get("X-Correlation-ID"))
		if id == "" {
			id = sanitizeCorrelationID(c.Get("X-Request-ID"))
		}
		if id == "" {
			id = uuid.NewString()
		}

		c.Locals(LocalCorrelationID, id)
		c.Set("X-Correlation-ID", id)
		c.SetUserContext(observability.WithCorrelationID(c.UserContext(), id))

		return c.Next()
	}
}

// CorrelationIDFromContext extracts the correlation identifier from context, if present.
func CorrelationIDFromContext(ctx context.Context) string {
	return observability.CorrelationID(ctx)
}

// GetCorrelationID returns the correlation identifier bound to the active request.
func GetCorrelationID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if id, ok := c.Locals(LocalCorrelationID).(string); ok && id != "" {
		return id
	}
	return observability.CorrelationID(c.UserContext())
}

// ContextWithCorrelation attaches the correlation identifier to the provided context.
func ContextWithCorrelation(ctx context.Context, correlationID string) context.Context {
	return observability.WithCorrelationID(ctx, correlationID)
}

// sanitizeCorrelationID drops ids that are oversized or carry characters unsafe for log lines.
func sanitizeCorrelationID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || len(id) > maxCorrelationIDLength {
		return ""
	}
	for _, r := range id {
		if r < 0x21 || r > 0x7e {
			return ""
		}
	}
	return id
}
