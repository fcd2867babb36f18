package observability

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

type correlationIDKey struct{}

// WithCorrelationID attaches the request correlation id to ctx. Blank ids leave ctx unchanged.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Logger derives a logger tagged with the correlation id carried by ctx.
func Logger(ctx context.Context, base zerolog.Logger) *zerolog.Logger {
	logger := base
	if id := CorrelationID(ctx); id != "" {
		logger = base.With().Str("correlation_id", id).Logger()
	}
	return &logger
}
