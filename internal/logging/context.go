package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// NewRequestID returns a random (version 4) UUID string.
func NewRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID stores id and a logger tagged with it in ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithRequestID(ctx context.Context, base zerolog.Logger, id string) context.Context {
	ctx = context.WithValue(ctx, requestIDKey, id)
	l := base.With().Str("request_id", id).Logger()
	return l.WithContext(ctx)
}

// RequestIDFromContext returns the request id stored in ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
