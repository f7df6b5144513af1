// Package net carries request-scoped helpers shared by the http layer
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestID returns the request id placed on ctx by the RequestID middleware.
// Empty when no middleware ran (tests, background jobs)
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(chimw.RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID stamps an explicit request id onto ctx. Handlers never call
// this; it exists for tests and for daemon loops that want correlatable logs
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, chimw.RequestIDKey, id)
}
