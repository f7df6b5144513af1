// Package middleware re-exports the chi middleware chime uses so routes wire
// against the platform, not chi directly
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Middleware is the standard http middleware shape
type Middleware = func(http.Handler) http.Handler

// RequestID tags each request with a unique id header and context value
func RequestID() Middleware { return chimw.RequestID }

// RealIP resolves the client address from proxy headers
func RealIP() Middleware { return chimw.RealIP }

// Timeout cancels the request context after d
func Timeout(d time.Duration) Middleware { return chimw.Timeout(d) }

// Heartbeat answers 200 on path without touching handlers below it
func Heartbeat(path string) Middleware { return chimw.Heartbeat(path) }

// CORS applies a permissive browser policy suitable for the alarm API
func CORS() Middleware {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// Defaults is the standard chain for API binaries, outermost first
func Defaults(log zerolog.Logger) []Middleware {
	return []Middleware{
		RequestID(),
		RealIP(),
		AccessLog(log),
		RecoverJSON(log),
		Timeout(30 * time.Second),
		CORS(),
	}
}
