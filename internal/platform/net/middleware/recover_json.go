package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/rs/zerolog"

	perr "chime/internal/platform/errors"
	pnet "chime/internal/platform/net"
)

// RecoverJSON converts handler panics into a JSON 500 in the standard
// envelope shape instead of a dropped connection
func RecoverJSON(log zerolog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Str("path", r.URL.Path).
					Str("request_id", pnet.RequestID(r.Context())).
					Msg("handler panic")

				wire := perr.WireFrom(perr.PanicErrf("internal error"))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status_code": http.StatusInternalServerError,
					"status":      http.StatusText(http.StatusInternalServerError),
					"code":        wire.Code,
					"error":       wire.Message,
					"request_id":  pnet.RequestID(r.Context()),
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
