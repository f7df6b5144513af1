package http

import (
	"context"
	"net/http"

	"chime/internal/platform/net/http/bind"
)

// JSONHandler adapts a typed request/response function into a Handler.
// The body is decoded and validated by bind; the function only sees
// a valid T or is never called
func JSONHandler[T any](fn func(ctx context.Context, req T) Response) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := bind.ParseJSON[T](r)
		if err != nil {
			Error(err).Write(w, r)
			return
		}
		fn(r.Context(), req).Write(w, r)
	}
}

// Respond adapts a bodyless function into a Handler. Path and query
// parameters are read off the request inside fn
func Respond(fn func(r *http.Request) Response) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		fn(r).Write(w, r)
	}
}
