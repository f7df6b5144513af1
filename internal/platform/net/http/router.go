package http

import "net/http"

// Handler is the platform handler shape. It matches http.HandlerFunc so
// stdlib interop stays free, but modules accept Router and never see chi
type Handler func(w http.ResponseWriter, r *http.Request)

// Router is the routing seam handed to modules. The chi mux satisfies it
// through AdaptChi; tests can satisfy it with a recording fake
type Router interface {
	Get(pattern string, h Handler)
	Post(pattern string, h Handler)
	Put(pattern string, h Handler)
	Delete(pattern string, h Handler)

	Handle(pattern string, h http.Handler)
	Use(mw ...func(http.Handler) http.Handler)
	Group(fn func(Router))
	Route(pattern string, fn func(Router))

	// Mux exposes the underlying handler for mounting into a Server
	Mux() http.Handler
}
