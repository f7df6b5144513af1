package modkit

import (
	"net/http"

	"chime/internal/modkit/httpkit"
)

// Built is the plain struct modules read after option application
type Built struct {
	Name      string
	Prefix    string
	Mw        []func(http.Handler) http.Handler
	SwaggerOn bool
	Register  func(httpkit.Router)
}

// Build applies Option funcs and returns the resolved configuration
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(httpkit.Router) {}
	}
	return Built{
		Name:      c.name,
		Prefix:    c.prefix,
		Mw:        append([]func(http.Handler) http.Handler(nil), c.mw...),
		SwaggerOn: c.swaggerOn,
		Register:  c.register,
	}
}

// Mount wires a Built onto r: subrouter at Prefix, middlewares, endpoints
func Mount(r httpkit.Router, b Built) {
	httpkit.MountUnder(r, b.Prefix, b.Mw, b.Register)
}
