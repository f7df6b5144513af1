// Package swaggerkit mounts the Swagger UI and the OpenAPI document
package swaggerkit

import (
	"net/http"

	phttp "chime/internal/platform/net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// Mount attaches the Swagger UI and JSON spec when enabled
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/docs/", http.StatusPermanentRedirect)
	})
	r.Get("/docs/doc.json", phttp.Handler(serveDocJSON()))
	r.Handle("/docs/*", httpSwagger.Handler(
		httpSwagger.InstanceName("chime"),
		httpSwagger.URL("/docs/doc.json"),
	))
}
