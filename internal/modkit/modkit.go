package modkit

import (
	phttp "chime/internal/platform/net/http"
)

// Module is the common surface for modules that mount HTTP routes.
// Keep this tiny so modules stay decoupled
type Module interface {
	MountRoutes(r phttp.Router)
	Name() string
}
