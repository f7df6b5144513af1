// Package module wires the meta endpoints using modkit
package module

import (
	"time"

	modkit "chime/internal/modkit"
	"chime/internal/modkit/httpkit"
	"chime/internal/services/alarms/domain"
	metahttp "chime/internal/services/meta/http"
)

// Module implements modkit.Module for health and version endpoints
type Module struct {
	name     string
	register func(httpkit.Router)
}

// New constructs the meta module. health may be nil when no scheduler
// heartbeat is expected (tests, tooling)
func New(deps modkit.Deps, serviceName string, health domain.HealthPort, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("meta")}, opts...)...)

	d := metahttp.Deps{
		ServiceName: serviceName,
		StartedAt:   time.Now(),
		Health:      health,
		PG:          deps.PG,
		Bus:         deps.Bus,
		CH:          deps.CH,
	}

	external := b.Register
	m := &Module{name: b.Name}
	m.register = func(r httpkit.Router) {
		metahttp.Register(r, d)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	m.register(r)
}

// Name returns the module name
func (m *Module) Name() string { return m.name }
