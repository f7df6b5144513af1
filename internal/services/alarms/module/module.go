// Package module wires alarms into the API using modkit
package module

import (
	"net/http"

	modkit "chime/internal/modkit"
	"chime/internal/modkit/httpkit"
	alarmshttp "chime/internal/services/alarms/http"
	alarmsrepo "chime/internal/services/alarms/repo"
	alarmssvc "chime/internal/services/alarms/service"
	"chime/internal/services/events"
)

// Module implements modkit.Module for the alarm API
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(http.Handler) http.Handler
	register func(httpkit.Router)

	svc alarmssvc.Service
}

// New constructs the alarms module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("alarms"),
		modkit.WithPrefix("/alarms"),
	}, opts...)...)

	var pub *events.Publisher
	if deps.Bus != nil {
		pub = events.NewPublisher(deps.Bus, deps.Log)
	}

	repo := alarmsrepo.NewPG()
	svc := alarmssvc.New(deps.PG, repo, pub, deps.Log, alarmssvc.Config{
		DefaultTimezone: deps.Cfg.MayString("SCHEDULER_TIMEZONE_DEFAULT", ""),
	})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
	}

	external := b.Register
	m.register = func(r httpkit.Router) {
		alarmshttp.Register(r, m.svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes implements modkit.Module
func (m *Module) MountRoutes(r httpkit.Router) {
	httpkit.MountUnder(r, m.prefix, m.mws, m.register)
}

// Name returns the module name
func (m *Module) Name() string { return m.name }

// Service exposes the alarm service for sibling modules (health)
func (m *Module) Service() alarmssvc.Service { return m.svc }
