// Package http provides health and version endpoints
package http

import (
	stdctx "context"
	stdhttp "net/http"
	"time"

	"chime/internal/modkit/httpkit"
	perr "chime/internal/platform/errors"
	"chime/internal/platform/version"
	"chime/internal/services/alarms/domain"
)

// The API reports unhealthy once the scheduler heartbeat is older than this
const staleTickAfter = 5 * time.Second

// Pinger is satisfied by store adapters that expose Ping
type Pinger interface {
	Ping(stdctx.Context) error
}

// Deps are the handler dependencies
type Deps struct {
	ServiceName string
	StartedAt   time.Time
	Health      domain.HealthPort
	PG          any
	Bus         any
	CH          any
}

type handlers struct{ deps Deps }

// Register mounts the meta routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.GetFn(r, "/health", h.health)
	httpkit.GetFn(r, "/ready", h.ready)
	httpkit.GetFn(r, "/version", h.version)
}

// HealthResponse is the health payload
type HealthResponse struct {
	OK         bool   `json:"ok" example:"true"`
	Service    string `json:"service" example:"chime-api"`
	AlarmCount int64  `json:"alarm_count" example:"120433"`
	TickAgeMs  int64  `json:"tick_age_ms" example:"840"`
	Started    string `json:"started" example:"2026-08-24T13:00:00Z"`
	Now        string `json:"now" example:"2026-08-24T13:05:00Z"`
}

// ReadyCheck describes a single dependency check
type ReadyCheck struct {
	Name   string `json:"name" example:"pg"`
	Status string `json:"status" example:"ok"` // ok fail skipped unknown
	Error  string `json:"error,omitempty"`
}

// ReadyResponse summarizes readiness
type ReadyResponse struct {
	Status string       `json:"status" example:"ok"` // ok degraded fail
	Checks []ReadyCheck `json:"checks"`
	Now    string       `json:"now"`
}

// @Summary Health check including scheduler tick age
// @Tags Meta
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *handlers) health(r *stdhttp.Request) httpkit.Response {
	resp := HealthResponse{
		OK:      true,
		Service: h.deps.ServiceName,
		Started: h.deps.StartedAt.UTC().Format(time.RFC3339),
		Now:     time.Now().UTC().Format(time.RFC3339),
	}

	if h.deps.Health == nil {
		return httpkit.OK(resp)
	}

	if n, err := h.deps.Health.ScheduledCount(r.Context()); err == nil {
		resp.AlarmCount = n
	}

	age, err := h.deps.Health.TickAge(r.Context())
	if err != nil || age > staleTickAfter {
		resp.OK = false
		if err == nil {
			resp.TickAgeMs = age.Milliseconds()
		}
		return httpkit.Error(perr.Unavailablef("scheduler heartbeat stale"))
	}
	resp.TickAgeMs = age.Milliseconds()
	return httpkit.OK(resp)
}

// @Summary Readiness probe with dependency checks
// @Tags Meta
// @Produce json
// @Success 200 {object} ReadyResponse
// @Router /ready [get]
func (h *handlers) ready(r *stdhttp.Request) httpkit.Response {
	ctx, cancel := stdctx.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	check := func(name string, c any) ReadyCheck {
		if c == nil {
			return ReadyCheck{Name: name, Status: "skipped"}
		}
		if p, ok := c.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return ReadyCheck{Name: name, Status: "fail", Error: err.Error()}
			}
			return ReadyCheck{Name: name, Status: "ok"}
		}
		return ReadyCheck{Name: name, Status: "unknown"}
	}

	checks := []ReadyCheck{
		check("pg", h.deps.PG),
		check("bus", h.deps.Bus),
		check("ch", h.deps.CH),
	}

	overall := "ok"
	for _, c := range checks {
		if c.Status == "fail" {
			overall = "fail"
			break
		}
		if c.Status != "ok" && c.Status != "skipped" {
			overall = "degraded"
		}
	}

	return httpkit.OK(ReadyResponse{
		Status: overall,
		Checks: checks,
		Now:    time.Now().UTC().Format(time.RFC3339),
	})
}

// @Summary Build and version info
// @Tags Meta
// @Produce json
// @Success 200 {object} version.BuildInfo
// @Router /version [get]
func (h *handlers) version(_ *stdhttp.Request) httpkit.Response {
	return httpkit.OK(version.Info(h.deps.ServiceName))
}
