// Package controller runs the alarm lifecycle daemon: cold start, the tick
// loop, firing workers, reconciliation, and cleanup
package controller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	modkit "chime/internal/modkit"
	"chime/internal/modkit/repokit"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
	"chime/internal/services/scheduler"
)

// Config carries the controller knobs
type Config struct {
	// Workers bounds concurrent firings per tick burst
	Workers int

	// ReconcileInterval is how often the index is rebuilt from the store
	ReconcileInterval time.Duration

	// CleanupInterval is how often expired one-shot alarms are purged
	CleanupInterval time.Duration

	// Retention is how long finished one-shot alarms are kept
	Retention time.Duration

	// FireTimeout bounds a single alarm delivery
	FireTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = 10 * time.Minute
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 10 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 24 * time.Hour
	}
	if c.FireTimeout <= 0 {
		c.FireTimeout = 10 * time.Second
	}
	return c
}

// Controller owns the index and the loops around it
type Controller struct {
	log    *logger.Logger
	db     repokit.TxRunner
	binder repokit.Binder[repo.Repo]
	repo   repo.Repo
	bus    store.Bus
	pub    *events.Publisher
	ix     *scheduler.Index
	cfg    Config

	sem chan struct{}

	fired  atomic.Int64
	failed atomic.Int64

	// now is a seam for deterministic tests
	now func() time.Time
}

// New builds a controller from shared deps
func New(deps modkit.Deps, cfg Config) *Controller {
	if deps.PG == nil {
		panic("controller requires a non nil TxRunner")
	}
	if deps.Bus == nil {
		panic("controller requires a non nil Bus")
	}
	cfg = cfg.withDefaults()

	binder := repo.NewPG()
	return &Controller{
		log:    deps.Log,
		db:     deps.PG,
		binder: binder,
		repo:   repokit.MustBind(binder, deps.PG),
		bus:    deps.Bus,
		pub:    events.NewPublisher(deps.Bus, deps.Log),
		ix:     scheduler.NewIndex(),
		cfg:    cfg,
		sem:    make(chan struct{}, cfg.Workers),
		now:    time.Now,
	}
}

// Stats reports lifetime firing counters
func (c *Controller) Stats() (fired, failed int64, armed int) {
	return c.fired.Load(), c.failed.Load(), c.ix.Len()
}

// Run performs the cold start then drives every loop until ctx ends
func (c *Controller) Run(ctx context.Context) error {
	if err := c.coldStart(ctx); err != nil {
		return err
	}

	tick := scheduler.NewTicker(c.log, c.onTick)

	var wg sync.WaitGroup
	errc := make(chan error, 5)
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && ctx.Err() == nil {
				c.log.Error().Str("loop", name).Err(err).Msg("loop exited")
				errc <- err
			}
		}()
	}

	run("tick", tick.Run)
	run("heartbeat", c.heartbeatLoop)
	run("changes", c.changeListener)
	run("reconcile", c.reconcileLoop)
	run("cleanup", c.cleanupLoop)

	select {
	case <-ctx.Done():
	case err := <-errc:
		wg.Wait()
		return err
	}
	wg.Wait()
	return nil
}

// coldStart recovers firings interrupted by the previous run, then loads
// every armed alarm into the index. Alarms whose instant passed while the
// scheduler was down are armed for the next tick; the claim table keeps
// replays from double-firing
func (c *Controller) coldStart(ctx context.Context) error {
	c.recoverTriggered(ctx)

	rows, err := c.repo.ListScheduled(ctx)
	if err != nil {
		return err
	}
	now := c.now().UTC()
	late := 0
	for _, r := range rows {
		at := r.UTCTime
		if at.Before(now) {
			at = now.Add(time.Second)
			late++
		}
		c.ix.Add(r.CodeID, at)
	}
	c.log.Info().Int("armed", len(rows)).Int("late", late).Msg("cold start complete")
	return nil
}
