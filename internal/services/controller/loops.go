package controller

import (
	"context"
	"encoding/json"
	"time"

	perr "chime/internal/platform/errors"
	"chime/internal/services/alarms/domain"
	"chime/internal/services/events"
)

// changeListener applies create/update/cancel notifications from the API so
// the index follows the store between reconciles
func (c *Controller) changeListener(ctx context.Context) error {
	ch, err := c.bus.Subscribe(ctx, events.TopicAlarmChanged)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return perr.Busf("change subscription closed")
			}
			var ev events.AlarmChanged
			if err := json.Unmarshal(payload, &ev); err != nil {
				c.log.Warn().Err(err).Msg("bad change payload")
				continue
			}
			c.applyChange(ctx, ev)
		}
	}
}

func (c *Controller) applyChange(ctx context.Context, ev events.AlarmChanged) {
	log := c.log.With().Str("code_id", ev.CodeID).Str("change", ev.Change).Logger()

	row, err := c.repo.Get(ctx, ev.CodeID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			c.ix.Remove(ev.CodeID)
			return
		}
		log.Warn().Err(err).Msg("change lookup failed")
		return
	}
	if row.Status == string(domain.StatusScheduled) {
		c.ix.Add(row.CodeID, row.UTCTime)
		log.Debug().Time("utc_time", row.UTCTime).Msg("index updated")
		return
	}
	c.ix.Remove(ev.CodeID)
}

// reconcileLoop rebuilds the index from the store on a fixed cadence. It
// repairs anything a missed notification or a crashed worker left behind
func (c *Controller) reconcileLoop(ctx context.Context) error {
	t := time.NewTicker(c.cfg.ReconcileInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.reconcile(ctx)
		}
	}
}

func (c *Controller) reconcile(ctx context.Context) {
	// repair interrupted firings first so the rescheduled rows show up in
	// the scheduled listing below
	c.recoverTriggered(ctx)

	rows, err := c.repo.ListScheduled(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("reconcile listing failed")
		return
	}

	now := c.now().UTC()
	want := make(map[string]bool, len(rows))
	added := 0
	for _, r := range rows {
		want[r.CodeID] = true
		at := r.UTCTime
		if at.Before(now) {
			at = now.Add(time.Second)
		}
		if prev, ok := c.ix.Contains(r.CodeID); !ok || !prev.Equal(at) {
			added++
		}
		c.ix.Add(r.CodeID, at)
	}

	removed := 0
	for codeID := range c.ix.Snapshot() {
		if !want[codeID] {
			c.ix.Remove(codeID)
			removed++
		}
	}

	fired, failed, armed := c.Stats()
	c.log.Info().
		Int("armed", armed).
		Int("updated", added).
		Int("removed", removed).
		Int64("fired_total", fired).
		Int64("failed_total", failed).
		Msg("reconcile complete")
}

// heartbeatLoop writes the liveness row once a second, off the tick path
// so a slow store never stalls dispatch
func (c *Controller) heartbeatLoop(ctx context.Context) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.writeHeartbeat(ctx)
		}
	}
}

func (c *Controller) writeHeartbeat(ctx context.Context) {
	hctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.repo.UpsertHeartbeat(hctx, c.now().UTC()); err != nil {
		c.log.Warn().Err(err).Msg("heartbeat write failed")
	}
}

// cleanupLoop purges finished one-shot alarms past their retention window
func (c *Controller) cleanupLoop(ctx context.Context) error {
	t := time.NewTicker(c.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			cutoff := c.now().UTC().Add(-c.cfg.Retention)
			n, err := c.repo.DeleteExpired(ctx, cutoff)
			if err != nil {
				c.log.Warn().Err(err).Msg("cleanup failed")
				continue
			}
			if n > 0 {
				c.log.Info().Int64("removed", n).Time("cutoff", cutoff).Msg("expired alarms purged")
			}
		}
	}
}
