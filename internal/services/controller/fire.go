package controller

import (
	"context"
	"time"

	perr "chime/internal/platform/errors"
	"chime/internal/services/alarms/domain"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
	"chime/internal/services/scheduler"
	"chime/internal/temporal"
)

// onTick dispatches every alarm due this second onto the worker pool. It
// only hands off and returns; the workers queue on the semaphore so a busy
// pool never stalls the tick loop
func (c *Controller) onTick(ctx context.Context, at time.Time) {
	for _, e := range c.ix.Due(at) {
		go func(e scheduler.Entry) {
			select {
			case c.sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-c.sem }()
			fctx, cancel := context.WithTimeout(ctx, c.cfg.FireTimeout)
			defer cancel()
			c.fire(fctx, e)
		}(e)
	}
}

// fire claims one alarm occurrence and delivers it. Every step is safe to
// repeat: the status CAS and the claim row make replays no-ops
func (c *Controller) fire(ctx context.Context, e scheduler.Entry) {
	log := c.log.With().Str("code_id", e.CodeID).Time("at", e.At).Logger()

	row, err := c.repo.Get(ctx, e.CodeID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			c.ix.Remove(e.CodeID)
			return
		}
		log.Error().Err(err).Msg("load alarm failed")
		return
	}
	if row.Status != string(domain.StatusScheduled) {
		// canceled or claimed elsewhere since it was indexed
		c.ix.Remove(e.CodeID)
		return
	}

	loc, clock, days, err := parseSchedule(row)
	if err != nil {
		log.Error().Err(err).Msg("alarm has an unusable schedule")
		c.ix.Remove(e.CodeID)
		return
	}

	// weekday gate: a stale index or a late cold-start firing can land on a
	// day the alarm does not run; advance without delivering
	if !days.Contains(temporal.WeekdayInZone(e.At, loc)) {
		c.rearm(ctx, row.CodeID, e.At, clock, days, loc)
		return
	}

	if err := c.repo.MarkStatus(ctx, e.CodeID, domain.StatusScheduled, domain.StatusTriggered); err != nil {
		if perr.IsCode(err, perr.ErrorCodeStale) {
			c.ix.Remove(e.CodeID)
			return
		}
		log.Error().Err(err).Msg("claim transition failed")
		return
	}

	localDate := temporal.LocalDate(e.At, loc)
	claimed, err := c.repo.ClaimOccurrence(ctx, e.CodeID, localDate)
	if err != nil {
		log.Error().Err(err).Msg("occurrence claim failed")
		// leave the row triggered; reconcile repairs it
		return
	}

	if claimed {
		err := c.pub.AlarmTriggered(ctx, events.AlarmTriggered{
			CodeID:              row.CodeID,
			Email:               row.Email,
			FiredAtUTC:          e.At,
			OccurrenceLocalDate: localDate,
			Timezone:            row.Timezone,
			// the observed wall clock, not the stored one; they differ
			// when a DST gap shifted the firing instant
			LocalTime: temporal.LocalClock(e.At, loc).String(),
		})
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeTerminal) {
				c.failed.Add(1)
				c.ix.Remove(e.CodeID)
				if merr := c.repo.MarkStatus(ctx, e.CodeID, domain.StatusTriggered, domain.StatusFailed); merr != nil {
					log.Error().Err(merr).Msg("failed transition lost")
				}
				log.Error().Err(err).Msg("alarm delivery abandoned")
				return
			}
			log.Warn().Err(err).Msg("publish interrupted")
			return
		}
		c.fired.Add(1)
		log.Info().Str("email", row.Email).Msg("alarm fired")
	} else {
		log.Debug().Str("local_date", localDate).Msg("occurrence already claimed")
	}

	c.advanceTriggered(ctx, row.CodeID, e.At, clock, days, loc, row.IsRecurring)
}

// advanceTriggered moves a fired alarm to its next occurrence, or retires a
// one-shot
func (c *Controller) advanceTriggered(ctx context.Context, codeID string, firedAt time.Time, clock temporal.Clock, days temporal.WeekdaySet, loc *time.Location, recurring bool) {
	if !recurring {
		// one-shot stays triggered until cleanup removes it
		c.ix.Remove(codeID)
		return
	}
	next := temporal.NextInstant(firedAt, clock, days, loc)
	if err := c.repo.Reschedule(ctx, codeID, next); err != nil {
		c.log.Error().Str("code_id", codeID).Err(err).Msg("reschedule failed")
		c.ix.Remove(codeID)
		return
	}
	c.ix.Add(codeID, next)
}

// rearm moves a scheduled alarm that should not fire at its indexed instant
// (weekday gate) to its next qualifying instant without delivering. The
// update is a CAS on scheduled; losing it means a cancel or another worker
// got there first, and their write stands
func (c *Controller) rearm(ctx context.Context, codeID string, from time.Time, clock temporal.Clock, days temporal.WeekdaySet, loc *time.Location) {
	next := temporal.NextInstant(from, clock, days, loc)
	if err := c.repo.Rearm(ctx, codeID, next); err != nil {
		if !perr.IsCode(err, perr.ErrorCodeStale) {
			c.log.Error().Str("code_id", codeID).Err(err).Msg("re-arm failed")
		}
		c.ix.Remove(codeID)
		return
	}
	c.ix.Add(codeID, next)
}

// parseSchedule resolves a row's stored zone, clock, and weekday fields
func parseSchedule(row repo.RowAlarm) (*time.Location, temporal.Clock, temporal.WeekdaySet, error) {
	loc, err := temporal.LoadZone(row.Timezone)
	if err != nil {
		return nil, temporal.Clock{}, 0, err
	}
	clock, err := temporal.ParseClock(row.LocalTime)
	if err != nil {
		return nil, temporal.Clock{}, 0, err
	}
	days, err := temporal.ParseWeekdays(row.DaysOfWeek)
	if err != nil {
		return nil, temporal.Clock{}, 0, err
	}
	return loc, clock, days, nil
}

// recoverTriggered finishes firings a crash interrupted. A recurring row
// stuck in triggered gets its occurrence delivered unless the claim table
// says another worker already did, then advances to its next instant
func (c *Controller) recoverTriggered(ctx context.Context) {
	rows, err := c.repo.ListTriggeredRecurring(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("stuck alarm listing failed")
		return
	}
	for _, row := range rows {
		log := c.log.With().Str("code_id", row.CodeID).Logger()

		loc, clock, days, err := parseSchedule(row)
		if err != nil {
			log.Error().Err(err).Msg("stuck alarm has an unusable schedule")
			continue
		}

		localDate := temporal.LocalDate(row.UTCTime, loc)
		claimed, err := c.repo.ClaimOccurrence(ctx, row.CodeID, localDate)
		if err != nil {
			log.Warn().Err(err).Msg("recovery claim failed")
			continue
		}
		if claimed {
			// the crash landed before delivery; finish it now
			err := c.pub.AlarmTriggered(ctx, events.AlarmTriggered{
				CodeID:              row.CodeID,
				Email:               row.Email,
				FiredAtUTC:          row.UTCTime,
				OccurrenceLocalDate: localDate,
				Timezone:            row.Timezone,
				LocalTime:           temporal.LocalClock(row.UTCTime, loc).String(),
			})
			if err != nil {
				if perr.IsCode(err, perr.ErrorCodeTerminal) {
					c.failed.Add(1)
					if merr := c.repo.MarkStatus(ctx, row.CodeID, domain.StatusTriggered, domain.StatusFailed); merr != nil {
						log.Error().Err(merr).Msg("failed transition lost")
					}
					log.Error().Err(err).Msg("recovered delivery abandoned")
				} else {
					log.Warn().Err(err).Msg("recovered publish interrupted")
				}
				continue
			}
			c.fired.Add(1)
		}

		c.advanceTriggered(ctx, row.CodeID, row.UTCTime, clock, days, loc, true)
		log.Info().Str("occurrence", localDate).Bool("delivered", claimed).Msg("interrupted firing recovered")
	}
}
