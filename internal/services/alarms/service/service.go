// Package service contains alarm CRUD workflows
package service

import (
	"context"
	"strings"
	"time"

	"chime/internal/modkit/repokit"
	perr "chime/internal/platform/errors"
	"chime/internal/platform/logger"
	"chime/internal/services/alarms/domain"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
	"chime/internal/temporal"
)

// Config carries the service knobs
type Config struct {
	// DefaultTimezone is applied when a request omits timezone.
	// Empty means timezone is required on every alarm
	DefaultTimezone string
}

// Service is the alarm CRUD contract plus scheduler liveness
type Service interface {
	domain.ServicePort
	domain.HealthPort
}

// Svc implements Service
type Svc struct {
	Repo   repo.Repo
	binder repokit.Binder[repo.Repo]
	db     repokit.TxRunner
	pub    *events.Publisher
	log    *logger.Logger
	cfg    Config

	// now is a seam for deterministic scheduling tests
	now func() time.Time
}

// New creates an alarms service
func New(db repokit.TxRunner, binder repokit.Binder[repo.Repo], pub *events.Publisher, log *logger.Logger, cfg Config) *Svc {
	if db == nil {
		panic("alarms.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("alarms.Service requires a non nil Repo binder")
	}
	return &Svc{
		Repo:   binder.Bind(db),
		binder: binder,
		db:     db,
		pub:    pub,
		log:    log,
		cfg:    cfg,
		now:    time.Now,
	}
}

// schedule resolves zone, clock, and weekday fields into the next firing
// instant. The same path serves create and update so both agree on DST
// handling
func (s *Svc) schedule(localTime, tzName, daysCSV string, recurring bool) (clock string, tz string, utc time.Time, err error) {
	if tzName == "" {
		tzName = s.cfg.DefaultTimezone
	}
	if tzName == "" {
		return "", "", time.Time{}, perr.WithField(perr.Validationf("timezone is required"), "timezone")
	}
	loc, err := temporal.LoadZone(tzName)
	if err != nil {
		return "", "", time.Time{}, perr.WithField(err, "timezone")
	}

	c, err := temporal.ParseClock(localTime)
	if err != nil {
		return "", "", time.Time{}, perr.WithField(err, "time")
	}

	days, err := temporal.ParseWeekdays(daysCSV)
	if err != nil {
		return "", "", time.Time{}, perr.WithField(err, "days_of_week")
	}
	if recurring && days.Empty() {
		return "", "", time.Time{},
			perr.WithField(perr.Validationf("recurring alarms need days_of_week"), "days_of_week")
	}

	utc = temporal.FirstInstant(s.now().UTC(), c, days, loc)
	return c.String(), tzName, utc, nil
}

// Create registers a new alarm under its caller-chosen code and announces
// it on the bus. A duplicate code surfaces as a conflict
func (s *Svc) Create(ctx context.Context, in domain.CreateInput) (domain.Alarm, error) {
	codeID := strings.TrimSpace(in.CodeID)
	if err := validCodeID(codeID); err != nil {
		return domain.Alarm{}, err
	}
	clock, tz, utc, err := s.schedule(in.LocalTime, in.Timezone, in.DaysOfWeek, in.IsRecurring)
	if err != nil {
		return domain.Alarm{}, err
	}

	row := repo.RowAlarm{
		CodeID:      codeID,
		Email:       in.Email,
		LocalTime:   clock,
		Timezone:    tz,
		DaysOfWeek:  in.DaysOfWeek,
		IsRecurring: in.IsRecurring,
		Status:      string(domain.StatusScheduled),
		UTCTime:     utc,
	}

	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		txRepo := s.binder.Bind(q)
		if err := txRepo.Insert(ctx, row); err != nil {
			return err
		}
		if in.Description != "" {
			return txRepo.UpsertDescription(ctx, row.CodeID, in.Description)
		}
		return nil
	})
	if err != nil {
		return domain.Alarm{}, err
	}

	s.announce(ctx, row.CodeID, events.ChangeCreated)
	return s.Get(ctx, row.CodeID)
}

// Get returns one alarm by its code
func (s *Svc) Get(ctx context.Context, codeID string) (domain.Alarm, error) {
	if err := validCodeID(codeID); err != nil {
		return domain.Alarm{}, err
	}
	row, err := s.Repo.Get(ctx, codeID)
	if err != nil {
		return domain.Alarm{}, err
	}
	return toDomain(row), nil
}

// List returns a filtered page of alarms plus the unpaged total
func (s *Svc) List(ctx context.Context, in domain.ListInput) ([]domain.Alarm, int64, error) {
	if in.Status != "" && !domain.Status(in.Status).Valid() {
		return nil, 0, perr.WithField(perr.InvalidArgf("unknown status %q", in.Status), "status")
	}
	rows, err := s.Repo.List(ctx, in.Email, in.Status, in.Limit, in.Offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.Repo.Count(ctx, in.Email, in.Status)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Alarm, 0, len(rows))
	for _, r := range rows {
		out = append(out, toDomain(r))
	}
	return out, total, nil
}

// Count returns the number of alarms matching the filters
func (s *Svc) Count(ctx context.Context, in domain.ListInput) (int64, error) {
	if in.Status != "" && !domain.Status(in.Status).Valid() {
		return 0, perr.WithField(perr.InvalidArgf("unknown status %q", in.Status), "status")
	}
	return s.Repo.Count(ctx, in.Email, in.Status)
}

// Update patches an alarm, recomputes its firing instant, and re-arms it
func (s *Svc) Update(ctx context.Context, codeID string, in domain.UpdateInput) (domain.Alarm, error) {
	if err := validCodeID(codeID); err != nil {
		return domain.Alarm{}, err
	}
	row, err := s.Repo.Get(ctx, codeID)
	if err != nil {
		return domain.Alarm{}, err
	}

	if in.Email != nil {
		row.Email = *in.Email
	}
	if in.LocalTime != nil {
		row.LocalTime = *in.LocalTime
	}
	if in.Timezone != nil {
		row.Timezone = *in.Timezone
	}
	if in.DaysOfWeek != nil {
		row.DaysOfWeek = *in.DaysOfWeek
	}
	if in.IsRecurring != nil {
		row.IsRecurring = *in.IsRecurring
	}

	clock, tz, utc, err := s.schedule(row.LocalTime, row.Timezone, row.DaysOfWeek, row.IsRecurring)
	if err != nil {
		return domain.Alarm{}, err
	}
	row.LocalTime = clock
	row.Timezone = tz
	row.UTCTime = utc
	row.Status = string(domain.StatusScheduled)

	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		txRepo := s.binder.Bind(q)
		if err := txRepo.Update(ctx, row); err != nil {
			return err
		}
		if in.Description != nil {
			return txRepo.UpsertDescription(ctx, codeID, *in.Description)
		}
		return nil
	})
	if err != nil {
		return domain.Alarm{}, err
	}

	s.announce(ctx, codeID, events.ChangeUpdated)
	return s.Get(ctx, codeID)
}

// Cancel turns an alarm off. Canceling twice is a no-op; an alarm that
// already finished (a fired or failed one-shot) cannot be canceled
func (s *Svc) Cancel(ctx context.Context, codeID string) error {
	if err := validCodeID(codeID); err != nil {
		return err
	}
	row, err := s.Repo.Get(ctx, codeID)
	if err != nil {
		return err
	}
	if row.Status == string(domain.StatusCanceled) {
		return nil
	}
	st := domain.Status(row.Status)
	if st == domain.StatusFailed || (st == domain.StatusTriggered && !row.IsRecurring) {
		return perr.Conflictf("alarm %s already finished", codeID)
	}
	if err := s.Repo.MarkStatus(ctx, codeID, st, domain.StatusCanceled); err != nil {
		return err
	}
	s.announce(ctx, codeID, events.ChangeCanceled)
	return nil
}

// Description returns the label attached to an alarm code
func (s *Svc) Description(ctx context.Context, codeID string) (domain.CodeDescription, error) {
	if err := validCodeID(codeID); err != nil {
		return domain.CodeDescription{}, err
	}
	d, err := s.Repo.GetDescription(ctx, codeID)
	if err != nil {
		return domain.CodeDescription{}, err
	}
	return domain.CodeDescription{CodeID: codeID, Description: d}, nil
}

// ScheduledCount reports how many alarms are currently armed
func (s *Svc) ScheduledCount(ctx context.Context) (int64, error) {
	return s.Repo.Count(ctx, "", string(domain.StatusScheduled))
}

// TickAge reports how long ago the scheduler last ticked
func (s *Svc) TickAge(ctx context.Context) (time.Duration, error) {
	hb, err := s.Repo.LastHeartbeat(ctx)
	if err != nil {
		return 0, err
	}
	age := s.now().UTC().Sub(hb)
	if age < 0 {
		age = 0
	}
	return age, nil
}

// announce publishes a change notification. Delivery is best effort here;
// the reconcile loop repairs any scheduler that missed it
func (s *Svc) announce(ctx context.Context, codeID, change string) {
	if s.pub == nil {
		return
	}
	if err := s.pub.AlarmChanged(ctx, codeID, change); err != nil {
		s.log.Warn().Str("code_id", codeID).Str("change", change).Err(err).
			Msg("change notification dropped")
	}
}

// code ids are opaque caller-chosen keys; only shape is enforced
func validCodeID(codeID string) error {
	if codeID == "" || len(codeID) > 64 {
		return perr.WithField(perr.InvalidArgf("bad code id %q", codeID), "code_id")
	}
	return nil
}

func toDomain(r repo.RowAlarm) domain.Alarm {
	return domain.Alarm{
		CodeID:      r.CodeID,
		Email:       r.Email,
		LocalTime:   r.LocalTime,
		Timezone:    r.Timezone,
		DaysOfWeek:  r.DaysOfWeek,
		IsRecurring: r.IsRecurring,
		Status:      domain.Status(r.Status),
		UTCTime:     r.UTCTime,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
