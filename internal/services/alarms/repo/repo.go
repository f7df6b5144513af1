// Package repo provides postgres access for alarms
package repo

import (
	"context"
	"time"

	"chime/internal/modkit/repokit"
	perr "chime/internal/platform/errors"
	"chime/internal/services/alarms/domain"
)

// Repo is the repository contract for alarms
type Repo interface {
	Insert(ctx context.Context, row RowAlarm) error
	Get(ctx context.Context, codeID string) (RowAlarm, error)
	List(ctx context.Context, email, status string, limit, offset int) ([]RowAlarm, error)
	Count(ctx context.Context, email, status string) (int64, error)
	Update(ctx context.Context, row RowAlarm) error

	// MarkStatus is a compare-and-set transition; losing the race
	// returns a Stale error
	MarkStatus(ctx context.Context, codeID string, from, to domain.Status) error

	// Reschedule moves a fired recurring alarm back to scheduled with its
	// next firing instant. CAS from triggered
	Reschedule(ctx context.Context, codeID string, nextUTC time.Time) error

	// ListScheduled returns every armed alarm; cold start and reconcile
	ListScheduled(ctx context.Context) ([]RowAlarm, error)

	// ListTriggeredRecurring returns recurring alarms an interrupted firing
	// left in triggered; recovery advances them to their next occurrence
	ListTriggeredRecurring(ctx context.Context) ([]RowAlarm, error)

	// Rearm moves a scheduled alarm to a new firing instant without a
	// delivery. CAS on scheduled so a concurrent cancel survives
	Rearm(ctx context.Context, codeID string, nextUTC time.Time) error

	// DeleteExpired removes finished one-shot alarms whose firing instant
	// is older than before. Returns rows removed
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// ClaimOccurrence records (code_id, local_date) exactly once; false
	// means another worker already owns this occurrence
	ClaimOccurrence(ctx context.Context, codeID, localDate string) (bool, error)

	UpsertDescription(ctx context.Context, codeID, description string) error
	GetDescription(ctx context.Context, codeID string) (string, error)

	UpsertHeartbeat(ctx context.Context, at time.Time) error
	LastHeartbeat(ctx context.Context) (time.Time, error)
}

// RowAlarm is the alarms table row
type RowAlarm struct {
	CodeID      string
	Email       string
	LocalTime   string
	Timezone    string
	DaysOfWeek  string
	IsRecurring bool
	Status      string
	UTCTime     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type (
	// PG implements Repo against Postgres
	PG struct{}

	queries struct{ q repokit.Queryer }
)

// NewPG creates a Postgres repository binder
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind binds a queryer to the Repo implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

func (r *queries) Insert(ctx context.Context, row RowAlarm) error {
	const sql = `
insert into alarms (code_id, email, local_time, timezone, days_of_week, is_recurring, status, utc_time)
values ($1, $2, $3, $4, $5, $6, $7, $8)
`
	_, err := r.q.Exec(ctx, sql,
		row.CodeID, row.Email, row.LocalTime, row.Timezone,
		row.DaysOfWeek, row.IsRecurring, row.Status, row.UTCTime,
	)
	if err != nil {
		return perr.FromPostgres(err, "insert alarm")
	}
	return nil
}

const alarmCols = `
code_id, email, local_time, timezone, days_of_week, is_recurring, status::text, utc_time, created_at, updated_at`

func scanAlarm(row repokit.Row) (RowAlarm, error) {
	var a RowAlarm
	err := row.Scan(
		&a.CodeID, &a.Email, &a.LocalTime, &a.Timezone, &a.DaysOfWeek,
		&a.IsRecurring, &a.Status, &a.UTCTime, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *queries) Get(ctx context.Context, codeID string) (RowAlarm, error) {
	const sql = `select ` + alarmCols + ` from alarms where code_id = $1`
	a, err := scanAlarm(r.q.QueryRow(ctx, sql, codeID))
	if err != nil {
		if perr.IsNoRows(err) {
			return RowAlarm{}, perr.NotFoundf("alarm %s not found", codeID)
		}
		return RowAlarm{}, perr.FromPostgres(err, "get alarm")
	}
	return a, nil
}

func (r *queries) List(ctx context.Context, email, status string, limit, offset int) ([]RowAlarm, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	const sql = `
select ` + alarmCols + `
from alarms
where ($1 = '' or email = $1)
and ($2 = '' or status::text = $2)
order by utc_time asc
limit $3 offset $4
`
	rows, err := r.q.Query(ctx, sql, email, status, limit, offset)
	if err != nil {
		return nil, perr.FromPostgres(err, "list alarms")
	}
	defer rows.Close()

	var out []RowAlarm
	for rows.Next() {
		var a RowAlarm
		if err := rows.Scan(
			&a.CodeID, &a.Email, &a.LocalTime, &a.Timezone, &a.DaysOfWeek,
			&a.IsRecurring, &a.Status, &a.UTCTime, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) Count(ctx context.Context, email, status string) (int64, error) {
	const sql = `
select count(*) from alarms
where ($1 = '' or email = $1)
and ($2 = '' or status::text = $2)
`
	var n int64
	if err := r.q.QueryRow(ctx, sql, email, status).Scan(&n); err != nil {
		return 0, perr.FromPostgres(err, "count alarms")
	}
	return n, nil
}

func (r *queries) Update(ctx context.Context, row RowAlarm) error {
	const sql = `
update alarms
set email = $2, local_time = $3, timezone = $4, days_of_week = $5,
is_recurring = $6, status = $7, utc_time = $8, updated_at = now()
where code_id = $1
`
	tag, err := r.q.Exec(ctx, sql,
		row.CodeID, row.Email, row.LocalTime, row.Timezone,
		row.DaysOfWeek, row.IsRecurring, row.Status, row.UTCTime,
	)
	if err != nil {
		return perr.FromPostgres(err, "update alarm")
	}
	if tag.RowsAffected() == 0 {
		return perr.NotFoundf("alarm %s not found", row.CodeID)
	}
	return nil
}

func (r *queries) MarkStatus(ctx context.Context, codeID string, from, to domain.Status) error {
	const sql = `
update alarms set status = $3, updated_at = now()
where code_id = $1 and status = $2
`
	tag, err := r.q.Exec(ctx, sql, codeID, string(from), string(to))
	if err != nil {
		return perr.FromPostgres(err, "mark alarm status")
	}
	if tag.RowsAffected() == 0 {
		return perr.Stalef("alarm %s is not %s", codeID, from)
	}
	return nil
}

func (r *queries) Reschedule(ctx context.Context, codeID string, nextUTC time.Time) error {
	const sql = `
update alarms set status = 'scheduled', utc_time = $2, updated_at = now()
where code_id = $1 and status = 'triggered'
`
	tag, err := r.q.Exec(ctx, sql, codeID, nextUTC)
	if err != nil {
		return perr.FromPostgres(err, "reschedule alarm")
	}
	if tag.RowsAffected() == 0 {
		return perr.Stalef("alarm %s is not triggered", codeID)
	}
	return nil
}

func (r *queries) ListScheduled(ctx context.Context) ([]RowAlarm, error) {
	const sql = `select ` + alarmCols + ` from alarms where status = 'scheduled' order by utc_time asc`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "list scheduled alarms")
	}
	defer rows.Close()

	var out []RowAlarm
	for rows.Next() {
		var a RowAlarm
		if err := rows.Scan(
			&a.CodeID, &a.Email, &a.LocalTime, &a.Timezone, &a.DaysOfWeek,
			&a.IsRecurring, &a.Status, &a.UTCTime, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) ListTriggeredRecurring(ctx context.Context) ([]RowAlarm, error) {
	const sql = `
select ` + alarmCols + ` from alarms
where status = 'triggered' and is_recurring = true
order by utc_time asc
`
	rows, err := r.q.Query(ctx, sql)
	if err != nil {
		return nil, perr.FromPostgres(err, "list triggered recurring alarms")
	}
	defer rows.Close()

	var out []RowAlarm
	for rows.Next() {
		var a RowAlarm
		if err := rows.Scan(
			&a.CodeID, &a.Email, &a.LocalTime, &a.Timezone, &a.DaysOfWeek,
			&a.IsRecurring, &a.Status, &a.UTCTime, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *queries) Rearm(ctx context.Context, codeID string, nextUTC time.Time) error {
	const sql = `
update alarms set utc_time = $2, updated_at = now()
where code_id = $1 and status = 'scheduled'
`
	tag, err := r.q.Exec(ctx, sql, codeID, nextUTC)
	if err != nil {
		return perr.FromPostgres(err, "re-arm alarm")
	}
	if tag.RowsAffected() == 0 {
		return perr.Stalef("alarm %s is not scheduled", codeID)
	}
	return nil
}

func (r *queries) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const sql = `
delete from alarms
where is_recurring = false
and status in ('triggered', 'canceled', 'failed')
and utc_time < $1
`
	tag, err := r.q.Exec(ctx, sql, before)
	if err != nil {
		return 0, perr.FromPostgres(err, "delete expired alarms")
	}
	return tag.RowsAffected(), nil
}

func (r *queries) ClaimOccurrence(ctx context.Context, codeID, localDate string) (bool, error) {
	const sql = `
insert into alarm_claims (code_id, local_date)
values ($1, $2)
on conflict (code_id, local_date) do nothing
`
	tag, err := r.q.Exec(ctx, sql, codeID, localDate)
	if err != nil {
		return false, perr.FromPostgres(err, "claim occurrence")
	}
	return tag.RowsAffected() == 1, nil
}

func (r *queries) UpsertDescription(ctx context.Context, codeID, description string) error {
	const sql = `
insert into code_descriptions (code_id, description)
values ($1, $2)
on conflict (code_id) do update set description = excluded.description
`
	if _, err := r.q.Exec(ctx, sql, codeID, description); err != nil {
		return perr.FromPostgres(err, "upsert code description")
	}
	return nil
}

func (r *queries) GetDescription(ctx context.Context, codeID string) (string, error) {
	const sql = `select description from code_descriptions where code_id = $1`
	var d string
	if err := r.q.QueryRow(ctx, sql, codeID).Scan(&d); err != nil {
		if perr.IsNoRows(err) {
			return "", perr.NotFoundf("no description for %s", codeID)
		}
		return "", perr.FromPostgres(err, "get code description")
	}
	return d, nil
}

func (r *queries) UpsertHeartbeat(ctx context.Context, at time.Time) error {
	const sql = `
insert into scheduler_heartbeat (id, ticked_at)
values (1, $1)
on conflict (id) do update set ticked_at = excluded.ticked_at
`
	if _, err := r.q.Exec(ctx, sql, at); err != nil {
		return perr.FromPostgres(err, "upsert heartbeat")
	}
	return nil
}

func (r *queries) LastHeartbeat(ctx context.Context) (time.Time, error) {
	const sql = `select ticked_at from scheduler_heartbeat where id = 1`
	var t time.Time
	if err := r.q.QueryRow(ctx, sql).Scan(&t); err != nil {
		if perr.IsNoRows(err) {
			return time.Time{}, perr.NotFoundf("no heartbeat recorded")
		}
		return time.Time{}, perr.FromPostgres(err, "get heartbeat")
	}
	return t, nil
}
