//go:build integration_pg
// +build integration_pg

package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	perr "chime/internal/platform/errors"
	"chime/internal/platform/store"
	"chime/internal/services/alarms/domain"
	"chime/migrations"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func migrateAll(t *testing.T, ctx context.Context, db store.TxRunner) {
	t.Helper()
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := migrations.FS.ReadFile(name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if _, err := db.Exec(ctx, string(sql)); err != nil {
			t.Fatalf("apply %s: %v", name, err)
		}
	}
}

func TestRepo_Lifecycle_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MinConns: 1, MaxConns: 4},
	})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	defer st.Close(context.Background())

	migrateAll(t, ctx, st.PG)
	r := NewPG().Bind(st.PG)

	fireAt := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	row := RowAlarm{
		CodeID:      "wake-up-7036",
		Email:       "kai@example.com",
		LocalTime:   "07:00:00",
		Timezone:    "America/New_York",
		DaysOfWeek:  "Mon,Thu",
		IsRecurring: true,
		Status:      string(domain.StatusScheduled),
		UTCTime:     fireAt,
	}
	if err := r.Insert(ctx, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// the code is the primary key; a second insert is a conflict
	err = r.Insert(ctx, row)
	if !perr.IsCode(err, perr.ErrorCodeDuplicateKey) {
		t.Fatalf("duplicate insert = %v", err)
	}

	got, err := r.Get(ctx, row.CodeID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != row.Email || !got.UTCTime.Equal(fireAt) || got.Status != "scheduled" {
		t.Fatalf("row = %+v", got)
	}

	// CAS wins once, then reports stale
	if err := r.MarkStatus(ctx, row.CodeID, domain.StatusScheduled, domain.StatusTriggered); err != nil {
		t.Fatalf("mark: %v", err)
	}
	err = r.MarkStatus(ctx, row.CodeID, domain.StatusScheduled, domain.StatusTriggered)
	if !perr.IsCode(err, perr.ErrorCodeStale) {
		t.Fatalf("second mark = %v", err)
	}

	// the recovery listing sees the triggered recurring row
	stuck, err := r.ListTriggeredRecurring(ctx)
	if err != nil || len(stuck) != 1 || stuck[0].CodeID != row.CodeID {
		t.Fatalf("stuck = %+v err = %v", stuck, err)
	}

	// claim is first-writer-wins per occurrence
	ok, err := r.ClaimOccurrence(ctx, row.CodeID, "2026-03-02")
	if err != nil || !ok {
		t.Fatalf("claim = %v %v", ok, err)
	}
	ok, err = r.ClaimOccurrence(ctx, row.CodeID, "2026-03-02")
	if err != nil || ok {
		t.Fatalf("replay claim = %v %v", ok, err)
	}
	ok, err = r.ClaimOccurrence(ctx, row.CodeID, "2026-03-05")
	if err != nil || !ok {
		t.Fatalf("next occurrence claim = %v %v", ok, err)
	}

	// recurring advance back to scheduled
	next := fireAt.AddDate(0, 0, 3)
	if err := r.Reschedule(ctx, row.CodeID, next); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	scheduled, err := r.ListScheduled(ctx)
	if err != nil || len(scheduled) != 1 || !scheduled[0].UTCTime.Equal(next) {
		t.Fatalf("scheduled = %+v err = %v", scheduled, err)
	}

	// re-arm moves the instant only while the row is still scheduled
	moved := next.AddDate(0, 0, 4)
	if err := r.Rearm(ctx, row.CodeID, moved); err != nil {
		t.Fatalf("rearm: %v", err)
	}
	got, err = r.Get(ctx, row.CodeID)
	if err != nil || !got.UTCTime.Equal(moved) {
		t.Fatalf("rearm utc = %v err = %v", got.UTCTime, err)
	}
	if err := r.MarkStatus(ctx, row.CodeID, domain.StatusScheduled, domain.StatusCanceled); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	err = r.Rearm(ctx, row.CodeID, moved.AddDate(0, 0, 1))
	if !perr.IsCode(err, perr.ErrorCodeStale) {
		t.Fatalf("rearm after cancel = %v", err)
	}

	// descriptions upsert and read back
	if err := r.UpsertDescription(ctx, row.CodeID, "morning run"); err != nil {
		t.Fatalf("upsert description: %v", err)
	}
	if err := r.UpsertDescription(ctx, row.CodeID, "evening run"); err != nil {
		t.Fatalf("re-upsert description: %v", err)
	}
	d, err := r.GetDescription(ctx, row.CodeID)
	if err != nil || d != "evening run" {
		t.Fatalf("description = %q err = %v", d, err)
	}

	// heartbeat single row upsert
	hb := time.Now().UTC().Truncate(time.Millisecond)
	if err := r.UpsertHeartbeat(ctx, hb); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	last, err := r.LastHeartbeat(ctx)
	if err != nil || !last.Equal(hb) {
		t.Fatalf("last heartbeat = %v err = %v", last, err)
	}
}

func TestRepo_DeleteExpired_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st, err := store.Open(ctx, store.Config{
		PG: store.PGConfig{Enabled: true, URL: dsn, MinConns: 1, MaxConns: 4},
	})
	if err != nil {
		t.Fatalf("store open: %v", err)
	}
	defer st.Close(context.Background())

	migrateAll(t, ctx, st.PG)
	r := NewPG().Bind(st.PG)

	old := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	rows := []RowAlarm{
		{CodeID: "one-shot-fired", Status: "triggered", UTCTime: old},
		{CodeID: "one-shot-canceled", Status: "canceled", UTCTime: old},
		{CodeID: "recurring-fired", Status: "triggered", UTCTime: old, IsRecurring: true},
		{CodeID: "still-armed", Status: "scheduled", UTCTime: old.AddDate(0, 1, 0)},
	}
	for i := range rows {
		rows[i].Email = "kai@example.com"
		rows[i].LocalTime = "08:00:00"
		rows[i].Timezone = "UTC"
		if err := r.Insert(ctx, rows[i]); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	n, err := r.DeleteExpired(ctx, old.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	// recurring and still-scheduled rows survive
	if n != 2 {
		t.Fatalf("deleted = %d", n)
	}
	left, err := r.Count(ctx, "", "")
	if err != nil || left != 2 {
		t.Fatalf("left = %d err = %v", left, err)
	}
}
