package controller

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	perr "chime/internal/platform/errors"
	"chime/internal/platform/logger"
	"chime/internal/platform/testkit"
	"chime/internal/services/alarms/domain"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
	"chime/internal/services/scheduler"
)

// memRepo is an in-memory repo.Repo honoring the CAS and claim contracts
type memRepo struct {
	mu     sync.Mutex
	rows   map[string]repo.RowAlarm
	claims map[string]bool
	descs  map[string]string
	hb     time.Time
}

func newMemRepo() *memRepo {
	return &memRepo{
		rows:   map[string]repo.RowAlarm{},
		claims: map[string]bool{},
		descs:  map[string]string{},
	}
}

func (m *memRepo) Insert(_ context.Context, row repo.RowAlarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.CodeID]; ok {
		return perr.DuplicateKeyf("alarm exists")
	}
	m.rows[row.CodeID] = row
	return nil
}

func (m *memRepo) Get(_ context.Context, codeID string) (repo.RowAlarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[codeID]
	if !ok {
		return repo.RowAlarm{}, perr.NotFoundf("alarm %s not found", codeID)
	}
	return r, nil
}

func (m *memRepo) List(_ context.Context, email, status string, _, _ int) ([]repo.RowAlarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.RowAlarm
	for _, r := range m.rows {
		if (email == "" || r.Email == email) && (status == "" || r.Status == status) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Count(ctx context.Context, email, status string) (int64, error) {
	rows, _ := m.List(ctx, email, status, 0, 0)
	return int64(len(rows)), nil
}

func (m *memRepo) Update(_ context.Context, row repo.RowAlarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.CodeID]; !ok {
		return perr.NotFoundf("alarm %s not found", row.CodeID)
	}
	m.rows[row.CodeID] = row
	return nil
}

func (m *memRepo) MarkStatus(_ context.Context, codeID string, from, to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[codeID]
	if !ok || r.Status != string(from) {
		return perr.Stalef("alarm %s is not %s", codeID, from)
	}
	r.Status = string(to)
	m.rows[codeID] = r
	return nil
}

func (m *memRepo) Reschedule(_ context.Context, codeID string, nextUTC time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[codeID]
	if !ok || r.Status != string(domain.StatusTriggered) {
		return perr.Stalef("alarm %s is not triggered", codeID)
	}
	r.Status = string(domain.StatusScheduled)
	r.UTCTime = nextUTC
	m.rows[codeID] = r
	return nil
}

func (m *memRepo) ListScheduled(context.Context) ([]repo.RowAlarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.RowAlarm
	for _, r := range m.rows {
		if r.Status == string(domain.StatusScheduled) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) ListTriggeredRecurring(context.Context) ([]repo.RowAlarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []repo.RowAlarm
	for _, r := range m.rows {
		if r.IsRecurring && r.Status == string(domain.StatusTriggered) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRepo) Rearm(_ context.Context, codeID string, nextUTC time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[codeID]
	if !ok || r.Status != string(domain.StatusScheduled) {
		return perr.Stalef("alarm %s is not scheduled", codeID)
	}
	r.UTCTime = nextUTC
	m.rows[codeID] = r
	return nil
}

func (m *memRepo) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, r := range m.rows {
		if !r.IsRecurring && r.Status != string(domain.StatusScheduled) && r.UTCTime.Before(before) {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

func (m *memRepo) ClaimOccurrence(_ context.Context, codeID, localDate string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := codeID + "|" + localDate
	if m.claims[key] {
		return false, nil
	}
	m.claims[key] = true
	return true, nil
}

func (m *memRepo) UpsertDescription(_ context.Context, codeID, d string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descs[codeID] = d
	return nil
}

func (m *memRepo) GetDescription(_ context.Context, codeID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.descs[codeID]
	if !ok {
		return "", perr.NotFoundf("no description for %s", codeID)
	}
	return d, nil
}

func (m *memRepo) UpsertHeartbeat(_ context.Context, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hb = at
	return nil
}

func (m *memRepo) LastHeartbeat(context.Context) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hb.IsZero() {
		return time.Time{}, perr.NotFoundf("no heartbeat recorded")
	}
	return m.hb, nil
}

var _ repo.Repo = (*memRepo)(nil)

// fixtures

var testNow = time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC) // Thu 07:00 EST

func newTestController(r repo.Repo) (*Controller, *events.MemBus) {
	bus := events.NewMemBus()
	log := logger.Named("controller_test")
	return &Controller{
		log:  log,
		repo: r,
		bus:  bus,
		pub:  events.NewPublisher(bus, log),
		ix:   scheduler.NewIndex(),
		cfg:  Config{}.withDefaults(),
		sem:  make(chan struct{}, 2),
		now:  func() time.Time { return testNow },
	}, bus
}

func armedAlarm(codeID string, recurring bool) repo.RowAlarm {
	return repo.RowAlarm{
		CodeID:      codeID,
		Email:       "kai@example.com",
		LocalTime:   "07:00:00",
		Timezone:    "America/New_York",
		DaysOfWeek:  "Mon,Thu",
		IsRecurring: recurring,
		Status:      string(domain.StatusScheduled),
		UTCTime:     testNow,
	}
}

func TestFireDeliversAndReschedulesRecurring(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, events.TopicAlarmTriggered)
	testkit.NoErr(t, err)

	testkit.NoErr(t, mr.Insert(ctx, armedAlarm("a1", true)))
	c.ix.Add("a1", testNow)

	c.fire(ctx, scheduler.Entry{CodeID: "a1", At: testNow})

	select {
	case payload := <-sub:
		var ev events.AlarmTriggered
		testkit.NoErr(t, json.Unmarshal(payload, &ev))
		if ev.CodeID != "a1" || ev.OccurrenceLocalDate != "2026-01-15" || ev.EventID == "" {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}

	row, err := mr.Get(ctx, "a1")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %s, want scheduled", row.Status)
	}
	// next Mon,Thu occurrence after Thu 07:00 is Mon 2026-01-19 07:00 EST
	want := time.Date(2026, time.January, 19, 12, 0, 0, 0, time.UTC)
	if !row.UTCTime.Equal(want) {
		t.Fatalf("next = %v, want %v", row.UTCTime, want)
	}
	if at, ok := c.ix.Contains("a1"); !ok || !at.Equal(want) {
		t.Fatalf("index = %v %v", at, ok)
	}
	if fired, _, _ := c.Stats(); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
}

func TestFireOneShotRetiresTriggered(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	a := armedAlarm("a2", false)
	a.DaysOfWeek = ""
	testkit.NoErr(t, mr.Insert(ctx, a))
	c.ix.Add("a2", testNow)

	c.fire(ctx, scheduler.Entry{CodeID: "a2", At: testNow})

	row, err := mr.Get(ctx, "a2")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusTriggered) {
		t.Fatalf("status = %s, want triggered", row.Status)
	}
	if _, ok := c.ix.Contains("a2"); ok {
		t.Fatal("one-shot still armed after firing")
	}
}

func TestFireSkipsCanceled(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	a := armedAlarm("a3", true)
	a.Status = string(domain.StatusCanceled)
	testkit.NoErr(t, mr.Insert(ctx, a))
	c.ix.Add("a3", testNow)

	c.fire(ctx, scheduler.Entry{CodeID: "a3", At: testNow})

	if _, ok := c.ix.Contains("a3"); ok {
		t.Fatal("canceled alarm still armed")
	}
	if fired, _, _ := c.Stats(); fired != 0 {
		t.Fatal("canceled alarm fired")
	}
}

func TestFireDuplicateOccurrenceAdvancesWithoutPublish(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	testkit.NoErr(t, mr.Insert(ctx, armedAlarm("a4", true)))
	// another scheduler already owns today's occurrence
	_, err := mr.ClaimOccurrence(ctx, "a4", "2026-01-15")
	testkit.NoErr(t, err)
	c.ix.Add("a4", testNow)

	c.fire(ctx, scheduler.Entry{CodeID: "a4", At: testNow})

	if fired, _, _ := c.Stats(); fired != 0 {
		t.Fatal("duplicate occurrence published")
	}
	row, err := mr.Get(ctx, "a4")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %s, want scheduled after advance", row.Status)
	}
}

func TestFireWeekdayGateRearms(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	a := armedAlarm("a5", true)
	a.DaysOfWeek = "Fri" // indexed instant is a Thursday
	testkit.NoErr(t, mr.Insert(ctx, a))
	c.ix.Add("a5", testNow)

	c.fire(ctx, scheduler.Entry{CodeID: "a5", At: testNow})

	if fired, _, _ := c.Stats(); fired != 0 {
		t.Fatal("gated alarm fired")
	}
	row, err := mr.Get(ctx, "a5")
	testkit.NoErr(t, err)
	want := time.Date(2026, time.January, 16, 12, 0, 0, 0, time.UTC)
	if !row.UTCTime.Equal(want) {
		t.Fatalf("re-armed at %v, want %v", row.UTCTime, want)
	}
	if at, ok := c.ix.Contains("a5"); !ok || !at.Equal(want) {
		t.Fatalf("index = %v %v", at, ok)
	}
}

func TestColdStartArmsLateAlarms(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	past := armedAlarm("late", true)
	past.UTCTime = testNow.Add(-time.Hour)
	testkit.NoErr(t, mr.Insert(ctx, past))
	future := armedAlarm("future", true)
	future.UTCTime = testNow.Add(time.Hour)
	testkit.NoErr(t, mr.Insert(ctx, future))

	testkit.NoErr(t, c.coldStart(ctx))

	if at, ok := c.ix.Contains("late"); !ok || !at.Equal(testNow.Add(time.Second)) {
		t.Fatalf("late armed at %v %v", at, ok)
	}
	if at, ok := c.ix.Contains("future"); !ok || !at.Equal(testNow.Add(time.Hour)) {
		t.Fatalf("future armed at %v %v", at, ok)
	}
}

func TestApplyChangeFollowsStatus(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	testkit.NoErr(t, mr.Insert(ctx, armedAlarm("a6", true)))

	c.applyChange(ctx, events.AlarmChanged{CodeID: "a6", Change: events.ChangeCreated})
	if _, ok := c.ix.Contains("a6"); !ok {
		t.Fatal("created alarm not armed")
	}

	testkit.NoErr(t, mr.MarkStatus(ctx, "a6", domain.StatusScheduled, domain.StatusCanceled))
	c.applyChange(ctx, events.AlarmChanged{CodeID: "a6", Change: events.ChangeCanceled})
	if _, ok := c.ix.Contains("a6"); ok {
		t.Fatal("canceled alarm still armed")
	}
}

func TestReconcileRemovesStraysAndArmsMissing(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	testkit.NoErr(t, mr.Insert(ctx, armedAlarm("kept", true)))
	c.ix.Add("stray", testNow.Add(time.Hour))

	c.reconcile(ctx)

	if _, ok := c.ix.Contains("stray"); ok {
		t.Fatal("stray survived reconcile")
	}
	if _, ok := c.ix.Contains("kept"); !ok {
		t.Fatal("stored alarm not armed by reconcile")
	}
}

func TestHeartbeatWrite(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	c.writeHeartbeat(context.Background())

	hb, err := mr.LastHeartbeat(context.Background())
	testkit.NoErr(t, err)
	if !hb.Equal(testNow) {
		t.Fatalf("heartbeat = %v", hb)
	}
}

func TestOnTickReturnsWhileWorkersBusy(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// saturate the pool; dispatch must still return immediately
	c.sem <- struct{}{}
	c.sem <- struct{}{}
	c.ix.Add("queued", testNow)

	done := make(chan struct{})
	go func() {
		c.onTick(ctx, testNow)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tick blocked on a full worker pool")
	}
}

func TestColdStartRecoversStrandedRecurring(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	// a crash between the claim transition and the reschedule left this
	// row triggered with its occurrence already delivered
	a := armedAlarm("stranded", true)
	a.Status = string(domain.StatusTriggered)
	testkit.NoErr(t, mr.Insert(ctx, a))
	_, err := mr.ClaimOccurrence(ctx, "stranded", "2026-01-15")
	testkit.NoErr(t, err)

	testkit.NoErr(t, c.coldStart(ctx))

	row, err := mr.Get(ctx, "stranded")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %s, want scheduled", row.Status)
	}
	want := time.Date(2026, time.January, 19, 12, 0, 0, 0, time.UTC)
	if !row.UTCTime.Equal(want) {
		t.Fatalf("next = %v, want %v", row.UTCTime, want)
	}
	if at, ok := c.ix.Contains("stranded"); !ok || !at.Equal(want) {
		t.Fatalf("index = %v %v", at, ok)
	}
	// the claim already existed, so nothing was re-published
	if fired, _, _ := c.Stats(); fired != 0 {
		t.Fatalf("fired = %d", fired)
	}
}

func TestRecoverDeliversUnclaimedOccurrence(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	sub, err := bus.Subscribe(ctx, events.TopicAlarmTriggered)
	testkit.NoErr(t, err)

	// crash landed after the claim transition but before the claim row
	a := armedAlarm("mid-fire", true)
	a.Status = string(domain.StatusTriggered)
	testkit.NoErr(t, mr.Insert(ctx, a))

	c.recoverTriggered(ctx)

	select {
	case payload := <-sub:
		var ev events.AlarmTriggered
		testkit.NoErr(t, json.Unmarshal(payload, &ev))
		if ev.CodeID != "mid-fire" || ev.OccurrenceLocalDate != "2026-01-15" || !ev.FiredAtUTC.Equal(testNow) {
			t.Fatalf("event = %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("recovered occurrence not published")
	}

	row, err := mr.Get(ctx, "mid-fire")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %s, want scheduled", row.Status)
	}
	if fired, _, _ := c.Stats(); fired != 1 {
		t.Fatalf("fired = %d", fired)
	}
}

func TestReconcileRecoversStrandedRecurring(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	a := armedAlarm("stuck", true)
	a.Status = string(domain.StatusTriggered)
	testkit.NoErr(t, mr.Insert(ctx, a))
	_, err := mr.ClaimOccurrence(ctx, "stuck", "2026-01-15")
	testkit.NoErr(t, err)

	c.reconcile(ctx)

	row, err := mr.Get(ctx, "stuck")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusScheduled) {
		t.Fatalf("status = %s, want scheduled", row.Status)
	}
	if _, ok := c.ix.Contains("stuck"); !ok {
		t.Fatal("recovered alarm not armed")
	}
}

func TestRearmPreservesConcurrentCancel(t *testing.T) {
	mr := newMemRepo()
	c, bus := newTestController(mr)
	defer bus.Close()

	ctx := context.Background()
	a := armedAlarm("a8", true)
	a.Status = string(domain.StatusCanceled)
	testkit.NoErr(t, mr.Insert(ctx, a))
	c.ix.Add("a8", testNow)

	loc, clock, days, err := parseSchedule(a)
	testkit.NoErr(t, err)
	c.rearm(ctx, "a8", testNow, clock, days, loc)

	row, err := mr.Get(ctx, "a8")
	testkit.NoErr(t, err)
	if row.Status != string(domain.StatusCanceled) {
		t.Fatalf("status = %s, cancel was overwritten", row.Status)
	}
	if !row.UTCTime.Equal(testNow) {
		t.Fatalf("utc_time moved to %v", row.UTCTime)
	}
	if _, ok := c.ix.Contains("a8"); ok {
		t.Fatal("canceled alarm still armed")
	}
}
