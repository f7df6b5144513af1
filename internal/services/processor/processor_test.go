package processor

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	perr "chime/internal/platform/errors"
	"chime/internal/platform/logger"
	"chime/internal/platform/testkit"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
)

// descRepo stubs the repo surface the processor touches
type descRepo struct {
	repo.Repo
	mu    sync.Mutex
	descs map[string]string
}

func (d *descRepo) GetDescription(_ context.Context, codeID string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.descs[codeID]; ok {
		return s, nil
	}
	return "", perr.NotFoundf("no description for %s", codeID)
}

func newTestProcessor(descs map[string]string) (*Processor, *events.MemBus) {
	bus := events.NewMemBus()
	log := logger.Named("processor_test")
	return &Processor{
		log:  log,
		repo: &descRepo{descs: descs},
		bus:  bus,
		pub:  events.NewPublisher(bus, log),
		seen: make(map[string]struct{}),
	}, bus
}

func firing(codeID string) events.AlarmTriggered {
	return events.AlarmTriggered{
		EventID:             "ev-" + codeID,
		CodeID:              codeID,
		Email:               "kai@example.com",
		FiredAtUTC:          time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC),
		OccurrenceLocalDate: "2026-01-15",
		Timezone:            "America/New_York",
		LocalTime:           "07:00:00",
	}
}

func TestHandleEmitsEmailRequestWithDescription(t *testing.T) {
	p, bus := newTestProcessor(map[string]string{"c1": "morning run"})
	defer bus.Close()

	ctx := context.Background()
	out, err := bus.Subscribe(ctx, events.TopicEmailRequest)
	testkit.NoErr(t, err)

	payload, _ := json.Marshal(firing("c1"))
	p.handle(ctx, payload)

	select {
	case raw := <-out:
		var req events.EmailRequest
		testkit.NoErr(t, json.Unmarshal(raw, &req))
		if req.CodeID != "c1" || req.Email != "kai@example.com" || req.Description != "morning run" {
			t.Fatalf("request = %+v", req)
		}
		if req.OccurrenceLocalDate != "2026-01-15" {
			t.Fatalf("occurrence = %s", req.OccurrenceLocalDate)
		}
	case <-time.After(time.Second):
		t.Fatal("no email request emitted")
	}

	if processed, _ := p.Stats(); processed != 1 {
		t.Fatalf("processed = %d", processed)
	}
}

func TestHandleMissingDescriptionStillEmits(t *testing.T) {
	p, bus := newTestProcessor(nil)
	defer bus.Close()

	ctx := context.Background()
	out, err := bus.Subscribe(ctx, events.TopicEmailRequest)
	testkit.NoErr(t, err)

	payload, _ := json.Marshal(firing("c2"))
	p.handle(ctx, payload)

	select {
	case raw := <-out:
		var req events.EmailRequest
		testkit.NoErr(t, json.Unmarshal(raw, &req))
		if req.Description != "" {
			t.Fatalf("description = %q", req.Description)
		}
	case <-time.After(time.Second):
		t.Fatal("no email request emitted")
	}
}

func TestHandleDedupsRedelivery(t *testing.T) {
	p, bus := newTestProcessor(nil)
	defer bus.Close()

	ctx := context.Background()
	payload, _ := json.Marshal(firing("c3"))
	p.handle(ctx, payload)
	p.handle(ctx, payload)

	processed, skipped := p.Stats()
	if processed != 1 || skipped != 1 {
		t.Fatalf("processed = %d skipped = %d", processed, skipped)
	}
}

func TestHandleDistinctOccurrencesBothProcess(t *testing.T) {
	p, bus := newTestProcessor(nil)
	defer bus.Close()

	ctx := context.Background()
	first := firing("c4")
	second := firing("c4")
	second.OccurrenceLocalDate = "2026-01-16"

	p1, _ := json.Marshal(first)
	p2, _ := json.Marshal(second)
	p.handle(ctx, p1)
	p.handle(ctx, p2)

	if processed, _ := p.Stats(); processed != 2 {
		t.Fatalf("processed = %d", processed)
	}
}

func TestHandleBadPayloadIgnored(t *testing.T) {
	p, bus := newTestProcessor(nil)
	defer bus.Close()

	p.handle(context.Background(), []byte("{nope"))
	processed, skipped := p.Stats()
	if processed != 0 || skipped != 0 {
		t.Fatal("bad payload counted")
	}
}

func TestRunConsumesFromBus(t *testing.T) {
	p, bus := newTestProcessor(map[string]string{"c5": "standup"})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := bus.Subscribe(ctx, events.TopicEmailRequest)
	testkit.NoErr(t, err)

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	// give the subscription a moment to attach
	time.Sleep(50 * time.Millisecond)
	payload, _ := json.Marshal(firing("c5"))
	testkit.NoErr(t, bus.Publish(ctx, events.TopicAlarmTriggered, payload))

	select {
	case <-out:
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not relay the firing")
	}

	cancel()
	select {
	case err := <-done:
		testkit.NoErr(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop")
	}
}
