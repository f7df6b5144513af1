package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	perr "chime/internal/platform/errors"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
)

// Retry policy for publishes. The backoff doubles from base up to ceiling;
// once attempts are exhausted the error is Terminal and the caller marks
// the alarm failed instead of retrying forever
const (
	retryBase     = 100 * time.Millisecond
	retryCeiling  = 5 * time.Second
	retryAttempts = 5
)

// Publisher writes events to the bus with bounded retry
type Publisher struct {
	bus store.Bus
	log *logger.Logger

	// sleep is a seam so tests run without wall-clock delays
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPublisher builds a Publisher over bus
func NewPublisher(bus store.Bus, log *logger.Logger) *Publisher {
	if bus == nil {
		panic("events.Publisher requires a non nil Bus")
	}
	return &Publisher{bus: bus, log: log, sleep: ctxSleep}
}

// AlarmTriggered publishes ev, stamping a fresh event id when absent
func (p *Publisher) AlarmTriggered(ctx context.Context, ev AlarmTriggered) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	return p.publish(ctx, TopicAlarmTriggered, ev)
}

// EmailRequest publishes ev, stamping a fresh event id when absent
func (p *Publisher) EmailRequest(ctx context.Context, ev EmailRequest) error {
	if ev.EventID == "" {
		ev.EventID = uuid.NewString()
	}
	return p.publish(ctx, TopicEmailRequest, ev)
}

// AlarmChanged publishes a change notification for codeID
func (p *Publisher) AlarmChanged(ctx context.Context, codeID, change string) error {
	return p.publish(ctx, TopicAlarmChanged, AlarmChanged{
		EventID: uuid.NewString(),
		CodeID:  codeID,
		Change:  change,
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeBus, "marshal %s", topic)
	}

	backoff := retryBase
	var lastErr error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		lastErr = p.bus.Publish(ctx, topic, payload)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return perr.Wrapf(ctx.Err(), perr.ErrorCodeBus, "publish %s canceled", topic)
		}

		p.log.Warn().
			Str("topic", topic).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(lastErr).
			Msg("publish failed")

		if attempt == retryAttempts {
			break
		}
		if err := p.sleep(ctx, backoff); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeBus, "publish %s canceled", topic)
		}
		backoff *= 2
		if backoff > retryCeiling {
			backoff = retryCeiling
		}
	}
	return perr.Wrapf(lastErr, perr.ErrorCodeTerminal,
		"publish %s gave up after %d attempts", topic, retryAttempts)
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
