// Package processor consumes alarm firings, resolves their descriptions,
// and emits email requests, with an optional clickhouse audit trail
package processor

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	modkit "chime/internal/modkit"
	"chime/internal/modkit/repokit"
	perr "chime/internal/platform/errors"
	"chime/internal/platform/logger"
	"chime/internal/platform/store"
	"chime/internal/services/alarms/repo"
	"chime/internal/services/events"
)

// auditTable receives one row per processed firing when clickhouse is wired
const auditTable = "alarm_firings"

// Processor turns alarm.triggered events into email.request events
type Processor struct {
	log  *logger.Logger
	repo repo.Repo
	bus  store.Bus
	pub  *events.Publisher
	ch   store.Clickhouse

	// seen dedups occurrences within this process; the bus is
	// at-least-once so redeliveries are expected
	mu   sync.Mutex
	seen map[string]struct{}

	processed atomic.Int64
	skipped   atomic.Int64
}

// New builds a processor from shared deps. CH may be nil
func New(deps modkit.Deps) *Processor {
	if deps.PG == nil {
		panic("processor requires a non nil TxRunner")
	}
	if deps.Bus == nil {
		panic("processor requires a non nil Bus")
	}
	return &Processor{
		log:  deps.Log,
		repo: repokit.MustBind(repo.NewPG(), deps.PG),
		bus:  deps.Bus,
		pub:  events.NewPublisher(deps.Bus, deps.Log),
		ch:   deps.CH,
		seen: make(map[string]struct{}),
	}
}

// Stats reports lifetime counters
func (p *Processor) Stats() (processed, skipped int64) {
	return p.processed.Load(), p.skipped.Load()
}

// Run consumes firings until ctx ends
func (p *Processor) Run(ctx context.Context) error {
	ch, err := p.bus.Subscribe(ctx, events.TopicAlarmTriggered)
	if err != nil {
		return err
	}
	p.log.Info().Msg("processor consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return perr.Busf("firing subscription closed")
			}
			p.handle(ctx, payload)
		}
	}
}

func (p *Processor) handle(ctx context.Context, payload []byte) {
	var ev events.AlarmTriggered
	if err := json.Unmarshal(payload, &ev); err != nil {
		p.log.Warn().Err(err).Msg("bad firing payload")
		return
	}
	log := p.log.With().Str("code_id", ev.CodeID).Str("occurrence", ev.OccurrenceLocalDate).Logger()

	if !p.firstSight(ev.CodeID + "|" + ev.OccurrenceLocalDate) {
		p.skipped.Add(1)
		log.Debug().Msg("redelivery skipped")
		return
	}

	desc, err := p.repo.GetDescription(ctx, ev.CodeID)
	if err != nil && !perr.IsCode(err, perr.ErrorCodeNotFound) {
		log.Warn().Err(err).Msg("description lookup failed")
	}

	err = p.pub.EmailRequest(ctx, events.EmailRequest{
		CodeID:              ev.CodeID,
		Email:               ev.Email,
		Description:         desc,
		FiredAtUTC:          ev.FiredAtUTC,
		OccurrenceLocalDate: ev.OccurrenceLocalDate,
	})
	if err != nil {
		// forget the occurrence so a redelivery retries the email
		p.forget(ev.CodeID + "|" + ev.OccurrenceLocalDate)
		log.Error().Err(err).Msg("email request dropped")
		return
	}

	p.processed.Add(1)
	p.audit(ctx, ev)
	log.Info().Str("email", ev.Email).Msg("email requested")
}

// audit appends the firing to clickhouse when the sink is wired
func (p *Processor) audit(ctx context.Context, ev events.AlarmTriggered) {
	if p.ch == nil {
		return
	}
	row := []any{ev.EventID, ev.CodeID, ev.Email, ev.FiredAtUTC, ev.OccurrenceLocalDate, ev.Timezone, time.Now().UTC()}
	if err := p.ch.Insert(ctx, auditTable, [][]any{row}); err != nil {
		p.log.Warn().Err(err).Msg("audit insert failed")
	}
}

func (p *Processor) firstSight(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

func (p *Processor) forget(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seen, key)
}
