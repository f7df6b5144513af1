// Package store provides a unified facade over the service's storage and
// messaging backends: Postgres (alarm rows), Redis (event bus), and an
// optional ClickHouse sink (firing audit)
package store

import (
	"context"
	"errors"
	"fmt"

	"chime/internal/platform/logger"
)

// Store is the facade for optional backends.
// Backends not enabled in the Config remain nil
type Store struct {
	// Log is the logger used by subclients; zero value is a no op logger
	Log logger.Logger

	// PG is the postgres seam, nil when disabled
	PG TxRunner

	// Bus is the event bus seam, nil when disabled
	Bus Bus

	// CH is the clickhouse seam, nil when disabled
	CH Clickhouse
}

// Row exposes the minimal scan contract a single row needs
type Row interface {
	Scan(dest ...any) error
}

// Rows exposes minimal iteration and scan for a result set
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}

// CommandTag is a tiny interface to inspect command results
type CommandTag interface {
	String() string
	RowsAffected() int64
}

// RowQuerier is the read and write surface repos use for sql
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// TxRunner wraps transaction execution around a function
type TxRunner interface {
	RowQuerier
	Tx(ctx context.Context, fn func(q RowQuerier) error) error
}

// Bus is the raw topic transport the event layer builds on.
// Delivery is at-least-once; payloads are opaque bytes
type Bus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	// Subscribe follows topic until ctx is done; the returned channel is
	// closed when the subscription ends
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	Close() error
}

// Clickhouse is a tiny seam for columnar appends and queries
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close() error
}

// Pinger is any seam that can report readiness
type Pinger interface{ Ping(context.Context) error }

// Open constructs a Store with the requested backends
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{}
	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}

	// normalize zero logger to avoid nil checks downstream
	s.Log = s.Log.With().Logger()

	if cfg.PG.Enabled {
		pgClient, err := openPG(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.PG = pgClient
	}

	if cfg.Bus.Enabled {
		busClient, err := openBus(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.Bus = busClient
	}

	if cfg.CH.Enabled {
		chClient, err := openCH(ctx, cfg, s)
		if err != nil {
			return nil, err
		}
		s.CH = chClient
	}

	return s, nil
}

// Guard verifies all configured seams report ready
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	for name, seam := range map[string]any{"pg": s.PG, "bus": s.Bus, "ch": s.CH} {
		if seam == nil {
			continue
		}
		if p, ok := seam.(Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes all initialized backends gracefully; nil backends are ignored
func (s *Store) Close(ctx context.Context) error {
	var errs []error

	if s.Bus != nil {
		if e := s.Bus.Close(); e != nil {
			errs = append(errs, e)
		}
	}
	if s.CH != nil {
		if e := s.CH.Close(); e != nil {
			errs = append(errs, e)
		}
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		if e := c.Close(); e != nil {
			errs = append(errs, e)
		}
	}

	return errors.Join(errs...)
}
