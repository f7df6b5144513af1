package store

import (
	"context"
	"errors"

	"chime/internal/platform/store/rd"
)

// busAdapter adapts *rd.RD to the store.Bus seam
type busAdapter struct {
	inner *rd.RD
}

var _ Bus = (*busAdapter)(nil)

func newBusAdapter(r *rd.RD) Bus { return &busAdapter{inner: r} }

func (b *busAdapter) Publish(ctx context.Context, topic string, payload []byte) error {
	return b.inner.Publish(ctx, topic, payload)
}

func (b *busAdapter) Subscribe(ctx context.Context, topic string) (<-chan []byte, error) {
	return b.inner.Subscribe(ctx, topic)
}

func (b *busAdapter) Ping(ctx context.Context) error {
	if b == nil || b.inner == nil {
		return errors.New("store: nil bus adapter")
	}
	return b.inner.Ping(ctx)
}

func (b *busAdapter) Close() error { return b.inner.Close() }
