// Package rd provides the redis client behind the event bus seam
package rd

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Config configures redis connectivity
type Config struct {
	// URL is a redis:// URL (BUS_URL)
	URL string
}

// RD is a thin wrapper over go-redis pub/sub
type RD struct {
	Client *redis.Client
}

// Open parses the URL and builds a client; connectivity is verified by Ping
func Open(_ context.Context, cfg Config) (*RD, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	return &RD{Client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity
func (r *RD) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

// Publish sends payload on the given channel
func (r *RD) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.Client.Publish(ctx, channel, payload).Err()
}

// Subscribe follows channel until ctx is done. The returned Go channel is
// closed when the subscription ends
func (r *RD) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := r.Client.Subscribe(ctx, channel)
	// force the subscription onto the wire before we return
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the client
func (r *RD) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
