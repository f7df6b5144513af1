package events

import (
	"context"
	"testing"
	"time"

	"chime/internal/platform/testkit"
)

func TestMemBusFanOut(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	ctx := context.Background()
	ch1, err := b.Subscribe(ctx, TopicAlarmTriggered)
	testkit.NoErr(t, err)
	ch2, err := b.Subscribe(ctx, TopicAlarmTriggered)
	testkit.NoErr(t, err)
	other, err := b.Subscribe(ctx, TopicEmailRequest)
	testkit.NoErr(t, err)

	testkit.NoErr(t, b.Publish(ctx, TopicAlarmTriggered, []byte("ping")))

	for _, ch := range []<-chan []byte{ch1, ch2} {
		select {
		case got := <-ch:
			if string(got) != "ping" {
				t.Fatalf("got %q", got)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive")
		}
	}
	select {
	case <-other:
		t.Fatal("cross-topic delivery")
	default:
	}
}

func TestMemBusUnsubscribeOnCancel(t *testing.T) {
	b := NewMemBus()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := b.Subscribe(ctx, TopicAlarmChanged)
	testkit.NoErr(t, err)

	cancel()

	// channel closes once the bus notices the cancellation
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestMemBusClosedRejectsPublish(t *testing.T) {
	b := NewMemBus()
	testkit.NoErr(t, b.Close())
	testkit.WantErr(t, b.Publish(context.Background(), TopicAlarmChanged, nil))
	_, err := b.Subscribe(context.Background(), TopicAlarmChanged)
	testkit.WantErr(t, err)
}
