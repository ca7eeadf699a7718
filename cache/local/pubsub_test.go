package local

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvOne(t *testing.T, ch <-chan *Message) *Message {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(200 * time.Millisecond):
		t.Fatal("no message arrived")
		return nil
	}
}

func TestBrokerDelivers(t *testing.T) {
	b := NewBroker(8)
	ctx := context.Background()

	sink, cancel, err := b.Subscribe(ctx, "arena_events")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, "arena_events", `{"event":"shoot"}`))

	m := recvOne(t, sink)
	assert.Equal(t, "arena_events", m.Channel)
	assert.Equal(t, `{"event":"shoot"}`, m.Payload)
}

func TestBrokerMultiChannelSubscription(t *testing.T) {
	b := NewBroker(8)
	ctx := context.Background()

	sink, cancel, err := b.Subscribe(ctx, "arena_events", "announce")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, b.Publish(ctx, "announce", "maintenance at noon"))
	assert.Equal(t, "announce", recvOne(t, sink).Channel)

	require.NoError(t, b.Publish(ctx, "arena_events", "x"))
	assert.Equal(t, "arena_events", recvOne(t, sink).Channel)
}

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker(8)
	ctx := context.Background()

	a, cancelA, _ := b.Subscribe(ctx, "arena_events")
	c, cancelC, _ := b.Subscribe(ctx, "arena_events")
	defer cancelA()
	defer cancelC()

	require.NoError(t, b.Publish(ctx, "arena_events", "hit"))
	assert.Equal(t, "hit", recvOne(t, a).Payload)
	assert.Equal(t, "hit", recvOne(t, c).Payload)
}

func TestCancelClosesSinkAndStopsDelivery(t *testing.T) {
	b := NewBroker(8)
	ctx := context.Background()

	sink, cancel, _ := b.Subscribe(ctx, "arena_events")
	cancel()

	_, open := <-sink
	assert.False(t, open, "sink should be closed after cancel")

	// Publishing afterwards must not panic on the closed sink.
	assert.NoError(t, b.Publish(ctx, "arena_events", "late"))
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroker(2)
	ctx := context.Background()

	sink, cancel, _ := b.Subscribe(ctx, "arena_events")
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(ctx, "arena_events", fmt.Sprintf("m%d", i))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber buffer")
	}
	assert.Len(t, sink, 2, "only the buffered messages are kept")
}
