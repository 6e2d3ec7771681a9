package streaming

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowgame/pkg/schema"
)

func TestPublishSubscribe(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	event := schema.GameEvent{
		Type:      schema.EventBadgeEarned,
		SessionID: "sess-1",
		StageID:   "first-flow",
		Badge:     "Badge: Flow Starter",
	}

	err = hub.Publish(ctx, event)
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, event, got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestFilterBySessionID(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{SessionID: "sess-1"})
	require.NoError(t, err)
	defer cancel()

	// Should be received (matching session)
	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventAttemptFailed})
	require.NoError(t, err)

	// Should be dropped (different session)
	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-2", Type: schema.EventAttemptFailed})
	require.NoError(t, err)

	select {
	case got := <-ch:
		assert.Equal(t, "sess-1", got.SessionID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	// The sess-2 event was filtered out.
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestFilterByEventType(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{
		EventTypes: []string{schema.EventStagePassed, schema.EventGameCompleted},
	})
	require.NoError(t, err)
	defer cancel()

	// Should be received
	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventStagePassed})
	require.NoError(t, err)

	// Should be dropped
	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventAttemptFailed})
	require.NoError(t, err)

	// Should be received
	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventGameCompleted})
	require.NoError(t, err)

	var received []string
	for i := 0; i < 2; i++ {
		select {
		case got := <-ch:
			received = append(received, got.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
	assert.Equal(t, []string{schema.EventStagePassed, schema.EventGameCompleted}, received)

	// No more events
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
		// expected
	}
}

func TestMultipleSubscribers(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel1()

	ch2, cancel2, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel2()

	event := schema.GameEvent{SessionID: "sess-1", Type: schema.EventStagePassed}
	err = hub.Publish(ctx, event)
	require.NoError(t, err)

	for _, ch := range []<-chan schema.GameEvent{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, "sess-1", got.SessionID)
			assert.Equal(t, schema.EventStagePassed, got.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestCancelSubscription(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)

	// Cancel removes the subscriber
	cancel()

	err = hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventStagePassed})
	require.NoError(t, err)

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event after cancel: %+v", evt)
	case <-time.After(50 * time.Millisecond):
		// expected: subscriber was removed
	}

	// Verify subscriber map is empty
	hub.mu.RLock()
	assert.Empty(t, hub.subs)
	hub.mu.RUnlock()
}

func TestBackpressure(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	// Fill the channel buffer (64) then publish one more.
	// None of these should block.
	for i := 0; i < defaultChannelBuffer+10; i++ {
		err = hub.Publish(ctx, schema.GameEvent{
			SessionID: "sess-1",
			Type:      schema.EventAttemptFailed,
		})
		require.NoError(t, err)
	}

	// We should be able to drain exactly defaultChannelBuffer events.
	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			goto done
		}
	}
done:
	assert.Equal(t, defaultChannelBuffer, drained)
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()
	const goroutines = 20
	const eventsPerGoroutine = 50

	var wg sync.WaitGroup

	// Start subscribers
	channels := make([]<-chan schema.GameEvent, goroutines)
	cancels := make([]func(), goroutines)
	for i := 0; i < goroutines; i++ {
		ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
		require.NoError(t, err)
		channels[i] = ch
		cancels[i] = cancel
	}
	defer func() {
		for _, c := range cancels {
			c()
		}
	}()

	// Concurrent publishers
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				_ = hub.Publish(ctx, schema.GameEvent{
					SessionID: "sess-concurrent",
					Type:      schema.EventAttemptFailed,
				})
			}
		}()
	}

	// Concurrent subscribers being added/removed
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
			if err != nil {
				return
			}
			// drain a few then cancel
			for range 5 {
				select {
				case <-ch:
				case <-time.After(10 * time.Millisecond):
				}
			}
			cancel()
		}()
	}

	wg.Wait()
}

func TestPublishCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := hub.Publish(ctx, schema.GameEvent{SessionID: "sess-1", Type: schema.EventAttemptFailed})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscribeCancelledContext(t *testing.T) {
	hub := NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := hub.Subscribe(ctx, EventFilter{})
	assert.ErrorIs(t, err, context.Canceled)
}

type failingSink struct {
	err  error
	seen int
}

func (f *failingSink) Record(_ context.Context, _ schema.GameEvent) error {
	f.seen++
	return f.err
}

func TestTee(t *testing.T) {
	hub := NewMemoryHub()
	ctx := context.Background()
	ch, cancel, err := hub.Subscribe(ctx, EventFilter{})
	require.NoError(t, err)
	defer cancel()

	broken := &failingSink{err: errors.New("disk full")}
	ok := &failingSink{}
	sink := Tee(broken, hub, ok)

	err = sink.Record(ctx, schema.GameEvent{Type: schema.EventStagePassed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, broken.seen)
	assert.Equal(t, 1, ok.seen, "later sinks still see the event")

	select {
	case got := <-ch:
		assert.Equal(t, schema.EventStagePassed, got.Type)
	case <-time.After(time.Second):
		t.Fatal("hub did not receive the event")
	}
	assert.Equal(t, 1, hub.Subscribers())
}
