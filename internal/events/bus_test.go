package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	var mu sync.Mutex
	var received []StreamStartedEvent
	done := make(chan struct{}, 1)

	unsub := bus.Subscribe(func(e StreamStartedEvent) {
		mu.Lock()
		received = append(received, e)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer unsub()

	ev := StreamStartedEvent{
		Session:   SessionSnapshot{SessionID: "s1", ClientKind: "web_browser"},
		Timestamp: time.Now(),
	}
	bus.Publish(ev)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, "s1", received[0].Session.SessionID)
}

func TestBus_TopicIsolation(t *testing.T) {
	bus := New()
	defer bus.Close()

	stopped := make(chan StreamStoppedEvent, 1)
	bus.Subscribe(func(e StreamStoppedEvent) {
		stopped <- e
	})

	// An event of a different type must not reach the subscriber.
	bus.Publish(StreamStartedEvent{Timestamp: time.Now()})

	select {
	case <-stopped:
		t.Fatal("received event from a different topic")
	case <-time.After(100 * time.Millisecond):
	}

	bus.Publish(StreamStoppedEvent{Cause: "client_disconnect", Timestamp: time.Now()})
	select {
	case e := <-stopped:
		assert.Equal(t, "client_disconnect", e.Cause)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_PerTypeOrdering(t *testing.T) {
	bus := New()
	defer bus.Close()

	const n = 50
	got := make(chan int, n)
	bus.Subscribe(func(e BandwidthUpdateEvent) {
		got <- int(e.TotalBps)
	})

	for i := 0; i < n; i++ {
		bus.Publish(BandwidthUpdateEvent{TotalBps: float64(i), Timestamp: time.Now()})
	}

	for i := 0; i < n; i++ {
		select {
		case v := <-got:
			assert.Equal(t, i, v, "events delivered out of order")
		case <-time.After(2 * time.Second):
			t.Fatalf("missing event %d", i)
		}
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	got := make(chan SettingsChangedEvent, 2)
	unsub := bus.Subscribe(func(e SettingsChangedEvent) {
		got <- e
	})

	bus.Publish(SettingsChangedEvent{Keys: []string{"streams.max_concurrent"}})
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}

	unsub()
	bus.Publish(SettingsChangedEvent{Keys: []string{"streams.max_concurrent"}})
	select {
	case <-got:
		t.Fatal("received event after unsubscribe")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_UnknownHandlerIsNoop(t *testing.T) {
	bus := New()
	defer bus.Close()

	unsub := bus.Subscribe(func(s string) {})
	assert.NotNil(t, unsub)
	unsub()
}
