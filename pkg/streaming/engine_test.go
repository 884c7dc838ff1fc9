package streaming_test

import (
	"testing"
	"time"

	"github.com/cuemby/fabric/pkg/observer"
	"github.com/cuemby/fabric/pkg/streaming"
	"github.com/cuemby/fabric/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestEngineSubscribeAndPublish(t *testing.T) {
	bus := observer.NewBus()
	engine := streaming.NewEngine("test.topic", bus, 10, 0)

	ch := engine.Subscribe("sub1", nil)
	engine.Publish("hello", "evt-1")

	select {
	case evt := <-ch:
		require.Equal(t, "hello", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestEngineFilterExcludesNonMatching(t *testing.T) {
	bus := observer.NewBus()
	engine := streaming.NewEngine("test.topic", bus, 10, 0)

	filter := func(e *types.Event) bool { return e.Payload == "keep" }
	ch := engine.Subscribe("sub1", filter)

	engine.Publish("drop", "evt-1")
	engine.Publish("keep", "evt-2")

	select {
	case evt := <-ch:
		require.Equal(t, "keep", evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for filtered event")
	}
}

func TestEngineEvictIdleRemovesStaleSubscriber(t *testing.T) {
	bus := observer.NewBus()
	engine := streaming.NewEngine("test.topic", bus, 10, 10*time.Millisecond)

	engine.Subscribe("sub1", nil)
	require.Equal(t, 1, engine.SubscriberCount())

	time.Sleep(20 * time.Millisecond)
	engine.EvictIdle()

	require.Equal(t, 0, engine.SubscriberCount())
}

func TestEngineMarkReadKeepsSubscriberAlive(t *testing.T) {
	bus := observer.NewBus()
	engine := streaming.NewEngine("test.topic", bus, 10, 15*time.Millisecond)
	engine.Subscribe("sub1", nil)

	stop := make(chan struct{})
	defer close(stop)
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(40 * time.Millisecond)
	for {
		select {
		case <-ticker.C:
			engine.MarkRead("sub1")
			engine.EvictIdle()
		case <-deadline:
			require.Equal(t, 1, engine.SubscriberCount())
			return
		}
	}
}

func TestPeriodicPublisherTicksUntilStopped(t *testing.T) {
	bus := observer.NewBus()
	engine := streaming.NewEngine("test.topic", bus, 10, 0)
	ch := engine.Subscribe("sub1", nil)

	count := 0
	publisher := streaming.NewPeriodicPublisher(5*time.Millisecond, func() (any, string) {
		count++
		return count, "tick"
	})
	go publisher.Run(func(payload any, eventID string) {
		engine.Publish(payload, eventID)
	})
	defer publisher.Stop()

	received := 0
	timeout := time.After(100 * time.Millisecond)
	for received < 3 {
		select {
		case <-ch:
			received++
		case <-timeout:
			t.Fatal("timed out waiting for periodic ticks")
		}
	}
}
