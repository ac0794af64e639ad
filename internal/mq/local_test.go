package mq

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitSubscribers(t *testing.T, b *LocalBroker, channel string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return b.Subscribers(channel) == n
	}, time.Second, time.Millisecond)
}

func TestLocalBrokerFanout(t *testing.T) {
	broker := NewLocalBroker()
	bus := New(broker)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	got := map[string][]WatchEvent{}
	var wg sync.WaitGroup
	for _, name := range []string{"a", "b"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			_ = bus.SubscribeWatchEvents(ctx, func(_ context.Context, ev WatchEvent) error {
				mu.Lock()
				defer mu.Unlock()
				got[name] = append(got[name], ev)
				return nil
			})
		}(name)
	}
	waitSubscribers(t, broker, WatchChannel, 2)

	ev := WatchEvent{Watcher: "user1", Target: "user7", Action: ActionUnwatch}
	require.NoError(t, bus.PublishWatchEvent(ctx, ev))

	mu.Lock()
	assert.Equal(t, []WatchEvent{ev}, got["a"])
	assert.Equal(t, []WatchEvent{ev}, got["b"])
	mu.Unlock()

	cancel()
	wg.Wait()
	assert.Equal(t, 0, broker.Subscribers(WatchChannel))
}

func TestLocalBrokerHandlerErrorDoesNotFailPublish(t *testing.T) {
	broker := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = broker.Subscribe(ctx, "other", func(context.Context, Message) error {
			return errors.New("boom")
		})
	}()
	waitSubscribers(t, broker, "other", 1)

	id, err := broker.Publish(ctx, "other", []byte("x"), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	cancel()
	<-done
}

func TestLocalBrokerNoSubscribers(t *testing.T) {
	broker := NewLocalBroker()
	_, err := broker.Publish(context.Background(), WatchChannel, []byte("{}"), nil)
	assert.NoError(t, err)
}

func TestLocalBrokerClosed(t *testing.T) {
	broker := NewLocalBroker()
	require.NoError(t, broker.Close())

	_, err := broker.Publish(context.Background(), WatchChannel, nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, broker.Subscribe(context.Background(), WatchChannel, func(context.Context, Message) error { return nil }), ErrClosed)
}

func TestBusRejectsEmptyChannel(t *testing.T) {
	bus := New(NewLocalBroker())
	_, err := bus.Publish(context.Background(), " ", []byte("{}"), nil)
	assert.Error(t, err)
	assert.Error(t, bus.Subscribe(context.Background(), "", func(context.Context, Message) error { return nil }))
}

func TestBusClosesBackendOnce(t *testing.T) {
	broker := NewLocalBroker()
	bus := New(broker)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.PublishWatchEvent(context.Background(), WatchEvent{Watcher: "user1", Target: "user2", Action: ActionWatch}), ErrClosed)
}

func TestSubscribeWatchEventsRejectsGarbage(t *testing.T) {
	broker := NewLocalBroker()
	bus := New(broker)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	called := false
	go func() {
		_ = bus.SubscribeWatchEvents(ctx, func(context.Context, WatchEvent) error {
			called = true
			return nil
		})
	}()
	waitSubscribers(t, broker, WatchChannel, 1)

	_, err := bus.Publish(ctx, WatchChannel, []byte("not json"), nil)
	require.NoError(t, err)
	assert.False(t, called)
}
