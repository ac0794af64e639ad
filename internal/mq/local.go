package mq

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// LocalBroker delivers messages in process. Publish calls every handler
// subscribed to the channel before it returns, so tests and single-node
// deployments see the effects of an event immediately.
type LocalBroker struct {
	mu       sync.RWMutex
	handlers map[string]map[uint64]Handler
	nextID   atomic.Uint64
	closed   bool
}

func NewLocalBroker() *LocalBroker {
	return &LocalBroker{handlers: make(map[string]map[uint64]Handler)}
}

// Publish delivers data to the current subscribers of channel. Handler
// errors are logged; there is no redelivery.
func (b *LocalBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return "", ErrClosed
	}
	handlers := make([]Handler, 0, len(b.handlers[channel]))
	for _, h := range b.handlers[channel] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	id := strconv.FormatUint(b.nextID.Add(1), 10)
	msg := Message{ID: id, Data: data, Attributes: attrs}
	for _, h := range handlers {
		if err := h(ctx, msg); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"channel": channel,
				"message": id,
			}).Warn("local broker handler failed")
		}
	}
	return id, nil
}

// Subscribe registers handler and blocks until ctx is done.
func (b *LocalBroker) Subscribe(ctx context.Context, channel string, handler Handler) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	id := b.nextID.Add(1)
	if b.handlers[channel] == nil {
		b.handlers[channel] = make(map[uint64]Handler)
	}
	b.handlers[channel][id] = handler
	b.mu.Unlock()

	<-ctx.Done()

	b.mu.Lock()
	delete(b.handlers[channel], id)
	b.mu.Unlock()
	return ctx.Err()
}

// Subscribers returns the number of handlers registered on channel.
func (b *LocalBroker) Subscribers(channel string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[channel])
}

func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.handlers = make(map[string]map[uint64]Handler)
	return nil
}
