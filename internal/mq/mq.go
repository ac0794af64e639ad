// Package mq carries watch-list change events between server instances.
// Sessions of one user may live on different instances, and each of them
// must drop its memoized feed when the user's watch-list changes.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// WatchChannel carries WatchEvents.
const WatchChannel = "chunchun.watch"

// ErrClosed is returned by a bus or broker after Close.
var ErrClosed = errors.New("mq: closed")

// Message is one delivery, independent of the broker.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. A returned error asks the broker to
// redeliver where it can.
type Handler func(ctx context.Context, msg Message) error

// Backend is a broker that fans every published message out to all of the
// channel's subscribers.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	// Subscribe blocks until ctx is done or the subscription fails.
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// WatchAction tells whether a watch relation was added or removed.
type WatchAction string

const (
	ActionWatch   WatchAction = "watch"
	ActionUnwatch WatchAction = "unwatch"
)

// WatchEvent is published after a watch-list change has been committed.
type WatchEvent struct {
	Watcher string      `json:"watcher"`
	Target  string      `json:"target"`
	Action  WatchAction `json:"action"`
}

// MQ is the event bus used by the services. It validates channel names
// and closes its backend once.
type MQ struct {
	backend   Backend
	closeOnce sync.Once
	closeErr  error
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if err := checkChannel(channel); err != nil {
		return "", err
	}
	return m.backend.Publish(ctx, channel, data, attrs)
}

func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if err := checkChannel(channel); err != nil {
		return err
	}
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	m.closeOnce.Do(func() {
		m.closeErr = m.backend.Close()
	})
	return m.closeErr
}

// PublishWatchEvent encodes ev and publishes it on WatchChannel.
func (m *MQ) PublishWatchEvent(ctx context.Context, ev WatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = m.Publish(ctx, WatchChannel, data, map[string]string{
		"action":  string(ev.Action),
		"watcher": ev.Watcher,
	})
	return err
}

// SubscribeWatchEvents decodes messages on WatchChannel and passes them to
// handle. It blocks like Subscribe.
func (m *MQ) SubscribeWatchEvents(ctx context.Context, handle func(context.Context, WatchEvent) error) error {
	return m.Subscribe(ctx, WatchChannel, func(ctx context.Context, msg Message) error {
		var ev WatchEvent
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			return fmt.Errorf("decode watch event %s: %w", msg.ID, err)
		}
		return handle(ctx, ev)
	})
}

func checkChannel(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("mq: channel name is required")
	}
	return nil
}

// newID returns a random id for messages, consumers and subscriptions.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
