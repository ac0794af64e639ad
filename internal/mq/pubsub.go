package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/akostadinov/chunchun/config"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// subscriptionTTL lets Pub/Sub remove subscriptions of instances that died
// without deleting them.
const subscriptionTTL = 24 * time.Hour

// PubSubClient maps each mq channel to a topic. Every Subscribe call gets
// a subscription of its own, so every server instance sees every event.
type PubSubClient struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client: client,
		suffix: suffix,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	id, err := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", channel, err)
	}
	return id, nil
}

// Subscribe receives until ctx is done and deletes its subscription on
// return.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	topic, err := p.topic(ctx, channel)
	if err != nil {
		return err
	}

	sub, err := p.client.CreateSubscription(ctx, p.subscriptionID(channel), pubsub.SubscriptionConfig{
		Topic:            topic,
		AckDeadline:      20 * time.Second,
		ExpirationPolicy: subscriptionTTL,
	})
	if err != nil {
		return fmt.Errorf("create subscription on %s: %w", channel, err)
	}
	defer func() {
		if err := sub.Delete(context.WithoutCancel(ctx)); err != nil {
			logrus.WithError(err).WithField("subscription", sub.ID()).Warn("failed to delete pubsub subscription")
		}
	}()

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"channel": channel,
				"message": m.ID,
			}).Warn("pubsub handler failed")
			m.Nack()
			return
		}
		m.Ack()
	})
}

func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the topic for channel, creating it on first use.
func (p *PubSubClient) topic(ctx context.Context, channel string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.topics[channel]; ok {
		return t, nil
	}

	t := p.client.Topic(channel)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("check topic %s: %w", channel, err)
	}
	if !exists {
		if t, err = p.client.CreateTopic(ctx, channel); err != nil {
			return nil, fmt.Errorf("create topic %s: %w", channel, err)
		}
	}
	p.topics[channel] = t
	return t, nil
}

// subscriptionID turns channel into a valid, unique subscription id.
// Dots are not allowed in ids.
func (p *PubSubClient) subscriptionID(channel string) string {
	return strings.ReplaceAll(channel, ".", "-") + p.suffix + "-" + newID()[:16]
}
