package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "experiences:notifications:"

// RedisBroadcaster publishes events over Redis pub/sub so every API replica
// can relay them to its connected stream clients.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
}

func NewRedisBroadcaster(redisURL string) (*RedisBroadcaster, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisBroadcasterWithClient(client), nil
}

func NewRedisBroadcasterWithClient(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, prefix: channelPrefix}
}

func (b *RedisBroadcaster) topic(channel string) string {
	return b.prefix + channel
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	evt, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := b.client.Publish(ctx, b.topic(channel), data).Err(); err != nil {
		return fmt.Errorf("publish %s on %s: %w", event, channel, err)
	}
	return nil
}

// Subscribe streams events from the given channels until ctx is done. The
// returned channel is closed when the subscription ends.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, channels ...string) (<-chan Event, error) {
	topics := make([]string, 0, len(channels))
	for _, channel := range channels {
		topics = append(topics, b.topic(channel))
	}
	pubsub := b.client.Subscribe(ctx, topics...)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var evt Event
				if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
					continue
				}
				select {
				case out <- evt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *RedisBroadcaster) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBroadcaster) Close() error {
	return b.client.Close()
}
