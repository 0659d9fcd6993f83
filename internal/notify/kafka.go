package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaBroadcaster writes events to a topic for downstream consumers such
// as the reporting pipeline. The channel name is used as the record key.
type KafkaBroadcaster struct {
	client *kgo.Client
	topic  string
}

func NewKafkaBroadcaster(brokers []string, topic string) (*KafkaBroadcaster, error) {
	seeds := make([]string, 0, len(brokers))
	for _, broker := range brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			seeds = append(seeds, trimmed)
		}
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaBroadcaster{client: client, topic: topic}, nil
}

func (b *KafkaBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	evt, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}
	record, err := eventRecord(b.topic, evt)
	if err != nil {
		return err
	}
	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s: %w", event, err)
	}
	return nil
}

func eventRecord(topic string, evt Event) (*kgo.Record, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return &kgo.Record{
		Topic: topic,
		Key:   []byte(evt.Channel),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event", Value: []byte(evt.Name)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	}, nil
}

func (b *KafkaBroadcaster) Close() {
	b.client.Close()
}
