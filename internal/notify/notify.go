// Package notify fans workflow events out to dashboards and downstream
// consumers. Delivery is best effort: callers log failures and move on.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"experiences/api/internal/util"
)

const (
	ChannelAll    = "all"
	ChannelAdmins = "admins"

	EventNewExperience     = "ReceiveNotification"
	EventExperienceUpdated = "ExperienceUpdated"
	EventEditRequested     = "EditRequested"
	EventEditApproved      = "EditApproved"
)

type Event struct {
	ID         string          `json:"id"`
	Channel    string          `json:"channel"`
	Name       string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func NewEvent(channel, name string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return Event{
		ID:         util.NewID("evt"),
		Channel:    channel,
		Name:       name,
		Payload:    raw,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Broadcaster publishes an event on a logical channel.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel, event string, payload any) error
}

// Multi publishes to every broadcaster and joins their errors.
type Multi []Broadcaster

func (m Multi) Broadcast(ctx context.Context, channel, event string, payload any) error {
	var errs []error
	for _, b := range m {
		if b == nil {
			continue
		}
		if err := b.Broadcast(ctx, channel, event, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogBroadcaster writes events to the structured log. It is the fallback
// when no transport is configured.
type LogBroadcaster struct {
	logger *slog.Logger
}

func NewLogBroadcaster(logger *slog.Logger) *LogBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBroadcaster{logger: logger}
}

func (b *LogBroadcaster) Broadcast(ctx context.Context, channel, event string, payload any) error {
	evt, err := NewEvent(channel, event, payload)
	if err != nil {
		return err
	}
	b.logger.InfoContext(ctx, "notification",
		"event_id", evt.ID,
		"channel", channel,
		"event", event,
		"payload", string(evt.Payload),
	)
	return nil
}
