package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *RedisBroadcaster {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBroadcasterWithClient(client)
}

func TestRedisBroadcastReachesSubscriber(t *testing.T) {
	b := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx, ChannelAll)
	require.NoError(t, err)

	payload := map[string]any{"experienceId": 12, "name": "Huerta escolar"}
	require.NoError(t, b.Broadcast(ctx, ChannelAll, EventNewExperience, payload))

	select {
	case evt := <-events:
		assert.Equal(t, ChannelAll, evt.Channel)
		assert.Equal(t, EventNewExperience, evt.Name)
		assert.True(t, strings.HasPrefix(evt.ID, "evt_"))
		var got map[string]any
		require.NoError(t, json.Unmarshal(evt.Payload, &got))
		assert.Equal(t, "Huerta escolar", got["name"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisSubscribeIgnoresOtherChannels(t *testing.T) {
	b := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := b.Subscribe(ctx, ChannelAdmins)
	require.NoError(t, err)

	require.NoError(t, b.Broadcast(ctx, ChannelAll, EventNewExperience, "skip"))
	require.NoError(t, b.Broadcast(ctx, ChannelAdmins, EventEditRequested, "keep"))

	select {
	case evt := <-events:
		assert.Equal(t, EventEditRequested, evt.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestRedisSubscriptionClosesWithContext(t *testing.T) {
	b := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := b.Subscribe(ctx, ChannelAll)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}

func TestNewRedisBroadcasterRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroadcaster("not a url")
	assert.Error(t, err)
}

func TestLogBroadcasterWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	b := NewLogBroadcaster(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, b.Broadcast(context.Background(), ChannelAll, EventExperienceUpdated, map[string]int{"id": 3}))

	assert.Contains(t, buf.String(), `"event":"ExperienceUpdated"`)
	assert.Contains(t, buf.String(), `"channel":"all"`)
}

type failingBroadcaster struct{ err error }

func (f failingBroadcaster) Broadcast(context.Context, string, string, any) error { return f.err }

type recordingBroadcaster struct{ events []string }

func (r *recordingBroadcaster) Broadcast(_ context.Context, _ string, event string, _ any) error {
	r.events = append(r.events, event)
	return nil
}

func TestMultiContinuesPastFailures(t *testing.T) {
	boom := errors.New("broker down")
	rec := &recordingBroadcaster{}
	m := Multi{failingBroadcaster{err: boom}, nil, rec}

	err := m.Broadcast(context.Background(), ChannelAll, EventNewExperience, nil)

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{EventNewExperience}, rec.events)
}

func TestNewEventRejectsUnmarshalablePayload(t *testing.T) {
	_, err := NewEvent(ChannelAll, EventNewExperience, make(chan int))
	assert.Error(t, err)
}

func TestEventRecordCarriesHeaders(t *testing.T) {
	evt, err := NewEvent(ChannelAdmins, EventEditApproved, map[string]int{"experienceId": 4})
	require.NoError(t, err)

	record, err := eventRecord("experience-events", evt)

	require.NoError(t, err)
	assert.Equal(t, "experience-events", record.Topic)
	assert.Equal(t, []byte(ChannelAdmins), record.Key)
	require.Len(t, record.Headers, 2)
	assert.Equal(t, EventEditApproved, string(record.Headers[0].Value))
}

func TestNewKafkaBroadcasterValidatesInput(t *testing.T) {
	_, err := NewKafkaBroadcaster([]string{" "}, "topic")
	assert.Error(t, err)

	_, err = NewKafkaBroadcaster([]string{"localhost:9092"}, "")
	assert.Error(t, err)
}
