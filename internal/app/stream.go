package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"experiences/api/internal/notify"
	"experiences/api/internal/rbac"
)

const streamHeartbeat = 25 * time.Second

// Subscriber delivers notification events until ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan notify.Event, error)
}

// handleStream relays notifications as Server-Sent Events. Everyone gets
// the "all" channel; callers allowed to list permissions also get "admins".
func (s *HTTPServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		s.fail(w, r, errStreamDisabled)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.fail(w, r, errStreamUnsupported)
		return
	}

	channels := []string{notify.ChannelAll}
	if claims, _ := claimsFrom(r.Context()); rbac.CanAny(claims.Roles, rbac.ActionListPermissions) {
		channels = append(channels, notify.ChannelAdmins)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	events, err := s.stream.Subscribe(ctx, channels...)
	if err != nil {
		s.fail(w, r, fmt.Errorf("%w: %w", ErrUnavailable, err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			_, _ = w.Write([]byte(": ping\n\n"))
			flusher.Flush()
		case evt, ok := <-events:
			if !ok {
				return
			}
			_, _ = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Name, evt.Payload)
			flusher.Flush()
		}
	}
}
