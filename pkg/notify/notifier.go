// Package notify carries state-change events from the outbox, cache and
// scheduler to whoever is listening (the desktop shell, other processes).
// Publishing is fire-and-forget: failures are logged, never returned.
package notify

import (
	"context"
	"time"

	"github.com/bluehorizon/skydesk/pkg/enums"
)

type Notifier interface {
	Publish(ctx context.Context, name enums.EventName, payload any)
}

// Event is the envelope delivered to observers.
type Event struct {
	Name      enums.EventName `json:"name"`
	Payload   any             `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// MutationPayload accompanies mutation-queued and mutation-sent.
type MutationPayload struct {
	ID string `json:"id"`
}

// SnapshotPayload accompanies timeline-updated and notifications-updated.
type SnapshotPayload struct {
	Snapshot any `json:"snapshot"`
}

// ProfilePayload accompanies profile-updated.
type ProfilePayload struct {
	Handle   string `json:"handle"`
	Snapshot any    `json:"snapshot"`
}

// UnreadCountPayload accompanies unread-count.
type UnreadCountPayload struct {
	Count int `json:"count"`
}

// Fanout publishes to every wrapped notifier in order.
type Fanout []Notifier

func (f Fanout) Publish(ctx context.Context, name enums.EventName, payload any) {
	for _, n := range f {
		if n != nil {
			n.Publish(ctx, name, payload)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, enums.EventName, any) {}
