package enums

// EventName is the name observers subscribe to on the notifier.
type EventName string

const (
	EventMutationQueued       EventName = "mutation-queued"
	EventMutationSent         EventName = "mutation-sent"
	EventTimelineUpdated      EventName = "timeline-updated"
	EventNotificationsUpdated EventName = "notifications-updated"
	EventProfileUpdated       EventName = "profile-updated"
	EventUnreadCount          EventName = "unread-count"
)

func (e EventName) String() string {
	return string(e)
}
