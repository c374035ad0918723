package enums

import (
	"errors"
	"fmt"
)

// MutationStatus is the lifecycle state of a queued mutation.
type MutationStatus string

const (
	MutationStatusQueued   MutationStatus = "queued"
	MutationStatusRetrying MutationStatus = "retrying"
	MutationStatusSent     MutationStatus = "sent"
	MutationStatusFailed   MutationStatus = "failed"
)

var validMutationStatuses = []MutationStatus{
	MutationStatusQueued,
	MutationStatusRetrying,
	MutationStatusSent,
	MutationStatusFailed,
}

// ErrInvalidTransition is returned by Transition for moves the state machine forbids.
var ErrInvalidTransition = errors.New("invalid mutation status transition")

// allowedTransitions lists every legal move keyed by the source status.
// retrying -> retrying covers rows left mid-attempt when the process died.
var allowedTransitions = map[MutationStatus][]MutationStatus{
	MutationStatusQueued:   {MutationStatusRetrying, MutationStatusFailed},
	MutationStatusRetrying: {MutationStatusRetrying, MutationStatusSent, MutationStatusQueued, MutationStatusFailed},
}

func (s MutationStatus) String() string {
	return string(s)
}

// IsValid reports whether the value matches a known status.
func (s MutationStatus) IsValid() bool {
	for _, candidate := range validMutationStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further automatic transition may happen.
func (s MutationStatus) IsTerminal() bool {
	return s == MutationStatusSent || s == MutationStatusFailed
}

// IsDue reports whether a row in this status is eligible for a sweep.
func (s MutationStatus) IsDue() bool {
	return s == MutationStatusQueued || s == MutationStatusRetrying
}

// ParseMutationStatus converts raw input into MutationStatus.
func ParseMutationStatus(value string) (MutationStatus, error) {
	for _, candidate := range validMutationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mutation status %q", value)
}

// Transition validates moving from one status to the next.
func Transition(from, to MutationStatus) error {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// PredecessorsOf returns every status that may legally move to the given one.
func PredecessorsOf(to MutationStatus) []MutationStatus {
	var out []MutationStatus
	for _, from := range validMutationStatuses {
		if Transition(from, to) == nil {
			out = append(out, from)
		}
	}
	return out
}

// DueStatuses are the statuses a sweep selects from.
func DueStatuses() []MutationStatus {
	return []MutationStatus{MutationStatusQueued, MutationStatusRetrying}
}

// MutationKind names the remote write a queued payload performs.
type MutationKind string

const (
	MutationKindCreatePost            MutationKind = "create_post"
	MutationKindMarkNotificationsRead MutationKind = "mark_notifications_read"
)

// Interaction kinds are sent immediately and never queued.
const (
	MutationKindLike     MutationKind = "like"
	MutationKindUnlike   MutationKind = "unlike"
	MutationKindRepost   MutationKind = "repost"
	MutationKindUnrepost MutationKind = "unrepost"
	MutationKindFollow   MutationKind = "follow"
	MutationKindUnfollow MutationKind = "unfollow"
	MutationKindMute     MutationKind = "mute"
	MutationKindUnmute   MutationKind = "unmute"
	MutationKindBlock    MutationKind = "block"
	MutationKindUnblock  MutationKind = "unblock"
)

var validMutationKinds = []MutationKind{
	MutationKindCreatePost,
	MutationKindMarkNotificationsRead,
	MutationKindLike,
	MutationKindUnlike,
	MutationKindRepost,
	MutationKindUnrepost,
	MutationKindFollow,
	MutationKindUnfollow,
	MutationKindMute,
	MutationKindUnmute,
	MutationKindBlock,
	MutationKindUnblock,
}

func (k MutationKind) IsValid() bool {
	for _, candidate := range validMutationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

func ParseMutationKind(value string) (MutationKind, error) {
	for _, candidate := range validMutationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid mutation kind %q", value)
}
