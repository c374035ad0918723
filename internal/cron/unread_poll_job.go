package cron

import (
	"context"
	"fmt"

	"github.com/bluehorizon/skydesk/pkg/enums"
	pkgerrors "github.com/bluehorizon/skydesk/pkg/errors"
	"github.com/bluehorizon/skydesk/pkg/notify"
)

const UnreadPollJobName = "unread-poll"

type sessionState interface {
	Attached() bool
}

type unreadCounter interface {
	UnreadCount(ctx context.Context) (int, error)
}

type UnreadPollJobParams struct {
	Session       sessionState
	Notifications unreadCounter
	Notifier      notify.Notifier
}

// UnreadPollJob publishes the remote unread notification count.
type UnreadPollJob struct {
	session       sessionState
	notifications unreadCounter
	notifier      notify.Notifier
}

func NewUnreadPollJob(params UnreadPollJobParams) (*UnreadPollJob, error) {
	if params.Session == nil {
		return nil, fmt.Errorf("session state required")
	}
	if params.Notifications == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &UnreadPollJob{
		session:       params.Session,
		notifications: params.Notifications,
		notifier:      notifier,
	}, nil
}

func (j *UnreadPollJob) Name() string { return UnreadPollJobName }

func (j *UnreadPollJob) Run(ctx context.Context) error {
	if !j.session.Attached() {
		return nil
	}
	count, err := j.notifications.UnreadCount(ctx)
	if pkgerrors.IsCode(err, pkgerrors.CodeNotAuthenticated) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("unread count: %w", err)
	}
	j.notifier.Publish(ctx, enums.EventUnreadCount, notify.UnreadCountPayload{Count: count})
	return nil
}
