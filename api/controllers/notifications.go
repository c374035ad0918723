package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type NotificationsService interface {
	List(ctx context.Context, page pagination.Params) (json.RawMessage, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context) error
}

// ListNotifications returns one page of notifications, served from the
// local cache when the remote is unreachable.
func ListNotifications(svc NotificationsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.List(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func UnreadNotificationCount(svc NotificationsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.UnreadCount(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"count": count})
	}
}

func MarkNotificationsSeen(svc NotificationsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.MarkRead(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"seen": true})
	}
}
