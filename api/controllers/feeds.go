package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type TimelineService interface {
	Get(ctx context.Context, page pagination.Params) (json.RawMessage, error)
	AuthorFeed(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error)
}

type ProfilesService interface {
	Get(ctx context.Context, handle string) (json.RawMessage, error)
}

func Timeline(svc TimelineService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.Get(r.Context(), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func AuthorFeed(svc TimelineService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.AuthorFeed(r.Context(), chi.URLParam(r, "actor"), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func Profile(svc ProfilesService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Get(r.Context(), chi.URLParam(r, "handle"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
