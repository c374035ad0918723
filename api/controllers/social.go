package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/pkg/gateway"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/pagination"
)

type ThreadService interface {
	Thread(ctx context.Context, uri string) (json.RawMessage, error)
	CustomFeed(ctx context.Context, feedURI string, page pagination.Params) (json.RawMessage, error)
}

type GraphService interface {
	Followers(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error)
	Follows(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error)
	ActorLists(ctx context.Context, actor string, page pagination.Params) (json.RawMessage, error)
	List(ctx context.Context, uri string, page pagination.Params) (json.RawMessage, error)
	ListFeed(ctx context.Context, uri string, page pagination.Params) (json.RawMessage, error)
}

type SearchService interface {
	Posts(ctx context.Context, query, sort string, page pagination.Params) (json.RawMessage, error)
	Actors(ctx context.Context, query string, page pagination.Params) (json.RawMessage, error)
}

type InteractionsService interface {
	Like(ctx context.Context, uri, cid string) (gateway.Receipt, error)
	Unlike(ctx context.Context, likeURI string) error
	Repost(ctx context.Context, uri, cid string) (gateway.Receipt, error)
	Unrepost(ctx context.Context, repostURI string) error
	Follow(ctx context.Context, did string) (gateway.Receipt, error)
	Unfollow(ctx context.Context, followURI string) error
	Block(ctx context.Context, did string) (gateway.Receipt, error)
	Unblock(ctx context.Context, blockURI string) error
	Mute(ctx context.Context, actor string) error
	Unmute(ctx context.Context, actor string) error
}

// pageRead serves a paged pass-through read keyed by an extracted value.
func pageRead(logg *logger.Logger, key func(r *http.Request) string, read func(ctx context.Context, key string, page pagination.Params) (json.RawMessage, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := read(r.Context(), key(r), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func queryValue(name string) func(r *http.Request) string {
	return func(r *http.Request) string { return r.URL.Query().Get(name) }
}

func pathValue(name string) func(r *http.Request) string {
	return func(r *http.Request) string { return chi.URLParam(r, name) }
}

// Thread returns the post at ?uri= with its parents and replies.
func Thread(svc ThreadService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := svc.Thread(r.Context(), r.URL.Query().Get("uri"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func CustomFeed(svc ThreadService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, queryValue("uri"), svc.CustomFeed)
}

func Followers(svc GraphService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, pathValue("actor"), svc.Followers)
}

func Follows(svc GraphService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, pathValue("actor"), svc.Follows)
}

func ActorLists(svc GraphService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, pathValue("actor"), svc.ActorLists)
}

func ListView(svc GraphService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, queryValue("uri"), svc.List)
}

func ListFeed(svc GraphService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, queryValue("uri"), svc.ListFeed)
}

// SearchPosts handles ?q=&sort=latest|top.
func SearchPosts(svc SearchService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		snapshot, err := svc.Posts(r.Context(), query.Get("q"), query.Get("sort"), page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}

func SearchActors(svc SearchService, logg *logger.Logger) http.HandlerFunc {
	return pageRead(logg, queryValue("q"), svc.Actors)
}

type postSubjectRequest struct {
	URI string `json:"uri" validate:"required,startswith=at://"`
	CID string `json:"cid"`
}

type actorSubjectRequest struct {
	DID string `json:"did" validate:"required,startswith=did:"`
}

type muteRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// createWith decodes a body of type T and answers 201 with the created record.
func createWith[T any](logg *logger.Logger, create func(ctx context.Context, body T) (gateway.Receipt, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body T
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		receipt, err := create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, receipt)
	}
}

// deleteBy answers 204 once the record named by the ?<param>= value is gone.
func deleteBy(logg *logger.Logger, param string, remove func(ctx context.Context, value string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := remove(r.Context(), r.URL.Query().Get(param)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Like(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return createWith(logg, func(ctx context.Context, body postSubjectRequest) (gateway.Receipt, error) {
		return svc.Like(ctx, body.URI, body.CID)
	})
}

func Unlike(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return deleteBy(logg, "uri", svc.Unlike)
}

func Repost(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return createWith(logg, func(ctx context.Context, body postSubjectRequest) (gateway.Receipt, error) {
		return svc.Repost(ctx, body.URI, body.CID)
	})
}

func Unrepost(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return deleteBy(logg, "uri", svc.Unrepost)
}

func Follow(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return createWith(logg, func(ctx context.Context, body actorSubjectRequest) (gateway.Receipt, error) {
		return svc.Follow(ctx, body.DID)
	})
}

func Unfollow(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return deleteBy(logg, "uri", svc.Unfollow)
}

func Block(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return createWith(logg, func(ctx context.Context, body actorSubjectRequest) (gateway.Receipt, error) {
		return svc.Block(ctx, body.DID)
	})
}

func Unblock(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return deleteBy(logg, "uri", svc.Unblock)
}

func Mute(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body muteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Mute(r.Context(), body.Actor); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func Unmute(svc InteractionsService, logg *logger.Logger) http.HandlerFunc {
	return deleteBy(logg, "actor", svc.Unmute)
}
