package controllers

import (
	"context"
	"net/http"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/internal/drafts"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/types"
)

type DraftsService interface {
	Save(ctx context.Context, key string, c types.Composition) error
	Load(ctx context.Context, key string) (*types.Composition, error)
	Clear(ctx context.Context, key string) error
}

func draftKey(r *http.Request) string {
	q := r.URL.Query()
	return drafts.ContextKey(q.Get("replyTo"), q.Get("quoteOf"))
}

// LoadDraft returns the draft for the replyTo/quoteOf context, or null.
func LoadDraft(svc DraftsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		draft, err := svc.Load(r.Context(), draftKey(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, draft)
	}
}

// SaveDraft stores the composition under the context its own replyTo and
// quoteOf describe. An empty composition clears the slot.
func SaveDraft(svc DraftsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body types.Composition
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		key := drafts.ContextKey(body.ReplyTo, body.QuoteOf)
		if err := svc.Save(r.Context(), key, body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"key": key})
	}
}

func ClearDraft(svc DraftsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Clear(r.Context(), draftKey(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
