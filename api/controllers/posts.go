package controllers

import (
	"context"
	"net/http"

	"github.com/bluehorizon/skydesk/api/responses"
	"github.com/bluehorizon/skydesk/api/validators"
	"github.com/bluehorizon/skydesk/internal/posts"
	"github.com/bluehorizon/skydesk/pkg/logger"
	"github.com/bluehorizon/skydesk/pkg/types"
)

type PostsService interface {
	Create(ctx context.Context, c types.Composition) (posts.Result, error)
}

// CreatePost publishes the composition. A post that could not be delivered
// yet is queued and answered with 202 Accepted.
func CreatePost(svc PostsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body types.Composition
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusCreated
		if result.Status == posts.StatusQueued {
			status = http.StatusAccepted
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
